package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"paper_trade/internal/app"
	"paper_trade/internal/infra"

	_ "net/http/pprof"
)

func main() {
	configPath := flag.String("config", infra.ResolveConfigPath(), "path to config.yaml")
	reset := flag.Bool("reset", false, "discard the saved simulation and start from the default balance")
	pprofAddr := flag.String("pprof", "", "serve pprof on this address, e.g. localhost:6060")
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			slog.Info("Pprof server started", slog.String("addr", *pprofAddr))
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath, *reset); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Run(ctx); err != nil {
		slog.Error("Paper trade engine stopped with error", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("Shutting down gracefully...")
}
