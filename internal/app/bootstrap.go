package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"paper_trade/internal/api"
	"paper_trade/internal/engine"
	"paper_trade/internal/feed"
	"paper_trade/internal/infra"
	"paper_trade/internal/infra/bitget"
	"paper_trade/internal/market"
	"paper_trade/internal/storage"

	"github.com/shopspring/decimal"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config  *infra.Config
	Store   *storage.Store
	Engine  *engine.Engine
	Feed    *feed.Feed
	Sources []infra.PriceSource
	API     *api.Server

	lock *infra.InstanceLock
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, opens storage and wires the engine, feed and sources.
// With reset set, the persisted simulation is replaced by the default snapshot first.
func (b *Bootstrap) Initialize(configPath string, reset bool) error {
	cfg, err := infra.LoadConfig(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = infra.DefaultConfig()
		slog.Warn("Config file not found, using built-in defaults", slog.String("path", configPath))
	} else if err != nil {
		return err
	}
	b.Config = cfg
	slog.SetDefault(infra.NewLogger(cfg))

	dataDir := infra.DataDir(cfg)
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	lock, err := infra.AcquireLock(dataDir)
	if err != nil {
		return err
	}
	b.lock = lock

	dbPath := filepath.Join(dataDir, "paper.db")
	store, err := storage.NewStore(dbPath)
	if err != nil {
		_ = lock.Release()
		b.lock = nil
		return err
	}
	b.Store = store
	slog.Info("Store initialized (WAL-mode)", slog.String("path", dbPath))

	snapshots := storage.NewSnapshotter(store, cfg.InitialBalance())
	if reset {
		if _, err := snapshots.Reset(context.Background()); err != nil {
			slog.Warn("Reset write failed", slog.Any("error", err))
		}
		slog.Info("Simulation reset to defaults")
	}

	var eng *engine.Engine
	b.Feed = feed.New(func(ctx context.Context, batch []market.Update) error {
		return eng.SubmitPrices(ctx, batch)
	}, cfg.FlushInterval())

	eng = engine.New(engine.Config{
		InitialBalance: cfg.InitialBalance(),
		InboxSize:      cfg.Simulation.InboxSize,
		EvalInterval:   cfg.EvalInterval(),
	}, engine.WithPersister(snapshots), engine.WithFeedControl(b.Feed))
	b.Engine = eng

	b.Sources = buildSources(cfg, b.Feed)

	apiSources := make([]api.Source, 0, len(b.Sources))
	for _, s := range b.Sources {
		apiSources = append(apiSources, s)
	}
	b.API = api.NewServer(eng, api.Options{
		StaleAfter: cfg.StaleAfter(),
		RateLimit:  cfg.API.RateLimit,
		Burst:      cfg.API.Burst,
		Sources:    apiSources,
	})

	return nil
}

// Run starts every component and blocks until ctx is cancelled or the API fails.
func (b *Bootstrap) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer b.Close()

	wg.Add(2)
	go func() {
		defer wg.Done()
		b.Engine.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		b.Feed.Run(ctx)
	}()

	for _, src := range b.Sources {
		if err := src.Start(ctx); err != nil {
			slog.Error("Failed to start price source", slog.String("source", src.Name()), slog.Any("error", err))
			continue
		}
		slog.Info("Price source started", slog.String("source", src.Name()))
	}

	infra.PrintBanner(b.Config)

	err := b.API.ListenAndServe(ctx, b.Config.API.Listen)
	cancel()

	for _, src := range b.Sources {
		src.Stop()
	}
	wg.Wait()
	return err
}

// Close releases storage and the instance lock.
func (b *Bootstrap) Close() {
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			slog.Warn("Store close failed", slog.Any("error", err))
		}
		b.Store = nil
	}
	if b.lock != nil {
		if err := b.lock.Release(); err != nil {
			slog.Warn("Lock release failed", slog.Any("error", err))
		}
		b.lock = nil
	}
}

func buildSources(cfg *infra.Config, pub infra.PricePublisher) []infra.PriceSource {
	var sources []infra.PriceSource

	if cfg.Sources.Bitget.Enabled {
		sources = append(sources, bitget.NewSpotWorker(cfg.Sources.Bitget.WSURL, cfg.Sources.Bitget.Symbols, pub))
	}

	if cfg.Sources.Synthetic.Enabled && len(cfg.Sources.Synthetic.Symbols) > 0 {
		start := make(map[string]decimal.Decimal, len(cfg.Sources.Synthetic.Symbols))
		for sym, px := range cfg.Sources.Synthetic.Symbols {
			// Validate already rejected unparsable prices.
			start[strings.ToUpper(sym)] = decimal.RequireFromString(px)
		}
		sources = append(sources, infra.NewSyntheticGenerator(pub, start,
			time.Duration(cfg.Sources.Synthetic.IntervalMS)*time.Millisecond,
			cfg.Sources.Synthetic.MaxStepPct, time.Now().UnixNano()))
	}

	if cfg.Sources.Quotes.Enabled {
		sources = append(sources, infra.NewQuotePoller(pub, cfg.Sources.Quotes.URL, cfg.Sources.Quotes.Symbols,
			time.Duration(cfg.Sources.Quotes.PollIntervalSec)*time.Second))
	}

	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Name() < sources[j].Name() })
	return sources
}
