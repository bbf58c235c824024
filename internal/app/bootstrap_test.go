package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"paper_trade/internal/domain"
	"paper_trade/internal/infra"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, dataDir string) string {
	t.Helper()
	body := "simulation:\n  initial_balance: \"5000\"\n" +
		"storage:\n  data_dir: " + dataDir + "\n" +
		"sources:\n  synthetic:\n    enabled: true\n    symbols: {aapl: \"100\"}\n" +
		"  quotes:\n    enabled: true\n    symbols: {\"EURUSD=X\": EURUSD}\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBootstrap_InitializeAndRestore(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := writeConfig(t, dataDir)

	b := NewBootstrap()
	if err := b.Initialize(cfgPath, false); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !b.Engine.State().Cash.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("configured balance not used: %s", b.Engine.State().Cash)
	}
	if len(b.Sources) != 2 || b.Sources[0].Name() != "quotes" || b.Sources[1].Name() != "synthetic" {
		t.Errorf("unexpected sources: %d", len(b.Sources))
	}

	// Run the engine briefly to persist one order.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Engine.Run(ctx)
		close(done)
	}()
	price := decimal.NewFromInt(100)
	if _, err := b.Engine.PlaceMarketOrder(context.Background(), "AAPL", domain.SideBuy, decimal.NewFromInt(10), &price); err != nil {
		t.Fatal(err)
	}
	cancel()
	<-done
	b.Close()

	again := NewBootstrap()
	if err := again.Initialize(cfgPath, false); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
	if !again.Engine.State().Cash.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("state not restored: %s", again.Engine.State().Cash)
	}
	again.Close()

	reset := NewBootstrap()
	if err := reset.Initialize(cfgPath, true); err != nil {
		t.Fatalf("reset Initialize failed: %v", err)
	}
	defer reset.Close()
	if !reset.Engine.State().Cash.Equal(decimal.NewFromInt(5000)) || len(reset.Engine.State().Trades) != 0 {
		t.Errorf("reset flag ignored: %+v", reset.Engine.State())
	}
}

func TestBootstrap_SecondInstanceIsLocked(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())

	first := NewBootstrap()
	if err := first.Initialize(cfgPath, false); err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	if err := NewBootstrap().Initialize(cfgPath, false); !errors.Is(err, infra.ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning for a second instance, got %v", err)
	}
}

func TestBuildSources_NoneEnabled(t *testing.T) {
	cfg := infra.DefaultConfig()
	cfg.Sources.Synthetic.Enabled = false
	if got := buildSources(cfg, nil); len(got) != 0 {
		t.Errorf("expected no sources, got %d", len(got))
	}
}
