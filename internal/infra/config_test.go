package infra

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.InitialBalance().Equal(decimal.NewFromInt(100000)) {
		t.Errorf("default balance = %s", cfg.InitialBalance())
	}
	if cfg.API.Listen != "127.0.0.1:8787" || cfg.FlushInterval().Milliseconds() != 250 {
		t.Errorf("defaults not applied: %+v", cfg.API)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PAPER_INITIAL_BALANCE", "2500.50")
	t.Setenv("PAPER_API_LISTEN", "127.0.0.1:9999")
	t.Setenv("PAPER_DATA_DIR", "/tmp/paper")
	t.Setenv("PAPER_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(writeConfig(t, "simulation:\n  initial_balance: \"100\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.InitialBalance().Equal(decimal.RequireFromString("2500.50")) {
		t.Errorf("env balance not applied: %s", cfg.InitialBalance())
	}
	if cfg.API.Listen != "127.0.0.1:9999" || cfg.Logging.Level != "debug" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if DataDir(cfg) != "/tmp/paper" {
		t.Errorf("DataDir = %s", DataDir(cfg))
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"negative balance", "simulation:\n  initial_balance: \"-5\"\n", "positive"},
		{"bad balance", "simulation:\n  initial_balance: abc\n", "initial balance"},
		{"bitget without symbols", "sources:\n  bitget:\n    enabled: true\n", "Bitget symbol"},
		{"bitget bad url", "sources:\n  bitget:\n    enabled: true\n    ws_url: http://x\n    symbols: {BTCUSDT: BTC}\n", "WS URL"},
		{"synthetic bad start", "sources:\n  synthetic:\n    enabled: true\n    symbols: {AAPL: \"0\"}\n", "start price"},
		{"quotes without symbols", "sources:\n  quotes:\n    enabled: true\n", "quote symbol"},
		{"bad level", "logging:\n  level: loud\n", "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "warn", "json").Info("hidden")
	newLogger(&buf, "warn", "json").Warn("shown", slog.String("k", "v"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
	if ParseLevel("nonsense") != slog.LevelInfo {
		t.Error("unknown level should map to info")
	}
}

func TestWriteBanner(t *testing.T) {
	var buf bytes.Buffer
	writeBanner(&buf, DefaultConfig())
	if !strings.Contains(buf.String(), "synthetic(3)") {
		t.Errorf("banner should list sources: %s", buf.String())
	}
}
