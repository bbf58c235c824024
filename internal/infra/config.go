package infra

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// userAgent is sent by the websocket dialer and the quote poller.
var userAgent = platformUserAgent()

// UserAgent returns the browser-like User-Agent used for outbound requests.
func UserAgent() string {
	return userAgent
}

func platformUserAgent() string {
	const chrome = "120.0.0.0"
	const webkit = "AppleWebKit/537.36 (KHTML, like Gecko) Chrome/" + chrome + " Safari/537.36"

	switch runtime.GOOS {
	case "windows":
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " + webkit
	case "linux":
		arch := "x86_64"
		if runtime.GOARCH == "arm64" {
			arch = "aarch64"
		}
		return "Mozilla/5.0 (X11; Linux " + arch + ") " + webkit
	case "darwin":
		return "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " + webkit
	default:
		return "Mozilla/5.0 (compatible; PaperTrade/1.0)"
	}
}

// Config holds every setting of the paper trading daemon.
// Values from the file are overridden by PAPER_* environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Simulation struct {
		InitialBalance string `yaml:"initial_balance"`
		EvalIntervalMS int    `yaml:"eval_interval_ms"`
		InboxSize      int    `yaml:"inbox_size"`
	} `yaml:"simulation"`

	Feed struct {
		FlushIntervalMS int `yaml:"flush_interval_ms"`
		StaleAfterSec   int `yaml:"stale_after_sec"`
	} `yaml:"feed"`

	Sources struct {
		Bitget struct {
			Enabled bool              `yaml:"enabled"`
			WSURL   string            `yaml:"ws_url"`
			Symbols map[string]string `yaml:"symbols"` // instId -> symbol
		} `yaml:"bitget"`
		Synthetic struct {
			Enabled    bool              `yaml:"enabled"`
			IntervalMS int               `yaml:"interval_ms"`
			MaxStepPct float64           `yaml:"max_step_pct"`
			Symbols    map[string]string `yaml:"symbols"` // symbol -> starting price
		} `yaml:"synthetic"`
		Quotes struct {
			Enabled         bool              `yaml:"enabled"`
			URL             string            `yaml:"url"`
			PollIntervalSec int               `yaml:"poll_interval_sec"`
			Symbols         map[string]string `yaml:"symbols"` // ticker -> symbol
		} `yaml:"quotes"`
	} `yaml:"sources"`

	API struct {
		Listen    string  `yaml:"listen"`
		RateLimit float64 `yaml:"rate_limit"` // commands per second
		Burst     int     `yaml:"burst"`
	} `yaml:"api"`

	Storage struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"storage"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns a config that runs fully offline on synthetic prices.
func DefaultConfig() *Config {
	var cfg Config
	cfg.applyDefaults()
	cfg.Sources.Synthetic.Enabled = true
	cfg.Sources.Synthetic.Symbols = map[string]string{
		"AAPL":   "190",
		"TSLA":   "250",
		"EURUSD": "1.08",
	}
	return &cfg
}

// LoadConfig reads and parses the config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "paper-trade"
	}
	if c.Simulation.InitialBalance == "" {
		c.Simulation.InitialBalance = "100000"
	}
	if c.Simulation.EvalIntervalMS <= 0 {
		c.Simulation.EvalIntervalMS = 1000
	}
	if c.Simulation.InboxSize <= 0 {
		c.Simulation.InboxSize = 1024
	}
	if c.Feed.FlushIntervalMS <= 0 {
		c.Feed.FlushIntervalMS = 250
	}
	if c.Feed.StaleAfterSec <= 0 {
		c.Feed.StaleAfterSec = 30
	}
	if c.Sources.Bitget.WSURL == "" {
		c.Sources.Bitget.WSURL = "wss://ws.bitget.com/v2/ws/public"
	}
	if c.Sources.Synthetic.IntervalMS <= 0 {
		c.Sources.Synthetic.IntervalMS = 2000
	}
	if c.Sources.Synthetic.MaxStepPct <= 0 {
		c.Sources.Synthetic.MaxStepPct = 0.5
	}
	if c.Sources.Quotes.URL == "" {
		c.Sources.Quotes.URL = "https://query1.finance.yahoo.com/v8/finance/chart/"
	}
	if c.Sources.Quotes.PollIntervalSec <= 0 {
		c.Sources.Quotes.PollIntervalSec = 60
	}
	if c.API.Listen == "" {
		c.API.Listen = "127.0.0.1:8787"
	}
	if c.API.RateLimit <= 0 {
		c.API.RateLimit = 20
	}
	if c.API.Burst <= 0 {
		c.API.Burst = 40
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	balance, err := decimal.NewFromString(c.Simulation.InitialBalance)
	if err != nil {
		return fmt.Errorf("initial balance %q: %w", c.Simulation.InitialBalance, err)
	}
	if balance.Sign() <= 0 {
		return errors.New("initial balance must be positive")
	}

	if c.Sources.Bitget.Enabled {
		if !strings.HasPrefix(c.Sources.Bitget.WSURL, "ws://") && !strings.HasPrefix(c.Sources.Bitget.WSURL, "wss://") {
			return fmt.Errorf("invalid Bitget WS URL: %s", c.Sources.Bitget.WSURL)
		}
		if len(c.Sources.Bitget.Symbols) == 0 {
			return errors.New("at least one Bitget symbol is required when bitget is enabled")
		}
	}

	if c.Sources.Synthetic.Enabled {
		if c.Sources.Synthetic.MaxStepPct >= 100 {
			return fmt.Errorf("synthetic max step %.2f%% must be below 100", c.Sources.Synthetic.MaxStepPct)
		}
		for sym, start := range c.Sources.Synthetic.Symbols {
			px, err := decimal.NewFromString(start)
			if err != nil || px.Sign() <= 0 {
				return fmt.Errorf("synthetic start price for %s must be a positive number, got %q", sym, start)
			}
		}
	}

	if c.Sources.Quotes.Enabled {
		if !strings.HasPrefix(c.Sources.Quotes.URL, "http://") && !strings.HasPrefix(c.Sources.Quotes.URL, "https://") {
			return fmt.Errorf("invalid quotes URL: %s", c.Sources.Quotes.URL)
		}
		if len(c.Sources.Quotes.Symbols) == 0 {
			return errors.New("at least one quote symbol is required when quotes are enabled")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Logging.Level)
	}

	return nil
}

// InitialBalance parses the configured starting cash. Call after Validate.
func (c *Config) InitialBalance() decimal.Decimal {
	d, err := decimal.NewFromString(c.Simulation.InitialBalance)
	if err != nil || d.Sign() <= 0 {
		return decimal.NewFromInt(100_000)
	}
	return d
}

func (c *Config) EvalInterval() time.Duration {
	return time.Duration(c.Simulation.EvalIntervalMS) * time.Millisecond
}

func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Feed.FlushIntervalMS) * time.Millisecond
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Feed.StaleAfterSec) * time.Second
}

// overrideWithEnv lets environment variables win over the file.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("PAPER_API_LISTEN"); v != "" {
		cfg.API.Listen = v
	}
	if v := os.Getenv("PAPER_INITIAL_BALANCE"); v != "" {
		cfg.Simulation.InitialBalance = v
	}
	if v := os.Getenv("PAPER_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("PAPER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
