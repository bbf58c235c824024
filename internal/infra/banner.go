package infra

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset = "\033[0m"
	ColorCyan  = "\033[36m"
)

// PrintBanner displays the startup banner with the enabled price sources.
func PrintBanner(cfg *Config) {
	writeBanner(os.Stdout, cfg)
}

func writeBanner(w io.Writer, cfg *Config) {
	line := func(format string, args ...any) {
		fmt.Fprintf(w, "%s%s%s\n", ColorCyan, fmt.Sprintf(format, args...), ColorReset)
	}

	fmt.Fprintln(w)
	line("###########################################################")
	line("#                                                         #")
	line("#               Paper Trade Simulation Engine             #")
	line("#                                                         #")
	line("#   MODE:    %-44s #", "PAPER (NO REAL MONEY)")
	line("#   CASH:    %-44s #", cfg.Simulation.InitialBalance)
	line("#   API:     %-44s #", cfg.API.Listen)
	line("#   FEEDS:   %-44s #", strings.Join(enabledSources(cfg), ", "))
	line("#   VERSION: %-44s #", cfg.App.Version)
	line("#                                                         #")
	line("###########################################################")
	fmt.Fprintln(w)
}

func enabledSources(cfg *Config) []string {
	var out []string
	if cfg.Sources.Bitget.Enabled {
		out = append(out, fmt.Sprintf("bitget(%d)", len(cfg.Sources.Bitget.Symbols)))
	}
	if cfg.Sources.Synthetic.Enabled {
		out = append(out, fmt.Sprintf("synthetic(%d)", len(cfg.Sources.Synthetic.Symbols)))
	}
	if cfg.Sources.Quotes.Enabled {
		out = append(out, fmt.Sprintf("quotes(%d)", len(cfg.Sources.Quotes.Symbols)))
	}
	if len(out) == 0 {
		return []string{"manual only"}
	}
	sort.Strings(out)
	return out
}
