package infra

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"paper_trade/internal/market"

	"github.com/shopspring/decimal"
)

var minSyntheticPrice = decimal.New(1, -4)

// SyntheticGenerator drives stock and forex symbols that have no live feed
// with a bounded random walk.
type SyntheticGenerator struct {
	pub      PricePublisher
	interval time.Duration
	maxStep  float64 // fraction, 0.005 == 0.5%

	mu      sync.Mutex
	rng     *rand.Rand
	prices  map[string]decimal.Decimal
	symbols []string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyntheticGenerator creates a generator seeded with start prices.
func NewSyntheticGenerator(pub PricePublisher, start map[string]decimal.Decimal, interval time.Duration, maxStepPct float64, seed int64) *SyntheticGenerator {
	g := &SyntheticGenerator{
		pub:      pub,
		interval: interval,
		maxStep:  maxStepPct / 100,
		rng:      rand.New(rand.NewSource(seed)),
		prices:   make(map[string]decimal.Decimal, len(start)),
	}
	for sym, px := range start {
		g.prices[sym] = px
		g.symbols = append(g.symbols, sym)
	}
	// Fixed order keeps a seeded walk reproducible.
	sort.Strings(g.symbols)
	return g
}

func (g *SyntheticGenerator) Name() string { return "synthetic" }

// Healthy is always true: there is no upstream to lose.
func (g *SyntheticGenerator) Healthy() bool { return true }

// Start publishes the start prices, then steps every interval.
func (g *SyntheticGenerator) Start(ctx context.Context) error {
	ctx, g.cancel = context.WithCancel(ctx)
	g.publishAll()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Step()
			}
		}
	}()

	slog.Info("Synthetic price generator started",
		slog.Int("symbols", len(g.symbols)),
		slog.Duration("interval", g.interval))
	return nil
}

// Stop halts the walk.
func (g *SyntheticGenerator) Stop() {
	if g.cancel != nil {
		g.cancel()
		g.wg.Wait()
	}
}

// Step moves every symbol by at most maxStep in either direction and publishes it.
func (g *SyntheticGenerator) Step() {
	g.mu.Lock()
	now := time.Now()
	updates := make([]market.Update, 0, len(g.symbols))
	for _, sym := range g.symbols {
		move := (g.rng.Float64()*2 - 1) * g.maxStep
		next := g.prices[sym].Mul(decimal.NewFromFloat(1 + move)).Round(4)
		if next.LessThan(minSyntheticPrice) {
			next = minSyntheticPrice
		}
		g.prices[sym] = next
		updates = append(updates, market.Update{Symbol: sym, Price: next, Source: g.Name(), Ts: now})
	}
	g.mu.Unlock()

	for _, u := range updates {
		g.pub.Publish(u)
	}
}

func (g *SyntheticGenerator) publishAll() {
	g.mu.Lock()
	now := time.Now()
	updates := make([]market.Update, 0, len(g.symbols))
	for _, sym := range g.symbols {
		updates = append(updates, market.Update{Symbol: sym, Price: g.prices[sym], Source: g.Name(), Ts: now})
	}
	g.mu.Unlock()

	for _, u := range updates {
		g.pub.Publish(u)
	}
}
