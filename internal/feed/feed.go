package feed

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"paper_trade/internal/market"
	"paper_trade/pkg/quant"

	"github.com/prometheus/client_golang/prometheus"
)

const DefaultFlushInterval = 250 * time.Millisecond

var updateCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "paper_feed_updates_total",
	Help: "Price updates received from sources",
}, []string{"source", "result"})

var batchCounter = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "paper_feed_batches_total",
	Help: "Coalesced batches delivered to the engine",
})

func init() {
	prometheus.MustRegister(updateCounters, batchCounter)
}

// Sink receives one coalesced batch per flush.
type Sink func(ctx context.Context, batch []market.Update) error

// Feed merges updates from any number of sources into one batch per flush
// interval. The last update per symbol in a window wins.
type Feed struct {
	sink     Sink
	interval time.Duration
	paused   atomic.Bool

	mu      sync.Mutex
	pending map[string]market.Update
}

// New creates a feed that flushes into sink every interval.
func New(sink Sink, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Feed{
		sink:     sink,
		interval: interval,
		pending:  make(map[string]market.Update),
	}
}

// Publish queues an update. Safe for concurrent use by sources.
// Updates are dropped while paused and when the price is not a positive, in-range number.
func (f *Feed) Publish(u market.Update) {
	u.Symbol = strings.ToUpper(strings.TrimSpace(u.Symbol))
	if u.Symbol == "" || !quant.InRange(u.Price) || u.Price.Sign() <= 0 {
		updateCounters.WithLabelValues(u.Source, "invalid").Inc()
		return
	}
	if f.paused.Load() {
		updateCounters.WithLabelValues(u.Source, "paused").Inc()
		return
	}
	if u.Ts.IsZero() {
		u.Ts = time.Now()
	}

	f.mu.Lock()
	f.pending[u.Symbol] = u
	f.mu.Unlock()

	updateCounters.WithLabelValues(u.Source, "accepted").Inc()
}

// SetPaused suppresses updates without touching the sources. Pausing discards
// whatever is waiting for the next flush.
func (f *Feed) SetPaused(paused bool) {
	f.paused.Store(paused)
	if paused {
		f.mu.Lock()
		f.pending = make(map[string]market.Update)
		f.mu.Unlock()
	}
	slog.Info("Price feed pause changed", slog.Bool("paused", paused))
}

// Run flushes on every interval until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.Flush(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("Price batch delivery failed", slog.Any("error", err))
			}
		}
	}
}

// Flush delivers the pending updates as one batch, sorted by symbol.
func (f *Feed) Flush(ctx context.Context) error {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return nil
	}
	pending := f.pending
	f.pending = make(map[string]market.Update, len(pending))
	f.mu.Unlock()

	if f.paused.Load() {
		return nil
	}

	batch := make([]market.Update, 0, len(pending))
	for _, u := range pending {
		batch = append(batch, u)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Symbol < batch[j].Symbol })

	batchCounter.Inc()
	return f.sink(ctx, batch)
}
