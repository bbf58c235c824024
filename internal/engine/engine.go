package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"paper_trade/internal/alert"
	"paper_trade/internal/domain"
	"paper_trade/internal/event"
	"paper_trade/internal/execution"
	"paper_trade/internal/market"
	"paper_trade/internal/storage"

	"github.com/shopspring/decimal"
)

const (
	DefaultInboxSize    = 1024
	DefaultEvalInterval = time.Second
)

// Persister is the durable side of the simulation. Prices never pass through it.
type Persister interface {
	Load(ctx context.Context) *storage.Snapshot
	Save(ctx context.Context, snap *storage.Snapshot) error
}

// FeedControl is the price feed's pause switch.
type FeedControl interface {
	SetPaused(paused bool)
}

// Config holds the engine tunables.
type Config struct {
	InitialBalance decimal.Decimal
	InboxSize      int
	EvalInterval   time.Duration
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock. It is wrapped to stay strictly increasing.
func WithClock(c domain.Clock) Option {
	return func(e *Engine) { e.clock = domain.NewMonotonicClock(c) }
}

// WithPersister enables snapshot persistence after every state change.
func WithPersister(p Persister) Option {
	return func(e *Engine) { e.store = p }
}

// WithFeedControl lets SetPriceFeedPaused reach the feed.
func WithFeedControl(f FeedControl) Option {
	return func(e *Engine) { e.feed = f }
}

// Engine is the single writer of all simulation state. Every mutation, whether a
// user command, a price batch or an evaluation tick, runs to completion on the
// Run goroutine before the next one starts.
type Engine struct {
	cfg   Config
	inbox chan event.Event
	clock domain.Clock
	store Persister
	feed  FeedControl

	// Owned by the Run goroutine.
	exec   *execution.PaperExecution
	alerts *alert.Monitor
	prices *market.PriceTable
	paused bool
	last   uint64 // Seq of the event being processed

	running atomic.Bool
	done    chan struct{}

	mu    sync.RWMutex // guards state only
	state *State
}

// New creates an engine and restores the persisted snapshot, if any.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.InitialBalance.Sign() <= 0 {
		cfg.InitialBalance = domain.DefaultInitialBalance
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultInboxSize
	}
	if cfg.EvalInterval <= 0 {
		cfg.EvalInterval = DefaultEvalInterval
	}

	e := &Engine{
		cfg:    cfg,
		inbox:  make(chan event.Event, cfg.InboxSize),
		clock:  domain.NewMonotonicClock(nil),
		prices: market.NewPriceTable(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.exec = execution.NewPaperExecution(cfg.InitialBalance, execution.WithClock(e.clock))
	e.alerts = alert.NewMonitor(e.clock)

	if e.store != nil {
		e.restore(e.store.Load(context.Background()))
	}
	e.publish()
	return e
}

// Run starts the main event loop. It MUST be run in a single goroutine and
// returns when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		slog.Warn("Engine already running")
		return
	}
	defer close(e.done)

	slog.Info("Engine started (single writer)", slog.Duration("eval_interval", e.cfg.EvalInterval))

	ticker := time.NewTicker(e.cfg.EvalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Engine stopping...")
			e.drain()
			return
		case ev := <-e.inbox:
			e.processEvent(ev)
		case <-ticker.C:
			e.processEvent(&event.EvaluateEvent{BaseEvent: e.base()})
		}
	}
}

// drain fails any command still queued so no caller waits forever.
func (e *Engine) drain() {
	for {
		select {
		case ev := <-e.inbox:
			if cmd, ok := ev.(*event.CommandEvent); ok {
				cmd.Done <- domain.ErrEngineStopped
			}
		default:
			return
		}
	}
}

func (e *Engine) processEvent(ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ENGINE_EVENT_PANIC",
				slog.Uint64("seq", ev.GetSeq()),
				slog.String("type", ev.GetType().String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			if cmd, ok := ev.(*event.CommandEvent); ok {
				select {
				case cmd.Done <- fmt.Errorf("command %s panicked: %v", cmd.Name, r):
				default:
				}
			}
		}
	}()

	e.last++
	ev.SetSeq(e.last)
	eventCounters.WithLabelValues(ev.GetType().String()).Inc()

	switch ev := ev.(type) {
	case *event.PriceBatchEvent:
		e.handlePriceBatch(ev)
	case *event.EvaluateEvent:
		if e.tick() {
			e.persist()
		}
	case *event.CommandEvent:
		err := e.handleCommand(ev)
		// Publish first so the caller reads its own write from State.
		e.publish()
		ev.Done <- err
		return
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}

	e.publish()
}

func (e *Engine) handlePriceBatch(ev *event.PriceBatchEvent) {
	if e.paused {
		return
	}
	if e.prices.Apply(normalize(ev.Updates), e.clock.Now()) == 0 {
		return
	}
	if e.tick() {
		e.persist()
	}
}

func (e *Engine) handleCommand(ev *event.CommandEvent) error {
	start := time.Now()
	err := ev.Apply()
	commandDurations.WithLabelValues(ev.Name).Observe(time.Since(start).Seconds())
	if err == nil && !ev.ReadOnly {
		e.persist()
	}
	return err
}

// tick evaluates pending orders, then alerts, against one price snapshot.
// It reports whether durable state changed.
func (e *Engine) tick() bool {
	prices := e.prices.Prices()

	res := e.exec.EvaluatePending(prices)
	for _, f := range res.Fills {
		orderCounters.WithLabelValues(string(f.Order.Type), string(f.Order.Status)).Inc()
	}
	for _, o := range res.Rejected {
		orderCounters.WithLabelValues(string(o.Type), "rejected").Inc()
	}

	fired := e.alerts.Evaluate(prices)
	alertCounter.Add(float64(len(fired)))

	return len(res.Fills) > 0 || len(res.Rejected) > 0 || len(fired) > 0
}

func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	acct := e.exec.Account()
	snap := &storage.Snapshot{
		Cash:     acct.Cash,
		Holdings: acct.Holdings,
		Orders:   e.exec.Orders(),
		Trades:   e.exec.Trades(),
		Alerts:   e.alerts.All(),
	}
	if err := e.store.Save(context.Background(), snap); err != nil {
		slog.Warn("Snapshot save failed, continuing in memory", slog.Any("error", err))
	}
}

func (e *Engine) restore(snap *storage.Snapshot) {
	acct := domain.NewAccount(snap.Cash)
	for sym, h := range snap.Holdings {
		acct.Holdings[sym] = h
	}
	e.exec.Restore(acct, snap.Orders, snap.Trades)
	e.alerts.Restore(snap.Alerts)
}

func (e *Engine) publish() {
	acct := e.exec.Account()
	prices := e.prices.Prices()
	st := &State{
		Cash:            acct.Cash,
		Equity:          acct.Equity(prices),
		Holdings:        acct.Holdings,
		Orders:          e.exec.Orders(),
		Trades:          e.exec.Trades(),
		Alerts:          e.alerts.All(),
		Prices:          e.prices.Snapshot(),
		LastPriceUpdate: e.prices.LastUpdate(),
		FeedPaused:      e.paused,
		Seq:             e.last,
	}

	cashGauge.Set(acct.Cash.InexactFloat64())
	openOrdersGauge.Set(float64(len(e.exec.OpenOrders())))
	if e.paused {
		pausedGauge.Set(1)
	} else {
		pausedGauge.Set(0)
	}

	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
}

// State returns the latest published read model.
func (e *Engine) State() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// SubmitPrices hands a coalesced batch to the engine. It blocks while the inbox is full.
func (e *Engine) SubmitPrices(ctx context.Context, batch []market.Update) error {
	if len(batch) == 0 {
		return nil
	}
	return e.enqueue(ctx, &event.PriceBatchEvent{BaseEvent: e.base(), Updates: batch})
}

func (e *Engine) enqueue(ctx context.Context, ev event.Event) error {
	select {
	case e.inbox <- ev:
		return nil
	case <-e.done:
		return domain.ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute runs apply on the engine goroutine and waits for its result.
func (e *Engine) execute(ctx context.Context, name string, apply func() error) error {
	return e.submit(ctx, event.NewCommand(name, apply))
}

func (e *Engine) submit(ctx context.Context, cmd *event.CommandEvent) error {
	cmd.BaseEvent = e.base()
	if err := e.enqueue(ctx, cmd); err != nil {
		return err
	}
	select {
	case err := <-cmd.Done:
		return err
	case <-e.done:
		// Run may have answered right before exiting.
		select {
		case err := <-cmd.Done:
			return err
		default:
			return domain.ErrEngineStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) base() event.BaseEvent {
	return event.BaseEvent{Ts: time.Now()}
}

func normalize(batch []market.Update) []market.Update {
	out := make([]market.Update, 0, len(batch))
	for _, u := range batch {
		u.Symbol = strings.ToUpper(strings.TrimSpace(u.Symbol))
		out = append(out, u)
	}
	return out
}
