package storage

import (
	"context"
	"fmt"
	"log/slog"

	"paper_trade/internal/domain"
	"paper_trade/pkg/quant"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Keys of the durable simulation domain. Live prices have no key: they are never stored.
const (
	KeyCash     = "sim:cash"
	KeyHoldings = "sim:holdings"
	KeyOrders   = "sim:orders"
	KeyTrades   = "sim:trades"
	KeyAlerts   = "sim:alerts"
)

// Snapshot represents the durable part of the simulation.
type Snapshot struct {
	Cash     decimal.Decimal           `json:"cash"`
	Holdings map[string]domain.Holding `json:"holdings"`
	Orders   []domain.Order            `json:"orders"`
	Trades   []domain.Trade            `json:"trades"`
	Alerts   []domain.PriceAlert       `json:"alerts"`
}

// DefaultSnapshot is a fresh simulation: initial cash and empty collections.
func DefaultSnapshot(initialBalance decimal.Decimal) *Snapshot {
	return &Snapshot{
		Cash:     initialBalance,
		Holdings: make(map[string]domain.Holding),
		Orders:   []domain.Order{},
		Trades:   []domain.Trade{},
		Alerts:   []domain.PriceAlert{},
	}
}

// Snapshotter saves and restores snapshots field by field, so one corrupt
// field never takes the others down with it.
type Snapshotter struct {
	kv             KV
	initialBalance decimal.Decimal
}

// NewSnapshotter creates a snapshotter over kv.
func NewSnapshotter(kv KV, initialBalance decimal.Decimal) *Snapshotter {
	return &Snapshotter{kv: kv, initialBalance: initialBalance}
}

// Save encodes every field before writing any of them. A BatchKV receives all
// fields in one atomic write; a plain KV is written key by key and stops at the
// first failure.
func (s *Snapshotter) Save(ctx context.Context, snap *Snapshot) error {
	entries := map[string]string{KeyCash: snap.Cash.String()}
	fields := []struct {
		key string
		val any
	}{
		{KeyHoldings, snap.Holdings},
		{KeyOrders, snap.Orders},
		{KeyTrades, snap.Trades},
		{KeyAlerts, snap.Alerts},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.val)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", f.key, err)
		}
		entries[f.key] = string(data)
	}

	if batch, ok := s.kv.(BatchKV); ok {
		return batch.SetMany(ctx, entries)
	}
	for _, key := range []string{KeyCash, KeyHoldings, KeyOrders, KeyTrades, KeyAlerts} {
		if err := s.kv.Set(ctx, key, entries[key]); err != nil {
			return err
		}
	}
	return nil
}

// Load restores a snapshot. It never fails: missing or corrupt fields fall back
// to their defaults and are logged.
func (s *Snapshotter) Load(ctx context.Context) *Snapshot {
	snap := DefaultSnapshot(s.initialBalance)

	if raw := s.read(ctx, KeyCash); raw != "" {
		cash, err := decimal.NewFromString(raw)
		if err != nil || !quant.InRange(cash) || cash.Sign() < 0 {
			slog.Warn("Snapshot field corrupt, using default", slog.String("key", KeyCash), slog.String("value", raw))
		} else {
			snap.Cash = cash
		}
	}

	s.decode(ctx, KeyHoldings, &snap.Holdings, func() { snap.Holdings = make(map[string]domain.Holding) })
	s.decode(ctx, KeyOrders, &snap.Orders, func() { snap.Orders = []domain.Order{} })
	s.decode(ctx, KeyTrades, &snap.Trades, func() { snap.Trades = []domain.Trade{} })
	s.decode(ctx, KeyAlerts, &snap.Alerts, func() { snap.Alerts = []domain.PriceAlert{} })

	// Drop positions that violate the holding invariant.
	for sym, h := range snap.Holdings {
		if h.Quantity.Sign() <= 0 || h.AverageCost.Sign() < 0 {
			delete(snap.Holdings, sym)
		}
	}
	if snap.Holdings == nil {
		snap.Holdings = make(map[string]domain.Holding)
	}

	slog.Info("Snapshot loaded",
		slog.String("cash", snap.Cash.String()),
		slog.Int("holdings", len(snap.Holdings)),
		slog.Int("orders", len(snap.Orders)),
		slog.Int("trades", len(snap.Trades)),
		slog.Int("alerts", len(snap.Alerts)))

	return snap
}

// Reset writes the default snapshot.
func (s *Snapshotter) Reset(ctx context.Context) (*Snapshot, error) {
	snap := DefaultSnapshot(s.initialBalance)
	return snap, s.Save(ctx, snap)
}

func (s *Snapshotter) read(ctx context.Context, key string) string {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		slog.Warn("Snapshot read failed, using default", slog.String("key", key), slog.Any("error", err))
		return ""
	}
	return raw
}

func (s *Snapshotter) decode(ctx context.Context, key string, dst any, reset func()) {
	raw := s.read(ctx, key)
	if raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		slog.Warn("Snapshot field corrupt, using default", slog.String("key", key), slog.Any("error", err))
		reset()
		return
	}
	// "null" decodes to a nil collection.
	if raw == "null" {
		reset()
	}
}
