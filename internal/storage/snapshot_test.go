package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"paper_trade/internal/domain"

	"github.com/shopspring/decimal"
)

func sampleSnapshot() *Snapshot {
	limit := decimal.NewFromInt(55000)
	return &Snapshot{
		Cash: decimal.NewFromInt(50000),
		Holdings: map[string]domain.Holding{
			"BTC": {Quantity: decimal.NewFromInt(1), AverageCost: decimal.NewFromInt(50000)},
		},
		Orders: []domain.Order{{
			ID: "o1", Symbol: "BTC", Side: domain.SideSell, Type: domain.OrderTypeLimit,
			Quantity: decimal.NewFromInt(1), LimitPrice: &limit,
			Status: domain.OrderStatusPending, CreatedAt: time.Unix(100, 0).UTC(),
		}},
		Trades: []domain.Trade{{
			ID: "t1", OrderID: "o0", Symbol: "BTC", Side: domain.SideBuy,
			Quantity: decimal.NewFromInt(1), ExecutionPrice: decimal.NewFromInt(50000),
			TotalValue: decimal.NewFromInt(50000), CreatedAt: time.Unix(50, 0).UTC(),
		}},
		Alerts: []domain.PriceAlert{{
			ID: "a1", Symbol: "BTC", TargetPrice: decimal.NewFromInt(60000),
			Condition: domain.ConditionAbove, IsActive: true, CreatedAt: time.Unix(10, 0).UTC(),
		}},
	}
}

func TestSnapshot_SaveAndLoad(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "sim.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	sn := NewSnapshotter(store, domain.DefaultInitialBalance)

	if err := sn.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := sn.Load(ctx)
	if !loaded.Cash.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("cash mismatch: %s", loaded.Cash)
	}
	if h := loaded.Holdings["BTC"]; !h.AverageCost.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("holding mismatch: %+v", h)
	}
	if len(loaded.Orders) != 1 || loaded.Orders[0].LimitPrice == nil || !loaded.Orders[0].LimitPrice.Equal(decimal.NewFromInt(55000)) {
		t.Errorf("orders mismatch: %+v", loaded.Orders)
	}
	if len(loaded.Trades) != 1 || loaded.Trades[0].ID != "t1" {
		t.Errorf("trades mismatch: %+v", loaded.Trades)
	}
	if len(loaded.Alerts) != 1 || !loaded.Alerts[0].IsActive {
		t.Errorf("alerts mismatch: %+v", loaded.Alerts)
	}
}

func TestSnapshot_LoadEmptyUsesDefaults(t *testing.T) {
	sn := NewSnapshotter(NewMemoryKV(), decimal.NewFromInt(100000))
	loaded := sn.Load(context.Background())

	if !loaded.Cash.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("expected default cash, got %s", loaded.Cash)
	}
	if loaded.Holdings == nil || len(loaded.Holdings) != 0 {
		t.Errorf("expected empty holdings, got %v", loaded.Holdings)
	}
	if len(loaded.Orders) != 0 || len(loaded.Trades) != 0 || len(loaded.Alerts) != 0 {
		t.Error("expected empty collections")
	}
}

func TestSnapshot_CorruptFieldFallsBackAlone(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	sn := NewSnapshotter(kv, decimal.NewFromInt(100000))
	if err := sn.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_ = kv.Set(ctx, KeyOrders, "{not json")
	_ = kv.Set(ctx, KeyCash, "-5")
	_ = kv.Set(ctx, KeyAlerts, "null")

	loaded := sn.Load(ctx)
	if !loaded.Cash.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("negative cash should fall back to default, got %s", loaded.Cash)
	}
	if loaded.Orders == nil || len(loaded.Orders) != 0 {
		t.Errorf("corrupt orders should be empty, got %v", loaded.Orders)
	}
	if loaded.Alerts == nil {
		t.Error("null alerts should become an empty slice")
	}
	if len(loaded.Trades) != 1 || len(loaded.Holdings) != 1 {
		t.Error("healthy fields should survive a corrupt neighbour")
	}
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) { return "", errors.New("disk gone") }
func (failingKV) Set(context.Context, string, string) error    { return errors.New("quota exceeded") }

func TestSnapshot_StorageFailures(t *testing.T) {
	sn := NewSnapshotter(failingKV{}, decimal.NewFromInt(7))
	ctx := context.Background()

	if err := sn.Save(ctx, sampleSnapshot()); err == nil {
		t.Error("expected write error to be reported")
	}
	loaded := sn.Load(ctx)
	if !loaded.Cash.Equal(decimal.NewFromInt(7)) {
		t.Errorf("read failure should yield defaults, got %s", loaded.Cash)
	}
}

func TestSnapshot_FailedSaveKeepsPreviousSnapshotWhole(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "sim.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	sn := NewSnapshotter(store, decimal.NewFromInt(100000))

	before := sampleSnapshot()
	if err := sn.Save(ctx, before); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The next save sells the BTC; only the holdings write will fail.
	_, err = store.db.Exec(`CREATE TRIGGER reject_holdings BEFORE UPDATE ON metadata
		WHEN NEW.key = '` + KeyHoldings + `' BEGIN SELECT RAISE(ABORT, 'disk full'); END;`)
	if err != nil {
		t.Fatal(err)
	}
	after := sampleSnapshot()
	after.Cash = decimal.NewFromInt(105000)
	after.Holdings = map[string]domain.Holding{}
	if err := sn.Save(ctx, after); err == nil {
		t.Fatal("expected save to fail")
	}

	loaded := sn.Load(ctx)
	if !loaded.Cash.Equal(before.Cash) || len(loaded.Holdings) != 1 {
		t.Errorf("partial save leaked: cash=%s holdings=%v", loaded.Cash, loaded.Holdings)
	}
}

func TestSnapshot_OutOfRangeCashFallsBack(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	_ = kv.Set(ctx, KeyCash, "1e-300000000")

	loaded := NewSnapshotter(kv, decimal.NewFromInt(100000)).Load(ctx)
	if !loaded.Cash.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("expected default cash, got %s", loaded.Cash)
	}
}

func TestSnapshot_ResetIsIdempotent(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	sn := NewSnapshotter(kv, decimal.NewFromInt(100000))
	_ = sn.Save(ctx, sampleSnapshot())

	if _, err := sn.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	first, _ := kv.Get(ctx, KeyOrders)
	if _, err := sn.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	second, _ := kv.Get(ctx, KeyOrders)

	if first != second || first != "[]" {
		t.Errorf("reset not idempotent: %q vs %q", first, second)
	}
	if cash, _ := kv.Get(ctx, KeyCash); cash != "100000" {
		t.Errorf("expected default cash, got %q", cash)
	}
}
