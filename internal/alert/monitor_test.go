package alert

import (
	"errors"
	"testing"
	"time"

	"paper_trade/internal/domain"

	"github.com/shopspring/decimal"
)

func prices(kv ...any) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for i := 0; i < len(kv); i += 2 {
		out[kv[i].(string)] = decimal.NewFromInt(int64(kv[i+1].(int)))
	}
	return out
}

func TestMonitor_OneShot(t *testing.T) {
	m := NewMonitor(nil)
	a, err := m.Create("btc", decimal.NewFromInt(60000), domain.ConditionAbove)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a.Symbol != "BTC" || !a.IsActive {
		t.Fatalf("unexpected alert %+v", a)
	}

	if fired := m.Evaluate(prices("BTC", 59999)); len(fired) != 0 {
		t.Fatal("should not fire below target")
	}
	fired := m.Evaluate(prices("BTC", 60000))
	if len(fired) != 1 || fired[0].IsActive || fired[0].TriggeredAt == nil {
		t.Fatalf("expected one triggered alert, got %+v", fired)
	}

	// Crossing down and back up again must not re-trigger.
	m.Evaluate(prices("BTC", 50000))
	if fired := m.Evaluate(prices("BTC", 70000)); len(fired) != 0 {
		t.Error("triggered alert fired twice")
	}

	all := m.All()
	if len(all) != 1 || all[0].IsActive {
		t.Errorf("triggered alert should be retained inactive, got %+v", all)
	}
}

func TestMonitor_BelowAndMissingSymbol(t *testing.T) {
	m := NewMonitor(nil)
	_, _ = m.Create("EURUSD", decimal.RequireFromString("1.05"), domain.ConditionBelow)

	if fired := m.Evaluate(prices("BTC", 1)); len(fired) != 0 {
		t.Error("alert for absent symbol must be skipped")
	}
	fired := m.Evaluate(map[string]decimal.Decimal{"EURUSD": decimal.RequireFromString("1.04")})
	if len(fired) != 1 {
		t.Errorf("expected below alert to fire, got %d", len(fired))
	}
}

func TestMonitor_Validation(t *testing.T) {
	m := NewMonitor(nil)
	if _, err := m.Create("", decimal.NewFromInt(1), domain.ConditionAbove); !errors.Is(err, domain.ErrInvalidSymbol) {
		t.Errorf("expected ErrInvalidSymbol, got %v", err)
	}
	if _, err := m.Create("BTC", decimal.Zero, domain.ConditionAbove); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
	if _, err := m.Create("BTC", decimal.RequireFromString("1e-300000000"), domain.ConditionBelow); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice for out-of-range target, got %v", err)
	}
	if _, err := m.Create("BTC", decimal.NewFromInt(1), "sideways"); !errors.Is(err, domain.ErrInvalidCondition) {
		t.Errorf("expected ErrInvalidCondition, got %v", err)
	}
	if len(m.All()) != 0 {
		t.Error("invalid alerts must not be stored")
	}
}

func TestMonitor_DeleteAndRecent(t *testing.T) {
	t0 := time.Unix(1000, 0)
	m := NewMonitor(domain.NewMonotonicClock(domain.ClockFunc(func() time.Time { return t0 })))
	a, _ := m.Create("BTC", decimal.NewFromInt(10), domain.ConditionAbove)
	b, _ := m.Create("ETH", decimal.NewFromInt(10), domain.ConditionAbove)

	m.Evaluate(prices("BTC", 11))
	if got := m.Recent(t0); len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("expected recent BTC alert, got %+v", got)
	}

	if err := m.Delete(b.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := m.Delete(b.ID); !errors.Is(err, domain.ErrAlertNotFound) {
		t.Errorf("expected ErrAlertNotFound, got %v", err)
	}
	if len(m.All()) != 1 {
		t.Errorf("expected 1 alert left, got %d", len(m.All()))
	}
}
