package infra

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSyntheticGenerator_BoundedStep(t *testing.T) {
	pub := &capturePublisher{}
	start := map[string]decimal.Decimal{
		"AAPL":   decimal.NewFromInt(100),
		"EURUSD": decimal.RequireFromString("1.08"),
	}
	g := NewSyntheticGenerator(pub, start, 0, 1, 42)

	prev := map[string]decimal.Decimal{"AAPL": start["AAPL"], "EURUSD": start["EURUSD"]}
	for i := 0; i < 200; i++ {
		g.Step()
		for sym, old := range prev {
			now, _ := g.Price(sym)
			limit := old.Mul(decimal.RequireFromString("0.0101")).Add(decimal.RequireFromString("0.0001"))
			if now.Sub(old).Abs().GreaterThan(limit) {
				t.Fatalf("%s moved %s -> %s, beyond 1%%", sym, old, now)
			}
			if now.Sign() <= 0 {
				t.Fatalf("%s went non-positive", sym)
			}
			prev[sym] = now
		}
	}

	updates := pub.all()
	if len(updates) != 400 {
		t.Fatalf("expected 400 updates, got %d", len(updates))
	}
	if updates[0].Symbol != "AAPL" || updates[1].Symbol != "EURUSD" || updates[0].Source != "synthetic" {
		t.Errorf("unexpected update order: %+v %+v", updates[0], updates[1])
	}
}

func TestSyntheticGenerator_SeedIsReproducible(t *testing.T) {
	start := map[string]decimal.Decimal{"X": decimal.NewFromInt(50)}
	pubA, pubB := &capturePublisher{}, &capturePublisher{}
	a := NewSyntheticGenerator(pubA, start, 0, 2, 7)
	b := NewSyntheticGenerator(pubB, start, 0, 2, 7)

	for i := 0; i < 20; i++ {
		a.Step()
		b.Step()
	}
	ua, ub := pubA.all(), pubB.all()
	if len(ua) != 20 || len(ub) != 20 {
		t.Fatalf("expected 20 updates each, got %d and %d", len(ua), len(ub))
	}
	for i := range ua {
		if !ua[i].Price.Equal(ub[i].Price) {
			t.Fatalf("same seed diverged at step %d: %s vs %s", i, ua[i].Price, ub[i].Price)
		}
	}
}
