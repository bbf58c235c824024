package execution

import (
	"testing"

	"paper_trade/internal/domain"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// Value is conserved: cash + Σ cost basis of what is held equals initial cash + realized P&L.
func TestProperty_BalanceConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := decimal.NewFromInt(rapid.Int64Range(1_000, 1_000_000).Draw(t, "initial"))
		p := NewPaperExecution(initial)
		symbols := []string{"AAA", "BBB"}

		realized := decimal.Zero
		lastPrice := map[string]decimal.Decimal{}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			sym := rapid.SampledFrom(symbols).Draw(t, "symbol")
			price := decimal.NewFromInt(rapid.Int64Range(1, 500).Draw(t, "price"))
			qty := decimal.NewFromInt(rapid.Int64Range(1, 20).Draw(t, "qty"))
			side := domain.SideBuy
			if rapid.Bool().Draw(t, "sell") {
				side = domain.SideSell
			}

			before := p.Account()
			_, err := p.PlaceMarket(sym, side, qty, price)
			after := p.Account()

			if err != nil {
				if !after.Cash.Equal(before.Cash) {
					t.Fatalf("failed order mutated cash: %s -> %s", before.Cash, after.Cash)
				}
				continue
			}
			if side == domain.SideSell {
				realized = realized.Add(price.Sub(before.Holding(sym).AverageCost).Mul(qty))
			}
			lastPrice[sym] = price

			if after.Cash.Sign() < 0 {
				t.Fatalf("cash negative: %s", after.Cash)
			}
		}

		acct := p.Account()
		basis := decimal.Zero
		for _, h := range acct.Holdings {
			basis = basis.Add(h.AverageCost.Mul(h.Quantity))
		}
		lhs := acct.Cash.Add(basis)
		rhs := initial.Add(realized)
		// Average cost is a rounded division; allow a tiny tolerance.
		if lhs.Sub(rhs).Abs().GreaterThan(decimal.RequireFromString("0.000001")) {
			t.Fatalf("value not conserved: cash+basis=%s initial+realized=%s", lhs, rhs)
		}
	})
}

func TestProperty_AverageCost(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q1 := decimal.NewFromInt(rapid.Int64Range(1, 100).Draw(t, "q1"))
		p1 := decimal.NewFromInt(rapid.Int64Range(1, 1000).Draw(t, "p1"))
		q2 := decimal.NewFromInt(rapid.Int64Range(1, 100).Draw(t, "q2"))
		p2 := decimal.NewFromInt(rapid.Int64Range(1, 1000).Draw(t, "p2"))

		p := NewPaperExecution(decimal.NewFromInt(1_000_000))
		if _, err := p.PlaceMarket("X", domain.SideBuy, q1, p1); err != nil {
			t.Fatalf("buy 1: %v", err)
		}
		if _, err := p.PlaceMarket("X", domain.SideBuy, q2, p2); err != nil {
			t.Fatalf("buy 2: %v", err)
		}

		want := q1.Mul(p1).Add(q2.Mul(p2)).Div(q1.Add(q2))
		got := p.Account().Holding("X").AverageCost
		if !got.Equal(want) {
			t.Fatalf("avg cost %s, want %s", got, want)
		}

		sellQty := decimal.NewFromInt(rapid.Int64Range(1, q1.Add(q2).IntPart()).Draw(t, "sell"))
		if _, err := p.PlaceMarket("X", domain.SideSell, sellQty, p2); err != nil {
			t.Fatalf("sell: %v", err)
		}
		h := p.Account().Holding("X")
		if h.Quantity.IsZero() {
			if !h.AverageCost.IsZero() {
				t.Fatalf("closed position kept avg cost %s", h.AverageCost)
			}
			return
		}
		if !h.AverageCost.Equal(want) {
			t.Fatalf("sell changed avg cost: %s -> %s", want, h.AverageCost)
		}
	})
}
