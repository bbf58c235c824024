package market

import (
	"time"

	"paper_trade/pkg/quant"

	"github.com/shopspring/decimal"
)

// Quote is the last known price for a symbol and when it arrived.
type Quote struct {
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Stale reports whether the quote is older than maxAge at now.
func (q Quote) Stale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(q.UpdatedAt) > maxAge
}

// Update is one {symbol, price} observation from a source.
type Update struct {
	Symbol string
	Price  decimal.Decimal
	Source string
	Ts     time.Time
}

// PriceTable is the transient symbol→price map. It is never persisted.
// Not safe for concurrent use; owned by the engine loop.
type PriceTable struct {
	quotes     map[string]Quote
	lastUpdate time.Time
}

// NewPriceTable creates an empty table.
func NewPriceTable() *PriceTable {
	return &PriceTable{quotes: make(map[string]Quote)}
}

// Set stores a single price. Non-positive and out-of-range prices are ignored.
func (t *PriceTable) Set(symbol string, price decimal.Decimal, ts time.Time) bool {
	if symbol == "" || !quant.InRange(price) || price.Sign() <= 0 {
		return false
	}
	t.quotes[symbol] = Quote{Price: price, UpdatedAt: ts}
	if ts.After(t.lastUpdate) {
		t.lastUpdate = ts
	}
	return true
}

// Apply merges a coalesced batch and returns how many symbols changed.
// Symbols missing from the batch keep their last known value.
func (t *PriceTable) Apply(batch []Update, now time.Time) int {
	n := 0
	for _, u := range batch {
		ts := u.Ts
		if ts.IsZero() {
			ts = now
		}
		if t.Set(u.Symbol, u.Price, ts) {
			n++
		}
	}
	return n
}

// Get returns the price for symbol, if any.
func (t *PriceTable) Get(symbol string) (decimal.Decimal, bool) {
	q, ok := t.quotes[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return q.Price, true
}

// LastUpdate is the newest quote timestamp across all symbols.
func (t *PriceTable) LastUpdate() time.Time {
	return t.lastUpdate
}

// Prices returns a copy of symbol→price for evaluation.
func (t *PriceTable) Prices() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(t.quotes))
	for k, q := range t.quotes {
		out[k] = q.Price
	}
	return out
}

// Snapshot returns a copy of every quote.
func (t *PriceTable) Snapshot() map[string]Quote {
	out := make(map[string]Quote, len(t.quotes))
	for k, q := range t.quotes {
		out[k] = q
	}
	return out
}
