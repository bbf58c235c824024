package engine

import (
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/market"

	"github.com/shopspring/decimal"
)

// State is an immutable read model published after every processed event.
// Callers must not mutate the maps or slices.
type State struct {
	Cash            decimal.Decimal           `json:"cash"`
	Equity          decimal.Decimal           `json:"equity"`
	Holdings        map[string]domain.Holding `json:"holdings"`
	Orders          []domain.Order            `json:"orders"`
	Trades          []domain.Trade            `json:"trades"`
	Alerts          []domain.PriceAlert       `json:"alerts"`
	Prices          map[string]market.Quote   `json:"prices"`
	LastPriceUpdate time.Time                 `json:"last_price_update"`
	FeedPaused      bool                      `json:"feed_paused"`
	Seq             uint64                    `json:"seq"`
}

// OpenOrders filters the pending orders, oldest first.
func (s *State) OpenOrders() []domain.Order {
	var out []domain.Order
	for _, o := range s.Orders {
		if o.IsOpen() {
			out = append(out, o)
		}
	}
	return out
}

// Price returns the last known price for symbol.
func (s *State) Price(symbol string) (decimal.Decimal, bool) {
	q, ok := s.Prices[symbol]
	return q.Price, ok
}
