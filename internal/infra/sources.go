package infra

import (
	"context"

	"paper_trade/internal/market"
)

// PricePublisher is where sources push {symbol, price} observations.
type PricePublisher interface {
	Publish(u market.Update)
}

// PriceSource is a long-running producer of price updates.
type PriceSource interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
	Healthy() bool
}
