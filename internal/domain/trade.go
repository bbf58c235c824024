package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an immutable execution record, one per fill.
type Trade struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	TotalValue     decimal.Decimal `json:"total_value"`
	CreatedAt      time.Time       `json:"created_at"`
}
