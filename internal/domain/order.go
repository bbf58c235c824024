package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidSide)
	}
}

// OrderType is market, limit or stop.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

// OrderStatus only ever moves pending → filled or pending → cancelled.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents a simulated order.
// LimitPrice is required for limit orders and an optional cap for stop orders.
type Order struct {
	ID             string           `json:"id"`
	Symbol         string           `json:"symbol"`
	Side           Side             `json:"side"`
	Type           OrderType        `json:"type"`
	Quantity       decimal.Decimal  `json:"quantity"`
	LimitPrice     *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice      *decimal.Decimal `json:"stop_price,omitempty"`
	Status         OrderStatus      `json:"status"`
	ExecutionPrice *decimal.Decimal `json:"execution_price,omitempty"`
	CancelReason   string           `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	FilledAt       *time.Time       `json:"filled_at,omitempty"`
}

// IsOpen checks if the order is still waiting for a trigger.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusPending
}

// MarkFilled moves a pending order to filled. Terminal orders are left untouched.
func (o *Order) MarkFilled(price decimal.Decimal, at time.Time) bool {
	if !o.IsOpen() {
		return false
	}
	p := price
	o.Status = OrderStatusFilled
	o.ExecutionPrice = &p
	o.FilledAt = &at
	return true
}

// MarkCancelled moves a pending order to cancelled. Terminal orders are left untouched.
func (o *Order) MarkCancelled(reason string) bool {
	if !o.IsOpen() {
		return false
	}
	o.Status = OrderStatusCancelled
	o.CancelReason = reason
	return true
}

// Trigger decides whether a pending order executes at the given tick price,
// and at which price.
//   - limit buy fills at tick ≤ limit, limit sell at tick ≥ limit, both at the limit price.
//   - stop buy triggers at tick ≥ stop, stop sell at tick ≤ stop, at the limit cap if set
//     or the tick price otherwise.
func (o *Order) Trigger(tick decimal.Decimal) (decimal.Decimal, bool) {
	if !o.IsOpen() || tick.Sign() <= 0 {
		return decimal.Zero, false
	}

	switch o.Type {
	case OrderTypeLimit:
		if o.LimitPrice == nil {
			return decimal.Zero, false
		}
		limit := *o.LimitPrice
		if o.Side == SideBuy && tick.LessThanOrEqual(limit) {
			return limit, true
		}
		if o.Side == SideSell && tick.GreaterThanOrEqual(limit) {
			return limit, true
		}

	case OrderTypeStop:
		if o.StopPrice == nil {
			return decimal.Zero, false
		}
		stop := *o.StopPrice
		triggered := (o.Side == SideBuy && tick.GreaterThanOrEqual(stop)) ||
			(o.Side == SideSell && tick.LessThanOrEqual(stop))
		if !triggered {
			return decimal.Zero, false
		}
		if o.LimitPrice != nil {
			return *o.LimitPrice, true
		}
		return tick, true
	}

	return decimal.Zero, false
}

// Clone returns a deep copy.
func (o Order) Clone() Order {
	c := o
	if o.LimitPrice != nil {
		v := *o.LimitPrice
		c.LimitPrice = &v
	}
	if o.StopPrice != nil {
		v := *o.StopPrice
		c.StopPrice = &v
	}
	if o.ExecutionPrice != nil {
		v := *o.ExecutionPrice
		c.ExecutionPrice = &v
	}
	if o.FilledAt != nil {
		v := *o.FilledAt
		c.FilledAt = &v
	}
	return c
}
