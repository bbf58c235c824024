package domain

import (
	"fmt"

	"paper_trade/pkg/quant"

	"github.com/shopspring/decimal"
)

// DefaultInitialBalance is the starting cash of a fresh simulation (USDT).
var DefaultInitialBalance = decimal.NewFromInt(100_000)

// Holding is the current quantity and average cost basis in one symbol.
type Holding struct {
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// Account holds cash and positions. It is not safe for concurrent use;
// the engine serializes every mutation.
type Account struct {
	Cash     decimal.Decimal    `json:"cash"`
	Holdings map[string]Holding `json:"holdings"`
}

// NewAccount creates an account with the given cash and no positions.
func NewAccount(cash decimal.Decimal) *Account {
	return &Account{
		Cash:     cash,
		Holdings: make(map[string]Holding),
	}
}

// Holding returns the position for symbol. A missing symbol is a zero holding.
func (a *Account) Holding(symbol string) Holding {
	h, ok := a.Holdings[symbol]
	if !ok {
		return Holding{Quantity: decimal.Zero, AverageCost: decimal.Zero}
	}
	return h
}

// CanBuy checks affordability without mutating.
func (a *Account) CanBuy(quantity, price decimal.Decimal) error {
	if err := checkRange(quantity, price); err != nil {
		return err
	}
	cost := quant.Notional(price, quantity)
	if a.Cash.LessThan(cost) {
		return fmt.Errorf("need %s, have %s: %w", cost.StringFixed(2), a.Cash.StringFixed(2), ErrInsufficientBalance)
	}
	return nil
}

// CanSell checks the position without mutating.
func (a *Account) CanSell(symbol string, quantity decimal.Decimal) error {
	if !quant.InRange(quantity) {
		return fmt.Errorf("quantity out of range: %w", ErrInvalidQuantity)
	}
	h := a.Holding(symbol)
	if h.Quantity.LessThan(quantity) {
		return fmt.Errorf("%s: need %s, have %s: %w", symbol, quantity, h.Quantity, ErrInsufficientHoldings)
	}
	return nil
}

// ApplyBuy debits quantity×price and folds the lot into the average cost:
// newAvg = (oldAvg×oldQty + price×quantity) / (oldQty+quantity).
func (a *Account) ApplyBuy(symbol string, quantity, price decimal.Decimal) error {
	if err := validateFill(symbol, quantity, price); err != nil {
		return err
	}
	if err := a.CanBuy(quantity, price); err != nil {
		return err
	}

	h := a.Holding(symbol)
	newQty := h.Quantity.Add(quantity)
	cost := quant.Notional(price, quantity)
	newAvg := h.AverageCost.Mul(h.Quantity).Add(cost).Div(newQty)

	a.Cash = a.Cash.Sub(cost)
	a.Holdings[symbol] = Holding{Quantity: newQty, AverageCost: newAvg}
	return nil
}

// ApplySell credits quantity×price and reduces the position.
// Average cost of the remainder is unchanged; a fully closed position is removed.
func (a *Account) ApplySell(symbol string, quantity, price decimal.Decimal) error {
	if err := validateFill(symbol, quantity, price); err != nil {
		return err
	}
	if err := a.CanSell(symbol, quantity); err != nil {
		return err
	}

	h := a.Holding(symbol)
	remaining := h.Quantity.Sub(quantity)

	a.Cash = a.Cash.Add(quant.Notional(price, quantity))
	if remaining.IsZero() {
		delete(a.Holdings, symbol)
	} else {
		a.Holdings[symbol] = Holding{Quantity: remaining, AverageCost: h.AverageCost}
	}
	return nil
}

// ModifyBalance applies an administrative adjustment, flooring cash at zero.
func (a *Account) ModifyBalance(delta decimal.Decimal) error {
	if !quant.InRange(delta) {
		return fmt.Errorf("balance delta out of range: %w", ErrInvalidPrice)
	}
	next := a.Cash.Add(delta)
	if next.Sign() < 0 {
		next = decimal.Zero
	}
	a.Cash = next
	return nil
}

// Equity is cash plus every position marked at prices[symbol],
// or at average cost when no price is known.
func (a *Account) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	total := a.Cash
	for symbol, h := range a.Holdings {
		mark, ok := prices[symbol]
		if !ok {
			mark = h.AverageCost
		}
		total = total.Add(mark.Mul(h.Quantity))
	}
	return total
}

// Clone returns a deep copy for read snapshots.
func (a *Account) Clone() *Account {
	c := NewAccount(a.Cash)
	for k, v := range a.Holdings {
		c.Holdings[k] = v
	}
	return c
}

func validateFill(symbol string, quantity, price decimal.Decimal) error {
	if symbol == "" {
		return ErrInvalidSymbol
	}
	if err := checkRange(quantity, price); err != nil {
		return err
	}
	if quantity.Sign() <= 0 {
		return fmt.Errorf("quantity %s: %w", quantity, ErrInvalidQuantity)
	}
	if price.Sign() <= 0 {
		return fmt.Errorf("price %s: %w", price, ErrInvalidPrice)
	}
	return nil
}

// checkRange runs before any arithmetic or formatting, so an extreme exponent
// never reaches the ledger or an error message.
func checkRange(quantity, price decimal.Decimal) error {
	if !quant.InRange(quantity) {
		return fmt.Errorf("quantity out of range: %w", ErrInvalidQuantity)
	}
	if !quant.InRange(price) {
		return fmt.Errorf("price out of range: %w", ErrInvalidPrice)
	}
	return nil
}
