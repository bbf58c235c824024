package domain

import "errors"

// Engine-level failures. Every one of them is recoverable and leaves state untouched.
var (
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrInvalidSymbol        = errors.New("invalid symbol")
	ErrInvalidSide          = errors.New("invalid order side")
	ErrInvalidCondition     = errors.New("invalid alert condition")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientHoldings = errors.New("insufficient portfolio holdings")
	ErrOrderNotFound        = errors.New("order not found")
	ErrAlertNotFound        = errors.New("alert not found")
	ErrPriceUnavailable     = errors.New("no price available for symbol")
	ErrEngineStopped        = errors.New("engine is not running")
)
