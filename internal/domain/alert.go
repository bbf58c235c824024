package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AlertCondition is the direction an alert watches for.
type AlertCondition string

const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
)

// ParseCondition accepts "above"/"below" in any case.
func ParseCondition(s string) (AlertCondition, error) {
	switch AlertCondition(strings.ToLower(strings.TrimSpace(s))) {
	case ConditionAbove:
		return ConditionAbove, nil
	case ConditionBelow:
		return ConditionBelow, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidCondition)
	}
}

// PriceAlert is a one-shot target-price watch.
type PriceAlert struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	TargetPrice decimal.Decimal `json:"target_price"`
	Condition   AlertCondition  `json:"condition"`
	IsActive    bool            `json:"is_active"`
	TriggeredAt *time.Time      `json:"triggered_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CheckCondition checks if the alert condition is met at price.
// Inactive alerts never match.
func (a *PriceAlert) CheckCondition(price decimal.Decimal) bool {
	if !a.IsActive {
		return false
	}
	switch a.Condition {
	case ConditionAbove:
		return price.GreaterThanOrEqual(a.TargetPrice)
	case ConditionBelow:
		return price.LessThanOrEqual(a.TargetPrice)
	default:
		return false
	}
}

// Fire deactivates the alert. Once fired it can never be reactivated.
func (a *PriceAlert) Fire(at time.Time) bool {
	if !a.IsActive {
		return false
	}
	a.IsActive = false
	a.TriggeredAt = &at
	return true
}
