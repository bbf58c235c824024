package alert

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/pkg/quant"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Monitor is the watch-list of one-shot price alerts.
// Not safe for concurrent use; owned by the engine loop.
type Monitor struct {
	alerts []*domain.PriceAlert
	clock  domain.Clock
	newID  func() string
}

// NewMonitor creates an empty monitor.
func NewMonitor(clock domain.Clock) *Monitor {
	if clock == nil {
		clock = domain.NewMonotonicClock(nil)
	}
	return &Monitor{clock: clock, newID: uuid.NewString}
}

// Create registers a new active alert.
func (m *Monitor) Create(symbol string, target decimal.Decimal, cond domain.AlertCondition) (domain.PriceAlert, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.PriceAlert{}, domain.ErrInvalidSymbol
	}
	if !quant.InRange(target) {
		return domain.PriceAlert{}, fmt.Errorf("target out of range: %w", domain.ErrInvalidPrice)
	}
	if target.Sign() <= 0 {
		return domain.PriceAlert{}, fmt.Errorf("target %s: %w", target, domain.ErrInvalidPrice)
	}
	if cond != domain.ConditionAbove && cond != domain.ConditionBelow {
		return domain.PriceAlert{}, fmt.Errorf("%q: %w", cond, domain.ErrInvalidCondition)
	}

	a := &domain.PriceAlert{
		ID:          m.newID(),
		Symbol:      symbol,
		TargetPrice: target,
		Condition:   cond,
		IsActive:    true,
		CreatedAt:   m.clock.Now(),
	}
	m.alerts = append(m.alerts, a)
	return *a, nil
}

// Delete removes an alert, active or triggered.
func (m *Monitor) Delete(id string) error {
	for i, a := range m.alerts {
		if a.ID == id {
			m.alerts = append(m.alerts[:i], m.alerts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, domain.ErrAlertNotFound)
}

// Evaluate fires every active alert whose condition holds in prices.
// Symbols without a price are skipped.
func (m *Monitor) Evaluate(prices map[string]decimal.Decimal) []domain.PriceAlert {
	var fired []domain.PriceAlert
	for _, a := range m.alerts {
		if !a.IsActive {
			continue
		}
		price, ok := prices[a.Symbol]
		if !ok || !a.CheckCondition(price) {
			continue
		}
		a.Fire(m.clock.Now())
		fired = append(fired, *a)

		slog.Info("ALERT_TRIGGERED",
			slog.String("id", a.ID),
			slog.String("symbol", a.Symbol),
			slog.String("condition", string(a.Condition)),
			slog.String("target", a.TargetPrice.String()),
			slog.String("price", price.String()))
	}
	return fired
}

// All returns every alert, oldest first.
func (m *Monitor) All() []domain.PriceAlert {
	out := make([]domain.PriceAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, *a)
	}
	return out
}

// Recent returns alerts triggered at or after since.
func (m *Monitor) Recent(since time.Time) []domain.PriceAlert {
	var out []domain.PriceAlert
	for _, a := range m.alerts {
		if a.TriggeredAt != nil && !a.TriggeredAt.Before(since) {
			out = append(out, *a)
		}
	}
	return out
}

// Restore replaces the watch-list.
func (m *Monitor) Restore(alerts []domain.PriceAlert) {
	m.alerts = make([]*domain.PriceAlert, 0, len(alerts))
	for i := range alerts {
		a := alerts[i]
		m.alerts = append(m.alerts, &a)
	}
}
