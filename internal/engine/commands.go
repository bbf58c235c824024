package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/event"
	"paper_trade/internal/storage"
	"paper_trade/pkg/quant"

	"github.com/shopspring/decimal"
)

// PlaceMarketOrder fills immediately. A nil price means the last known price
// for symbol; the command fails with ErrPriceUnavailable when there is none.
func (e *Engine) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, qty decimal.Decimal, price *decimal.Decimal) (domain.Order, error) {
	var order domain.Order
	err := e.execute(ctx, "place_market", func() error {
		px, err := e.resolvePrice(symbol, price)
		if err != nil {
			return err
		}
		order, err = e.exec.PlaceMarket(symbol, side, qty, px)
		if err != nil {
			return err
		}
		orderCounters.WithLabelValues(string(order.Type), string(order.Status)).Inc()
		return nil
	})
	return order, err
}

// PlaceLimitOrder creates a pending limit order.
func (e *Engine) PlaceLimitOrder(ctx context.Context, symbol string, side domain.Side, qty, limitPrice decimal.Decimal) (domain.Order, error) {
	var order domain.Order
	err := e.execute(ctx, "place_limit", func() error {
		var err error
		order, err = e.exec.PlaceLimit(symbol, side, qty, limitPrice)
		if err != nil {
			return err
		}
		orderCounters.WithLabelValues(string(order.Type), string(order.Status)).Inc()
		return nil
	})
	return order, err
}

// PlaceStopOrder creates a pending stop order with an optional limit cap.
func (e *Engine) PlaceStopOrder(ctx context.Context, symbol string, side domain.Side, qty, stopPrice decimal.Decimal, limitPrice *decimal.Decimal) (domain.Order, error) {
	var order domain.Order
	err := e.execute(ctx, "place_stop", func() error {
		var err error
		order, err = e.exec.PlaceStop(symbol, side, qty, stopPrice, limitPrice)
		if err != nil {
			return err
		}
		orderCounters.WithLabelValues(string(order.Type), string(order.Status)).Inc()
		return nil
	})
	return order, err
}

// CancelOrder cancels a pending order. Terminal orders are returned unchanged.
func (e *Engine) CancelOrder(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := e.execute(ctx, "cancel_order", func() error {
		before, ok := e.exec.Order(id)
		var err error
		order, err = e.exec.Cancel(id)
		if err != nil {
			return err
		}
		if ok && before.IsOpen() {
			orderCounters.WithLabelValues(string(order.Type), string(order.Status)).Inc()
		}
		return nil
	})
	return order, err
}

// CreateAlert registers a one-shot price alert.
func (e *Engine) CreateAlert(ctx context.Context, symbol string, target decimal.Decimal, cond domain.AlertCondition) (domain.PriceAlert, error) {
	var a domain.PriceAlert
	err := e.execute(ctx, "create_alert", func() error {
		var err error
		a, err = e.alerts.Create(symbol, target, cond)
		return err
	})
	return a, err
}

// RecentAlerts returns the alerts that triggered at or after since.
func (e *Engine) RecentAlerts(ctx context.Context, since time.Time) ([]domain.PriceAlert, error) {
	var out []domain.PriceAlert
	cmd := event.NewCommand("recent_alerts", func() error {
		out = e.alerts.Recent(since)
		return nil
	})
	cmd.ReadOnly = true
	err := e.submit(ctx, cmd)
	return out, err
}

// DeleteAlert removes an alert.
func (e *Engine) DeleteAlert(ctx context.Context, id string) error {
	return e.execute(ctx, "delete_alert", func() error {
		return e.alerts.Delete(id)
	})
}

// ResetAll restores the default account and empties every collection.
// Prices and the pause flag are market data and survive a reset.
func (e *Engine) ResetAll(ctx context.Context) error {
	return e.execute(ctx, "reset_all", func() error {
		e.restore(storage.DefaultSnapshot(e.cfg.InitialBalance))
		slog.Info("SIMULATION_RESET", slog.String("cash", e.cfg.InitialBalance.String()))
		return nil
	})
}

// ModifyBalance adjusts cash by delta, flooring at zero, and returns the new balance.
func (e *Engine) ModifyBalance(ctx context.Context, delta decimal.Decimal) (decimal.Decimal, error) {
	var cash decimal.Decimal
	err := e.execute(ctx, "modify_balance", func() error {
		var err error
		cash, err = e.exec.ModifyBalance(delta)
		if err != nil {
			return err
		}
		slog.Info("BALANCE_MODIFIED", slog.String("delta", delta.String()), slog.String("cash", cash.String()))
		return nil
	})
	return cash, err
}

// OverridePrice forces a price and evaluates it as a tick, even while the feed is paused.
func (e *Engine) OverridePrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	return e.execute(ctx, "override_price", func() error {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			return domain.ErrInvalidSymbol
		}
		if !quant.InRange(price) {
			return fmt.Errorf("price out of range: %w", domain.ErrInvalidPrice)
		}
		if price.Sign() <= 0 {
			return fmt.Errorf("price %s: %w", price, domain.ErrInvalidPrice)
		}
		e.prices.Set(symbol, price, e.clock.Now())
		slog.Info("PRICE_OVERRIDDEN", slog.String("symbol", symbol), slog.String("price", price.String()))
		e.tick()
		return nil
	})
}

// SetPriceFeedPaused toggles the feed. While paused, feed batches are dropped
// but sources stay connected.
func (e *Engine) SetPriceFeedPaused(ctx context.Context, paused bool) error {
	return e.execute(ctx, "set_feed_paused", func() error {
		e.paused = paused
		if e.feed != nil {
			e.feed.SetPaused(paused)
		}
		slog.Info("FEED_PAUSE_CHANGED", slog.Bool("paused", paused))
		return nil
	})
}

// Sync waits until every event queued before it has been processed.
func (e *Engine) Sync(ctx context.Context) error {
	cmd := event.NewCommand("sync", func() error { return nil })
	cmd.ReadOnly = true
	return e.submit(ctx, cmd)
}

func (e *Engine) resolvePrice(symbol string, price *decimal.Decimal) (decimal.Decimal, error) {
	if price != nil {
		return *price, nil
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return decimal.Zero, domain.ErrInvalidSymbol
	}
	px, ok := e.prices.Get(sym)
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", sym, domain.ErrPriceUnavailable)
	}
	return px, nil
}
