package execution

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

// Cancel reasons set by the engine itself. User cancels carry no reason.
const (
	ReasonBalanceAtFill  = "insufficient balance at fill"
	ReasonHoldingsAtFill = "insufficient holdings at fill"
)

// Fill represents a simulated execution of one order.
type Fill struct {
	Order domain.Order
	Trade domain.Trade
}

// Evaluation is the outcome of one tick over the pending orders.
type Evaluation struct {
	Fills    []Fill
	Rejected []domain.Order
}

// PaperExecution simulates order execution against a virtual account.
// It is not safe for concurrent use: the engine sequencer is its only caller.
type PaperExecution struct {
	account *domain.Account
	orders  []*domain.Order // insertion order, oldest first
	byID    map[string]*domain.Order
	trades  TradeLog

	clock domain.Clock
	newID func() string
}

// Option customises a PaperExecution.
type Option func(*PaperExecution)

// WithClock overrides the time source.
func WithClock(c domain.Clock) Option {
	return func(p *PaperExecution) { p.clock = c }
}

// WithIDGenerator overrides uuid-based ids (useful for deterministic tests).
func WithIDGenerator(f func() string) Option {
	return func(p *PaperExecution) { p.newID = f }
}

// NewPaperExecution creates a new paper trading executor with initialBalance cash.
func NewPaperExecution(initialBalance decimal.Decimal, opts ...Option) *PaperExecution {
	p := &PaperExecution{
		account: domain.NewAccount(initialBalance),
		byID:    make(map[string]*domain.Order),
		clock:   domain.NewMonotonicClock(nil),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlaceMarket settles immediately at currentPrice and returns the filled order.
func (p *PaperExecution) PlaceMarket(symbol string, side domain.Side, qty, currentPrice decimal.Decimal) (domain.Order, error) {
	symbol = normalizeSymbol(symbol)
	if err := validateOrder(symbol, side, qty, currentPrice); err != nil {
		return domain.Order{}, err
	}

	if err := p.settle(symbol, side, qty, currentPrice); err != nil {
		return domain.Order{}, err
	}

	now := p.clock.Now()
	order := &domain.Order{
		ID:        p.newID(),
		Symbol:    symbol,
		Side:      side,
		Type:      domain.OrderTypeMarket,
		Quantity:  qty,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
	}
	order.MarkFilled(currentPrice, now)
	p.track(order)
	trade := p.record(order, currentPrice, now)

	slog.Info("ORDER_FILLED",
		slog.String("id", order.ID),
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.String("type", string(order.Type)),
		slog.String("price", currentPrice.String()),
		slog.String("qty", qty.String()),
		slog.String("trade", trade.ID))

	return order.Clone(), nil
}

// PlaceLimit creates a pending limit order. Funds or holdings are checked once,
// at submission, using limitPrice; nothing is reserved.
func (p *PaperExecution) PlaceLimit(symbol string, side domain.Side, qty, limitPrice decimal.Decimal) (domain.Order, error) {
	symbol = normalizeSymbol(symbol)
	if err := validateOrder(symbol, side, qty, limitPrice); err != nil {
		return domain.Order{}, err
	}
	if err := p.precheck(symbol, side, qty, limitPrice); err != nil {
		return domain.Order{}, err
	}

	limit := limitPrice
	order := &domain.Order{
		ID:         p.newID(),
		Symbol:     symbol,
		Side:       side,
		Type:       domain.OrderTypeLimit,
		Quantity:   qty,
		LimitPrice: &limit,
		Status:     domain.OrderStatusPending,
		CreatedAt:  p.clock.Now(),
	}
	p.track(order)

	slog.Info("ORDER_PENDING",
		slog.String("id", order.ID),
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.String("limit", limit.String()),
		slog.String("qty", qty.String()))

	return order.Clone(), nil
}

// PlaceStop creates a pending stop order. limitPrice is an optional execution cap;
// the pre-check uses it when set and stopPrice otherwise.
func (p *PaperExecution) PlaceStop(symbol string, side domain.Side, qty, stopPrice decimal.Decimal, limitPrice *decimal.Decimal) (domain.Order, error) {
	symbol = normalizeSymbol(symbol)
	if err := validateOrder(symbol, side, qty, stopPrice); err != nil {
		return domain.Order{}, err
	}

	estimate := stopPrice
	var limit *decimal.Decimal
	if limitPrice != nil {
		if !quant.InRange(*limitPrice) {
			return domain.Order{}, fmt.Errorf("limit price out of range: %w", domain.ErrInvalidPrice)
		}
		if limitPrice.Sign() <= 0 {
			return domain.Order{}, fmt.Errorf("limit price %s: %w", limitPrice, domain.ErrInvalidPrice)
		}
		l := *limitPrice
		limit = &l
		estimate = l
	}
	if err := p.precheck(symbol, side, qty, estimate); err != nil {
		return domain.Order{}, err
	}

	stop := stopPrice
	order := &domain.Order{
		ID:         p.newID(),
		Symbol:     symbol,
		Side:       side,
		Type:       domain.OrderTypeStop,
		Quantity:   qty,
		StopPrice:  &stop,
		LimitPrice: limit,
		Status:     domain.OrderStatusPending,
		CreatedAt:  p.clock.Now(),
	}
	p.track(order)

	slog.Info("ORDER_PENDING",
		slog.String("id", order.ID),
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.String("stop", stop.String()),
		slog.String("qty", qty.String()))

	return order.Clone(), nil
}

// Cancel cancels a pending order. Cancelling a filled or already cancelled
// order is a successful no-op.
func (p *PaperExecution) Cancel(orderID string) (domain.Order, error) {
	order, ok := p.byID[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("%s: %w", orderID, domain.ErrOrderNotFound)
	}

	if order.MarkCancelled("") {
		slog.Info("ORDER_CANCELLED", slog.String("id", orderID))
	}
	return order.Clone(), nil
}

// EvaluatePending runs every pending order, oldest first, against one price snapshot.
// Orders whose symbol has no price stay pending. A triggered order that can no longer
// be settled is cancelled with a reason instead of driving the account negative.
func (p *PaperExecution) EvaluatePending(prices map[string]decimal.Decimal) Evaluation {
	var res Evaluation

	for _, order := range p.orders {
		if !order.IsOpen() {
			continue
		}
		tick, ok := prices[order.Symbol]
		if !ok {
			continue
		}
		execPrice, ok := order.Trigger(tick)
		if !ok {
			continue
		}

		if err := p.settle(order.Symbol, order.Side, order.Quantity, execPrice); err != nil {
			reason := ReasonBalanceAtFill
			if order.Side == domain.SideSell {
				reason = ReasonHoldingsAtFill
			}
			order.MarkCancelled(reason)
			slog.Warn("ORDER_REJECTED_AT_FILL",
				slog.String("id", order.ID),
				slog.String("symbol", order.Symbol),
				slog.String("price", execPrice.String()),
				slog.Any("error", err))
			res.Rejected = append(res.Rejected, order.Clone())
			continue
		}

		now := p.clock.Now()
		order.MarkFilled(execPrice, now)
		trade := p.record(order, execPrice, now)
		res.Fills = append(res.Fills, Fill{Order: order.Clone(), Trade: trade})

		slog.Info("ORDER_FILLED",
			slog.String("id", order.ID),
			slog.String("symbol", order.Symbol),
			slog.String("side", string(order.Side)),
			slog.String("type", string(order.Type)),
			slog.String("tick", tick.String()),
			slog.String("price", execPrice.String()),
			slog.String("qty", order.Quantity.String()))
	}

	return res
}

// ModifyBalance applies an administrative cash adjustment (floored at zero).
func (p *PaperExecution) ModifyBalance(delta decimal.Decimal) (decimal.Decimal, error) {
	if err := p.account.ModifyBalance(delta); err != nil {
		return p.account.Cash, err
	}
	return p.account.Cash, nil
}

// Account returns a copy of the ledger.
func (p *PaperExecution) Account() *domain.Account {
	return p.account.Clone()
}

// Orders returns every order ever placed, oldest first.
func (p *PaperExecution) Orders() []domain.Order {
	out := make([]domain.Order, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, o.Clone())
	}
	return out
}

// OpenOrders returns the pending orders, oldest first.
func (p *PaperExecution) OpenOrders() []domain.Order {
	var out []domain.Order
	for _, o := range p.orders {
		if o.IsOpen() {
			out = append(out, o.Clone())
		}
	}
	return out
}

// Order looks up a single order.
func (p *PaperExecution) Order(id string) (domain.Order, bool) {
	o, ok := p.byID[id]
	if !ok {
		return domain.Order{}, false
	}
	return o.Clone(), true
}

// Trades returns the execution history.
func (p *PaperExecution) Trades() []domain.Trade {
	return p.trades.All()
}

// Restore replaces all state, e.g. from a persisted snapshot.
func (p *PaperExecution) Restore(account *domain.Account, orders []domain.Order, trades []domain.Trade) {
	if account == nil {
		account = domain.NewAccount(domain.DefaultInitialBalance)
	}
	p.account = account.Clone()
	p.orders = make([]*domain.Order, 0, len(orders))
	p.byID = make(map[string]*domain.Order, len(orders))
	for _, o := range orders {
		c := o.Clone()
		p.track(&c)
	}
	p.trades.reset(trades)
}

func (p *PaperExecution) precheck(symbol string, side domain.Side, qty, price decimal.Decimal) error {
	if side == domain.SideBuy {
		return p.account.CanBuy(qty, price)
	}
	return p.account.CanSell(symbol, qty)
}

func (p *PaperExecution) settle(symbol string, side domain.Side, qty, price decimal.Decimal) error {
	if side == domain.SideBuy {
		return p.account.ApplyBuy(symbol, qty, price)
	}
	return p.account.ApplySell(symbol, qty, price)
}

func (p *PaperExecution) track(o *domain.Order) {
	p.orders = append(p.orders, o)
	p.byID[o.ID] = o
}

func (p *PaperExecution) record(o *domain.Order, price decimal.Decimal, at time.Time) domain.Trade {
	trade := domain.Trade{
		ID:             p.newID(),
		OrderID:        o.ID,
		Symbol:         o.Symbol,
		Side:           o.Side,
		Quantity:       o.Quantity,
		ExecutionPrice: price,
		TotalValue:     quant.Notional(price, o.Quantity),
		CreatedAt:      at,
	}
	p.trades.Append(trade)
	return trade
}

func validateOrder(symbol string, side domain.Side, qty, price decimal.Decimal) error {
	if symbol == "" {
		return domain.ErrInvalidSymbol
	}
	if side != domain.SideBuy && side != domain.SideSell {
		return fmt.Errorf("%q: %w", side, domain.ErrInvalidSide)
	}
	if !quant.InRange(qty) {
		return fmt.Errorf("quantity out of range: %w", domain.ErrInvalidQuantity)
	}
	if !quant.InRange(price) {
		return fmt.Errorf("price out of range: %w", domain.ErrInvalidPrice)
	}
	if qty.Sign() <= 0 {
		return fmt.Errorf("quantity %s: %w", qty, domain.ErrInvalidQuantity)
	}
	if price.Sign() <= 0 {
		return fmt.Errorf("price %s: %w", price, domain.ErrInvalidPrice)
	}
	return nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
