package execution

import "paper_trade/internal/domain"

// TradeLog is the append-only execution history, oldest first.
type TradeLog struct {
	trades []domain.Trade
}

// Append records a fill. Trades are never modified afterwards.
func (l *TradeLog) Append(t domain.Trade) {
	l.trades = append(l.trades, t)
}

// All returns a copy of every trade in execution order.
func (l *TradeLog) All() []domain.Trade {
	out := make([]domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

func (l *TradeLog) reset(trades []domain.Trade) {
	l.trades = append([]domain.Trade(nil), trades...)
}
