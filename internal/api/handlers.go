package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/market"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type marketOrderRequest struct {
	Symbol   string           `json:"symbol"`
	Side     string           `json:"side"`
	Quantity decimal.Decimal  `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
}

type limitOrderRequest struct {
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limit_price"`
}

type stopOrderRequest struct {
	Symbol     string           `json:"symbol"`
	Side       string           `json:"side"`
	Quantity   decimal.Decimal  `json:"quantity"`
	StopPrice  decimal.Decimal  `json:"stop_price"`
	LimitPrice *decimal.Decimal `json:"limit_price"`
}

type alertRequest struct {
	Symbol      string          `json:"symbol"`
	TargetPrice decimal.Decimal `json:"target_price"`
	Condition   string          `json:"condition"`
}

type balanceRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

type priceRequest struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (s *Server) health(c *gin.Context) {
	sources := make(map[string]bool, len(s.opts.Sources))
	details := make(map[string]gin.H)
	for _, src := range s.opts.Sources {
		sources[src.Name()] = src.Healthy()
		detail := gin.H{}
		if r, ok := src.(reconnectReporter); ok {
			detail["reconnects"] = r.Reconnects()
		}
		if p, ok := src.(pollReporter); ok {
			if last := p.LastSuccess(); !last.IsZero() {
				detail["last_success"] = last
			}
		}
		if len(detail) > 0 {
			details[src.Name()] = detail
		}
	}
	st := s.eng.State()
	c.JSON(http.StatusOK, gin.H{
		"ok":                true,
		"sources":           sources,
		"source_details":    details,
		"feed_paused":       st.FeedPaused,
		"last_price_update": st.LastPriceUpdate,
	})
}

func (s *Server) getState(c *gin.Context) {
	st := s.eng.State()
	c.JSON(http.StatusOK, gin.H{"ok": true, "state": st, "stale": s.staleSymbols(st.Prices)})
}

func (s *Server) getPrices(c *gin.Context) {
	st := s.eng.State()
	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"prices":      st.Prices,
		"last_update": st.LastPriceUpdate,
		"stale":       s.staleSymbols(st.Prices),
		"feed_paused": st.FeedPaused,
	})
}

func (s *Server) getPrice(c *gin.Context) {
	st := s.eng.State()
	sym := strings.ToUpper(c.Param("symbol"))
	px, ok := st.Price(sym)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": sym + ": " + domain.ErrPriceUnavailable.Error()})
		return
	}
	q := st.Prices[sym]
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"symbol":     sym,
		"price":      px,
		"updated_at": q.UpdatedAt,
		"stale":      q.Stale(s.opts.StaleAfter, s.opts.Now()),
	})
}

// listOrders returns every order, or only pending ones with ?status=open.
func (s *Server) listOrders(c *gin.Context) {
	st := s.eng.State()
	var orders []domain.Order
	switch c.Query("status") {
	case "":
		orders = st.Orders
	case "open":
		orders = st.OpenOrders()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "status must be empty or open"})
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "orders": orders})
}

func (s *Server) placeMarket(c *gin.Context) {
	var req marketOrderRequest
	if !bind(c, &req) {
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		fail(c, err)
		return
	}
	order, err := s.eng.PlaceMarketOrder(c.Request.Context(), req.Symbol, side, req.Quantity, req.Price)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "order": order})
}

func (s *Server) placeLimit(c *gin.Context) {
	var req limitOrderRequest
	if !bind(c, &req) {
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		fail(c, err)
		return
	}
	order, err := s.eng.PlaceLimitOrder(c.Request.Context(), req.Symbol, side, req.Quantity, req.LimitPrice)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "order": order})
}

func (s *Server) placeStop(c *gin.Context) {
	var req stopOrderRequest
	if !bind(c, &req) {
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		fail(c, err)
		return
	}
	order, err := s.eng.PlaceStopOrder(c.Request.Context(), req.Symbol, side, req.Quantity, req.StopPrice, req.LimitPrice)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "order": order})
}

func (s *Server) cancelOrder(c *gin.Context) {
	order, err := s.eng.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": order})
}

func (s *Server) createAlert(c *gin.Context) {
	var req alertRequest
	if !bind(c, &req) {
		return
	}
	cond, err := domain.ParseCondition(req.Condition)
	if err != nil {
		fail(c, err)
		return
	}
	a, err := s.eng.CreateAlert(c.Request.Context(), req.Symbol, req.TargetPrice, cond)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "alert": a})
}

// listAlerts returns every alert, or with ?triggered_since=<RFC3339> only
// those that fired at or after that instant.
func (s *Server) listAlerts(c *gin.Context) {
	raw := c.Query("triggered_since")
	if raw == "" {
		alerts := s.eng.State().Alerts
		if alerts == nil {
			alerts = []domain.PriceAlert{}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "alerts": alerts})
		return
	}
	since, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "triggered_since must be an RFC3339 time"})
		return
	}
	alerts, err := s.eng.RecentAlerts(c.Request.Context(), since)
	if err != nil {
		fail(c, err)
		return
	}
	if alerts == nil {
		alerts = []domain.PriceAlert{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "alerts": alerts})
}

func (s *Server) deleteAlert(c *gin.Context) {
	if err := s.eng.DeleteAlert(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) reset(c *gin.Context) {
	if err := s.eng.ResetAll(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "cash": s.eng.State().Cash})
}

func (s *Server) modifyBalance(c *gin.Context) {
	var req balanceRequest
	if !bind(c, &req) {
		return
	}
	cash, err := s.eng.ModifyBalance(c.Request.Context(), req.Delta)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "cash": cash})
}

func (s *Server) overridePrice(c *gin.Context) {
	var req priceRequest
	if !bind(c, &req) {
		return
	}
	if err := s.eng.OverridePrice(c.Request.Context(), req.Symbol, req.Price); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) setPaused(c *gin.Context) {
	var req pauseRequest
	if !bind(c, &req) {
		return
	}
	if err := s.eng.SetPriceFeedPaused(c.Request.Context(), req.Paused); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "paused": req.Paused})
}

func (s *Server) staleSymbols(prices map[string]market.Quote) []string {
	now := s.opts.Now()
	stale := []string{}
	for sym, q := range prices {
		if q.Stale(s.opts.StaleAfter, now) {
			stale = append(stale, sym)
		}
	}
	sort.Strings(stale)
	return stale
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// fail renders an engine error as {"ok": false, "error": ...}.
func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"ok": false, "error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientBalance), errors.Is(err, domain.ErrInsufficientHoldings):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPriceUnavailable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEngineStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadRequest
	}
}
