package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/engine"
	"paper_trade/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Engine is the command/query surface the API drives.
type Engine interface {
	State() *engine.State
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, qty decimal.Decimal, price *decimal.Decimal) (domain.Order, error)
	PlaceLimitOrder(ctx context.Context, symbol string, side domain.Side, qty, limitPrice decimal.Decimal) (domain.Order, error)
	PlaceStopOrder(ctx context.Context, symbol string, side domain.Side, qty, stopPrice decimal.Decimal, limitPrice *decimal.Decimal) (domain.Order, error)
	CancelOrder(ctx context.Context, id string) (domain.Order, error)
	CreateAlert(ctx context.Context, symbol string, target decimal.Decimal, cond domain.AlertCondition) (domain.PriceAlert, error)
	DeleteAlert(ctx context.Context, id string) error
	RecentAlerts(ctx context.Context, since time.Time) ([]domain.PriceAlert, error)
	ResetAll(ctx context.Context) error
	ModifyBalance(ctx context.Context, delta decimal.Decimal) (decimal.Decimal, error)
	OverridePrice(ctx context.Context, symbol string, price decimal.Decimal) error
	SetPriceFeedPaused(ctx context.Context, paused bool) error
}

// Source is a price source as seen by the health endpoint.
type Source interface {
	Name() string
	Healthy() bool
}

// Optional source reports surfaced by /health.
type (
	reconnectReporter interface{ Reconnects() int64 }
	pollReporter      interface{ LastSuccess() time.Time }
)

// Options tunes the server.
type Options struct {
	StaleAfter time.Duration
	RateLimit  float64
	Burst      int
	Sources    []Source
	Now        func() time.Time
}

// Server is the local JSON API in front of the engine.
type Server struct {
	eng     Engine
	opts    Options
	limiter *infra.RateLimiter
	router  *gin.Engine
}

// NewServer builds the router.
func NewServer(eng Engine, opts Options) *Server {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 40
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		eng:     eng,
		opts:    opts,
		limiter: infra.NewRateLimiter(opts.Burst, opts.RateLimit),
	}
	s.router = s.routes()
	return s
}

// Handler exposes the router for httptest and custom servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/state", s.getState)
	r.GET("/prices", s.getPrices)
	r.GET("/prices/:symbol", s.getPrice)
	r.GET("/orders", s.listOrders)
	r.GET("/alerts", s.listAlerts)

	cmd := r.Group("/", s.rateLimit())
	cmd.POST("/orders/market", s.placeMarket)
	cmd.POST("/orders/limit", s.placeLimit)
	cmd.POST("/orders/stop", s.placeStop)
	cmd.DELETE("/orders/:id", s.cancelOrder)
	cmd.POST("/alerts", s.createAlert)
	cmd.DELETE("/alerts/:id", s.deleteAlert)

	admin := cmd.Group("/admin")
	admin.POST("/reset", s.reset)
	admin.POST("/balance", s.modifyBalance)
	admin.POST("/price", s.overridePrice)
	admin.POST("/feed/pause", s.setPaused)

	return r
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.TryAcquire() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "too many requests"})
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("API request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(start)))
	}
}
