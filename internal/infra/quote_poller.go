package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"paper_trade/internal/market"
	"paper_trade/pkg/quant"

	jsoniter "github.com/json-iterator/go"
)

// yahooChartResponse represents the Yahoo Finance Chart API response
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// QuotePoller periodically fetches last prices for stock and forex tickers
// from a Yahoo-style chart endpoint.
type QuotePoller struct {
	pub          PricePublisher
	baseURL      string
	tickers      map[string]string // ticker -> symbol
	pollInterval time.Duration
	httpClient   *http.Client
	breaker      *CircuitBreaker
	limiter      *RateLimiter
	retry        Backoff
	attempts     int

	mu       sync.RWMutex
	lastGood time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQuotePoller creates a poller publishing to pub.
func NewQuotePoller(pub PricePublisher, baseURL string, tickers map[string]string, pollInterval time.Duration) *QuotePoller {
	if pollInterval <= 0 {
		pollInterval = 60 * time.Second
	}
	return &QuotePoller{
		pub:          pub,
		baseURL:      baseURL,
		tickers:      tickers,
		pollInterval: pollInterval,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		breaker:      NewCircuitBreaker(DefaultCircuitBreakerConfig("quotes")),
		limiter:      NewRateLimiter(2, 2),
		retry:        Backoff{Base: time.Second, Max: 4 * time.Second},
		attempts:     3,
	}
}

func (p *QuotePoller) Name() string { return "quotes" }

// Healthy reports whether the breaker is letting requests through.
func (p *QuotePoller) Healthy() bool {
	return p.breaker.GetState() != StateOpen
}

// LastSuccess is when a poll last produced at least one price.
func (p *QuotePoller) LastSuccess() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastGood
}

// Start polls immediately and then on every interval.
func (p *QuotePoller) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Quote polling panic recovered", slog.Any("panic", r))
			}
		}()

		p.PollOnce(ctx)

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Quote polling stopped")
				return
			case <-ticker.C:
				p.PollOnce(ctx)
			}
		}
	}()

	return nil
}

// Stop stops the polling.
func (p *QuotePoller) Stop() {
	if p.cancel != nil {
		p.cancel()
		p.wg.Wait()
	}
}

// PollOnce fetches every ticker once and returns how many prices were published.
// Failures are logged; the feed simply keeps the previous value.
func (p *QuotePoller) PollOnce(ctx context.Context) int {
	tickers := make([]string, 0, len(p.tickers))
	for t := range p.tickers {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	published := 0
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			return published
		}
		u, err := p.fetchWithRetry(ctx, ticker)
		if err != nil {
			slog.Warn("Quote fetch failed", slog.String("ticker", ticker), slog.Any("error", err))
			continue
		}
		p.pub.Publish(u)
		published++
	}

	if published > 0 {
		p.mu.Lock()
		p.lastGood = time.Now()
		p.mu.Unlock()
	}
	return published
}

func (p *QuotePoller) fetchWithRetry(ctx context.Context, ticker string) (market.Update, error) {
	var lastErr error
	for i := 0; i < p.attempts; i++ {
		if i > 0 {
			delay := p.retry.Delay(i - 1)
			select {
			case <-ctx.Done():
				return market.Update{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		var u market.Update
		err := p.breaker.Execute(func() error {
			var err error
			u, err = p.fetch(ctx, ticker)
			return err
		})
		if err == nil {
			return u, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			return market.Update{}, err
		}
		lastErr = err
		slog.Debug("Quote fetch attempt failed", slog.String("ticker", ticker), slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return market.Update{}, lastErr
}

func (p *QuotePoller) fetch(ctx context.Context, ticker string) (market.Update, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return market.Update{}, err
	}

	endpoint := strings.TrimRight(p.baseURL, "/") + "/" + url.PathEscape(ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return market.Update{}, err
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return market.Update{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return market.Update{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return market.Update{}, err
	}

	var data yahooChartResponse
	if err := jsoniter.Unmarshal(body, &data); err != nil {
		return market.Update{}, err
	}
	if data.Chart.Error != nil {
		return market.Update{}, fmt.Errorf("quote API error: %s - %s", data.Chart.Error.Code, data.Chart.Error.Description)
	}
	if len(data.Chart.Result) == 0 {
		return market.Update{}, fmt.Errorf("empty chart response for %s", ticker)
	}

	meta := data.Chart.Result[0].Meta
	price, err := quant.FromFloat(meta.RegularMarketPrice)
	if err != nil {
		return market.Update{}, err
	}
	if !quant.IsPositive(price) {
		return market.Update{}, fmt.Errorf("non-positive price %s for %s", price, ticker)
	}

	ts := time.Now()
	if meta.RegularMarketTime > 0 {
		ts = time.Unix(meta.RegularMarketTime, 0)
	}
	return market.Update{Symbol: p.tickers[ticker], Price: price, Source: p.Name(), Ts: ts}, nil
}
