package bitget

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"paper_trade/internal/infra"
	"paper_trade/internal/market"
	"paper_trade/pkg/quant"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigFastest

// SpotWorker streams Bitget spot tickers into the price feed using BaseWSWorker.
type SpotWorker struct {
	base        *infra.BaseWSWorker
	url         string
	instruments map[string]string // instId -> symbol
	pub         infra.PricePublisher
}

// NewSpotWorker factory. instruments maps Bitget instIds (BTCUSDT) to engine symbols (BTC).
func NewSpotWorker(url string, instruments map[string]string, pub infra.PricePublisher) *SpotWorker {
	if url == "" {
		url = DefaultWSURL
	}
	w := &SpotWorker{
		url:         url,
		instruments: make(map[string]string, len(instruments)),
		pub:         pub,
	}
	for id, sym := range instruments {
		w.instruments[strings.ToUpper(id)] = strings.ToUpper(sym)
	}
	w.base = infra.NewBaseWSWorker(w)
	return w
}

func (w *SpotWorker) ID() string     { return "BITGET_SPOT" }
func (w *SpotWorker) GetURL() string { return w.url }
func (w *SpotWorker) Name() string   { return sourceName }

// Healthy reports an established websocket session.
func (w *SpotWorker) Healthy() bool { return w.base.Connected() }

// Reconnects counts websocket sessions after the first.
func (w *SpotWorker) Reconnects() int64 { return w.base.Reconnects() }

func (w *SpotWorker) Start(ctx context.Context) error {
	w.base.Start(ctx)
	return nil
}

func (w *SpotWorker) Stop() {
	w.base.Stop()
}

func (w *SpotWorker) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	ids := make([]string, 0, len(w.instruments))
	for id := range w.instruments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	args := make([]subscribeArg, 0, len(ids))
	for _, id := range ids {
		args = append(args, subscribeArg{InstType: "SPOT", Channel: "ticker", InstId: id})
	}
	b, err := json.Marshal(subscribeRequest{Op: "subscribe", Args: args})
	if err != nil {
		return err
	}
	return w.base.Write(websocket.TextMessage, b)
}

func (w *SpotWorker) OnMessage(ctx context.Context, msg []byte) {
	if string(msg) == "pong" {
		return
	}

	var resp tickerResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		slog.Debug("Bitget message ignored", slog.Any("error", err))
		return
	}
	if resp.Arg.Channel != "ticker" || len(resp.Data) == 0 {
		return
	}

	for _, data := range resp.Data {
		symbol, ok := w.instruments[data.InstId]
		if !ok {
			continue
		}
		price, err := quant.ParseDecimal(data.LastPr)
		if err != nil || !quant.IsPositive(price) {
			slog.Warn("Bitget ticker with bad price", slog.String("instId", data.InstId), slog.String("lastPr", data.LastPr))
			continue
		}

		ts := quant.ParseMillis(resp.Ts)
		if ms, err := strconv.ParseInt(data.Ts, 10, 64); err == nil {
			ts = quant.ParseMillis(ms)
		}

		w.pub.Publish(market.Update{Symbol: symbol, Price: price, Source: sourceName, Ts: ts})
	}
}

func (w *SpotWorker) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.TextMessage, []byte("ping"))
}
