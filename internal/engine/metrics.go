package engine

import "github.com/prometheus/client_golang/prometheus"

var eventCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "paper_engine_events_total",
	Help: "Events processed by the engine loop",
}, []string{"type"})

var orderCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "paper_engine_orders_total",
	Help: "Order lifecycle transitions",
}, []string{"type", "status"})

var alertCounter = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "paper_engine_alerts_triggered_total",
	Help: "Price alerts fired",
})

var commandDurations = prometheus.NewSummaryVec(prometheus.SummaryOpts{
	Name:       "paper_engine_command_duration_seconds",
	Help:       "Time spent applying a command on the engine goroutine",
	Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
}, []string{"command"})

var cashGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "paper_engine_cash",
	Help: "Current cash balance",
})

var openOrdersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "paper_engine_open_orders",
	Help: "Pending limit and stop orders",
})

var pausedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "paper_engine_feed_paused",
	Help: "1 while the price feed is paused",
})

func init() {
	prometheus.MustRegister(eventCounters, orderCounters, alertCounter, commandDurations, cashGauge, openOrdersGauge, pausedGauge)
}
