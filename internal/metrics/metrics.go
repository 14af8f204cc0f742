package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service's Prometheus instruments on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal       *prometheus.CounterVec
	ReconnectsTotal  *prometheus.CounterVec
	ParseErrorsTotal *prometheus.CounterVec

	TradesOpened  prometheus.Counter
	TradesClosed  prometheus.Counter
	OpenTrades    prometheus.Gauge
	RealizedPnL   prometheus.Gauge
	UnrealizedPnL prometheus.Gauge
}

// New creates and registers all instruments.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TicksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiscope_feed_ticks_total",
			Help: "Quote updates applied to the store, per venue.",
		}, []string{"venue"}),
		ReconnectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiscope_feed_reconnects_total",
			Help: "WebSocket reconnect attempts, per venue.",
		}, []string{"venue"}),
		ParseErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiscope_feed_parse_errors_total",
			Help: "Messages skipped due to parse failures, per venue.",
		}, []string{"venue"}),
		TradesOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbiscope_trades_opened_total",
			Help: "Paper trades opened (manual and auto-pilot).",
		}),
		TradesClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbiscope_trades_closed_total",
			Help: "Paper trades closed (manual and auto-pilot).",
		}),
		OpenTrades: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbiscope_open_trades",
			Help: "Currently open paper trades.",
		}),
		RealizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbiscope_realized_pnl_usd",
			Help: "Sum of exit PnL over the trade history.",
		}),
		UnrealizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbiscope_unrealized_pnl_usd",
			Help: "Sum of current PnL over open trades.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
