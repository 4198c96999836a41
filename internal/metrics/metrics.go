package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	cellsTotal    *prometheus.CounterVec
	ordersTotal   *prometheus.CounterVec
	engineAlive   prometheus.Gauge
	liveEquity    prometheus.Gauge
	liveDrawdown  prometheus.Gauge
	feedReconnect prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novaquant_backtest_runs_total",
			Help: "Total number of backtest operations",
		},
		[]string{"kind", "status"},
	)
	r.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novaquant_backtest_duration_seconds",
			Help:    "Backtest operation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)
	r.cellsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novaquant_backtest_cells_total",
			Help: "Total number of sweep cells and walk-forward chunks simulated",
		},
		[]string{"kind"},
	)
	r.ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novaquant_orders_total",
			Help: "Total number of live orders by outcome",
		},
		[]string{"status"},
	)
	r.engineAlive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "novaquant_engine_alive",
			Help: "1 when the order engine process is running",
		},
	)
	r.liveEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "novaquant_live_equity",
			Help: "Latest live session equity",
		},
	)
	r.liveDrawdown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "novaquant_live_drawdown_pct",
			Help: "Current live session drawdown from peak, in percent",
		},
	)
	r.feedReconnect = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "novaquant_feed_reconnects_total",
			Help: "Total number of market feed reconnects",
		},
	)

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.cellsTotal)
	reg.MustRegister(r.ordersTotal)
	reg.MustRegister(r.engineAlive)
	reg.MustRegister(r.liveEquity)
	reg.MustRegister(r.liveDrawdown)
	reg.MustRegister(r.feedReconnect)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// ObserveRun records a finished backtest operation. The status label is
// "ok" or the error code.
func (r *Registry) ObserveRun(kind string, elapsed time.Duration, err error) {
	r.runsTotal.WithLabelValues(kind, errorStatus(err)).Inc()
	r.runDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// AddCells counts simulated sweep cells or walk-forward chunks.
func (r *Registry) AddCells(kind string, n int) {
	r.cellsTotal.WithLabelValues(kind).Add(float64(n))
}

// RecordOrder records a live order outcome.
func (r *Registry) RecordOrder(status string) {
	r.ordersTotal.WithLabelValues(status).Inc()
}

// SetEngineAlive sets the engine liveness gauge.
func (r *Registry) SetEngineAlive(alive bool) {
	if alive {
		r.engineAlive.Set(1)
	} else {
		r.engineAlive.Set(0)
	}
}

// SetLiveEquity sets the live session gauges.
func (r *Registry) SetLiveEquity(equity, drawdownPct float64) {
	r.liveEquity.Set(equity)
	r.liveDrawdown.Set(drawdownPct)
}

// IncFeedReconnect counts a market feed reconnect.
func (r *Registry) IncFeedReconnect() {
	r.feedReconnect.Inc()
}

func errorStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var e *core.Error
	if errors.As(err, &e) {
		return strings.ToLower(e.Code)
	}
	return "error"
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
