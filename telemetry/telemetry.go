package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus metrics for backtest runs. A nil *Registry
// is valid and records nothing, so instrumentation stays optional.
type Registry struct {
	*prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	tradesClosed  *prometheus.CounterVec
	barsProcessed prometheus.Counter
	sweepActive   prometheus.Gauge
}

// NewRegistry creates a registry with every metric registered, including the
// Go runtime collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_backtest_runs_total",
				Help: "Total number of backtest runs",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trader_backtest_duration_seconds",
				Help:    "Backtest run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),
		tradesClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_trades_closed_total",
				Help: "Total number of closed trades by exit reason",
			},
			[]string{"reason"},
		),
		barsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trader_bars_processed_total",
				Help: "Total number of bars processed across runs",
			},
		),
		sweepActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "trader_sweep_runs_active",
				Help: "Number of sweep runs currently executing",
			},
		),
	}

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.tradesClosed)
	reg.MustRegister(r.barsProcessed)
	reg.MustRegister(r.sweepActive)

	return r
}

// RecordRun records a run completion with its duration in seconds.
func (r *Registry) RecordRun(status string, duration float64, bars int) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration)
	r.barsProcessed.Add(float64(bars))
}

// RecordTradeClosed counts a closed trade under its exit reason.
func (r *Registry) RecordTradeClosed(reason string) {
	if r == nil {
		return
	}
	r.tradesClosed.WithLabelValues(reason).Inc()
}

// SweepStarted and SweepFinished track in-flight sweep runs.
func (r *Registry) SweepStarted() {
	if r == nil {
		return
	}
	r.sweepActive.Inc()
}

func (r *Registry) SweepFinished() {
	if r == nil {
		return
	}
	r.sweepActive.Dec()
}

// Handler exposes the registry for scraping.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}
