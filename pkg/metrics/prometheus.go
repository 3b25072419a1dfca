package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts   *prometheus.CounterVec
	retrains    *prometheus.CounterVec
	alerts      *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	modelRMSE   *prometheus.GaugeVec
	lastPrice   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		forecasts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_forecasts_total",
				Help: "Total number of forecasts served",
			},
			[]string{"strategy", "symbol"},
		),
		retrains: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_retrains_total",
				Help: "Total number of model retrains by trigger",
			},
			[]string{"kind", "trigger"},
		),
		alerts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_alerts_total",
				Help: "Total number of performance alerts raised",
			},
			[]string{"type"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		modelRMSE: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_model_rmse",
				Help: "Most recently evaluated RMSE per symbol and model kind",
			},
			[]string{"symbol", "kind"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordForecast counts a served forecast by strategy.
func (r *Recorder) RecordForecast(strategy, symbol string) {
	r.forecasts.WithLabelValues(strategy, symbol).Inc()
}

// RecordRetrain counts a completed retrain by trigger.
func (r *Recorder) RecordRetrain(kind, trigger string) {
	r.retrains.WithLabelValues(kind, trigger).Inc()
}

// RecordAlert counts a raised alert.
func (r *Recorder) RecordAlert(alertType string) {
	r.alerts.WithLabelValues(alertType).Inc()
}

// RecordModelRMSE publishes the latest evaluated RMSE.
func (r *Recorder) RecordModelRMSE(symbol, kind string, rmse float64) {
	r.modelRMSE.WithLabelValues(symbol, kind).Set(rmse)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordTick records the last price observed for a symbol.
func (r *Recorder) RecordTick(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}
