package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal   *prometheus.CounterVec
	signalsTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	drawdown     *prometheus.GaugeVec
	stageLatency *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meanrev_ticks_total",
				Help: "Total number of pipeline ticks completed",
			},
			[]string{"pair"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meanrev_signals_total",
				Help: "Total number of trade signals emitted",
			},
			[]string{"pair", "action"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meanrev_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meanrev_last_price",
				Help: "Last observed price for a pair",
			},
			[]string{"pair"},
		),
		drawdown: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meanrev_drawdown",
				Help: "Current drawdown fraction from the high-water mark",
			},
			[]string{"pair"},
		),
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meanrev_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}

// RecordTick records one completed pipeline tick.
func (r *Recorder) RecordTick(pair string) {
	r.ticksTotal.WithLabelValues(pair).Inc()
}

// RecordSignal records an emitted trade signal.
func (r *Recorder) RecordSignal(pair, action string) {
	r.signalsTotal.WithLabelValues(pair, action).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a pair.
func (r *Recorder) RecordLastPrice(pair string, price float64) {
	r.lastPrice.WithLabelValues(pair).Set(price)
}

// RecordStageLatency records pipeline stage latency in seconds.
func (r *Recorder) RecordStageLatency(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordDrawdown records the current drawdown for a pair.
func (r *Recorder) RecordDrawdown(pair string, dd float64) {
	r.drawdown.WithLabelValues(pair).Set(dd)
}
