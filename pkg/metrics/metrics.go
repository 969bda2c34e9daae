package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StepsTotal counts every scheduler.Step call, regardless of outcome.
	StepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppppl_steps_total",
			Help: "Total number of scheduler steps executed",
		},
	)

	// TriggeredTotal counts triggered instances by the name of the block
	// that fired.
	TriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppppl_triggered_total",
			Help: "Total number of triggered block instances by block name",
		},
		[]string{"block"},
	)

	// DeadlocksTotal counts steps that found no eligible instance.
	DeadlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppppl_deadlocks_total",
			Help: "Total number of steps that found no eligible block instance",
		},
	)

	// FaultsTotal counts steps that aborted with an evaluation or storage
	// error, by error kind.
	FaultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppppl_faults_total",
			Help: "Total number of step faults by error kind",
		},
		[]string{"kind"},
	)

	// StepDuration measures wall time per scheduler.Step call.
	StepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ppppl_step_duration_seconds",
			Help:    "Time taken to execute one scheduler step, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BlockDuration measures wall time to stage and apply a triggered
	// block's assignments, by block name, so a slow assignment on one block
	// doesn't hide behind the aggregate StepDuration.
	BlockDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ppppl_block_duration_seconds",
			Help:    "Time taken to stage and apply a triggered block's assignments, in seconds, by block name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"block"},
	)
)

func init() {
	prometheus.MustRegister(StepsTotal)
	prometheus.MustRegister(TriggeredTotal)
	prometheus.MustRegister(DeadlocksTotal)
	prometheus.MustRegister(FaultsTotal)
	prometheus.MustRegister(StepDuration)
	prometheus.MustRegister(BlockDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
