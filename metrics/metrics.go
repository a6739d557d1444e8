// Package metrics exposes Prometheus collectors for the analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config names and buckets the collectors.
type Config struct {
	Namespace   string
	ConstLabels map[string]string
	// Buckets are the stage duration histogram buckets, in seconds.
	Buckets []float64
}

// DefaultConfig returns the rrdiag namespace with buckets from 1ms to 30s.
func DefaultConfig() *Config {
	return &Config{
		Namespace: "rrdiag",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}
}

// Recorder records pipeline activity. A nil *Recorder discards everything,
// so callers never need to check whether metrics are enabled.
type Recorder struct {
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	samples       *prometheus.CounterVec
	forecasts     *prometheus.CounterVec
}

// New registers the collectors on reg. A nil config selects DefaultConfig.
// Registering twice on the same registry panics, as promauto does.
func New(reg prometheus.Registerer, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	factory := promauto.With(reg)

	return &Recorder{
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   "pipeline",
				Name:        "stage_duration_seconds",
				Help:        "Time spent in each analysis stage",
				ConstLabels: config.ConstLabels,
				Buckets:     config.Buckets,
			},
			[]string{"stage"},
		),
		stageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   "pipeline",
				Name:        "stage_failures_total",
				Help:        "Analysis stages that returned an error, by error kind",
				ConstLabels: config.ConstLabels,
			},
			[]string{"stage", "kind"},
		),
		samples: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   "pipeline",
				Name:        "samples_total",
				Help:        "Samples analyzed per source",
				ConstLabels: config.ConstLabels,
			},
			[]string{"source"},
		),
		forecasts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   "forecast",
				Name:        "runs_total",
				Help:        "Forecasts produced, by model and outcome",
				ConstLabels: config.ConstLabels,
			},
			[]string{"model", "outcome"},
		),
	}
}

// ObserveStage records the duration of one stage run.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// StageFailed counts a failed stage.
func (r *Recorder) StageFailed(stage, kind string) {
	if r == nil {
		return
	}
	r.stageFailures.WithLabelValues(stage, kind).Inc()
}

// AddSamples counts the samples of a source entering the pipeline.
func (r *Recorder) AddSamples(source string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.samples.WithLabelValues(source).Add(float64(n))
}

// ForecastDone counts a forecast run; err decides the outcome label.
func (r *Recorder) ForecastDone(model string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.forecasts.WithLabelValues(model, outcome).Inc()
}

// Timer measures one stage. Call the returned function when the stage ends.
func (r *Recorder) Timer(stage string) func() {
	start := time.Now()
	return func() {
		r.ObserveStage(stage, time.Since(start))
	}
}
