package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, nil)

	r.ObserveStage("detect", 20*time.Millisecond)
	r.ObserveStage("detect", 2*time.Second)
	r.StageFailed("decompose", "invalid_period")
	r.StageFailed("decompose", "invalid_period")
	r.AddSamples("cpu", 1440)
	r.AddSamples("cpu", 0)
	r.ForecastDone("AutoARIMA", nil)
	r.ForecastDone("AutoARIMA", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.stageFailures.WithLabelValues("decompose", "invalid_period")))
	assert.Equal(t, 1440.0, testutil.ToFloat64(r.samples.WithLabelValues("cpu")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecasts.WithLabelValues("AutoARIMA", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.stageDuration))

	expected := `
# HELP rrdiag_pipeline_samples_total Samples analyzed per source
# TYPE rrdiag_pipeline_samples_total counter
rrdiag_pipeline_samples_total{source="cpu"} 1440
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "rrdiag_pipeline_samples_total"))
}

func TestTimer(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, &Config{Namespace: "test", Buckets: prometheus.DefBuckets})

	done := r.Timer("acf")
	done()

	count, err := testutil.GatherAndCount(reg, "test_pipeline_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveStage("detect", time.Second)
		r.StageFailed("detect", "other")
		r.AddSamples("cpu", 10)
		r.ForecastDone("ARIMA(1,0,0)", nil)
		r.Timer("detect")()
	})
}
