package forecast

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sartorproj/rrdiag/timeseries"
)

var epoch = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func series(t *testing.T, values []float64) *timeseries.TimeSeries {
	t.Helper()
	s, err := timeseries.New("load", epoch, time.Minute, values)
	require.NoError(t, err)
	return s
}

func gaussian(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

func ar1(n int, phi float64, seed int64) []float64 {
	noise := gaussian(n, seed)
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		out[i] = phi*out[i-1] + noise[i]
	}
	return out
}

func randomWalk(n int, seed int64) []float64 {
	noise := gaussian(n, seed)
	out := make([]float64, n)
	out[0] = 100
	for i := 1; i < n; i++ {
		out[i] = out[i-1] + noise[i]
	}
	return out
}
