package stats

import (
	"math"
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

// weyl returns the centered fractional parts of i*(√5-1)/2: bounded,
// mean-reverting and reproducible.
func weyl(n int) []float64 {
	a := (math.Sqrt(5) - 1) / 2
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Mod(float64(i)*a, 1) - 0.5
	}
	return out
}

func generate(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func gaussian(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}
