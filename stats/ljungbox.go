package stats

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/rrdiag/timeseries"
)

// LjungBoxResult is the outcome of a Ljung-Box portmanteau test.
type LjungBoxResult struct {
	Statistic float64
	PValue    float64
	Lags      int
	DOF       int
}

// WhiteNoise reports whether the no-autocorrelation null is retained.
func (r *LjungBoxResult) WhiteNoise() bool {
	return r.PValue >= SignificanceLevel
}

// LjungBox tests s for autocorrelation up to lags. fitdf is the number of
// parameters of the model s is a residual of (p+q for ARIMA); it reduces the
// degrees of freedom, which never drop below 1.
func LjungBox(s *timeseries.TimeSeries, lags, fitdf int) (*LjungBoxResult, error) {
	n := s.Len()
	if n < minRegressionObs {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "ljung-box needs at least %d samples, got %d", minRegressionObs, n)
	}
	if lags < 1 {
		return nil, errors.Errorf("ljung-box lags %d must be positive", lags)
	}
	if lags >= n {
		lags = n - 1
	}

	acf, err := ACF(s, lags)
	if err != nil {
		return nil, err
	}

	q := 0.0
	for k := 1; k <= lags; k++ {
		q += acf[k] * acf[k] / float64(n-k)
	}
	q *= float64(n) * float64(n+2)

	dof := max(lags-fitdf, 1)
	chi := distuv.ChiSquared{K: float64(dof)}
	return &LjungBoxResult{
		Statistic: q,
		PValue:    chi.Survival(q),
		Lags:      lags,
		DOF:       dof,
	}, nil
}
