package stats

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/rrdiag/timeseries"
)

// SignificanceLevel is the p-value threshold of every test in this package.
const SignificanceLevel = 0.05

// minRegressionObs is the fewest observations an ADF regression is run on.
const minRegressionObs = 10

// ADFResult is the outcome of an Augmented Dickey-Fuller test with a
// constant term. The null hypothesis is a unit root.
type ADFResult struct {
	Statistic      float64
	PValue         float64
	Lags           int
	NObs           int
	CriticalValues map[string]float64 // keyed "1%", "5%", "10%"
	IsStationary   bool
}

// ADF runs the Augmented Dickey-Fuller test on s, regressing
//
//	Δy_t = α + β·y_{t-1} + Σ_{i=1..lag} γ_i·Δy_{t-i}
//
// by ordinary least squares. The statistic is β/se(β) and the p-value is
// MacKinnon's (1994) approximation.
//
// maxLag > 0 fixes the lag. Otherwise the lag minimizing AIC is chosen from
// 0..min(ceil(12*(n/100)^(1/4)), n/2-2), every candidate being fitted on the
// sample left by the largest one; the selected regression is then refitted
// on all the observations its lag allows.
//
// The series must have no missing samples. Too few observations for the
// regression, or a degenerate (for example constant) series, fails with
// ErrInsufficientData.
func ADF(s *timeseries.TimeSeries, maxLag int) (*ADFResult, error) {
	if s.Missing() > 0 {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "adf: series %q has %d missing samples", s.Name, s.Missing())
	}
	lag := maxLag
	if lag <= 0 {
		var err error
		if lag, err = adfAutoLag(s.Values); err != nil {
			return nil, err
		}
	}

	x, target, err := adfDesign(s.Values, lag, lag)
	if err != nil {
		return nil, err
	}
	nObs, _ := x.Dims()

	beta, se, err := ols(x, target)
	if err != nil {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "adf: %v", err)
	}

	statistic := beta[1] / se[1]
	pValue := mackinnonPValue(statistic)
	return &ADFResult{
		Statistic:      statistic,
		PValue:         pValue,
		Lags:           lag,
		NObs:           nObs,
		CriticalValues: mackinnonCriticalValues(nObs),
		IsStationary:   pValue < SignificanceLevel,
	}, nil
}

// adfDesign builds the ADF regression with lag lagged differences, dropping
// the first trim+1 samples. Columns are the constant, y_{t-1} and
// Δy_{t-1..t-lag}.
func adfDesign(y []float64, lag, trim int) (*mat.Dense, *mat.VecDense, error) {
	n := len(y)
	nObs := n - trim - 1
	k := lag + 2
	if nObs < minRegressionObs || nObs <= k {
		return nil, nil, errors.Wrapf(timeseries.ErrInsufficientData, "adf: %d samples leave %d observations for %d regressors", n, nObs, k)
	}

	dy := diffValues(y, 1)
	x := mat.NewDense(nObs, k, nil)
	target := mat.NewVecDense(nObs, nil)
	for i := 0; i < nObs; i++ {
		t := i + trim // index into dy
		target.SetVec(i, dy[t])
		x.Set(i, 0, 1)
		x.Set(i, 1, y[t])
		for j := 1; j <= lag; j++ {
			x.Set(i, 1+j, dy[t-j])
		}
	}
	return x, target, nil
}

// adfAutoLag returns the lag with the lowest AIC. Ties go to the shorter lag
// and candidates whose regression is singular are skipped.
func adfAutoLag(y []float64) (int, error) {
	n := len(y)
	maxLag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	maxLag = min(maxLag, n/2-2)
	if maxLag < 0 {
		return 0, errors.Wrapf(timeseries.ErrInsufficientData, "adf: %d samples are too few to select a lag", n)
	}

	x, target, err := adfDesign(y, maxLag, maxLag)
	if err != nil {
		return 0, err
	}
	nObs, _ := x.Dims()

	best, bestAIC := 0, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		k := lag + 2
		var coef, resid mat.VecDense
		sub := x.Slice(0, nObs, 0, k)
		if err := coef.SolveVec(sub, target); err != nil {
			continue
		}
		resid.MulVec(sub, &coef)
		resid.SubVec(target, &resid)
		ssr := mat.Dot(&resid, &resid)
		if ssr <= 0 {
			continue
		}
		if aic := float64(nObs)*math.Log(ssr/float64(nObs)) + 2*float64(k); aic < bestAIC {
			best, bestAIC = lag, aic
		}
	}
	return best, nil
}

// ols fits target on x and returns the coefficients with their standard
// errors.
func ols(x *mat.Dense, target *mat.VecDense) (beta, se []float64, err error) {
	nObs, k := x.Dims()

	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok || chol.Cond() > 1e14 {
		return nil, nil, errors.New("degenerate regression")
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), target)

	var coef mat.VecDense
	if err := chol.SolveVecTo(&coef, &xty); err != nil {
		return nil, nil, errors.Wrap(err, "solve normal equations")
	}

	var resid mat.VecDense
	resid.MulVec(x, &coef)
	resid.SubVec(target, &resid)
	s2 := mat.Dot(&resid, &resid) / float64(nObs-k)

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, nil, errors.Wrap(err, "invert normal equations")
	}

	beta = make([]float64, k)
	se = make([]float64, k)
	for i := 0; i < k; i++ {
		beta[i] = coef.AtVec(i)
		se[i] = math.Sqrt(s2 * inv.At(i, i))
		if se[i] == 0 || math.IsNaN(se[i]) {
			return nil, nil, errors.New("degenerate regression: zero standard error")
		}
	}
	return beta, se, nil
}

// MacKinnon (1994) response surface for the constant-only, single-series
// case.
var (
	adfSmallP = []float64{2.1659, 1.4412, 0.038269}
	adfLargeP = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

const (
	adfTauMax  = 2.74
	adfTauMin  = -18.83
	adfTauStar = -1.61
)

func mackinnonPValue(statistic float64) float64 {
	switch {
	case statistic > adfTauMax:
		return 1
	case statistic < adfTauMin:
		return 0
	}
	coef := adfLargeP
	if statistic <= adfTauStar {
		coef = adfSmallP
	}
	return distuv.UnitNormal.CDF(polyval(coef, statistic))
}

// mackinnonCriticalValues returns MacKinnon's (2010) finite-sample critical
// values for the constant-only regression with nObs observations.
func mackinnonCriticalValues(nObs int) map[string]float64 {
	surfaces := map[string][]float64{
		"1%":  {-3.43035, -6.5393, -16.786, -79.433},
		"5%":  {-2.86154, -2.8903, -4.234, -40.040},
		"10%": {-2.56677, -1.5384, -2.809, 0},
	}
	inv := 1 / float64(nObs)
	out := make(map[string]float64, len(surfaces))
	for level, c := range surfaces {
		out[level] = polyval(c, inv)
	}
	return out
}

// polyval evaluates c[0] + c[1]x + c[2]x² + ...
func polyval(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}

// Stationarity is the advisory classification of a (possibly differenced)
// series.
type Stationarity struct {
	*ADFResult
	// Order is the ordinary differencing order the tested series carries.
	Order int
	// SeasonalOrder is the seasonal differencing order the tested series
	// carries. It is kept as is by the suggestion.
	SeasonalOrder int
}

// Stationary reports whether the unit-root null was rejected.
func (s *Stationarity) Stationary() bool {
	return s.IsStationary
}

// Suggestion is the differencing advice for the series: the current order
// when stationary, otherwise at least one more ordinary difference. Seasonal
// differences already applied are prefixed, as in "D=1 d>=1".
func (s *Stationarity) Suggestion() string {
	d := fmt.Sprintf("d=%d", s.Order)
	if !s.IsStationary {
		d = fmt.Sprintf("d>=%d", s.Order+1)
	}
	if s.SeasonalOrder > 0 {
		return fmt.Sprintf("D=%d %s", s.SeasonalOrder, d)
	}
	return d
}

// Evaluate runs ADF with the AIC-selected lag on s, which has already been
// differenced order times. The result is deterministic for identical input.
func Evaluate(s *timeseries.TimeSeries, order int) (*Stationarity, error) {
	res, err := ADF(s, 0)
	if err != nil {
		return nil, err
	}
	return &Stationarity{ADFResult: res, Order: order}, nil
}

// EvaluateDifferenced is Evaluate for a series produced by Difference with
// spec.
func EvaluateDifferenced(s *timeseries.TimeSeries, spec DifferencingSpec) (*Stationarity, error) {
	st, err := Evaluate(s, spec.D)
	if err != nil {
		return nil, err
	}
	st.SeasonalOrder = spec.SeasonalD
	return st, nil
}

// KPSSRegression selects the deterministic terms removed before KPSS.
type KPSSRegression string

const (
	// KPSSLevel tests stationarity around a constant.
	KPSSLevel KPSSRegression = "c"
	// KPSSTrend tests stationarity around a linear trend.
	KPSSTrend KPSSRegression = "ct"
)

// KPSSResult is the outcome of a KPSS test. The null hypothesis is
// stationarity, so IsStationary is true when the null is not rejected.
type KPSSResult struct {
	Statistic      float64
	PValue         float64
	Lags           int
	CriticalValues map[string]float64
	IsStationary   bool
}

// KPSS critical values from Kwiatkowski et al. (1992), table 1.
var kpssTables = map[KPSSRegression][]float64{
	KPSSLevel: {0.347, 0.463, 0.574, 0.739},
	KPSSTrend: {0.119, 0.146, 0.176, 0.216},
}

var kpssLevels = []float64{0.10, 0.05, 0.025, 0.01}

// KPSS runs the Kwiatkowski-Phillips-Schmidt-Shin test with a Newey-West
// long-run variance using Bartlett weights. nlags <= 0 selects
// ceil(12*(n/100)^(1/4)). The p-value is interpolated from the published
// table and clipped to [0.01, 0.10].
func KPSS(s *timeseries.TimeSeries, regression KPSSRegression, nlags int) (*KPSSResult, error) {
	n := s.Len()
	if n < minRegressionObs {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "kpss needs at least %d samples, got %d", minRegressionObs, n)
	}
	if s.Missing() > 0 {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "kpss: series %q has %d missing samples", s.Name, s.Missing())
	}
	if regression == "" {
		regression = KPSSLevel
	}
	crit, ok := kpssTables[regression]
	if !ok {
		return nil, errors.Errorf("kpss: unknown regression %q", regression)
	}
	if nlags <= 0 {
		nlags = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	if nlags >= n {
		nlags = n - 1
	}

	resid := make([]float64, n)
	if regression == KPSSTrend {
		t := make([]float64, n)
		for i := range t {
			t[i] = float64(i)
		}
		alpha, beta := stat.LinearRegression(t, s.Values, nil, false)
		for i, v := range s.Values {
			resid[i] = v - alpha - beta*t[i]
		}
	} else {
		mean := stat.Mean(s.Values, nil)
		for i, v := range s.Values {
			resid[i] = v - mean
		}
	}

	var eta, partial float64
	for _, r := range resid {
		partial += r
		eta += partial * partial
	}

	s2 := 0.0
	for _, r := range resid {
		s2 += r * r
	}
	s2 /= float64(n)
	for l := 1; l <= nlags; l++ {
		cov := 0.0
		for i := l; i < n; i++ {
			cov += resid[i] * resid[i-l]
		}
		s2 += 2 * (1 - float64(l)/float64(nlags+1)) * cov / float64(n)
	}
	if s2 <= 0 {
		return nil, errors.Wrap(timeseries.ErrInsufficientData, "kpss: zero long-run variance")
	}

	statistic := eta / (float64(n) * float64(n) * s2)

	var table interp.PiecewiseLinear
	if err := table.Fit(crit, kpssLevels); err != nil {
		return nil, errors.Wrap(err, "kpss p-value table")
	}
	pValue := table.Predict(statistic)

	return &KPSSResult{
		Statistic: statistic,
		PValue:    pValue,
		Lags:      nlags,
		CriticalValues: map[string]float64{
			"10%":  crit[0],
			"5%":   crit[1],
			"2.5%": crit[2],
			"1%":   crit[3],
		},
		IsStationary: pValue >= SignificanceLevel,
	}, nil
}
