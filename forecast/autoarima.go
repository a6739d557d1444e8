package forecast

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/sartorproj/rrdiag/stats"
	"github.com/sartorproj/rrdiag/timeseries"
)

// Stationarity tests accepted by NDiffs.
const (
	TestKPSS = "kpss"
	TestADF  = "adf"
)

// Information criteria accepted by AutoARIMA.
const (
	CriterionAIC  = "aic"
	CriterionAICc = "aicc"
	CriterionBIC  = "bic"
)

// seasonalStrengthThreshold is the STL seasonal strength above which one
// seasonal difference is taken.
const seasonalStrengthThreshold = 0.64

type criteria struct {
	AIC, AICc, BIC float64
}

// informationCriteria derives AIC, AICc and BIC from a log-likelihood with k
// estimated parameters over n observations. AICc is +Inf when n <= k+1.
func informationCriteria(logLik float64, n, k int) criteria {
	aic := -2*logLik + 2*float64(k)
	c := criteria{
		AIC:  aic,
		AICc: math.Inf(1),
		BIC:  -2*logLik + float64(k)*math.Log(float64(n)),
	}
	if n-k-1 > 0 {
		c.AICc = aic + 2*float64(k)*float64(k+1)/float64(n-k-1)
	}
	return c
}

// NDiffs returns the number of ordinary differences, at most maxD, after
// which test reports s stationary. KPSS is the default test. Differencing
// stops early when the series becomes too short to test.
func NDiffs(s *timeseries.TimeSeries, maxD int, test string) (int, error) {
	if maxD < 0 {
		return 0, errors.Wrapf(timeseries.ErrInvalidOrder, "max d %d", maxD)
	}
	if test == "" {
		test = TestKPSS
	}
	if test != TestKPSS && test != TestADF {
		return 0, errors.Errorf("unknown stationarity test %q", test)
	}

	current := s
	for d := 0; d < maxD; d++ {
		stationary, err := isStationary(current, test)
		if err != nil {
			if errors.Is(err, timeseries.ErrInsufficientData) {
				return d, nil
			}
			return 0, err
		}
		if stationary {
			return d, nil
		}
		current = current.Diff()
	}
	return maxD, nil
}

func isStationary(s *timeseries.TimeSeries, test string) (bool, error) {
	if test == TestADF {
		res, err := stats.ADF(s, 0)
		if err != nil {
			return false, err
		}
		return res.IsStationary, nil
	}
	res, err := stats.KPSS(s, stats.KPSSLevel, 0)
	if err != nil {
		return false, err
	}
	return res.IsStationary, nil
}

// NSDiffs returns 1 when the STL seasonal strength of s at period samples
// reaches 0.64, and 0 otherwise or when s holds fewer than two periods.
func NSDiffs(s *timeseries.TimeSeries, period int) (int, error) {
	if period < 2 {
		return 0, errors.Wrapf(timeseries.ErrInvalidPeriod, "season length %d", period)
	}
	if s.Len() < 2*period {
		return 0, nil
	}
	fit, err := stats.STL(s, period, stats.STLOptions{})
	if err != nil {
		return 0, err
	}
	if fit.SeasonalStrength() >= seasonalStrengthThreshold {
		return 1, nil
	}
	return 0, nil
}

// AutoARIMA selects the differencing orders by testing and the ARMA orders
// by a stepwise information-criterion search, then forecasts with the best
// model. Zero fields select MaxP=5, MaxQ=5, MaxD=2, AICc and KPSS; with a
// SeasonLength MaxSP and MaxSQ default to 1.
type AutoARIMA struct {
	MaxP int
	MaxQ int
	MaxD int
	// SeasonLength in samples enables the seasonal search when > 1.
	SeasonLength int
	MaxSP        int
	MaxSQ        int
	Criterion    string
	Test         string
}

// Name implements Forecaster.
func (a AutoARIMA) Name() string {
	return "AutoARIMA"
}

func (a AutoARIMA) withDefaults() AutoARIMA {
	if a.MaxP == 0 {
		a.MaxP = 5
	}
	if a.MaxQ == 0 {
		a.MaxQ = 5
	}
	if a.MaxD == 0 {
		a.MaxD = 2
	}
	if a.SeasonLength > 1 {
		if a.MaxSP == 0 {
			a.MaxSP = 1
		}
		if a.MaxSQ == 0 {
			a.MaxSQ = 1
		}
	} else {
		a.SeasonLength, a.MaxSP, a.MaxSQ = 0, 0, 0
	}
	if a.Criterion == "" {
		a.Criterion = CriterionAICc
	}
	if a.Test == "" {
		a.Test = TestKPSS
	}
	return a
}

func (a AutoARIMA) score(m *Model) float64 {
	switch a.Criterion {
	case CriterionAIC:
		return m.AIC
	case CriterionBIC:
		return m.BIC
	default:
		return m.AICc
	}
}

// Forecast implements Forecaster.
func (a AutoARIMA) Forecast(ctx context.Context, s *timeseries.TimeSeries, req Request) (*Result, error) {
	steps, levels, err := prepare(s, req)
	if err != nil {
		return nil, err
	}
	a = a.withDefaults()
	switch a.Criterion {
	case CriterionAIC, CriterionAICc, CriterionBIC:
	default:
		return nil, errors.Errorf("unknown information criterion %q", a.Criterion)
	}

	sd := 0
	if a.SeasonLength > 1 {
		if sd, err = NSDiffs(s, a.SeasonLength); err != nil {
			return nil, err
		}
	}
	base := s
	if sd > 0 {
		if base, err = stats.Difference(s, stats.DifferencingSpec{SeasonalD: sd, SeasonalLag: a.SeasonLength}); err != nil {
			return nil, err
		}
	}
	d, err := NDiffs(base, a.MaxD, a.Test)
	if err != nil {
		return nil, err
	}

	best, evaluated, err := a.stepwise(ctx, s, d, sd)
	if err != nil {
		return nil, err
	}

	res, err := best.result(s, steps, levels)
	if err != nil {
		return nil, err
	}
	res.Summary.ModelsEvaluated = evaluated
	return res, nil
}

// stepwise starts from a handful of small models and moves to the best
// neighbour until no neighbour improves the criterion. Models that fail to
// fit are skipped.
func (a AutoARIMA) stepwise(ctx context.Context, s *timeseries.TimeSeries, d, sd int) (*Model, int, error) {
	type candidate struct{ p, q, sp, sq int }

	tried := make(map[candidate]bool)
	var best *Model
	bestScore := math.Inf(1)
	evaluated := 0

	try := func(c candidate) (bool, error) {
		if c.p < 0 || c.p > a.MaxP || c.q < 0 || c.q > a.MaxQ ||
			c.sp < 0 || c.sp > a.MaxSP || c.sq < 0 || c.sq > a.MaxSQ || tried[c] {
			return false, nil
		}
		tried[c] = true
		if err := ctx.Err(); err != nil {
			return false, err
		}
		m := NewSeasonal(c.p, d, c.q, c.sp, sd, c.sq, a.SeasonLength)
		m.IncludeMean = d+sd == 0
		if err := m.Fit(s); err != nil {
			return false, nil
		}
		evaluated++
		if score := a.score(m); score < bestScore {
			best, bestScore = m, score
			return true, nil
		}
		return false, nil
	}

	starts := []candidate{{0, 0, 0, 0}, {1, 0, 1, 0}, {0, 1, 0, 1}, {1, 1, 1, 1}, {2, 2, 1, 1}}
	if a.SeasonLength == 0 {
		starts = []candidate{{0, 0, 0, 0}, {1, 0, 0, 0}, {0, 1, 0, 0}, {1, 1, 0, 0}, {2, 2, 0, 0}}
	}
	for _, c := range starts {
		if _, err := try(c); err != nil {
			return nil, 0, err
		}
	}

	for improved := best != nil; improved; {
		improved = false
		c := candidate{best.Order.P, best.Order.Q, best.Seasonal.P, best.Seasonal.Q}
		neighbours := []candidate{
			{c.p + 1, c.q, c.sp, c.sq}, {c.p - 1, c.q, c.sp, c.sq},
			{c.p, c.q + 1, c.sp, c.sq}, {c.p, c.q - 1, c.sp, c.sq},
			{c.p + 1, c.q + 1, c.sp, c.sq}, {c.p - 1, c.q - 1, c.sp, c.sq},
			{c.p, c.q, c.sp + 1, c.sq}, {c.p, c.q, c.sp - 1, c.sq},
			{c.p, c.q, c.sp, c.sq + 1}, {c.p, c.q, c.sp, c.sq - 1},
		}
		for _, n := range neighbours {
			better, err := try(n)
			if err != nil {
				return nil, 0, err
			}
			improved = improved || better
		}
	}

	if best == nil {
		return nil, evaluated, errors.Wrapf(timeseries.ErrInsufficientData, "no ARIMA model with d=%d D=%d could be fitted to %q", d, sd, s.Name)
	}
	return best, evaluated, nil
}
