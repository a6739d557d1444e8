package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/rrdiag/stats"
	"github.com/sartorproj/rrdiag/timeseries"
)

// Order is a non-seasonal ARIMA order, or the seasonal (P,D,Q) part of a
// seasonal one.
type Order struct {
	P int // autoregressive terms
	D int // differences
	Q int // moving average terms
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// coefBound keeps every AR and MA coefficient inside (-1, 1).
const coefBound = 0.99

// lagTerm is one nonzero coefficient of an expanded lag polynomial.
type lagTerm struct {
	lag  int
	coef float64
}

// Model is a multiplicative seasonal ARIMA(p,d,q)(P,D,Q)[m] model fitted by
// conditional sum of squares. Seasonal differences are applied before the
// ordinary ones.
type Model struct {
	Order Order
	// Seasonal is the seasonal order at lag SeasonLength samples.
	Seasonal     Order
	SeasonLength int
	// IncludeMean estimates a constant for the differenced series; otherwise
	// it is taken to be zero.
	IncludeMean bool

	ARCoeffs  []float64
	MACoeffs  []float64
	SARCoeffs []float64
	SMACoeffs []float64
	Intercept float64
	Variance  float64
	AIC       float64
	AICc      float64
	BIC       float64
	LogLik    float64

	fitted    bool
	data      []float64
	diff      []float64
	diffed    *timeseries.TimeSeries
	residuals []float64
	ar, ma    []lagTerm
	start     int
}

// New returns an unfitted ARIMA(p,d,q) model.
func New(p, d, q int) *Model {
	return &Model{
		Order:    Order{P: p, D: d, Q: q},
		ARCoeffs: make([]float64, max(p, 0)),
		MACoeffs: make([]float64, max(q, 0)),
	}
}

// NewSeasonal returns an unfitted ARIMA(p,d,q)(sp,sd,sq)[period] model.
func NewSeasonal(p, d, q, sp, sd, sq, period int) *Model {
	m := New(p, d, q)
	m.Seasonal = Order{P: sp, D: sd, Q: sq}
	m.SeasonLength = period
	m.SARCoeffs = make([]float64, max(sp, 0))
	m.SMACoeffs = make([]float64, max(sq, 0))
	return m
}

func (m *Model) spec() stats.DifferencingSpec {
	return stats.DifferencingSpec{D: m.Order.D, SeasonalD: m.Seasonal.D, SeasonalLag: m.SeasonLength}
}

func (m *Model) isSeasonal() bool {
	return m.Seasonal != Order{}
}

// maxLag is the longest lag of the expanded AR or MA polynomial.
func (m *Model) maxLag() int {
	return max(m.Order.P+m.Seasonal.P*m.SeasonLength, m.Order.Q+m.Seasonal.Q*m.SeasonLength)
}

func (m *Model) numParams() int {
	k := m.Order.P + m.Order.Q + m.Seasonal.P + m.Seasonal.Q
	if m.IncludeMean {
		k++
	}
	return k
}

// Fit estimates the model on s, which must have no missing samples.
func (m *Model) Fit(s *timeseries.TimeSeries) error {
	if m.Order.P < 0 || m.Order.Q < 0 || m.Seasonal.P < 0 || m.Seasonal.Q < 0 {
		return errors.Wrapf(timeseries.ErrInvalidOrder, "order %s%s", m.Order, m.Seasonal)
	}
	if m.isSeasonal() && m.SeasonLength < 2 {
		return errors.Wrapf(timeseries.ErrInvalidOrder, "seasonal order %s needs a season length of at least 2, got %d", m.Seasonal, m.SeasonLength)
	}
	spec := m.spec()
	if err := spec.Validate(s.Len()); err != nil {
		return err
	}
	if need := spec.Removed() + m.maxLag() + m.numParams() + 10; s.Len() < need {
		return errors.Wrapf(timeseries.ErrInsufficientData, "%s needs %d samples, got %d", m.name(), need, s.Len())
	}

	diffed, err := stats.Difference(s, spec)
	if err != nil {
		return err
	}
	m.data = append([]float64(nil), s.Values...)
	m.diff = diffed.Values
	m.diffed = diffed
	m.ARCoeffs = make([]float64, m.Order.P)
	m.MACoeffs = make([]float64, m.Order.Q)
	m.SARCoeffs = make([]float64, m.Seasonal.P)
	m.SMACoeffs = make([]float64, m.Seasonal.Q)
	m.start = m.maxLag()

	if err := m.fitCSS(diffed); err != nil {
		return err
	}
	m.calculateIC()
	m.fitted = true
	return nil
}

func (m *Model) name() string {
	if m.isSeasonal() {
		return fmt.Sprintf("ARIMA%s%s[%d]", m.Order, m.Seasonal, m.SeasonLength)
	}
	return "ARIMA" + m.Order.String()
}

// fitCSS starts from Yule-Walker AR estimates and minimizes the conditional
// sum of squares with Nelder-Mead. Coefficients are optimized through tanh
// so they stay inside the unit interval.
func (m *Model) fitCSS(diffed *timeseries.TimeSeries) error {
	y := m.diff
	p, q := m.Order.P, m.Order.Q
	sp, sq := m.Seasonal.P, m.Seasonal.Q

	x0 := make([]float64, p+q+sp+sq, m.numParams())
	if p > 0 {
		if acf, err := stats.ACF(diffed, p); err == nil && len(acf) > p {
			for i, c := range yuleWalker(acf, p) {
				x0[i] = toUnbounded(c)
			}
		}
	}
	for i := 0; i < q; i++ {
		x0[p+i] = toUnbounded(0.1)
	}
	if sp > 0 {
		if acf, err := stats.ACF(diffed, m.SeasonLength); err == nil && len(acf) > m.SeasonLength {
			x0[p+q] = toUnbounded(acf[m.SeasonLength])
		}
	}
	for i := 0; i < sq; i++ {
		x0[p+q+sp+i] = toUnbounded(0.1)
	}
	if m.IncludeMean {
		x0 = append(x0, stat.Mean(y, nil))
	}

	resid := make([]float64, len(y))
	if len(x0) > 0 {
		problem := optimize.Problem{
			Func: func(x []float64) float64 {
				m.unpack(x)
				return m.css(y, resid)
			},
		}
		result, err := optimize.Minimize(problem, x0, &optimize.Settings{FuncEvaluations: 200 * (len(x0) + 1)}, &optimize.NelderMead{})
		if result == nil {
			return errors.Wrap(err, "css optimization")
		}
		m.unpack(result.X)
	} else {
		m.unpack(x0)
	}

	sse := m.css(y, resid)
	count := len(y) - m.start
	if k := m.numParams(); count > k {
		m.Variance = sse / float64(count-k)
	} else {
		m.Variance = sse / float64(count)
	}

	m.residuals = resid
	return nil
}

func toUnbounded(c float64) float64 {
	return math.Atanh(math.Max(-coefBound, math.Min(coefBound, c)) / coefBound * 0.999)
}

// unpack copies the optimizer vector into the coefficients and rebuilds the
// expanded polynomials.
func (m *Model) unpack(x []float64) {
	i := 0
	for _, coeffs := range [][]float64{m.ARCoeffs, m.MACoeffs, m.SARCoeffs, m.SMACoeffs} {
		for j := range coeffs {
			coeffs[j] = coefBound * math.Tanh(x[i])
			i++
		}
	}
	if m.IncludeMean {
		m.Intercept = x[i]
	} else {
		m.Intercept = 0
	}
	m.ar = expand(m.ARCoeffs, m.SARCoeffs, m.SeasonLength, -1)
	m.ma = expand(m.MACoeffs, m.SMACoeffs, m.SeasonLength, 1)
}

// expand multiplies (1 + sign*Σ a_i B^i)(1 + sign*Σ s_j B^{j*period}) and
// returns sign times its nonzero coefficients past lag 0, so AR and MA terms
// are both added to a prediction.
func expand(a, s []float64, period int, sign float64) []lagTerm {
	left := make([]float64, len(a)+1)
	left[0] = 1
	for i, c := range a {
		left[i+1] = sign * c
	}
	right := []float64{1}
	if len(s) > 0 {
		right = make([]float64, len(s)*period+1)
		right[0] = 1
		for j, c := range s {
			right[(j+1)*period] = sign * c
		}
	}
	poly := polyMul(left, right)

	terms := make([]lagTerm, 0, len(a)+len(s)+len(a)*len(s))
	for lag := 1; lag < len(poly); lag++ {
		if poly[lag] != 0 {
			terms = append(terms, lagTerm{lag: lag, coef: sign * poly[lag]})
		}
	}
	return terms
}

// css fills resid with one-step errors and returns their sum of squares from
// the first sample with a full set of lags. Pre-sample errors are zero.
func (m *Model) css(y, resid []float64) float64 {
	sse := 0.0
	for t := range y {
		if t < m.start {
			resid[t] = y[t] - m.Intercept
			continue
		}
		pred := m.Intercept
		for _, term := range m.ar {
			pred += term.coef * (y[t-term.lag] - m.Intercept)
		}
		for _, term := range m.ma {
			if t-term.lag >= m.start {
				pred += term.coef * resid[t-term.lag]
			}
		}
		resid[t] = y[t] - pred
		sse += resid[t] * resid[t]
	}
	return sse
}

// calculateIC derives the Gaussian log-likelihood and information criteria
// from the conditional residuals.
func (m *Model) calculateIC() {
	n := len(m.residuals) - m.start
	sse := 0.0
	for _, r := range m.residuals[m.start:] {
		sse += r * r
	}

	k := m.numParams() + 1
	if sse <= 0 || n <= 0 {
		m.LogLik = math.Inf(1)
	} else {
		m.LogLik = -float64(n) / 2 * (math.Log(2*math.Pi*sse/float64(n)) + 1)
	}
	ic := informationCriteria(m.LogLik, n, k)
	m.AIC, m.AICc, m.BIC = ic.AIC, ic.AICc, ic.BIC
}

// Predict returns point forecasts for the next steps samples on the original
// scale.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.Wrapf(ErrInvalidHorizon, "%d steps", steps)
	}

	y := m.diff
	n := len(y)

	ext := make([]float64, n+steps)
	copy(ext, y)
	extResid := make([]float64, n+steps)
	copy(extResid, m.residuals)

	for t := n; t < n+steps; t++ {
		pred := m.Intercept
		for _, term := range m.ar {
			if t-term.lag >= 0 {
				pred += term.coef * (ext[t-term.lag] - m.Intercept)
			}
		}
		for _, term := range m.ma {
			if t-term.lag >= 0 {
				pred += term.coef * extResid[t-term.lag]
			}
		}
		ext[t] = pred
	}

	return stats.Undifference(m.data, ext[n:], m.spec()), nil
}

// StdErrors returns the forecast standard errors for the next steps samples,
// from the psi weights of the model with its differencing folded into the
// autoregressive polynomial.
func (m *Model) StdErrors(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.Wrapf(ErrInvalidHorizon, "%d steps", steps)
	}

	ar := []float64{1}
	for _, term := range m.ar {
		for len(ar) <= term.lag {
			ar = append(ar, 0)
		}
		ar[term.lag] = -term.coef
	}
	for i := 0; i < m.Seasonal.D; i++ {
		seasonal := make([]float64, m.SeasonLength+1)
		seasonal[0], seasonal[m.SeasonLength] = 1, -1
		ar = polyMul(ar, seasonal)
	}
	for i := 0; i < m.Order.D; i++ {
		ar = polyMul(ar, []float64{1, -1})
	}
	ma := make([]float64, steps)
	for _, term := range m.ma {
		if term.lag < steps {
			ma[term.lag] = term.coef
		}
	}

	psi := make([]float64, steps)
	psi[0] = 1
	for j := 1; j < steps; j++ {
		psi[j] = ma[j]
		for i := 1; i < len(ar) && i <= j; i++ {
			psi[j] -= ar[i] * psi[j-i]
		}
	}

	sigma := math.Sqrt(m.Variance)
	se := make([]float64, steps)
	acc := 0.0
	for h := range se {
		acc += psi[h] * psi[h]
		se[h] = sigma * math.Sqrt(acc)
	}
	return se, nil
}

func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

// Residuals returns the one-step errors on the input index. Samples consumed
// by differencing are NaN.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	out := nanSlice(len(m.data))
	copy(out[len(m.data)-len(m.residuals):], m.residuals)
	return out
}

// FittedValues returns the one-step predictions on the input index. Samples
// consumed by differencing are NaN.
func (m *Model) FittedValues() []float64 {
	if !m.fitted {
		return nil
	}
	out := nanSlice(len(m.data))
	offset := len(m.data) - len(m.residuals)
	for t, r := range m.residuals {
		out[offset+t] = m.data[offset+t] - r
	}
	return out
}

// Summary describes the fitted model, with a Ljung-Box test of its
// residuals.
func (m *Model) Summary(name string) *Summary {
	if !m.fitted {
		return nil
	}
	return &Summary{
		Model:         name,
		Order:         m.Order,
		SeasonalOrder: m.Seasonal,
		Seasonal:      stats.DifferencingSpec{SeasonalD: m.Seasonal.D, SeasonalLag: m.SeasonLength},
		ARCoeffs:      append([]float64(nil), m.ARCoeffs...),
		MACoeffs:      append([]float64(nil), m.MACoeffs...),
		SARCoeffs:     append([]float64(nil), m.SARCoeffs...),
		SMACoeffs:     append([]float64(nil), m.SMACoeffs...),
		Intercept:     m.Intercept,
		Variance:      m.Variance,
		AIC:           m.AIC,
		AICc:          m.AICc,
		BIC:           m.BIC,
		LogLik:        m.LogLik,
		NObs:          len(m.data),
		LjungBox:      residualDiagnostics(m.diffed, m.residuals[m.start:], m.numParams()),
	}
}

func (m *Model) result(s *timeseries.TimeSeries, steps int, levels []float64) (*Result, error) {
	point, err := m.Predict(steps)
	if err != nil {
		return nil, err
	}
	se, err := m.StdErrors(steps)
	if err != nil {
		return nil, err
	}
	name := m.name()
	res, err := newResult(name, s, m.FittedValues(), point, se, levels)
	if err != nil {
		return nil, err
	}
	res.Summary = m.Summary(name)
	return res, nil
}

// ARIMA forecasts with a fixed-order model. A nonzero Seasonal order needs
// SeasonLength in samples.
type ARIMA struct {
	Order        Order
	Seasonal     Order
	SeasonLength int
	IncludeMean  bool
}

func (a ARIMA) model() *Model {
	m := NewSeasonal(a.Order.P, a.Order.D, a.Order.Q, a.Seasonal.P, a.Seasonal.D, a.Seasonal.Q, a.SeasonLength)
	m.IncludeMean = a.IncludeMean
	return m
}

// Name implements Forecaster.
func (a ARIMA) Name() string {
	return a.model().name()
}

// Forecast implements Forecaster.
func (a ARIMA) Forecast(ctx context.Context, s *timeseries.TimeSeries, req Request) (*Result, error) {
	steps, levels, err := prepare(s, req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := a.model()
	if err := m.Fit(s); err != nil {
		return nil, errors.Wrapf(err, "fit %s", a.Name())
	}
	return m.result(s, steps, levels)
}

// yuleWalker solves the Yule-Walker equations for order AR coefficients with
// the Levinson-Durbin recursion.
func yuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	phi := make([]float64, order)
	phi[0] = acf[1]
	v := 1 - phi[0]*phi[0]

	for i := 1; i < order; i++ {
		if v <= 0 {
			break
		}
		lambda := acf[i+1]
		for j := 0; j < i; j++ {
			lambda -= phi[j] * acf[i-j]
		}
		lambda /= v

		next := make([]float64, i+1)
		for j := 0; j < i; j++ {
			next[j] = phi[j] - lambda*phi[i-1-j]
		}
		next[i] = lambda
		copy(phi, next)

		v *= 1 - lambda*lambda
	}
	return phi
}
