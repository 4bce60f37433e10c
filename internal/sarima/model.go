// Package sarima implements seasonal ARIMA estimation, automated order
// search, and residual diagnostics for monthly series.
package sarima

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/soomorita/macro-micro-linkage/internal/timeseries"
)

// Spec identifies a SARIMA specification (p,d,q)(P,D,Q)[m].
type Spec struct {
	P, D, Q    int // non-seasonal AR, difference, MA orders
	SP, SD, SQ int // seasonal AR, difference, MA orders
	M          int // seasonal period
}

// Params returns the number of estimated AR/MA parameters, the count the
// Ljung-Box degrees-of-freedom correction uses.
func (s Spec) Params() int {
	return s.P + s.Q + s.SP + s.SQ
}

func (s Spec) String() string {
	return fmt.Sprintf("(%d,%d,%d)(%d,%d,%d)[%d]", s.P, s.D, s.Q, s.SP, s.SD, s.SQ, s.M)
}

// ErrTooShort signals that a series cannot support the requested
// specification after differencing.
var ErrTooShort = errors.New("sarima: series too short for specification")

// Model is a fitted SARIMA model.
type Model struct {
	Spec      Spec
	AR        []float64
	MA        []float64
	SAR       []float64
	SMA       []float64
	Intercept float64
	Variance  float64
	AIC       float64
	AICc      float64
	BIC       float64
	LogLik    float64

	data      *timeseries.Monthly
	diff      *timeseries.Monthly
	residuals []float64
	fitted    []float64
}

// Fit estimates a SARIMA model on the series by conditional maximum
// likelihood (conditional sum of squares with Gaussian errors). The context
// bounds the optimisation loop; cancellation aborts with ctx.Err().
func Fit(ctx context.Context, series *timeseries.Monthly, spec Spec) (*Model, error) {
	if spec.M <= 0 && (spec.SP > 0 || spec.SD > 0 || spec.SQ > 0) {
		return nil, fmt.Errorf("sarima: seasonal orders require a positive period, got m=%d", spec.M)
	}

	m := &Model{
		Spec: spec,
		AR:   make([]float64, spec.P),
		MA:   make([]float64, spec.Q),
		SAR:  make([]float64, spec.SP),
		SMA:  make([]float64, spec.SQ),
		data: series,
	}

	diff := series
	for i := 0; i < spec.D; i++ {
		diff = diff.Diff()
	}
	for i := 0; i < spec.SD; i++ {
		diff = diff.SeasonalDiff(spec.M)
	}

	minLen := maxInt(spec.P, spec.Q)
	if s := spec.M * maxInt(spec.SP, spec.SQ); s > minLen {
		minLen = s
	}
	if diff.Len() < minLen+8 {
		return nil, fmt.Errorf("%w: %s needs %d differenced points, have %d",
			ErrTooShort, spec, minLen+8, diff.Len())
	}
	m.diff = diff

	if err := m.estimate(ctx); err != nil {
		return nil, err
	}
	m.informationCriteria()
	return m, nil
}

// estimate runs momentum gradient descent on the conditional sum of squares,
// keeping the best parameter vector seen.
func (m *Model) estimate(ctx context.Context) error {
	y := m.diff.Values
	n := len(y)
	p, q := m.Spec.P, m.Spec.Q
	sp, sq := m.Spec.SP, m.Spec.SQ
	period := m.Spec.M

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	m.Intercept = mean / float64(n)

	// Pure noise model: nothing to optimise.
	if p+q+sp+sq == 0 {
		m.residuals = make([]float64, n)
		m.fitted = make([]float64, n)
		sse := 0.0
		for i, v := range y {
			m.fitted[i] = m.Intercept
			m.residuals[i] = v - m.Intercept
			sse += m.residuals[i] * m.residuals[i]
		}
		if n > 1 {
			m.Variance = sse / float64(n-1)
		} else {
			m.Variance = sse
		}
		return nil
	}

	m.seedCoefficients()

	const (
		maxIter   = 200
		tolerance = 1e-8
		momentum  = 0.9
		decay     = 0.99
	)
	learningRate := 0.005

	arMom := make([]float64, p)
	maMom := make([]float64, q)
	sarMom := make([]float64, sp)
	smaMom := make([]float64, sq)

	startIdx := maxInt(maxInt(p, q), period*maxInt(sp, sq))
	if startIdx >= n-8 {
		startIdx = 0
	}

	bestSSE := math.Inf(1)
	bestAR := make([]float64, p)
	bestMA := make([]float64, q)
	bestSAR := make([]float64, sp)
	bestSMA := make([]float64, sq)
	noImprove := 0

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		residuals := make([]float64, n)
		sse := 0.0
		for t := startIdx; t < n; t++ {
			residuals[t] = y[t] - m.onePred(y, residuals, t)
			sse += residuals[t] * residuals[t]
		}

		if sse < bestSSE {
			if bestSSE-sse < tolerance && iter > 0 {
				bestSSE = sse
				copy(bestAR, m.AR)
				copy(bestMA, m.MA)
				copy(bestSAR, m.SAR)
				copy(bestSMA, m.SMA)
				break
			}
			bestSSE = sse
			copy(bestAR, m.AR)
			copy(bestMA, m.MA)
			copy(bestSAR, m.SAR)
			copy(bestSMA, m.SMA)
			noImprove = 0
		} else {
			noImprove++
			if noImprove > 20 {
				break
			}
		}

		arGrad := make([]float64, p)
		maGrad := make([]float64, q)
		sarGrad := make([]float64, sp)
		smaGrad := make([]float64, sq)

		for t := startIdx; t < n; t++ {
			for i := 0; i < p && t-i-1 >= 0; i++ {
				arGrad[i] -= 2 * residuals[t] * (y[t-i-1] - m.Intercept)
			}
			for i := 0; i < sp; i++ {
				if lag := (i + 1) * period; t-lag >= 0 {
					sarGrad[i] -= 2 * residuals[t] * (y[t-lag] - m.Intercept)
				}
			}
			for i := 0; i < q && t-i-1 >= 0; i++ {
				maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
			}
			for i := 0; i < sq; i++ {
				if lag := (i + 1) * period; t-lag >= 0 {
					smaGrad[i] -= 2 * residuals[t] * residuals[t-lag]
				}
			}
		}

		step := learningRate / float64(n)
		for i := 0; i < p; i++ {
			arMom[i] = momentum*arMom[i] + step*arGrad[i]
			m.AR[i] = clamp(m.AR[i]-arMom[i], -0.99, 0.99)
		}
		for i := 0; i < sp; i++ {
			sarMom[i] = momentum*sarMom[i] + step*sarGrad[i]
			m.SAR[i] = clamp(m.SAR[i]-sarMom[i], -0.99, 0.99)
		}
		for i := 0; i < q; i++ {
			maMom[i] = momentum*maMom[i] + step*maGrad[i]
			m.MA[i] = clamp(m.MA[i]-maMom[i], -0.99, 0.99)
		}
		for i := 0; i < sq; i++ {
			smaMom[i] = momentum*smaMom[i] + step*smaGrad[i]
			m.SMA[i] = clamp(m.SMA[i]-smaMom[i], -0.99, 0.99)
		}

		learningRate *= decay
	}

	copy(m.AR, bestAR)
	copy(m.MA, bestMA)
	copy(m.SAR, bestSAR)
	copy(m.SMA, bestSMA)

	m.residuals = make([]float64, n)
	m.fitted = make([]float64, n)
	for t := 0; t < n; t++ {
		m.fitted[t] = m.onePred(y, m.residuals, t)
		m.residuals[t] = y[t] - m.fitted[t]
	}

	sse := 0.0
	count := 0
	for t := startIdx; t < n; t++ {
		sse += m.residuals[t] * m.residuals[t]
		count++
	}
	if !isFinite(sse) {
		return fmt.Errorf("sarima: optimisation diverged for %s", m.Spec)
	}
	numParams := m.Spec.Params() + 1
	if count > numParams {
		m.Variance = sse / float64(count-numParams)
	} else if count > 0 {
		m.Variance = sse / float64(count)
	}
	return nil
}

// onePred computes the one-step conditional prediction at index t of the
// differenced series given residuals observed so far.
func (m *Model) onePred(y, residuals []float64, t int) float64 {
	pred := m.Intercept
	for i := 0; i < m.Spec.P && t-i-1 >= 0; i++ {
		pred += m.AR[i] * (y[t-i-1] - m.Intercept)
	}
	for i := 0; i < m.Spec.SP; i++ {
		if lag := (i + 1) * m.Spec.M; t-lag >= 0 {
			pred += m.SAR[i] * (y[t-lag] - m.Intercept)
		}
	}
	for i := 0; i < m.Spec.Q && t-i-1 >= 0; i++ {
		pred += m.MA[i] * residuals[t-i-1]
	}
	for i := 0; i < m.Spec.SQ; i++ {
		if lag := (i + 1) * m.Spec.M; t-lag >= 0 {
			pred += m.SMA[i] * residuals[t-lag]
		}
	}
	return pred
}

// seedCoefficients initialises AR terms from the sample autocorrelation and
// MA terms with small values, matching the usual CSS warm start.
func (m *Model) seedCoefficients() {
	if m.Spec.P > 0 {
		if acf := ACF(m.diff.Values, m.Spec.P); acf != nil {
			for i := 0; i < m.Spec.P && i+1 < len(acf); i++ {
				m.AR[i] = acf[i+1] * 0.5
			}
		}
	}
	if m.Spec.SP > 0 {
		if acf := ACF(m.diff.Values, m.Spec.SP*m.Spec.M); acf != nil {
			for i := 0; i < m.Spec.SP; i++ {
				if idx := (i + 1) * m.Spec.M; idx < len(acf) {
					m.SAR[i] = acf[idx] * 0.5
				}
			}
		}
	}
	for i := range m.MA {
		m.MA[i] = 0.1
	}
	for i := range m.SMA {
		m.SMA[i] = 0.1
	}
}

func (m *Model) informationCriteria() {
	n := len(m.residuals)
	k := float64(m.Spec.Params() + 1)

	sse := 0.0
	for _, r := range m.residuals {
		sse += r * r
	}

	if m.Variance > 0 {
		nf := float64(n)
		m.LogLik = -nf/2*math.Log(2*math.Pi) - nf/2*math.Log(m.Variance) - sse/(2*m.Variance)
	} else {
		m.LogLik = math.Inf(-1)
	}

	m.AIC = -2*m.LogLik + 2*k
	if nf := float64(n); nf-k-1 > 0 {
		m.AICc = m.AIC + 2*k*(k+1)/(nf-k-1)
	} else {
		m.AICc = math.Inf(1)
	}
	m.BIC = -2*m.LogLik + k*math.Log(float64(n))
}

// Residuals returns a copy of the in-sample residuals on the differenced
// scale.
func (m *Model) Residuals() []float64 {
	out := make([]float64, len(m.residuals))
	copy(out, m.residuals)
	return out
}

// Forecast produces point forecasts on the original scale together with the
// forecast standard error at each step. Standard errors grow with horizon for
// differenced or seasonally differenced specifications.
func (m *Model) Forecast(steps int) (points, stderrs []float64, err error) {
	if steps < 1 {
		return nil, nil, errors.New("sarima: steps must be at least 1")
	}

	y := m.diff.Values
	n := len(y)

	extY := make([]float64, n+steps)
	copy(extY, y)
	extResid := make([]float64, n+steps)
	copy(extResid, m.residuals)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := m.Intercept
		for i := 0; i < m.Spec.P && t-i-1 >= 0; i++ {
			pred += m.AR[i] * (extY[t-i-1] - m.Intercept)
		}
		for i := 0; i < m.Spec.SP; i++ {
			if lag := (i + 1) * m.Spec.M; t-lag >= 0 {
				pred += m.SAR[i] * (extY[t-lag] - m.Intercept)
			}
		}
		// Future residuals have expectation zero; only observed ones enter.
		for i := 0; i < m.Spec.Q && t-i-1 >= 0 && t-i-1 < n; i++ {
			pred += m.MA[i] * extResid[t-i-1]
		}
		for i := 0; i < m.Spec.SQ; i++ {
			if lag := (i + 1) * m.Spec.M; t-lag >= 0 && t-lag < n {
				pred += m.SMA[i] * extResid[t-lag]
			}
		}
		extY[t] = pred
	}

	points = make([]float64, steps)
	copy(points, extY[n:])
	points = m.integrate(points)

	stderrs = make([]float64, steps)
	base := math.Sqrt(m.Variance)
	for h := 0; h < steps; h++ {
		se := base
		if m.Spec.D > 0 {
			se *= math.Sqrt(float64(h + 1))
		}
		if m.Spec.SD > 0 && m.Spec.M > 0 {
			se *= math.Sqrt(float64(h/m.Spec.M + 1))
		}
		stderrs[h] = se
	}
	return points, stderrs, nil
}

// integrate undoes the differencing applied before estimation. Fit applies
// non-seasonal differences first, then seasonal, so integration reverses:
// seasonal first, then non-seasonal cumulative sums anchored on the tail of
// the original series.
func (m *Model) integrate(forecasts []float64) []float64 {
	d, sd, period := m.Spec.D, m.Spec.SD, m.Spec.M
	original := m.data.Values

	result := make([]float64, len(forecasts))
	copy(result, forecasts)

	nonSeasonal := original
	for i := 0; i < d; i++ {
		if len(nonSeasonal) <= 1 {
			break
		}
		next := make([]float64, len(nonSeasonal)-1)
		for j := 1; j < len(nonSeasonal); j++ {
			next[j-1] = nonSeasonal[j] - nonSeasonal[j-1]
		}
		nonSeasonal = next
	}

	if sd > 0 && period > 0 {
		nDiff := len(nonSeasonal)
		for i := 0; i < sd; i++ {
			for j := 0; j < len(result); j++ {
				if j < period {
					if idx := nDiff - period + j; idx >= 0 && idx < nDiff {
						result[j] += nonSeasonal[idx]
					}
				} else {
					result[j] += result[j-period]
				}
			}
		}
	}

	for i := 0; i < d; i++ {
		last := original[len(original)-1]
		for j := 0; j < len(result); j++ {
			if j == 0 {
				result[j] += last
			} else {
				result[j] += result[j-1]
			}
		}
	}
	return result
}

func clamp(v, lower, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
