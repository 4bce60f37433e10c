package sarima

import "math"

// unitRootResult carries a stationarity test outcome. Statistic and PValue
// follow the test's own convention: KPSS rejects stationarity for large
// statistics, ADF rejects a unit root for large negative ones.
type unitRootResult struct {
	Statistic  float64
	PValue     float64
	Stationary bool
}

// kpssLevel runs the Kwiatkowski-Phillips-Schmidt-Shin test for level
// stationarity. The null hypothesis is that the series is stationary around
// its mean, so a p-value at or above 0.05 keeps the null. Returns nil when
// the series is too short to test.
func kpssLevel(values []float64) *unitRootResult {
	n := len(values)
	if n < 10 {
		return nil
	}

	nlags := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	residuals := make([]float64, n)
	for i, v := range values {
		residuals[i] = v - mean
	}

	cumSum := make([]float64, n)
	cumSum[0] = residuals[0]
	for i := 1; i < n; i++ {
		cumSum[i] = cumSum[i-1] + residuals[i]
	}

	// Newey-West long-run variance with Bartlett weights.
	s2 := 0.0
	for _, r := range residuals {
		s2 += r * r
	}
	s2 /= float64(n)
	for l := 1; l <= nlags && l < n; l++ {
		cov := 0.0
		for i := l; i < n; i++ {
			cov += residuals[i] * residuals[i-l]
		}
		cov /= float64(n)
		s2 += 2 * (1 - float64(l)/float64(nlags+1)) * cov
	}
	if s2 <= 0 {
		s2 = 1e-10
	}

	etaSq := 0.0
	for _, cs := range cumSum {
		etaSq += cs * cs
	}
	stat := etaSq / (float64(n) * float64(n) * s2)

	p := kpssPValue(stat)
	return &unitRootResult{Statistic: stat, PValue: p, Stationary: p >= 0.05}
}

// kpssPValue interpolates the level-stationarity critical values
// (10%: 0.347, 5%: 0.463, 1%: 0.739).
func kpssPValue(stat float64) float64 {
	switch {
	case stat > 0.739:
		return 0.01
	case stat > 0.463:
		return 0.05
	case stat > 0.347:
		return 0.10
	default:
		return 0.10 + (0.347-stat)*0.5
	}
}

// adf runs the Augmented Dickey-Fuller test with a constant and automatic
// lag order floor((n-1)^(1/3)). The null hypothesis is a unit root, so a
// p-value below 0.05 rejects it in favour of stationarity. Returns nil when
// the series is too short or the regression is degenerate.
func adf(values []float64) *unitRootResult {
	n := len(values)
	if n < 10 {
		return nil
	}

	maxLag := int(math.Floor(math.Pow(float64(n-1), 1.0/3.0)))
	if maxLag >= n-1 {
		maxLag = n - 2
	}

	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = values[i] - values[i-1]
	}

	// Regress delta_y_t on [1, y_{t-1}, delta_y_{t-1..t-maxLag}] and test
	// whether the lagged-level coefficient is zero.
	nObs := n - maxLag - 1
	if nObs < 10 {
		return nil
	}
	y := make([]float64, nObs)
	x := make([][]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + maxLag
		y[i] = diff[t]
		row := make([]float64, 2+maxLag)
		row[0] = 1
		row[1] = values[t]
		for j := 1; j <= maxLag; j++ {
			row[1+j] = diff[t-j]
		}
		x[i] = row
	}

	coeffs, se := olsFit(x, y)
	if coeffs == nil || se == nil || se[1] == 0 {
		return nil
	}
	stat := coeffs[1] / se[1]
	if math.IsNaN(stat) || math.IsInf(stat, 0) {
		return nil
	}

	p := dickeyFullerPValue(stat)
	return &unitRootResult{Statistic: stat, PValue: p, Stationary: p < 0.05}
}

// dickeyFullerPValue approximates the constant-only Dickey-Fuller p-value by
// interpolating the MacKinnon (1994) surface.
func dickeyFullerPValue(stat float64) float64 {
	switch {
	case stat < -3.96:
		return 0.001
	case stat < -3.43:
		return 0.01
	case stat < -2.86:
		return 0.05
	case stat < -2.57:
		return 0.10
	case stat < -1.94:
		return 0.25
	case stat < -1.62:
		return 0.50
	default:
		return math.Min(0.5+(stat+1.62)*0.25, 0.99)
	}
}

// olsFit estimates y = X·beta by ordinary least squares and returns the
// coefficients with their standard errors. Returns nils for singular or
// underdetermined designs.
func olsFit(x [][]float64, y []float64) (coeffs, stdErrors []float64) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, nil
	}
	k := len(x[0])
	if n <= k {
		return nil, nil
	}

	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xty := make([]float64, k)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			xty[j] += x[i][j] * y[i]
			for l := 0; l < k; l++ {
				xtx[j][l] += x[i][j] * x[i][l]
			}
		}
	}

	inv := invertSquare(xtx)
	if inv == nil {
		return nil, nil
	}

	coeffs = make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			coeffs[i] += inv[i][j] * xty[j]
		}
	}

	sse := 0.0
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += coeffs[j] * x[i][j]
		}
		r := y[i] - pred
		sse += r * r
	}

	s2 := sse / float64(n-k)
	stdErrors = make([]float64, k)
	for i := 0; i < k; i++ {
		stdErrors[i] = math.Sqrt(s2 * inv[i][i])
	}
	return coeffs, stdErrors
}

// invertSquare inverts a square matrix by Gauss-Jordan elimination with
// partial pivoting, or returns nil when the matrix is singular.
func invertSquare(m [][]float64) [][]float64 {
	n := len(m)
	if n == 0 {
		return nil
	}

	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i][:n], m[i])
		aug[i][n+i] = 1
	}

	for i := 0; i < n; i++ {
		maxRow := i
		for r := i + 1; r < n; r++ {
			if math.Abs(aug[r][i]) > math.Abs(aug[maxRow][i]) {
				maxRow = r
			}
		}
		aug[i], aug[maxRow] = aug[maxRow], aug[i]
		if math.Abs(aug[i][i]) < 1e-10 {
			return nil
		}

		pivot := aug[i][i]
		for j := 0; j < 2*n; j++ {
			aug[i][j] /= pivot
		}
		for r := 0; r < n; r++ {
			if r == i {
				continue
			}
			factor := aug[r][i]
			for j := 0; j < 2*n; j++ {
				aug[r][j] -= factor * aug[i][j]
			}
		}
	}

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		copy(out[i], aug[i][n:])
	}
	return out
}
