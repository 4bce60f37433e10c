package sarima

import "testing"

// lcgNoise is uncorrelated pseudo-noise in [-0.5, 0.5), reproducible without
// a rand seed.
func lcgNoise(n int) []float64 {
	out := make([]float64, n)
	state := uint32(1)
	for i := range out {
		state = state*1664525 + 1013904223
		out[i] = float64(state>>16)/65536 - 0.5
	}
	return out
}

func TestKPSSLevelRejectsTrend(t *testing.T) {
	res := kpssLevel(trendValues(48))
	if res == nil {
		t.Fatal("no result for trending series")
	}
	if res.Stationary {
		t.Errorf("trending series reported stationary (stat %.3f, p %.3f)", res.Statistic, res.PValue)
	}
}

func TestKPSSLevelKeepsLevelSeries(t *testing.T) {
	flat := make([]float64, 48)
	for i := range flat {
		flat[i] = 3 + noise(i)
	}
	res := kpssLevel(flat)
	if res == nil {
		t.Fatal("no result for level series")
	}
	if !res.Stationary {
		t.Errorf("level series reported non-stationary (stat %.3f, p %.3f)", res.Statistic, res.PValue)
	}
	if res.PValue <= 0.1 {
		t.Errorf("level series p-value %.3f, want > 0.1", res.PValue)
	}
}

func TestADFDetectsMeanReversion(t *testing.T) {
	e := lcgNoise(60)
	reverting := make([]float64, 60)
	for i := 1; i < len(reverting); i++ {
		reverting[i] = 0.2*reverting[i-1] + e[i]
	}
	res := adf(reverting)
	if res == nil {
		t.Fatal("no result for mean-reverting series")
	}
	if !res.Stationary {
		t.Errorf("mean-reverting series kept its unit root (t %.3f, p %.3f)", res.Statistic, res.PValue)
	}
}

func TestADFKeepsUnitRootForTrend(t *testing.T) {
	if res := adf(trendValues(60)); res != nil && res.Stationary {
		t.Errorf("trending series reported stationary (t %.3f, p %.3f)", res.Statistic, res.PValue)
	}
}

func TestStationarityShortSeries(t *testing.T) {
	short := trendValues(8)
	if res := kpssLevel(short); res != nil {
		t.Errorf("kpssLevel on %d points = %+v, want nil", len(short), res)
	}
	if res := adf(short); res != nil {
		t.Errorf("adf on %d points = %+v, want nil", len(short), res)
	}
}
