package sarima

import (
	"context"
	"errors"
	"testing"
)

func TestSearchSelectsDifferencedTrend(t *testing.T) {
	series := monthlySeries(trendValues(36))

	result, err := Search(context.Background(), series, SearchOptions{
		Bounds: DefaultBounds(),
		M:      12,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Model == nil {
		t.Fatal("no model selected")
	}
	if result.Model.Spec.D != 1 {
		t.Errorf("selected d = %d, want 1 (spec %s)", result.Model.Spec.D, result.Model.Spec)
	}
	if result.Evaluated == 0 {
		t.Error("no evaluations recorded")
	}
}

func TestSearchSelectedAICIsMinimal(t *testing.T) {
	series := monthlySeries(seasonalValues(96, 12))

	s := &searcher{series: series, opts: SearchOptions{Bounds: DefaultBounds(), M: 12, MaxEvaluations: 60}, cache: make(map[Spec]*Model)}
	d := chooseDifferencing(series, 2)
	sd := chooseSeasonalDifferencing(series, 1, 12)
	if err := s.stepwise(context.Background(), d, sd); err != nil {
		t.Fatalf("stepwise: %v", err)
	}
	if s.best == nil {
		t.Fatal("no model selected")
	}
	for spec, model := range s.cache {
		if model == nil {
			continue
		}
		if model.AIC < s.best.AIC {
			t.Errorf("evaluated %s has AIC %v below selected %s AIC %v",
				spec, model.AIC, s.best.Spec, s.best.AIC)
		}
	}
}

func TestSearchHonoursEvaluationBudget(t *testing.T) {
	series := monthlySeries(seasonalValues(96, 12))

	result, err := Search(context.Background(), series, SearchOptions{
		Bounds:         DefaultBounds(),
		M:              12,
		MaxEvaluations: 3,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Evaluated > 3 {
		t.Fatalf("evaluated %d fits, budget was 3", result.Evaluated)
	}
	if !result.Exhausted {
		t.Error("budget exhaustion not reported")
	}
}

func TestSearchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Search(ctx, monthlySeries(seasonalValues(96, 12)), SearchOptions{
		Bounds: DefaultBounds(),
		M:      12,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSearchNonSeasonal(t *testing.T) {
	result, err := Search(context.Background(), monthlySeries(trendValues(40)), SearchOptions{
		Bounds: DefaultBounds(),
		M:      1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	spec := result.Model.Spec
	if spec.SP != 0 || spec.SD != 0 || spec.SQ != 0 {
		t.Fatalf("seasonal orders leaked into non-seasonal search: %s", spec)
	}
}

func TestChooseDifferencing(t *testing.T) {
	if d := chooseDifferencing(monthlySeries(trendValues(48)), 2); d != 1 {
		t.Errorf("trend series d = %d, want 1", d)
	}

	flat := make([]float64, 48)
	for i := range flat {
		flat[i] = 3 + noise(i)
	}
	if d := chooseDifferencing(monthlySeries(flat), 2); d != 0 {
		t.Errorf("stationary series d = %d, want 0", d)
	}
}

func TestChooseDifferencingIgnoresShrinkingVariance(t *testing.T) {
	// Repeated differencing keeps shrinking the variance of smooth cyclical
	// noise, so a variance-minimising pick would over-difference here; the
	// stationarity tests must hold d at zero regardless.
	flat := make([]float64, 48)
	for i := range flat {
		flat[i] = 3 + noise(i)
	}
	series := monthlySeries(flat)

	once := series.Diff()
	v0, v1, v2 := series.Variance(), once.Variance(), once.Diff().Variance()
	if v1 >= v0 || v2 >= v1 {
		t.Fatalf("fixture lost its shrinking-variance shape: %v, %v, %v", v0, v1, v2)
	}

	if d := chooseDifferencing(series, 2); d != 0 {
		t.Errorf("d = %d, want 0", d)
	}
}

func TestSearchGridFallbackReportsBudget(t *testing.T) {
	// An exact line defeats every stepwise start: after one difference the
	// residuals are all zero and the (0,1,0) fit has no finite AIC. The grid
	// fallback then converges at (0,0,0) and spends the remaining budget.
	values := make([]float64, 40)
	for i := range values {
		values[i] = 5 + 3*float64(i)
	}

	result, err := Search(context.Background(), monthlySeries(values), SearchOptions{
		Bounds:         Bounds{MaxD: 2},
		M:              1,
		MaxEvaluations: 2,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.Fallback {
		t.Error("grid fallback not reported")
	}
	if spec := result.Model.Spec; spec.P != 0 || spec.D != 0 || spec.Q != 0 {
		t.Errorf("selected %s, want (0,0,0)", spec)
	}
	if !result.Exhausted {
		t.Error("budget exhaustion during the grid fallback not reported")
	}
}
