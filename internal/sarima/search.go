package sarima

import (
	"context"
	"errors"
	"math"

	"github.com/soomorita/macro-micro-linkage/internal/timeseries"
)

// ErrNoModel signals that no specification within bounds converged.
var ErrNoModel = errors.New("sarima: no specification converged")

// Bounds caps each order component during search.
type Bounds struct {
	MaxP  int `mapstructure:"max_p"`
	MaxD  int `mapstructure:"max_d"`
	MaxQ  int `mapstructure:"max_q"`
	MaxSP int `mapstructure:"max_sp"`
	MaxSD int `mapstructure:"max_sd"`
	MaxSQ int `mapstructure:"max_sq"`
}

// DefaultBounds mirrors the search space the production forecaster has always
// used for monthly economic indicators.
func DefaultBounds() Bounds {
	return Bounds{MaxP: 2, MaxD: 2, MaxQ: 2, MaxSP: 1, MaxSD: 1, MaxSQ: 1}
}

// SearchOptions configure the automated order search.
type SearchOptions struct {
	Bounds         Bounds
	M              int // seasonal period; <=1 disables seasonal terms
	MaxEvaluations int // cap on fit attempts across the whole search
}

// SearchResult reports the selected model and how much work the search did.
type SearchResult struct {
	Model     *Model
	Evaluated int  // fit attempts, converged or not
	Exhausted bool // true when the evaluation budget stopped the search
	Fallback  bool // true when the stepwise phase found nothing and the grid ran
}

type searcher struct {
	series *timeseries.Monthly
	opts   SearchOptions
	cache  map[Spec]*Model // nil entry records a failed fit
	tried  int

	best *Model
}

// Search selects the specification minimising AIC within bounds using a
// greedy stepwise walk, falling back to an exhaustive bounded grid if no
// stepwise candidate converges. Ties on AIC prefer fewer estimated
// parameters, then the earlier specification in canonical (d,D,p,q,P,Q)
// enumeration order; the latter holds automatically because an equal-AIC,
// equal-size candidate never displaces the incumbent.
func Search(ctx context.Context, series *timeseries.Monthly, opts SearchOptions) (*SearchResult, error) {
	if opts.MaxEvaluations <= 0 {
		opts.MaxEvaluations = 60
	}
	s := &searcher{
		series: series,
		opts:   opts,
		cache:  make(map[Spec]*Model),
	}

	d := chooseDifferencing(series, opts.Bounds.MaxD)
	sd := 0
	if opts.M > 1 {
		sd = chooseSeasonalDifferencing(series, opts.Bounds.MaxSD, opts.M)
	}

	if err := s.stepwise(ctx, d, sd); err != nil {
		return nil, err
	}

	result := &SearchResult{}
	if s.best == nil {
		result.Fallback = true
		if err := s.grid(ctx); err != nil {
			return nil, err
		}
	}
	result.Evaluated = s.tried
	result.Exhausted = s.budgetSpent()
	if s.best == nil {
		return nil, ErrNoModel
	}
	result.Model = s.best
	return result, nil
}

func (s *searcher) budgetSpent() bool {
	return s.tried >= s.opts.MaxEvaluations
}

// evaluate fits the specification once, caching the outcome so revisited
// neighbours cost nothing.
func (s *searcher) evaluate(ctx context.Context, spec Spec) (*Model, error) {
	if model, seen := s.cache[spec]; seen {
		return model, nil
	}
	if s.budgetSpent() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.tried++
	model, err := Fit(ctx, s.series, spec)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.cache[spec] = nil
		return nil, nil
	}
	if !isFinite(model.AIC) {
		s.cache[spec] = nil
		return nil, nil
	}
	s.cache[spec] = model
	return model, nil
}

// consider updates the incumbent when the candidate is strictly better, or is
// tied on AIC with fewer parameters.
func (s *searcher) consider(model *Model) bool {
	if model == nil {
		return false
	}
	if s.best == nil || model.AIC < s.best.AIC {
		s.best = model
		return true
	}
	if model.AIC == s.best.AIC && model.Spec.Params() < s.best.Spec.Params() {
		s.best = model
		return true
	}
	return false
}

func (s *searcher) inBounds(spec Spec) bool {
	b := s.opts.Bounds
	if spec.P < 0 || spec.P > b.MaxP || spec.D < 0 || spec.D > b.MaxD || spec.Q < 0 || spec.Q > b.MaxQ {
		return false
	}
	if spec.SP < 0 || spec.SP > b.MaxSP || spec.SD < 0 || spec.SD > b.MaxSD || spec.SQ < 0 || spec.SQ > b.MaxSQ {
		return false
	}
	if s.opts.M <= 1 && (spec.SP != 0 || spec.SD != 0 || spec.SQ != 0) {
		return false
	}
	return true
}

func (s *searcher) stepwise(ctx context.Context, d, sd int) error {
	seasonal := s.opts.M > 1
	clip := func(spec Spec) Spec {
		b := s.opts.Bounds
		spec.P = minInt(spec.P, b.MaxP)
		spec.Q = minInt(spec.Q, b.MaxQ)
		spec.SP = minInt(spec.SP, b.MaxSP)
		spec.SQ = minInt(spec.SQ, b.MaxSQ)
		if !seasonal {
			spec.SP, spec.SD, spec.SQ, spec.M = 0, 0, 0, s.opts.M
		}
		return spec
	}

	starts := []Spec{
		clip(Spec{P: 0, D: d, Q: 0, SP: 0, SD: sd, SQ: 0, M: s.opts.M}),
		clip(Spec{P: 1, D: d, Q: 0, SP: 1, SD: sd, SQ: 0, M: s.opts.M}),
		clip(Spec{P: 0, D: d, Q: 1, SP: 0, SD: sd, SQ: 1, M: s.opts.M}),
		clip(Spec{P: 1, D: d, Q: 1, SP: 1, SD: sd, SQ: 1, M: s.opts.M}),
		clip(Spec{P: 2, D: d, Q: 2, SP: 1, SD: sd, SQ: 1, M: s.opts.M}),
	}

	for _, spec := range starts {
		model, err := s.evaluate(ctx, spec)
		if err != nil {
			return err
		}
		s.consider(model)
	}
	if s.best == nil {
		return nil
	}

	for {
		improved := false
		for _, spec := range s.neighbours(s.best.Spec) {
			if !s.inBounds(spec) {
				continue
			}
			model, err := s.evaluate(ctx, spec)
			if err != nil {
				return err
			}
			if s.consider(model) {
				improved = true
			}
		}
		if !improved || s.budgetSpent() {
			return nil
		}
	}
}

// neighbours enumerates specifications reachable by moving one AR/MA order
// by one, plus the joint (p,q) moves the stepwise literature uses. The
// differencing orders stay where the stationarity tests put them: AIC is
// not comparable across differently differenced series.
func (s *searcher) neighbours(c Spec) []Spec {
	out := []Spec{
		{c.P + 1, c.D, c.Q, c.SP, c.SD, c.SQ, c.M},
		{c.P - 1, c.D, c.Q, c.SP, c.SD, c.SQ, c.M},
		{c.P, c.D, c.Q + 1, c.SP, c.SD, c.SQ, c.M},
		{c.P, c.D, c.Q - 1, c.SP, c.SD, c.SQ, c.M},
		{c.P + 1, c.D, c.Q + 1, c.SP, c.SD, c.SQ, c.M},
		{c.P - 1, c.D, c.Q - 1, c.SP, c.SD, c.SQ, c.M},
	}
	if s.opts.M > 1 {
		out = append(out,
			Spec{c.P, c.D, c.Q, c.SP + 1, c.SD, c.SQ, c.M},
			Spec{c.P, c.D, c.Q, c.SP - 1, c.SD, c.SQ, c.M},
			Spec{c.P, c.D, c.Q, c.SP, c.SD, c.SQ + 1, c.M},
			Spec{c.P, c.D, c.Q, c.SP, c.SD, c.SQ - 1, c.M},
		)
	}
	return out
}

// grid exhaustively fits every bounded combination in canonical enumeration
// order. Only reached when stepwise found nothing, so the budget restarts.
func (s *searcher) grid(ctx context.Context) error {
	b := s.opts.Bounds
	maxSP, maxSD, maxSQ := b.MaxSP, b.MaxSD, b.MaxSQ
	if s.opts.M <= 1 {
		maxSP, maxSD, maxSQ = 0, 0, 0
	}

	s.tried = 0
	for d := 0; d <= b.MaxD; d++ {
		for sd := 0; sd <= maxSD; sd++ {
			for p := 0; p <= b.MaxP; p++ {
				for q := 0; q <= b.MaxQ; q++ {
					for sp := 0; sp <= maxSP; sp++ {
						for sq := 0; sq <= maxSQ; sq++ {
							model, err := s.evaluate(ctx, Spec{P: p, D: d, Q: q, SP: sp, SD: sd, SQ: sq, M: s.opts.M})
							if err != nil {
								return err
							}
							s.consider(model)
						}
					}
				}
			}
		}
	}
	return nil
}

// chooseDifferencing raises the non-seasonal difference order until the
// series tests stationary. KPSS and ADF disagree on their null hypotheses,
// so the series counts as stationary when both tests agree, or when KPSS
// alone keeps its stationarity null comfortably (p-value above 0.1).
func chooseDifferencing(series *timeseries.Monthly, maxD int) int {
	current := series
	for d := 0; d < maxD; d++ {
		if levelStationary(current.Values) {
			return d
		}
		next := current.Diff()
		if next.Len() < 10 {
			return d
		}
		current = next
	}
	return maxD
}

func levelStationary(values []float64) bool {
	kpss := kpssLevel(values)
	unitRoot := adf(values)
	kpssStationary := kpss != nil && kpss.Stationary
	adfStationary := unitRoot != nil && unitRoot.Stationary
	if kpssStationary && adfStationary {
		return true
	}
	return kpssStationary && kpss.PValue > 0.1
}

// chooseSeasonalDifferencing applies one seasonal difference when the
// autocorrelation at the seasonal lag is strong.
func chooseSeasonalDifferencing(series *timeseries.Monthly, maxSD, period int) int {
	if maxSD <= 0 || series.Len() <= 2*period {
		return 0
	}
	acf := ACF(series.Values, period)
	if acf == nil || len(acf) <= period {
		return 0
	}
	if math.Abs(acf[period]) > 0.5 {
		return 1
	}
	return 0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
