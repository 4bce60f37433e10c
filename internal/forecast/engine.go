// Package forecast exposes the econometric engine: automated SARIMA order
// search, fitting, interval forecasting, and residual diagnostics over a
// preprocessed monthly series.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/soomorita/macro-micro-linkage/internal/sarima"
	"github.com/soomorita/macro-micro-linkage/internal/timeseries"
)

// Typed pipeline failures. Each terminates the invocation; none is ever
// silently replaced by a default forecast.
var (
	ErrInsufficientData = errors.New("forecast: insufficient data")
	ErrDegenerateSeries = errors.New("forecast: series has zero variance")
	ErrFitFailed        = errors.New("forecast: no specification converged")
)

// Verdict is the diagnostic self-assessment of the fitted model.
type Verdict string

const (
	VerdictValid          Verdict = "VALID"
	VerdictRequiresReview Verdict = "REQUIRES_REVIEW"
)

// Params configure one forecasting invocation. Values are read once at the
// start of Run; concurrent invocations with different Params never interfere.
type Params struct {
	Horizon         int
	ConfidenceLevel float64
	SeasonalPeriod  int
	Bounds          sarima.Bounds
	DiagnosticLags  int
	Alpha           float64
	MaxEvaluations  int
}

// DefaultParams returns the configuration the original monthly-indicator
// forecaster used: 12-step horizon, 95% intervals, yearly seasonality,
// Ljung-Box at lag 12 against alpha 0.05.
func DefaultParams() Params {
	return Params{
		Horizon:         12,
		ConfidenceLevel: 0.95,
		SeasonalPeriod:  12,
		Bounds:          sarima.DefaultBounds(),
		DiagnosticLags:  12,
		Alpha:           0.05,
		MaxEvaluations:  60,
	}
}

func (p Params) validate() error {
	if p.Horizon < 1 {
		return fmt.Errorf("forecast: horizon must be at least 1, got %d", p.Horizon)
	}
	if p.ConfidenceLevel <= 0 || p.ConfidenceLevel >= 1 {
		return fmt.Errorf("forecast: confidence level must be in (0,1), got %v", p.ConfidenceLevel)
	}
	if p.SeasonalPeriod < 1 {
		return fmt.Errorf("forecast: seasonal period must be at least 1, got %d", p.SeasonalPeriod)
	}
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return fmt.Errorf("forecast: alpha must be in (0,1), got %v", p.Alpha)
	}
	if p.DiagnosticLags < 1 {
		return fmt.Errorf("forecast: diagnostic lags must be at least 1, got %d", p.DiagnosticLags)
	}
	return nil
}

// Step is one forecast horizon point with its symmetric confidence bounds.
type Step struct {
	Date  time.Time `json:"date"`
	Point float64   `json:"point"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// FitSummary describes the selected specification.
type FitSummary struct {
	Spec              sarima.Spec
	AIC               float64
	BIC               float64
	Residuals         []float64
	ForecastStdErrors []float64
}

// Diagnostic is the residual whiteness self-assessment.
type Diagnostic struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	Lags      int     `json:"lags"`
	Verdict   Verdict `json:"verdict"`
}

// Result is the full outcome of one forecasting invocation. It is a flat,
// serialisable record: the API layer returns it as-is.
type Result struct {
	Series     *timeseries.Monthly
	Fit        FitSummary
	Forecast   []Step
	Diagnostic Diagnostic
	Evaluated  int
}

// Engine runs the forecasting pipeline. It is stateless apart from its
// logger; a single Engine is safe for concurrent use.
type Engine struct {
	logger zerolog.Logger
}

// New constructs an Engine.
func New(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "engine").Logger()}
}

// Run searches, fits, forecasts, and diagnoses. The context is the
// cancellation hook bounding the order search; cancellation leaves no shared
// state behind because everything here is request-local.
func (e *Engine) Run(ctx context.Context, series *timeseries.Monthly, params Params) (*Result, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	if n := series.Len(); n < 2*params.SeasonalPeriod {
		return nil, fmt.Errorf("%w: %d observations, need at least %d",
			ErrInsufficientData, n, 2*params.SeasonalPeriod)
	}
	if series.IsConstant() {
		return nil, fmt.Errorf("%w: all %d observations equal %v",
			ErrDegenerateSeries, series.Len(), series.Values[0])
	}

	// The invocation owns its series; callers may reuse theirs freely.
	series = series.Copy()

	search, err := sarima.Search(ctx, series, sarima.SearchOptions{
		Bounds:         params.Bounds,
		M:              params.SeasonalPeriod,
		MaxEvaluations: params.MaxEvaluations,
	})
	if err != nil {
		if errors.Is(err, sarima.ErrNoModel) {
			return nil, fmt.Errorf("%w: nothing within bounds %+v fit %d observations",
				ErrFitFailed, params.Bounds, series.Len())
		}
		return nil, err
	}
	model := search.Model

	e.logger.Debug().
		Stringer("spec", model.Spec).
		Float64("aic", model.AIC).
		Int("evaluated", search.Evaluated).
		Bool("fallback", search.Fallback).
		Msg("specification selected")

	points, stderrs, err := model.Forecast(params.Horizon)
	if err != nil {
		return nil, err
	}

	z := sarima.NormalQuantile((1 + params.ConfidenceLevel) / 2)
	steps := make([]Step, params.Horizon)
	for h := range steps {
		margin := z * stderrs[h]
		steps[h] = Step{
			Date:  series.MonthAt(series.Len() + h),
			Point: points[h],
			Lower: points[h] - margin,
			Upper: points[h] + margin,
		}
	}

	return &Result{
		Series: series,
		Fit: FitSummary{
			Spec:              model.Spec,
			AIC:               model.AIC,
			BIC:               model.BIC,
			Residuals:         model.Residuals(),
			ForecastStdErrors: stderrs,
		},
		Forecast:   steps,
		Diagnostic: e.diagnose(model, params),
		Evaluated:  search.Evaluated,
	}, nil
}

func (e *Engine) diagnose(model *sarima.Model, params Params) Diagnostic {
	lb := sarima.LjungBox(model.Residuals(), params.DiagnosticLags, model.Spec.Params())
	if lb == nil {
		// Residuals too few or perfectly flat: nothing left to reject.
		return Diagnostic{PValue: 1, Lags: params.DiagnosticLags, Verdict: VerdictValid}
	}

	verdict := VerdictRequiresReview
	if lb.PValue > params.Alpha {
		verdict = VerdictValid
	}
	return Diagnostic{
		Statistic: lb.Statistic,
		PValue:    lb.PValue,
		Lags:      lb.Lags,
		Verdict:   verdict,
	}
}
