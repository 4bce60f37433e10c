package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soomorita/macro-micro-linkage/internal/forecast"
	"github.com/soomorita/macro-micro-linkage/internal/timeseries"
	"github.com/soomorita/macro-micro-linkage/internal/version"
)

const maxHorizon = 120

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type healthBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type seriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

type seriesBody struct {
	StatsDataID  string        `json:"stats_data_id"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	Observations int           `json:"observations"`
	Dropped      int           `json:"dropped"`
	Points       []seriesPoint `json:"points"`
}

type modelBody struct {
	Spec      string  `json:"spec"`
	AIC       float64 `json:"aic"`
	BIC       float64 `json:"bic"`
	Evaluated int     `json:"evaluated"`
}

type forecastBody struct {
	StatsDataID  string              `json:"stats_data_id"`
	Start        time.Time           `json:"start"`
	End          time.Time           `json:"end"`
	Observations int                 `json:"observations"`
	Dropped      int                 `json:"dropped"`
	Model        modelBody           `json:"model"`
	Forecast     []forecast.Step     `json:"forecast"`
	Diagnostic   forecast.Diagnostic `json:"diagnostic"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthBody{Status: "ok", Version: version.Version})
}

func (s *Server) handleSeries(c echo.Context) error {
	q, err := parseQuery(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
	}

	series, dropped, err := s.pipeline.Series(c.Request().Context(), q)
	if err != nil {
		return s.writeError(c, err)
	}

	points := make([]seriesPoint, series.Len())
	for i := range points {
		points[i] = seriesPoint{Date: series.MonthAt(i), Value: series.Values[i]}
	}

	return c.JSON(http.StatusOK, seriesBody{
		StatsDataID:  q.StatsDataID,
		Start:        series.MonthAt(0),
		End:          series.End(),
		Observations: series.Len(),
		Dropped:      dropped,
		Points:       points,
	})
}

func (s *Server) handleForecast(c echo.Context) error {
	q, err := parseQuery(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
	}

	result, dropped, err := s.pipeline.Forecast(c.Request().Context(), q)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, forecastBody{
		StatsDataID:  q.StatsDataID,
		Start:        result.Series.MonthAt(0),
		End:          result.Series.End(),
		Observations: result.Series.Len(),
		Dropped:      dropped,
		Model: modelBody{
			Spec:      result.Fit.Spec.String(),
			AIC:       result.Fit.AIC,
			BIC:       result.Fit.BIC,
			Evaluated: result.Evaluated,
		},
		Forecast:   result.Forecast,
		Diagnostic: result.Diagnostic,
	})
}

func parseQuery(c echo.Context) (Query, error) {
	q := Query{
		StatsDataID: c.Param("statsDataId"),
		Category:    c.QueryParam("cat"),
		Area:        c.QueryParam("area"),
	}
	if q.StatsDataID == "" {
		return Query{}, errors.New("statsDataId is required")
	}

	if raw := c.QueryParam("horizon"); raw != "" {
		horizon, err := strconv.Atoi(raw)
		if err != nil || horizon < 1 || horizon > maxHorizon {
			return Query{}, errors.New("horizon must be an integer between 1 and 120")
		}
		q.Horizon = horizon
	}

	if raw := c.QueryParam("confidence"); raw != "" {
		cl, err := strconv.ParseFloat(raw, 64)
		if err != nil || cl <= 0 || cl >= 1 {
			return Query{}, errors.New("confidence must be a number within (0,1)")
		}
		q.ConfidenceLevel = cl
	}

	return q, nil
}

// writeError maps pipeline failures onto HTTP statuses: data that cannot be
// modelled is the client's problem (422), everything else points upstream.
func (s *Server) writeError(c echo.Context, err error) error {
	status, kind := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("kind", kind).Msg("request failed")
	} else {
		s.logger.Warn().Err(err).Str("kind", kind).Msg("request rejected")
	}
	return c.JSON(status, errorBody{Error: err.Error(), Kind: kind})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, forecast.ErrInsufficientData):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, forecast.ErrDegenerateSeries):
		return http.StatusUnprocessableEntity, "degenerate_series"
	case errors.Is(err, forecast.ErrFitFailed):
		return http.StatusUnprocessableEntity, "fit_failed"
	case errors.Is(err, timeseries.ErrTooFewPoints):
		return http.StatusUnprocessableEntity, "too_few_points"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusBadGateway, "upstream"
	}
}
