package app

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/soomorita/macro-micro-linkage/internal/estat"
	"github.com/soomorita/macro-micro-linkage/internal/storage"
	"github.com/soomorita/macro-micro-linkage/internal/timeseries"
)

// Forecast runs the full pipeline for one series: pull, normalise, search,
// forecast, diagnose. When a run archive is configured the outcome is
// persisted best-effort; archive failures never fail the forecast itself.
func (a *App) Forecast(ctx context.Context, opts ForecastOptions) (*ForecastOutcome, error) {
	if opts.StatsDataID == "" && opts.InputCSV == "" {
		return nil, errors.New("either a stats data id or an input csv is required")
	}

	params := a.engineParams()
	if opts.Horizon > 0 {
		params.Horizon = opts.Horizon
	}
	if opts.ConfidenceLevel > 0 {
		params.ConfidenceLevel = opts.ConfidenceLevel
	}

	start := time.Now()
	rows, source, err := a.loadRows(ctx, opts)
	if err != nil {
		a.Metrics.RecordError("fetch")
		return nil, err
	}

	series, dropped, err := timeseries.Build(rows)
	if err != nil {
		a.Metrics.RecordError("normalise")
		return nil, err
	}
	a.Metrics.RecordDroppedRows(opts.StatsDataID, dropped)

	runCtx, cancel := context.WithTimeout(ctx, a.searchTimeout())
	defer cancel()

	result, err := a.newEngine().Run(runCtx, series, params)
	if err != nil {
		a.Metrics.RecordError("forecast")
		return nil, err
	}

	a.Metrics.RecordForecast(string(result.Diagnostic.Verdict))
	a.Metrics.RecordModel(opts.StatsDataID, result.Fit.AIC, result.Evaluated)
	a.Metrics.RecordDuration("forecast", time.Since(start).Seconds())

	outcome := &ForecastOutcome{
		Result:  result,
		Dropped: dropped,
		Source:  source,
		Query: estat.Query{
			StatsDataID: opts.StatsDataID,
			Category:    opts.Category,
			Area:        opts.Area,
		},
	}

	if err := a.archive(ctx, outcome, params.Horizon, params.ConfidenceLevel); err != nil {
		a.Logger.Warn().Err(err).Msg("archiving forecast run failed")
	}

	return outcome, nil
}

// Series pulls and normalises one series without forecasting it.
func (a *App) Series(ctx context.Context, opts ForecastOptions) (*timeseries.Monthly, int, error) {
	rows, _, err := a.loadRows(ctx, opts)
	if err != nil {
		a.Metrics.RecordError("fetch")
		return nil, 0, err
	}
	return timeseries.Build(rows)
}

func (a *App) loadRows(ctx context.Context, opts ForecastOptions) ([]timeseries.Raw, string, error) {
	if opts.InputCSV != "" {
		rows, err := readRawCSV(opts.InputCSV)
		if err != nil {
			return nil, "", err
		}
		return rows, "csv", nil
	}

	obs, err := a.newClient().FetchSeries(ctx, estat.Query{
		StatsDataID: opts.StatsDataID,
		Category:    opts.Category,
		Area:        opts.Area,
	})
	if err != nil {
		a.Metrics.RecordFetch(opts.StatsDataID, "error")
		return nil, "", err
	}
	a.Metrics.RecordFetch(opts.StatsDataID, "ok")
	return estat.ToRaw(obs), "estat", nil
}

// readRawCSV reads token,value rows. A first line whose second column does
// not parse as a number is treated as a header. Empty values become missing
// observations so the grid builder can account for them.
func readRawCSV(path string) ([]timeseries.Raw, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	rows := make([]timeseries.Raw, 0, len(records))
	for i, record := range records {
		if len(record) < 2 {
			return nil, fmt.Errorf("%s line %d: want token,value columns", path, i+1)
		}
		token := strings.TrimSpace(record[0])
		raw := strings.TrimSpace(record[1])
		value, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil {
			if i == 0 {
				continue
			}
			rows = append(rows, timeseries.Raw{Token: token, Missing: true})
			continue
		}
		rows = append(rows, timeseries.Raw{Token: token, Value: value})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%s contains no data rows", path)
	}
	return rows, nil
}

func (a *App) archive(ctx context.Context, outcome *ForecastOutcome, horizon int, confidence float64) error {
	// Local csv runs have no series identity to archive under.
	if outcome.Query.StatsDataID == "" {
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return nil
	}
	defer closeStore()

	payload, err := json.Marshal(outcome.Result.Forecast)
	if err != nil {
		return err
	}

	diag := outcome.Result.Diagnostic
	lbStat := diag.Statistic
	lbPValue := diag.PValue

	run := storage.ForecastRun{
		StatsDataID:     outcome.Query.StatsDataID,
		Category:        outcome.Query.Category,
		Area:            outcome.Query.Area,
		SeriesStart:     outcome.Result.Series.MonthAt(0),
		SeriesEnd:       outcome.Result.Series.End(),
		Observations:    outcome.Result.Series.Len(),
		DroppedRows:     outcome.Dropped,
		ModelSpec:       outcome.Result.Fit.Spec.String(),
		AIC:             outcome.Result.Fit.AIC,
		BIC:             outcome.Result.Fit.BIC,
		Horizon:         horizon,
		ConfidenceLevel: confidence,
		Verdict:         string(diag.Verdict),
		LjungBoxStat:    &lbStat,
		LjungBoxPValue:  &lbPValue,
		Forecast:        payload,
	}

	return store.UpsertRun(ctx, run)
}
