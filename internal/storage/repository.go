package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertForecastRunSQL = `INSERT INTO forecast_runs (
        stats_data_id,
        category,
        area,
        series_start,
        series_end,
        observations,
        dropped_rows,
        model_spec,
        aic,
        bic,
        horizon,
        confidence_level,
        verdict,
        ljung_box_stat,
        ljung_box_pvalue,
        forecast
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
    )
    ON CONFLICT (stats_data_id, category, area, series_end) DO UPDATE
    SET
        series_start     = EXCLUDED.series_start,
        observations     = EXCLUDED.observations,
        dropped_rows     = EXCLUDED.dropped_rows,
        model_spec       = EXCLUDED.model_spec,
        aic              = EXCLUDED.aic,
        bic              = EXCLUDED.bic,
        horizon          = EXCLUDED.horizon,
        confidence_level = EXCLUDED.confidence_level,
        verdict          = EXCLUDED.verdict,
        ljung_box_stat   = EXCLUDED.ljung_box_stat,
        ljung_box_pvalue = EXCLUDED.ljung_box_pvalue,
        forecast         = EXCLUDED.forecast;`

	listRecentRunsSQL = `SELECT
        id,
        stats_data_id,
        category,
        area,
        series_start,
        series_end,
        observations,
        dropped_rows,
        model_spec,
        aic,
        bic,
        horizon,
        confidence_level,
        verdict,
        ljung_box_stat,
        ljung_box_pvalue,
        forecast,
        created_at
    FROM forecast_runs
    WHERE stats_data_id = $1
    ORDER BY created_at DESC
    LIMIT $2;`

	countRunsSQL = `SELECT COUNT(*) FROM forecast_runs;`

	deleteRunsBeforeSQL = `DELETE FROM forecast_runs WHERE created_at < $1;`
)

// ForecastRunStore defines operations for the forecast run archive.
type ForecastRunStore interface {
	UpsertRun(ctx context.Context, run ForecastRun) error
	ListRecentRuns(ctx context.Context, statsDataID string, limit int) ([]ForecastRun, error)
	CountRuns(ctx context.Context) (int64, error)
	DeleteRunsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// Store persists forecast runs in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertRun persists or replaces the archived run for a series snapshot.
func (s *Store) UpsertRun(ctx context.Context, run ForecastRun) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var lbStat, lbPValue interface{}
	if run.LjungBoxStat != nil {
		lbStat = *run.LjungBoxStat
	}
	if run.LjungBoxPValue != nil {
		lbPValue = *run.LjungBoxPValue
	}

	_, execErr := pool.Exec(ctx, upsertForecastRunSQL,
		run.StatsDataID,
		run.Category,
		run.Area,
		run.SeriesStart,
		run.SeriesEnd,
		run.Observations,
		run.DroppedRows,
		run.ModelSpec,
		run.AIC,
		run.BIC,
		run.Horizon,
		run.ConfidenceLevel,
		run.Verdict,
		lbStat,
		lbPValue,
		[]byte(run.Forecast),
	)
	if execErr != nil {
		return fmt.Errorf("upsert forecast run: %w", execErr)
	}
	return nil
}

// ListRecentRuns lists the most recent archived runs for a series.
func (s *Store) ListRecentRuns(ctx context.Context, statsDataID string, limit int) ([]ForecastRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, statsDataID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]ForecastRun, 0, limit)
	for rows.Next() {
		run, scanErr := scanForecastRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// CountRuns counts archived runs.
func (s *Store) CountRuns(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRunsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count runs: %w", scanErr)
	}
	return count, nil
}

// DeleteRunsBefore deletes runs created before the cutoff and reports how
// many rows went away.
func (s *Store) DeleteRunsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteRunsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete runs before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func scanForecastRun(rows pgx.Rows) (ForecastRun, error) {
	var (
		run      ForecastRun
		lbStat   sql.NullFloat64
		lbPValue sql.NullFloat64
		payload  json.RawMessage
	)

	if err := rows.Scan(
		&run.ID,
		&run.StatsDataID,
		&run.Category,
		&run.Area,
		&run.SeriesStart,
		&run.SeriesEnd,
		&run.Observations,
		&run.DroppedRows,
		&run.ModelSpec,
		&run.AIC,
		&run.BIC,
		&run.Horizon,
		&run.ConfidenceLevel,
		&run.Verdict,
		&lbStat,
		&lbPValue,
		&payload,
		&run.CreatedAt,
	); err != nil {
		return ForecastRun{}, err
	}

	if lbStat.Valid {
		v := lbStat.Float64
		run.LjungBoxStat = &v
	}
	if lbPValue.Valid {
		v := lbPValue.Float64
		run.LjungBoxPValue = &v
	}
	run.Forecast = payload

	return run, nil
}
