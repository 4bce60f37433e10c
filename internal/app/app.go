package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/soomorita/macro-micro-linkage/internal/config"
	"github.com/soomorita/macro-micro-linkage/internal/estat"
	"github.com/soomorita/macro-micro-linkage/internal/forecast"
	"github.com/soomorita/macro-micro-linkage/internal/logging"
	"github.com/soomorita/macro-micro-linkage/internal/metrics"
	"github.com/soomorita/macro-micro-linkage/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Recorder
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:  cfg,
		Logger:  logging.Component(logger, "app"),
		Metrics: metrics.New(prometheus.DefaultRegisterer),
	}
}

func (a *App) newClient() *estat.Client {
	return estat.NewClient(estat.Options{
		BaseURL:   a.Config.EStat.BaseURL,
		AppID:     a.Config.EStat.AppID,
		Timeout:   a.Config.EStat.RequestTimeout,
		UserAgent: a.Config.EStat.UserAgent,
	}, a.Logger)
}

func (a *App) newEngine() *forecast.Engine {
	return forecast.New(a.Logger)
}

// engineParams copies the configured engine defaults into a per-invocation
// parameter set.
func (a *App) engineParams() forecast.Params {
	params := forecast.DefaultParams()
	cfg := a.Config.Engine
	if cfg.Horizon > 0 {
		params.Horizon = cfg.Horizon
	}
	if cfg.ConfidenceLevel > 0 {
		params.ConfidenceLevel = cfg.ConfidenceLevel
	}
	if cfg.SeasonalPeriod > 0 {
		params.SeasonalPeriod = cfg.SeasonalPeriod
	}
	if cfg.DiagnosticLags > 0 {
		params.DiagnosticLags = cfg.DiagnosticLags
	}
	if cfg.Alpha > 0 {
		params.Alpha = cfg.Alpha
	}
	if cfg.MaxEvaluations > 0 {
		params.MaxEvaluations = cfg.MaxEvaluations
	}
	if cfg.Bounds.MaxP > 0 || cfg.Bounds.MaxQ > 0 || cfg.Bounds.MaxD > 0 {
		params.Bounds = cfg.Bounds
	}
	return params
}

func (a *App) searchTimeout() time.Duration {
	if t := a.Config.Engine.SearchTimeout; t > 0 {
		return t
	}
	return 30 * time.Second
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// ForecastOptions configure one forecast invocation from the CLI or API.
// InputCSV bypasses the e-Stat fetch and reads token/value rows from disk.
type ForecastOptions struct {
	StatsDataID     string
	Category        string
	Area            string
	InputCSV        string
	Horizon         int
	ConfidenceLevel float64
}

// ExportOptions hold parameters for exporting a forecast as CSV and/or PNG.
type ExportOptions struct {
	ForecastOptions
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// ForecastOutcome bundles the engine result with provenance for callers
// that report or archive it.
type ForecastOutcome struct {
	Result  *forecast.Result
	Dropped int
	Source  string
	Query   estat.Query
}
