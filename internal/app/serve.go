package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/soomorita/macro-micro-linkage/internal/forecast"
	"github.com/soomorita/macro-micro-linkage/internal/httpapi"
	"github.com/soomorita/macro-micro-linkage/internal/timeseries"
)

// apiPipeline adapts App onto the HTTP service surface.
type apiPipeline struct {
	app *App
}

func (p apiPipeline) Series(ctx context.Context, q httpapi.Query) (*timeseries.Monthly, int, error) {
	return p.app.Series(ctx, ForecastOptions{
		StatsDataID: q.StatsDataID,
		Category:    q.Category,
		Area:        q.Area,
	})
}

func (p apiPipeline) Forecast(ctx context.Context, q httpapi.Query) (*forecast.Result, int, error) {
	outcome, err := p.app.Forecast(ctx, ForecastOptions{
		StatsDataID:     q.StatsDataID,
		Category:        q.Category,
		Area:            q.Area,
		Horizon:         q.Horizon,
		ConfidenceLevel: q.ConfidenceLevel,
	})
	if err != nil {
		return nil, 0, err
	}
	return outcome.Result, outcome.Dropped, nil
}

// Serve runs the HTTP service until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.Config.Database.DSN == "" {
		a.Logger.Warn().Msg("database.dsn not configured; run archive disabled")
	}
	if a.Config.EStat.AppID == "" {
		a.Logger.Warn().Msg("estat.app_id not configured; upstream fetches will fail")
	}

	server := httpapi.NewServer(httpapi.Options{
		Listen:          a.Config.Server.Listen,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
	}, apiPipeline{app: a}, a.Logger)

	a.Logger.Info().Msg("starting forecast service")
	err := server.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("forecast service stopped")
	return nil
}
