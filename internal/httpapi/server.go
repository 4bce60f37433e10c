package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/soomorita/macro-micro-linkage/internal/forecast"
	"github.com/soomorita/macro-micro-linkage/internal/timeseries"
)

// Options parameterise the HTTP service.
type Options struct {
	Listen          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Query identifies one series request as received over HTTP.
type Query struct {
	StatsDataID     string
	Category        string
	Area            string
	Horizon         int
	ConfidenceLevel float64
}

// Pipeline is the slice of the application the API needs: pulling a
// normalised series, and running the full forecast over one.
type Pipeline interface {
	Series(ctx context.Context, q Query) (*timeseries.Monthly, int, error)
	Forecast(ctx context.Context, q Query) (*forecast.Result, int, error)
}

// Server hosts the REST endpoints.
type Server struct {
	opts     Options
	pipeline Pipeline
	logger   zerolog.Logger
	echo     *echo.Echo
}

// NewServer constructs the HTTP server and registers all routes.
func NewServer(opts Options, pipeline Pipeline, logger zerolog.Logger) *Server {
	s := &Server{
		opts:     opts,
		pipeline: pipeline,
		logger:   logger.With().Str("component", "httpapi").Logger(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(s.requestLogger())

	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/series/:statsDataId", s.handleSeries)
	e.GET("/v1/forecast/:statsDataId", s.handleForecast)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo = e
	return s
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.echo.Server.ReadTimeout = s.opts.ReadTimeout
	s.echo.Server.WriteTimeout = s.opts.WriteTimeout

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.opts.Listen).Msg("http server listening")
		if err := s.echo.Start(s.opts.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("http server stopped")
	return <-errCh
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			s.logger.Info().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("elapsed", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}
