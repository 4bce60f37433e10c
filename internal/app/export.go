package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/soomorita/macro-micro-linkage/internal/forecast"
	"github.com/soomorita/macro-micro-linkage/internal/timeseries"
)

// Export runs a forecast and renders the history plus forecast path as CSV
// and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	outcome, err := a.Forecast(ctx, opts.ForecastOptions)
	if err != nil {
		return err
	}

	history := downsampleSeries(outcome.Result.Series, opts.MaxPoints)
	a.Logger.Info().
		Int("history", len(history)).
		Int("forecast", len(outcome.Result.Forecast)).
		Str("spec", outcome.Result.Fit.Spec.String()).
		Msg("exporting forecast")

	if opts.CSVPath != "" {
		if err := writeForecastCSV(opts.CSVPath, history, outcome.Result.Forecast); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeForecastPNG(opts.PNGPath, history, outcome.Result.Forecast); err != nil {
			return err
		}
	}

	return nil
}

// historyPoint is one observed month flattened for rendering.
type historyPoint struct {
	Month time.Time
	Value float64
}

func downsampleSeries(series *timeseries.Monthly, max int) []historyPoint {
	points := make([]historyPoint, series.Len())
	for i := range points {
		points[i] = historyPoint{Month: series.MonthAt(i), Value: series.Values[i]}
	}
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]historyPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeForecastCSV(path string, history []historyPoint, steps []forecast.Step) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"month", "value", "forecast", "lower", "upper"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range history {
		record := []string{
			p.Month.Format("2006-01"),
			strconv.FormatFloat(p.Value, 'f', -1, 64),
			"", "", "",
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	for _, s := range steps {
		record := []string{
			s.Date.Format("2006-01"),
			"",
			strconv.FormatFloat(s.Point, 'f', -1, 64),
			strconv.FormatFloat(s.Lower, 'f', -1, 64),
			strconv.FormatFloat(s.Upper, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeForecastPNG(path string, history []historyPoint, steps []forecast.Step) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	hx := make([]time.Time, len(history))
	hy := make([]float64, len(history))
	for i, p := range history {
		hx[i] = p.Month
		hy[i] = p.Value
	}

	fx := make([]time.Time, len(steps))
	fy := make([]float64, len(steps))
	lower := make([]float64, len(steps))
	upper := make([]float64, len(steps))
	for i, s := range steps {
		fx[i] = s.Date
		fy[i] = s.Point
		lower[i] = s.Lower
		upper[i] = s.Upper
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Value",
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Observed",
				XValues: hx,
				YValues: hy,
			},
			chart.TimeSeries{
				Name:    "Forecast",
				XValues: fx,
				YValues: fy,
			},
			chart.TimeSeries{
				Name:    "Lower",
				XValues: fx,
				YValues: lower,
				Style: chart.Style{
					StrokeDashArray: []float64{4, 4},
				},
			},
			chart.TimeSeries{
				Name:    "Upper",
				XValues: fx,
				YValues: upper,
				Style: chart.Style{
					StrokeDashArray: []float64{4, 4},
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
