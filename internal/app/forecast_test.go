package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/soomorita/macro-micro-linkage/internal/config"
	"github.com/soomorita/macro-micro-linkage/internal/forecast"
)

// estatHandler serves a trending monthly series in the e-Stat wire format.
// Tokens are served directly as time values so the client's raw-code
// fallback path is exercised.
func estatHandler(months int) http.HandlerFunc {
	values := make([]map[string]string, months)
	year, month := 2021, 1
	for i := range values {
		values[i] = map[string]string{
			"@time":  fmt.Sprintf("%d年%d月", year, month),
			"@cat01": "0001",
			"@area":  "00000",
			"@unit":  "円",
			"$":      fmt.Sprintf("%.1f", 100+2*float64(i)),
		}
		month++
		if month > 12 {
			month = 1
			year++
		}
	}

	body := map[string]any{
		"GET_STATS_DATA": map[string]any{
			"RESULT": map[string]any{"STATUS": 0, "ERROR_MSG": ""},
			"STATISTICAL_DATA": map[string]any{
				"CLASS_INF": map[string]any{"CLASS_OBJ": []any{}},
				"DATA_INF":  map[string]any{"VALUE": values},
			},
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}

func testApp(baseURL string) *App {
	cfg := &config.Config{}
	cfg.EStat.BaseURL = baseURL
	cfg.EStat.AppID = "test"
	cfg.EStat.RequestTimeout = 2 * time.Second
	cfg.Engine.SearchTimeout = time.Minute
	cfg.Export.MaxDataPoints = 1000
	return &App{Config: cfg, Logger: zerolog.Nop()}
}

func TestForecastEndToEnd(t *testing.T) {
	srv := httptest.NewServer(estatHandler(48))
	defer srv.Close()

	a := testApp(srv.URL)
	outcome, err := a.Forecast(context.Background(), ForecastOptions{
		StatsDataID: "0003143513",
		Horizon:     6,
	})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if outcome.Source != "estat" {
		t.Fatalf("expected estat source, got %q", outcome.Source)
	}
	if outcome.Result.Series.Len() != 48 {
		t.Fatalf("expected 48 observations, got %d", outcome.Result.Series.Len())
	}
	if len(outcome.Result.Forecast) != 6 {
		t.Fatalf("expected 6 forecast steps, got %d", len(outcome.Result.Forecast))
	}

	first := outcome.Result.Forecast[0]
	wantMonth := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !first.Date.Equal(wantMonth) {
		t.Fatalf("first forecast month should be %s, got %s", wantMonth, first.Date)
	}
	// 48 months of slope 2 put the next value near 196
	if first.Point < 180 || first.Point > 212 {
		t.Fatalf("forecast should continue the trend, got %.2f", first.Point)
	}
	if first.Lower > first.Point || first.Upper < first.Point {
		t.Fatalf("bounds should bracket the point: %+v", first)
	}
}

func TestForecastInsufficientData(t *testing.T) {
	srv := httptest.NewServer(estatHandler(10))
	defer srv.Close()

	a := testApp(srv.URL)
	_, err := a.Forecast(context.Background(), ForecastOptions{StatsDataID: "0003"})
	if err == nil {
		t.Fatal("10 observations should not be forecastable")
	}
}

func TestForecastRequiresSource(t *testing.T) {
	a := testApp("http://localhost")
	if _, err := a.Forecast(context.Background(), ForecastOptions{}); err == nil {
		t.Fatal("missing stats id and csv should be rejected")
	}
}

func TestReadRawCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "series.csv")
	content := "token,value\n2023年1月,100\n2023年2月,\n2023年3月,104.5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := readRawCSV(path)
	if err != nil {
		t.Fatalf("readRawCSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows after header skip, got %d", len(rows))
	}
	if rows[0].Token != "2023年1月" || rows[0].Value != 100 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if !rows[1].Missing {
		t.Fatal("blank value should be treated as missing")
	}
	if rows[2].Value != 104.5 {
		t.Fatalf("unexpected third row: %+v", rows[2])
	}
}

func TestReadRawCSVEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(path, []byte("token,value\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readRawCSV(path); err == nil {
		t.Fatal("header-only csv should be rejected")
	}
}

func TestForecastFromCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "series.csv")

	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintln(file, "token,value")
	year, month := 2020, 1
	for i := 0; i < 36; i++ {
		fmt.Fprintf(file, "%d年%d月,%.1f\n", year, month, 50+1.5*float64(i))
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	file.Close()

	a := testApp("http://localhost")
	outcome, err := a.Forecast(context.Background(), ForecastOptions{InputCSV: path})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if outcome.Source != "csv" {
		t.Fatalf("expected csv source, got %q", outcome.Source)
	}
	if outcome.Result.Series.Len() != 36 {
		t.Fatalf("expected 36 observations, got %d", outcome.Result.Series.Len())
	}
}

func TestExportWritesCSV(t *testing.T) {
	srv := httptest.NewServer(estatHandler(48))
	defer srv.Close()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "forecast.csv")

	a := testApp(srv.URL)
	err := a.Export(context.Background(), ExportOptions{
		ForecastOptions: ForecastOptions{StatsDataID: "0003", Horizon: 3},
		CSVPath:         csvPath,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("exported csv missing: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("exported csv is empty")
	}
}

func TestExportRequiresTarget(t *testing.T) {
	a := testApp("http://localhost")
	err := a.Export(context.Background(), ExportOptions{
		ForecastOptions: ForecastOptions{StatsDataID: "0003"},
	})
	if err == nil {
		t.Fatal("export without --csv or --png should be rejected")
	}
}

func TestEngineParamsOverrides(t *testing.T) {
	a := testApp("http://localhost")
	a.Config.Engine.Horizon = 24
	a.Config.Engine.ConfidenceLevel = 0.8
	a.Config.Engine.MaxEvaluations = 10

	params := a.engineParams()
	if params.Horizon != 24 || params.ConfidenceLevel != 0.8 || params.MaxEvaluations != 10 {
		t.Fatalf("config overrides not applied: %+v", params)
	}

	defaults := forecast.DefaultParams()
	if params.SeasonalPeriod != defaults.SeasonalPeriod {
		t.Fatalf("unset values should keep defaults, got %+v", params)
	}
}
