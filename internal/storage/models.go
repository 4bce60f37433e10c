package storage

import (
	"encoding/json"
	"time"
)

// ForecastRun is one archived forecast for a statistical series. Forecast
// holds the serialized path with confidence bounds as produced by the engine.
type ForecastRun struct {
	ID              int64
	StatsDataID     string
	Category        string
	Area            string
	SeriesStart     time.Time
	SeriesEnd       time.Time
	Observations    int
	DroppedRows     int
	ModelSpec       string
	AIC             float64
	BIC             float64
	Horizon         int
	ConfidenceLevel float64
	Verdict         string
	LjungBoxStat    *float64
	LjungBoxPValue  *float64
	Forecast        json.RawMessage
	CreatedAt       time.Time
}
