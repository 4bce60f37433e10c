package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes Prometheus metrics for the forecasting service. A nil
// Recorder is a valid no-op, so callers without a registry skip nothing.
type Recorder struct {
	fetchesTotal     *prometheus.CounterVec
	forecastsTotal   *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	modelAIC         *prometheus.GaugeVec
	searchEvals      prometheus.Histogram
	requestDuration  *prometheus.HistogramVec
	droppedRowsTotal *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder registered on reg. Each App gets
// its own registerer so constructing a second App never double-registers.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkage_estat_fetches_total",
				Help: "Total number of e-Stat table fetches",
			},
			[]string{"stats_data_id", "outcome"},
		),
		forecastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkage_forecasts_total",
				Help: "Total number of forecast runs",
			},
			[]string{"verdict"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkage_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		modelAIC: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "linkage_model_aic",
				Help: "AIC of the most recently selected model per series",
			},
			[]string{"stats_data_id"},
		),
		searchEvals: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linkage_search_evaluations",
				Help:    "Candidate models evaluated per order search",
				Buckets: []float64{5, 10, 20, 30, 40, 60, 80},
			},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linkage_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		droppedRowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkage_dropped_rows_total",
				Help: "Input rows dropped during normalisation",
			},
			[]string{"stats_data_id"},
		),
	}
}

// RecordFetch records the outcome of an e-Stat fetch.
func (r *Recorder) RecordFetch(statsDataID, outcome string) {
	if r == nil {
		return
	}
	r.fetchesTotal.WithLabelValues(statsDataID, outcome).Inc()
}

// RecordForecast records a completed forecast run and its diagnostic verdict.
func (r *Recorder) RecordForecast(verdict string) {
	if r == nil {
		return
	}
	r.forecastsTotal.WithLabelValues(verdict).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordModel records the selected model quality for a series.
func (r *Recorder) RecordModel(statsDataID string, aic float64, evaluations int) {
	if r == nil {
		return
	}
	r.modelAIC.WithLabelValues(statsDataID).Set(aic)
	r.searchEvals.Observe(float64(evaluations))
}

// RecordDuration records operation latency in seconds.
func (r *Recorder) RecordDuration(op string, seconds float64) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(op).Observe(seconds)
}

// RecordDroppedRows records rows discarded while building the monthly grid.
func (r *Recorder) RecordDroppedRows(statsDataID string, n int) {
	if r == nil {
		return
	}
	if n > 0 {
		r.droppedRowsTotal.WithLabelValues(statsDataID).Add(float64(n))
	}
}
