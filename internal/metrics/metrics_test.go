package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistersOnProvidedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := New(reg)

	rec.RecordFetch("0003411561", "ok")
	rec.RecordForecast("VALID")
	rec.RecordError("upstream")
	rec.RecordModel("0003411561", 812.4, 23)
	rec.RecordDuration("forecast", 1.2)
	rec.RecordDroppedRows("0003411561", 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}

	found := map[string]bool{}
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	for _, name := range []string{
		"linkage_estat_fetches_total",
		"linkage_forecasts_total",
		"linkage_model_aic",
		"linkage_dropped_rows_total",
	} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	// Registering the same collectors twice on one registry panics; a
	// Recorder per registry must not share state.
	first := New(prometheus.NewRegistry())
	second := New(prometheus.NewRegistry())

	first.RecordForecast("VALID")
	second.RecordForecast("REQUIRES_REVIEW")
}

func TestNilRecorderIsNoOp(t *testing.T) {
	var rec *Recorder

	rec.RecordFetch("id", "ok")
	rec.RecordForecast("VALID")
	rec.RecordError("fit")
	rec.RecordModel("id", 1, 1)
	rec.RecordDuration("op", 0.1)
	rec.RecordDroppedRows("id", 2)
}
