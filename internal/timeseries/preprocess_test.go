package timeseries

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soomorita/macro-micro-linkage/internal/dates"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestBuildAggregatesAndSorts(t *testing.T) {
	rows := []Raw{
		{Token: "2023年3月", Value: 30},
		{Token: "2023年1月", Value: 10},
		{Token: "20230110", Value: 14}, // same month as above, daily granularity
		{Token: "2023年2月", Value: 20},
	}

	series, dropped, err := Build(rows)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if !series.Start.Equal(month(2023, time.January)) {
		t.Fatalf("start = %s", series.Start)
	}
	want := []float64{12, 20, 30}
	if len(series.Values) != len(want) {
		t.Fatalf("len = %d, want %d", len(series.Values), len(want))
	}
	for i, v := range want {
		if math.Abs(series.Values[i]-v) > 1e-9 {
			t.Errorf("values[%d] = %v, want %v", i, series.Values[i], v)
		}
	}
}

func TestBuildCountsDroppedRows(t *testing.T) {
	rows := []Raw{
		{Token: "2023年1月", Value: 1},
		{Token: "garbage", Value: 2},
		{Token: "2023年2月", Missing: true},
		{Token: "2023年2月", Value: 3},
	}

	series, dropped, err := Build(rows)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if series.Len() != 2 {
		t.Fatalf("len = %d, want 2", series.Len())
	}
}

func TestBuildInterpolatesInteriorGap(t *testing.T) {
	rows := []Raw{
		{Token: "2023年1月", Value: 10},
		{Token: "2023年3月", Value: 30},
	}

	series, _, err := Build(rows)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if series.Len() != 3 {
		t.Fatalf("len = %d, want 3", series.Len())
	}
	if got := series.Values[1]; math.Abs(got-20) > 1e-9 {
		t.Fatalf("interpolated = %v, want 20", got)
	}
}

func TestBuildInterpolatesLongGapByOffset(t *testing.T) {
	rows := []Raw{
		{Token: "202301", Value: 0},
		{Token: "202305", Value: 8},
	}

	series, _, err := Build(rows)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []float64{0, 2, 4, 6, 8}
	for i, v := range want {
		if math.Abs(series.Values[i]-v) > 1e-9 {
			t.Errorf("values[%d] = %v, want %v", i, series.Values[i], v)
		}
	}
}

func TestBuildTooFewPoints(t *testing.T) {
	_, dropped, err := Build([]Raw{
		{Token: "2023年1月", Value: 1},
		{Token: "junk", Value: 2},
	})
	if !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("err = %v, want ErrTooFewPoints", err)
	}
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
}

func TestDiffAndSeasonalDiff(t *testing.T) {
	s := NewMonthly(month(2022, time.January), []float64{1, 3, 6, 10})

	d := s.Diff()
	if d.Len() != 3 || d.Values[0] != 2 || d.Values[2] != 4 {
		t.Fatalf("diff = %v", d.Values)
	}
	if !d.Start.Equal(month(2022, time.February)) {
		t.Fatalf("diff start = %s", d.Start)
	}

	sd := s.SeasonalDiff(2)
	if sd.Len() != 2 || sd.Values[0] != 5 || sd.Values[1] != 7 {
		t.Fatalf("seasonal diff = %v", sd.Values)
	}
}

func TestIsConstant(t *testing.T) {
	if !NewMonthly(month(2022, time.January), []float64{5, 5, 5}).IsConstant() {
		t.Fatal("constant series not detected")
	}
	if NewMonthly(month(2022, time.January), []float64{5, 5, 6}).IsConstant() {
		t.Fatal("non-constant series flagged constant")
	}
}

func TestMonthAt(t *testing.T) {
	s := NewMonthly(month(2022, time.November), []float64{1, 2, 3})
	if got := s.MonthAt(2); !got.Equal(month(2023, time.January)) {
		t.Fatalf("MonthAt(2) = %s", got)
	}
	if got := s.End(); !got.Equal(month(2023, time.January)) {
		t.Fatalf("End = %s", got)
	}
	_ = dates.MonthsBetween(s.Start, s.End())
}
