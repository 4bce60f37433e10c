package estat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func statsBody(values string) string {
	return fmt.Sprintf(`{
		"GET_STATS_DATA": {
			"RESULT": {"STATUS": 0, "ERROR_MSG": "正常に終了しました。"},
			"STATISTICAL_DATA": {
				"CLASS_INF": {
					"CLASS_OBJ": [
						{"@id": "cat01", "@name": "品目", "CLASS": {"@code": "0001", "@name": "総合"}},
						{"@id": "time", "@name": "時間軸（月次）", "CLASS": [
							{"@code": "2023000101", "@name": "2023年1月"},
							{"@code": "2023000202", "@name": "2023年2月"}
						]}
					]
				},
				"DATA_INF": {"VALUE": %s}
			}
		}
	}`, values)
}

func newTestClient(baseURL string) *Client {
	return NewClient(Options{
		BaseURL:   baseURL,
		AppID:     "test-app-id",
		Timeout:   time.Second,
		UserAgent: "test",
	}, noopLogger())
}

func TestFetchSeriesMapsTimeAxisLabels(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statsBody(`[
			{"@time": "2023000101", "@cat01": "0001", "@area": "00000", "@unit": "円", "$": "100.5"},
			{"@time": "2023000202", "@cat01": "0001", "@area": "00000", "@unit": "円", "$": "-"}
		]`)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	obs, err := c.FetchSeries(context.Background(), Query{StatsDataID: "0003"})
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].Token != "2023年1月" {
		t.Fatalf("time code should resolve to label, got %q", obs[0].Token)
	}
	if obs[0].Missing || obs[0].Value.String() != "100.5" {
		t.Fatalf("unexpected first observation: %+v", obs[0])
	}
	if !obs[1].Missing {
		t.Fatal("suppression marker should flag the observation missing")
	}
	if obs[0].Unit != "円" {
		t.Fatalf("unit should carry through, got %q", obs[0].Unit)
	}

	if gotQuery.Get("appId") != "test-app-id" {
		t.Fatal("appId should be sent")
	}
	if gotQuery.Get("metaGetFlg") != "Y" || gotQuery.Get("cntGetFlg") != "N" {
		t.Fatal("metadata flags should be set")
	}
	if gotQuery.Get("cdCat01") != "" {
		t.Fatal("category filter should be omitted when empty")
	}
}

func TestFetchSeriesSendsFilters(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statsBody(`{"@time": "2023000101", "@cat01": "0001", "@area": "13000", "@unit": "円", "$": "1"}`)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	obs, err := c.FetchSeries(context.Background(), Query{StatsDataID: "0003", Category: "0001", Area: "13000"})
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}
	// single-object VALUE must decode the same as a one-element array
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
	if gotQuery.Get("cdCat01") != "0001" || gotQuery.Get("cdArea") != "13000" {
		t.Fatal("category and area filters should be forwarded")
	}
}

func TestFetchSeriesAPIStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"GET_STATS_DATA": {"RESULT": {"STATUS": 100, "ERROR_MSG": "該当するデータはありません。"}}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FetchSeries(context.Background(), Query{StatsDataID: "0003"})
	if err == nil {
		t.Fatal("non-zero STATUS should return an error")
	}
	if !strings.Contains(err.Error(), "該当するデータはありません") {
		t.Fatalf("error should carry the API message, got %v", err)
	}
}

func TestFetchSeriesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "invalid appId"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FetchSeries(context.Background(), Query{StatsDataID: "0003"})
	if err == nil {
		t.Fatal("HTTP 403 should return an error")
	}
	if !strings.Contains(err.Error(), "invalid appId") {
		t.Fatalf("error should include upstream message, got %v", err)
	}
}

func TestFetchSeriesMissingAppID(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://localhost"}, noopLogger())
	if _, err := c.FetchSeries(context.Background(), Query{StatsDataID: "0003"}); err == nil {
		t.Fatal("missing app id should return an error")
	}
}

func TestFetchSeriesEmptyTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statsBody(`[]`)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.FetchSeries(context.Background(), Query{StatsDataID: "0003"}); err == nil {
		t.Fatal("empty VALUE list should return an error")
	}
}

func TestToRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statsBody(`[
			{"@time": "2023000101", "@cat01": "0001", "@area": "00000", "@unit": "円", "$": "10"},
			{"@time": "2023000202", "@cat01": "0001", "@area": "00000", "@unit": "円", "$": "…"}
		]`)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	obs, err := c.FetchSeries(context.Background(), Query{StatsDataID: "0003"})
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}

	rows := ToRaw(obs)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Token != "2023年1月" || rows[0].Value != 10 || rows[0].Missing {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if !rows[1].Missing {
		t.Fatal("missing observation should map to missing row")
	}
}
