package estat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/soomorita/macro-micro-linkage/internal/timeseries"
)

const getStatsDataPath = "/getStatsData"

// Options parameterise the e-Stat statistics fetcher.
type Options struct {
	BaseURL   string
	AppID     string
	Timeout   time.Duration
	UserAgent string
}

// Query identifies one statistical series to pull.
type Query struct {
	StatsDataID string
	Category    string
	Area        string
}

// Observation is a single cell of the tidy table derived from the API
// payload. Token carries the time-axis label exactly as published, which
// downstream normalisation is responsible for interpreting.
type Observation struct {
	Token    string
	Value    decimal.Decimal
	Missing  bool
	Category string
	Area     string
	Unit     string
}

// Client fetches statistical tables from the e-Stat API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs an e-Stat client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.e-stat.go.jp/rest/3.0/app/json"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "estat_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchSeries pulls one statistical table and flattens it into observations.
// The time-axis classification is resolved against the table metadata so the
// returned tokens carry the published period labels rather than raw codes.
func (c *Client) FetchSeries(ctx context.Context, q Query) ([]Observation, error) {
	if c.opts.AppID == "" {
		return nil, errors.New("estat app id required")
	}
	if q.StatsDataID == "" {
		return nil, errors.New("statsDataId required")
	}

	params := url.Values{}
	params.Set("appId", c.opts.AppID)
	params.Set("statsDataId", q.StatsDataID)
	params.Set("metaGetFlg", "Y")
	params.Set("cntGetFlg", "N")
	if q.Category != "" {
		params.Set("cdCat01", q.Category)
	}
	if q.Area != "" {
		params.Set("cdArea", q.Area)
	}

	endpoint := c.baseURL + getStatsDataPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "linkage/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var envelope statsDataEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode estat payload: %w", err)
	}

	result := envelope.GetStatsData.Result
	if result.Status.String() != "0" {
		msg := strings.TrimSpace(result.ErrorMsg)
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("estat api error (status %s): %s", result.Status.String(), msg)
	}

	timeLabels := envelope.GetStatsData.StatisticalData.ClassInf.timeAxis()
	values := envelope.GetStatsData.StatisticalData.DataInf.Values
	if len(values) == 0 {
		return nil, fmt.Errorf("estat table %s returned no values", q.StatsDataID)
	}

	obs := make([]Observation, 0, len(values))
	for _, v := range values {
		token := v.Time
		if label, ok := timeLabels[v.Time]; ok {
			token = label
		}
		o := Observation{
			Token:    token,
			Category: v.Cat01,
			Area:     v.Area,
			Unit:     v.Unit,
		}
		parsed, err := decimal.NewFromString(strings.TrimSpace(v.Value))
		if err != nil {
			// Suppressed cells come back as markers such as "-" or "…".
			o.Missing = true
		} else {
			o.Value = parsed
		}
		obs = append(obs, o)
	}

	c.logger.Debug().
		Str("stats_data_id", q.StatsDataID).
		Int("observations", len(obs)).
		Msg("fetched statistical table")

	return obs, nil
}

// ToRaw converts observations into preprocessor input rows.
func ToRaw(obs []Observation) []timeseries.Raw {
	rows := make([]timeseries.Raw, len(obs))
	for i, o := range obs {
		rows[i] = timeseries.Raw{
			Token:   o.Token,
			Value:   o.Value.InexactFloat64(),
			Missing: o.Missing,
		}
	}
	return rows
}

type statsDataEnvelope struct {
	GetStatsData struct {
		Result struct {
			Status   json.Number `json:"STATUS"`
			ErrorMsg string      `json:"ERROR_MSG"`
		} `json:"RESULT"`
		StatisticalData struct {
			ClassInf classInf `json:"CLASS_INF"`
			DataInf  struct {
				Values valueList `json:"VALUE"`
			} `json:"DATA_INF"`
		} `json:"STATISTICAL_DATA"`
	} `json:"GET_STATS_DATA"`
}

type classInf struct {
	ClassObjs classObjList `json:"CLASS_OBJ"`
}

// timeAxis resolves the time classification into a code-to-label map. The
// axis is identified by id "time" or by a name containing 時間軸.
func (ci classInf) timeAxis() map[string]string {
	for _, obj := range ci.ClassObjs {
		if obj.ID != "time" && !strings.Contains(obj.Name, "時間軸") {
			continue
		}
		labels := make(map[string]string, len(obj.Classes))
		for _, cl := range obj.Classes {
			labels[cl.Code] = cl.Name
		}
		return labels
	}
	return nil
}

type classObj struct {
	ID      string        `json:"@id"`
	Name    string        `json:"@name"`
	Classes classItemList `json:"CLASS"`
}

type classItem struct {
	Code string `json:"@code"`
	Name string `json:"@name"`
}

type statValue struct {
	Time  string `json:"@time"`
	Cat01 string `json:"@cat01"`
	Area  string `json:"@area"`
	Unit  string `json:"@unit"`
	Value string `json:"$"`
}

// The e-Stat API returns repeated elements as a bare object when there is
// exactly one of them. These list wrappers accept both shapes.

type valueList []statValue

func (l *valueList) UnmarshalJSON(data []byte) error {
	return unmarshalOneOrMany(data, (*[]statValue)(l))
}

type classObjList []classObj

func (l *classObjList) UnmarshalJSON(data []byte) error {
	return unmarshalOneOrMany(data, (*[]classObj)(l))
}

type classItemList []classItem

func (l *classItemList) UnmarshalJSON(data []byte) error {
	return unmarshalOneOrMany(data, (*[]classItem)(l))
}

func unmarshalOneOrMany[T any](data []byte, out *[]T) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(data, out)
	}
	var single T
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*out = []T{single}
	return nil
}

type errorResponse struct {
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("estat api error (%d): %s", status, apiErr.Message)
	}
	if len(payload) > 0 {
		return fmt.Errorf("estat api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("estat api error (%d)", status)
}
