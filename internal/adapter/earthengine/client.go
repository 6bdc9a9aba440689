package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/observability"
)

// Options selects the dataset and sampling used by Client.
type Options struct {
	BaseURL string  // e.g. https://earthengine.googleapis.com
	Project string  // Cloud project billed for the computation
	Dataset string  // image collection id, e.g. UCSB-CHG/CHIRPS/DAILY
	Band    string  // band sampled at the point, e.g. precipitation
	Scale   float64 // sampling scale in metres
}

// Client implements domain.RainfallSource using the Earth Engine REST API.
type Client struct {
	httpClient *http.Client
	opts       Options
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Earth Engine client. httpClient must attach credentials;
// see NewHTTPClient.
func NewClient(httpClient *http.Client, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		httpClient: httpClient,
		opts:       opts,
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchDaily samples the dataset band at the location for every image in the
// closed range r. Errors are returned as *domain.FetchFailure.
func (c *Client) FetchDaily(ctx context.Context, loc domain.Location, r domain.DateRange) ([]domain.DailyObservation, error) {
	start := time.Now()
	series, err := c.fetch(ctx, loc, r)
	if c.metrics != nil {
		c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, &domain.FetchFailure{LocationID: loc.ID, Name: loc.Name, Err: err}
	}
	return series, nil
}

func (c *Client) fetch(ctx context.Context, loc domain.Location, r domain.DateRange) ([]domain.DailyObservation, error) {
	body, err := json.Marshal(computeRequest{Expression: regionExpression(c.opts, loc.Geo, r)})
	if err != nil {
		return nil, fmt.Errorf("encode expression: %w", err)
	}

	u := fmt.Sprintf("%s/v1/projects/%s/value:compute", c.opts.BaseURL, c.opts.Project)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("compute value request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var out computeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	series, skipped, err := parseRegion(out.Result, c.opts.Band, loc.ID)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		c.logger.Debug("skipped region rows without a date", "twp_id", loc.ID, "rows", skipped)
	}
	if len(series) == 0 {
		return nil, domain.ErrNoData
	}
	return domain.NormalizeSeries(series), nil
}

// parseRegion converts getRegion output, a header row followed by one row per
// image, into observations. Rows with no usable date are skipped and counted.
func parseRegion(rows [][]json.RawMessage, band, locationID string) ([]domain.DailyObservation, int, error) {
	if len(rows) == 0 {
		return nil, 0, nil
	}

	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		if err := json.Unmarshal(cell, &header[i]); err != nil {
			return nil, 0, fmt.Errorf("decode region header: %w", err)
		}
	}
	timeCol, idCol, bandCol := -1, -1, -1
	for i, h := range header {
		switch h {
		case "time":
			timeCol = i
		case "id":
			idCol = i
		case band:
			bandCol = i
		}
	}
	if bandCol < 0 {
		return nil, 0, fmt.Errorf("band %q not in region header %v", band, header)
	}
	if timeCol < 0 && idCol < 0 {
		return nil, 0, fmt.Errorf("region header %v has neither time nor id", header)
	}

	series := make([]domain.DailyObservation, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		date, ok := rowDate(row, timeCol, idCol)
		if !ok {
			skipped++
			continue
		}
		var value domain.Amount
		if bandCol < len(row) {
			value = parseValue(row[bandCol])
		}
		series = append(series, domain.DailyObservation{
			LocationID: locationID,
			Date:       date,
			Rainfall:   value,
		})
	}
	return series, skipped, nil
}

// rowDate prefers the image start time in epoch milliseconds and falls back
// to a YYYYMMDD image id.
func rowDate(row []json.RawMessage, timeCol, idCol int) (time.Time, bool) {
	if timeCol >= 0 && timeCol < len(row) {
		var ms *float64
		if err := json.Unmarshal(row[timeCol], &ms); err == nil && ms != nil {
			return domain.TruncateDay(time.UnixMilli(int64(*ms))), true
		}
	}
	if idCol >= 0 && idCol < len(row) {
		var id string
		if err := json.Unmarshal(row[idCol], &id); err == nil {
			if t, err := time.ParseInLocation("20060102", id, time.UTC); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// parseValue coerces a raw cell to an amount: numbers and numeric strings are
// present, everything else is missing.
func parseValue(raw json.RawMessage) domain.Amount {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return domain.Missing()
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return domain.Millimetres(v)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return domain.ParseAmount(s)
	}
	return domain.Missing()
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return fmt.Errorf("earth engine API error: status %d %s: %s", resp.StatusCode, e.Error.Status, e.Error.Message)
	}
	return fmt.Errorf("earth engine API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}

// Earth Engine REST response types.

type computeResponse struct {
	Result [][]json.RawMessage `json:"result"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
