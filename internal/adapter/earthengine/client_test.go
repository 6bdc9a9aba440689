package earthengine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var testLoc = domain.Location{ID: "TWP-001", Name: "Chongwe Well", Geo: domain.Geo{Lon: 28.27, Lat: -15.41}}

func testClient(baseURL string) *Client {
	return NewClient(&http.Client{Timeout: 5 * time.Second}, Options{
		BaseURL: baseURL + "/",
		Project: "test-project",
		Dataset: "UCSB-CHG/CHIRPS/DAILY",
		Band:    "precipitation",
		Scale:   5000,
	}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func day(s string) time.Time {
	t, err := time.ParseInLocation(domain.DateFormat, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func ms(s string) int64 { return day(s).UnixMilli() }

func writeRegion(t *testing.T, w http.ResponseWriter, rows ...[]any) {
	t.Helper()
	w.Header().Set(headerContentType, contentTypeJSON)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"result": rows}))
}

var regionHeader = []any{"id", "longitude", "latitude", "time", "precipitation"}

func TestClient_FetchDaily_RequestShape(t *testing.T) {
	var got computeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/projects/test-project/value:compute", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		writeRegion(t, w, regionHeader, []any{"20240101", 28.27, -15.41, ms("2024-01-01"), 1.5})
	}))
	defer srv.Close()

	r := domain.DateRange{Start: day("2024-01-01"), End: day("2024-01-07")}
	_, err := testClient(srv.URL).FetchDaily(context.Background(), testLoc, r)
	require.NoError(t, err)

	require.Equal(t, "0", got.Expression.Result)
	root := got.Expression.Values["0"].FunctionInvocationValue
	require.NotNil(t, root)
	assert.Equal(t, "ImageCollection.getRegion", root.FunctionName)
	assert.InDelta(t, 5000.0, root.Arguments["scale"].ConstantValue, 0)

	point := got.Expression.Values["2"].FunctionInvocationValue
	require.NotNil(t, point)
	assert.Equal(t, []any{28.27, -15.41}, point.Arguments["coordinates"].ConstantValue)

	load := got.Expression.Values["3"].FunctionInvocationValue
	require.NotNil(t, load)
	assert.Equal(t, "UCSB-CHG/CHIRPS/DAILY", load.Arguments["id"].ConstantValue)

	dates := got.Expression.Values["5"].FunctionInvocationValue
	require.NotNil(t, dates)
	assert.Equal(t, "2024-01-01", dates.Arguments["start"].ConstantValue)
	assert.Equal(t, "2024-01-08", dates.Arguments["end"].ConstantValue, "end bound is sent exclusive")
}

func TestClient_FetchDaily_NormalizesSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeRegion(t, w, regionHeader,
			[]any{"20240103", 28.27, -15.41, ms("2024-01-03"), "bad"},
			[]any{"20240101", 28.27, -15.41, ms("2024-01-01"), 2.0},
			[]any{"20240102", 28.27, -15.41, ms("2024-01-02"), nil},
			[]any{"20240101", 28.27, -15.41, ms("2024-01-01"), 9.0},
			[]any{"20240104", 28.27, -15.41, ms("2024-01-04"), 0.0},
		)
	}))
	defer srv.Close()

	r := domain.DateRange{Start: day("2024-01-01"), End: day("2024-01-04")}
	series, err := testClient(srv.URL).FetchDaily(context.Background(), testLoc, r)
	require.NoError(t, err)

	want := []domain.DailyObservation{
		{LocationID: "TWP-001", Date: day("2024-01-01"), Rainfall: domain.Millimetres(2.0)},
		{LocationID: "TWP-001", Date: day("2024-01-02"), Rainfall: domain.Missing()},
		{LocationID: "TWP-001", Date: day("2024-01-03"), Rainfall: domain.Missing()},
		{LocationID: "TWP-001", Date: day("2024-01-04"), Rainfall: domain.Millimetres(0)},
	}
	assert.Equal(t, want, series)
}

func TestClient_FetchDaily_FallsBackToImageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeRegion(t, w, regionHeader,
			[]any{"20240105", 28.27, -15.41, nil, 3.25},
			[]any{"not-a-date", 28.27, -15.41, nil, 1.0},
		)
	}))
	defer srv.Close()

	series, err := testClient(srv.URL).FetchDaily(context.Background(), testLoc,
		domain.DateRange{Start: day("2024-01-05"), End: day("2024-01-05")})
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, day("2024-01-05"), series[0].Date)
	assert.Equal(t, domain.Millimetres(3.25), series[0].Rainfall)
}

func TestClient_FetchDaily_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeRegion(t, w, regionHeader)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchDaily(context.Background(), testLoc,
		domain.DateRange{Start: day("2024-01-01"), End: day("2024-01-07")})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoData)

	var ff *domain.FetchFailure
	require.ErrorAs(t, err, &ff)
	assert.Equal(t, "TWP-001", ff.LocationID)
	assert.Equal(t, "Chongwe Well", ff.Name)
}

func TestClient_FetchDaily_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Too many concurrent aggregations.","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchDaily(context.Background(), testLoc,
		domain.DateRange{Start: day("2024-01-01"), End: day("2024-01-07")})
	require.Error(t, err)

	var ff *domain.FetchFailure
	require.ErrorAs(t, err, &ff)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "RESOURCE_EXHAUSTED")
	assert.Contains(t, err.Error(), "Too many concurrent aggregations.")
}

func TestClient_FetchDaily_PlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchDaily(context.Background(), testLoc,
		domain.DateRange{Start: day("2024-01-01"), End: day("2024-01-07")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502: upstream unavailable")
}

func TestClient_FetchDaily_MissingBand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeRegion(t, w, []any{"id", "longitude", "latitude", "time", "other"},
			[]any{"20240101", 28.27, -15.41, ms("2024-01-01"), 1.0})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchDaily(context.Background(), testLoc,
		domain.DateRange{Start: day("2024-01-01"), End: day("2024-01-01")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `band "precipitation" not in region header`)
}

func TestClient_FetchDaily_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchDaily(context.Background(), testLoc,
		domain.DateRange{Start: day("2024-01-01"), End: day("2024-01-01")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_FetchDaily_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeRegion(t, w, regionHeader)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).FetchDaily(ctx, testLoc,
		domain.DateRange{Start: day("2024-01-01"), End: day("2024-01-01")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewHTTPClient_InvalidKey(t *testing.T) {
	_, err := NewHTTPClient(context.Background(), `{"type":"service_account"`, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
