package model

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks.
var (
	_ domain.Predictor = (*Logistic)(nil)
	_ domain.Predictor = (*Remote)(nil)
)

const artifact = `{"feature":"rolling_7d","coefficients":[0.05],"intercept":-2.0}`

func TestParseLogistic(t *testing.T) {
	m, err := ParseLogistic(strings.NewReader(artifact))
	require.NoError(t, err)

	p, err := m.PredictFailure(context.Background(), 40)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-12, "z = -2 + 0.05*40 = 0")

	p, err = m.PredictFailure(context.Background(), 0)
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(2)), p, 1e-12)
}

func TestLogistic_Monotonic(t *testing.T) {
	m, err := ParseLogistic(strings.NewReader(artifact))
	require.NoError(t, err)

	prev := -1.0
	for _, x := range []float64{0, 10, 50, 100, 500} {
		p, err := m.PredictFailure(context.Background(), x)
		require.NoError(t, err)
		assert.Greater(t, p, prev)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		prev = p
	}
}

func TestLogistic_RejectsNonFiniteFeature(t *testing.T) {
	m, err := ParseLogistic(strings.NewReader(artifact))
	require.NoError(t, err)

	_, err = m.PredictFailure(context.Background(), math.NaN())
	require.Error(t, err)
}

func TestParseLogistic_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"malformed", `{`, "decode model"},
		{"unknown field", `{"feature":"rolling_7d","coefficients":[1],"intercept":0,"extra":1}`, "decode model"},
		{"wrong feature", `{"feature":"rainfall","coefficients":[1],"intercept":0}`, `model feature "rainfall"`},
		{"two coefficients", `{"feature":"rolling_7d","coefficients":[1,2],"intercept":0}`, "2 coefficients, want 1"},
		{"no coefficients", `{"feature":"rolling_7d","intercept":0}`, "0 coefficients, want 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLogistic(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadLogistic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(artifact), 0o600))

	m, err := LoadLogistic(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.05}, m.Coefficients)
	assert.InDelta(t, -2.0, m.Intercept, 0)
}

func TestLoadLogistic_MissingFile(t *testing.T) {
	_, err := LoadLogistic(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemote_PredictFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, 12.5, req.Features["rolling_7d"], 0)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"probability":0.81}`))
	}))
	defer srv.Close()

	p, err := NewRemote(srv.URL, time.Second).PredictFailure(context.Background(), 12.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.81, p, 1e-12)
}

func TestRemote_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			},
			want: "returned 503: model not loaded",
		},
		{
			name: "no probability",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
			want: "no probability",
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`nope`))
			},
			want: "decode response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewRemote(srv.URL, time.Second).PredictFailure(context.Background(), 1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRemote_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"probability":0.1}`))
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, 20*time.Millisecond).PredictFailure(context.Background(), 1)
	require.Error(t, err)
}
