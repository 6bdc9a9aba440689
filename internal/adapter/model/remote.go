package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Remote scores features against an HTTP inference endpoint.
type Remote struct {
	url        string
	httpClient *http.Client
}

// NewRemote creates a predictor that POSTs to url with the given timeout.
func NewRemote(url string, timeout time.Duration) *Remote {
	return &Remote{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Features map[string]float64 `json:"features"`
}

type predictResponse struct {
	Probability *float64 `json:"probability"`
}

func (r *Remote) PredictFailure(ctx context.Context, rolling7d float64) (float64, error) {
	body, err := json.Marshal(predictRequest{Features: map[string]float64{Feature: rolling7d}})
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, fmt.Errorf("inference endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if out.Probability == nil {
		return 0, errors.New("inference response has no probability")
	}
	return *out.Probability, nil
}
