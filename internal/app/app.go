// Package app builds the adapters shared by the commands from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/etmur007/rainfall-risk-dashboard/internal/adapter/earthengine"
	"github.com/etmur007/rainfall-risk-dashboard/internal/adapter/history"
	"github.com/etmur007/rainfall-risk-dashboard/internal/adapter/model"
	"github.com/etmur007/rainfall-risk-dashboard/internal/config"
	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/observability"
	"github.com/etmur007/rainfall-risk-dashboard/internal/pipeline"
)

// HistoryStore is a history backend that can also be read back.
type HistoryStore interface {
	pipeline.Store
	Load(ctx context.Context) ([]domain.RiskAssessment, error)
	Close() error
}

// NewSource returns an authenticated Earth Engine client.
func NewSource(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*earthengine.Client, error) {
	httpClient, err := earthengine.NewHTTPClient(ctx, cfg.KeyJSON, cfg.FetchTimeout)
	if err != nil {
		return nil, err
	}
	logger.Info("earth engine source configured",
		"project", cfg.EarthEngineProject,
		"dataset", cfg.EarthEngineDataset,
		"band", cfg.EarthEngineBand,
		"scale", cfg.EarthEngineScale,
		"service_account", cfg.ServiceAccount,
	)
	return earthengine.NewClient(httpClient, earthengine.Options{
		BaseURL: cfg.EarthEngineBaseURL,
		Project: cfg.EarthEngineProject,
		Dataset: cfg.EarthEngineDataset,
		Band:    cfg.EarthEngineBand,
		Scale:   cfg.EarthEngineScale,
	}, metrics, logger), nil
}

// NewPredictor returns the remote predictor when MODEL_URL is set, otherwise
// the logistic model loaded from MODEL_PATH.
func NewPredictor(cfg *config.Config) (domain.Predictor, error) {
	if cfg.ModelURL != "" {
		return model.NewRemote(cfg.ModelURL, cfg.ModelTimeout), nil
	}
	m, err := model.LoadLogistic(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// OpenStore opens the configured history backend.
func OpenStore(ctx context.Context, cfg *config.Config) (HistoryStore, error) {
	switch cfg.HistoryBackend {
	case config.BackendSQLite:
		s, err := history.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendCSV:
		return history.NewCSVStore(cfg.HistoryPath), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}
