package commands

import (
	"fmt"
	"log/slog"
	"os"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/etmur007/rainfall-risk-dashboard/internal/catalog"
	"github.com/etmur007/rainfall-risk-dashboard/internal/cli/ui"
	"github.com/etmur007/rainfall-risk-dashboard/internal/config"
	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/observability"
)

// env is the configuration every subcommand starts from.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	wells   []domain.Location
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		ui.PrintError("failed to load config: %v", err)
		return nil, fmt.Errorf("config load failed")
	}
	wells, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		ui.PrintError("%v", err)
		return nil, fmt.Errorf("catalog load failed")
	}
	return &env{
		cfg:     cfg,
		logger:  sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat),
		metrics: observability.NewMetrics(),
		wells:   wells,
	}, nil
}

// isInteractive reports whether stdin is a terminal.
func isInteractive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
