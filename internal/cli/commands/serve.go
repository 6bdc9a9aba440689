package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/etmur007/rainfall-risk-dashboard/internal/adapter/earthengine"
	httpadapter "github.com/etmur007/rainfall-risk-dashboard/internal/adapter/http"
	"github.com/etmur007/rainfall-risk-dashboard/internal/app"
	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/pipeline"
)

var serveAddr string

// serveCmd exposes explorations over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the rainfall API for the dashboard",
	Long: `Serve /api/wells, /api/rainfall and /api/rainfall.csv alongside the
/healthz, /readyz and /metrics endpoints. Fetched ranges are cached in
memory (CACHE_SIZE entries).`,
	Example: `  $ explorer serve
  $ explorer serve --addr :9090`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	logger := e.logger
	addr := e.cfg.HTTPAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := app.NewSource(ctx, e.cfg, e.metrics, logger)
	if err != nil {
		return fmt.Errorf("configure rainfall source: %w", err)
	}
	source := earthengine.NewCachedSource(client, e.cfg.CacheSize, e.metrics)
	logger.Info("rainfall cache enabled", "cache_size", e.cfg.CacheSize)

	var classifier *domain.Classifier
	if predictor, err := app.NewPredictor(e.cfg); err != nil {
		logger.Warn("risk scoring disabled", "error", err)
	} else {
		classifier = domain.NewClassifier(predictor)
	}

	session := pipeline.NewSession(source, classifier, e.cfg.FetchTimeout, logger, e.metrics)
	api := httpadapter.NewAPI(e.wells, session, logger)
	ready := httpadapter.ReadinessFunc(func(ctx context.Context) error {
		if len(e.wells) == 0 {
			return errors.New("catalog is empty")
		}
		return ctx.Err()
	})
	srv := httpadapter.NewServer(addr, ready, api, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("http server error", "error", err)
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
