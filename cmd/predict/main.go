// Command predict assesses well failure risk from the trailing week of
// rainfall for every catalogued well and appends the results to the history.
//
// Usage:
//
//	predict [--as-of 2024-03-11] [--dry-run]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/etmur007/rainfall-risk-dashboard/internal/adapter/history"
	kafkaadapter "github.com/etmur007/rainfall-risk-dashboard/internal/adapter/kafka"
	"github.com/etmur007/rainfall-risk-dashboard/internal/app"
	"github.com/etmur007/rainfall-risk-dashboard/internal/catalog"
	"github.com/etmur007/rainfall-risk-dashboard/internal/config"
	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/observability"
	"github.com/etmur007/rainfall-risk-dashboard/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	asOf := fs.String("as-of", "", "assess the days before this date, YYYY-MM-DD (default today)")
	dryRun := fs.Bool("dry-run", false, "compute assessments without writing history or publishing")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	day := domain.Today()
	if *asOf != "" {
		day, err = time.ParseInLocation(domain.DateFormat, *asOf, time.UTC)
		if err != nil {
			logger.Error("invalid --as-of", "value", *asOf, "error", err)
			return 2
		}
	}
	window := domain.TrailingDays(cfg.LookbackDays, day)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	locations, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		return 1
	}
	logger.Info("catalog loaded", "path", cfg.CatalogPath, "locations", len(locations))

	source, err := app.NewSource(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to configure rainfall source", "error", err)
		return 1
	}
	predictor, err := app.NewPredictor(cfg)
	if err != nil {
		logger.Error("failed to load model", "error", err)
		return 1
	}
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open history", "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("history close error", "error", err)
		}
	}()

	opts := pipeline.Options{
		FetchTimeout: cfg.FetchTimeout,
		Concurrency:  cfg.FetchConcurrency,
		DryRun:       *dryRun,
	}
	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		opts.Publishers = append(opts.Publishers, publisher)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(source, domain.NewClassifier(predictor), store, logger, metrics, opts)
	report, runErr := p.Run(ctx, locations, window)

	if cfg.PushgatewayURL != "" {
		pushCtx, pushCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := observability.Push(pushCtx, cfg.PushgatewayURL, prometheus.DefaultGatherer, report.RunID); err != nil {
			logger.Warn("push metrics failed", "error", err)
		}
		pushCancel()
	}

	return finish(report, runErr, os.Stdout, os.Stderr, logger)
}

// finish prints the run outcome and returns the exit code. Logs share stdout,
// so a failed persist dumps the assessments as CSV to stderr after the summary.
func finish(report pipeline.Report, runErr error, stdout, stderr io.Writer, logger *slog.Logger) int {
	if runErr == nil || errors.Is(runErr, domain.ErrEmptyRun) {
		fmt.Fprintln(stdout, report.Summary())
		return 0
	}
	fmt.Fprintf(stderr, "%s\npersist failed: %v\nassessments follow\n", report.Summary(), runErr)
	if err := history.WriteAssessmentsCSV(stderr, report.Assessments); err != nil {
		logger.Error("dump assessments failed", "error", err)
	}
	return 1
}
