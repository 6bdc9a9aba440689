package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/etmur007/rainfall-risk-dashboard/internal/adapter/history"
	"github.com/etmur007/rainfall-risk-dashboard/internal/adapter/influx"
	"github.com/etmur007/rainfall-risk-dashboard/internal/app"
	"github.com/etmur007/rainfall-risk-dashboard/internal/cli/ui"
	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/pipeline"
)

const (
	defaultStart = "2024-01-01"
	defaultEnd   = "2024-03-31"
	chartDone    = "Done"
)

var (
	fetchStart      string
	fetchEnd        string
	fetchYes        bool
	fetchExport     string
	fetchInfluxAddr string
	fetchInfluxDB   string
	fetchInfluxUser string
	fetchInfluxPass string
)

// fetchCmd runs one exploration
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "fetch rainfall for every well over a date range",
	Long: `Fetch daily rainfall for every catalogued well over a closed date range,
compute the rolling 7-day sum and show a preview. In a terminal you are
prompted for missing dates, can chart individual wells and choose whether
to export. Use --yes to accept every default without prompting.`,
	Example: `  # Prompt for the range
  $ explorer fetch

  # Non-interactive run with export to the default file
  $ explorer fetch --start 2024-02-01 --end 2024-02-29 --yes

  # Export to a chosen file
  $ explorer fetch --yes --export feb.csv`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchStart, "start", defaultStart, "first day of the range, YYYY-MM-DD")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", defaultEnd, "last day of the range (inclusive), YYYY-MM-DD")
	fetchCmd.Flags().BoolVarP(&fetchYes, "yes", "y", false, "skip prompts and export to --export")
	fetchCmd.Flags().StringVarP(&fetchExport, "export", "o", history.DefaultExportPath, "CSV export path")
	fetchCmd.Flags().StringVar(&fetchInfluxAddr, "influx-addr", "", "InfluxDB address to archive observations to, e.g. http://localhost:8086")
	fetchCmd.Flags().StringVar(&fetchInfluxDB, "influx-db", "rainfall", "InfluxDB database")
	fetchCmd.Flags().StringVar(&fetchInfluxUser, "influx-user", "", "InfluxDB username")
	fetchCmd.Flags().StringVar(&fetchInfluxPass, "influx-password", "", "InfluxDB password")

	fetchCmd.SilenceUsage = true
}

func runFetch(cmd *cobra.Command, _ []string) error {
	interactive := !fetchYes && isInteractive()

	start, end := fetchStart, fetchEnd
	if interactive {
		if !cmd.Flags().Changed("start") {
			if err := askDate("Start date (YYYY-MM-DD):", defaultStart, &start); err != nil {
				return err
			}
		}
		if !cmd.Flags().Changed("end") {
			if err := askDate("End date (YYYY-MM-DD):", defaultEnd, &end); err != nil {
				return err
			}
		}
	}
	r, err := domain.ParseDateRange(start, end)
	if err != nil {
		ui.PrintError("invalid date range %s..%s: %v", start, end, err)
		return fmt.Errorf("invalid date range")
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := app.NewSource(ctx, e.cfg, e.metrics, e.logger)
	if err != nil {
		ui.PrintError("failed to configure rainfall source: %v", err)
		return fmt.Errorf("source setup failed")
	}
	var classifier *domain.Classifier
	if predictor, err := app.NewPredictor(e.cfg); err != nil {
		ui.PrintWarning("risk scoring disabled: %v", err)
	} else {
		classifier = domain.NewClassifier(predictor)
	}

	ui.PrintBold("Fetching %s for %d wells", r, len(e.wells))
	session := pipeline.NewSession(source, classifier, e.cfg.FetchTimeout, e.logger, e.metrics)
	ex, err := session.Explore(ctx, e.wells, r, printProgress)
	switch {
	case errors.Is(err, domain.ErrEmptyRun):
		ui.PrintWarning("No rainfall data fetched for %s", r)
		return nil
	case err != nil:
		return err
	}
	if len(ex.Failures) > 0 {
		ui.PrintWarning("%d of %d wells failed", len(ex.Failures), len(e.wells))
	}

	fmt.Println(ui.Styles.Title.Render("Preview"))
	fmt.Println(ui.RenderPreview(ex.Series, ui.PreviewRows))
	if len(ex.Latest) > 0 {
		fmt.Println(ui.Styles.Title.Render("Latest failure risk"))
		fmt.Println(ui.RenderAssessments(ex.Latest))
	}

	if interactive {
		if err := chartLoop(ex.Series); err != nil {
			return err
		}
	}

	path, ok, err := exportTarget(cmd, interactive)
	if err != nil {
		return err
	}
	if ok {
		n, err := exportSeries(path, ex.Series)
		if err != nil {
			ui.PrintError("export failed: %v", err)
			return fmt.Errorf("export failed")
		}
		ui.PrintSuccess("Exported %d rows to %s", n, path)
	}

	if fetchInfluxAddr != "" {
		return archive(ctx, e.cfg.FetchTimeout, ex.Series)
	}
	return nil
}

func printProgress(p pipeline.Progress) {
	if !p.Done {
		ui.PrintProgress(p.Index, p.Total, p.Location.Name)
		return
	}
	ui.PrintProgressDone(p.Err)
}

func askDate(message, def string, out *string) error {
	prompt := &survey.Input{Message: message, Default: def}
	err := survey.AskOne(prompt, out, survey.WithValidator(func(ans interface{}) error {
		s, _ := ans.(string)
		if _, err := time.Parse(domain.DateFormat, s); err != nil {
			return fmt.Errorf("expected YYYY-MM-DD")
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("input cancelled")
	}
	return nil
}

// chartOptions labels each series for the chart picker, followed by chartDone.
func chartOptions(series []domain.LocationSeries) []string {
	opts := make([]string, 0, len(series)+1)
	for _, s := range series {
		opts = append(opts, fmt.Sprintf("%s (%s)", s.Location.Name, s.Location.ID))
	}
	return append(opts, chartDone)
}

func chartLoop(series []domain.LocationSeries) error {
	opts := chartOptions(series)
	for {
		var choice int
		prompt := &survey.Select{
			Message: "Chart a well:",
			Options: opts,
		}
		if err := survey.AskOne(prompt, &choice); err != nil {
			return fmt.Errorf("selection cancelled")
		}
		if choice >= len(series) {
			return nil
		}
		fmt.Println(ui.RenderChart(series[choice], 0))
	}
}

// exportTarget decides whether and where to export. Without a terminal an
// export happens only when --yes or --export is given.
func exportTarget(cmd *cobra.Command, interactive bool) (string, bool, error) {
	if !interactive {
		return fetchExport, fetchYes || cmd.Flags().Changed("export"), nil
	}
	confirm := true
	if err := survey.AskOne(&survey.Confirm{Message: "Export all rows to CSV?", Default: true}, &confirm); err != nil {
		return "", false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	if !confirm {
		return "", false, nil
	}
	path := fetchExport
	if err := survey.AskOne(&survey.Input{Message: "File name:", Default: fetchExport}, &path, survey.WithValidator(survey.Required)); err != nil {
		return "", false, fmt.Errorf("input cancelled")
	}
	return path, true, nil
}

// exportSeries writes every series position to path and returns the row count.
func exportSeries(path string, series []domain.LocationSeries) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := history.WriteSeriesCSV(f, series); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	n := 0
	for _, s := range series {
		n += len(s.Features)
	}
	return n, nil
}

func archive(ctx context.Context, timeout time.Duration, series []domain.LocationSeries) error {
	w, err := influx.NewWriter(influx.Options{
		Addr:     fetchInfluxAddr,
		Username: fetchInfluxUser,
		Password: fetchInfluxPass,
		Database: fetchInfluxDB,
		Timeout:  timeout,
	})
	if err != nil {
		ui.PrintError("%v", err)
		return fmt.Errorf("influx setup failed")
	}
	defer w.Close()

	n, err := w.WriteSeries(ctx, series)
	if err != nil {
		ui.PrintError("archive to influx failed: %v", err)
		return fmt.Errorf("influx write failed")
	}
	ui.PrintSuccess("Archived %d points to %s/%s", n, fetchInfluxAddr, fetchInfluxDB)
	return nil
}
