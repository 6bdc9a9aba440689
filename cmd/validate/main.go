// Command validate checks the integrity of an existing risk history: the
// column set, tier labels against their probabilities, value ranges, dates
// and, optionally, that every well is still in the catalog.
//
// Usage:
//
//	validate [--path risk_history.csv] [--catalog ASDF_Wells_Cleaned.csv]
//
// Without --path the configured history backend (HISTORY_BACKEND) is read.
package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/etmur007/rainfall-risk-dashboard/internal/adapter/history"
	"github.com/etmur007/rainfall-risk-dashboard/internal/app"
	"github.com/etmur007/rainfall-risk-dashboard/internal/catalog"
	"github.com/etmur007/rainfall-risk-dashboard/internal/config"
	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	flag "github.com/spf13/pflag"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	path := fs.String("path", "", "history CSV to check (default: configured backend)")
	catalogPath := fs.String("catalog", "", "well catalog to cross-check twp_id and coordinates against")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Println("=== Risk History Integrity Validation ===")
	fmt.Println()

	rows, source, err := loadHistory(ctx, *path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load history: %v\n", err)
		return 1
	}
	fmt.Printf("History: %s\n", source)

	phases := []*phase{
		validateTiers(rows),
		validateValues(rows),
		validateDates(rows),
	}
	if *catalogPath != "" {
		wells, err := catalog.Load(*catalogPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load catalog: %v\n", err)
			return 1
		}
		phases = append(phases, validateCatalog(rows, wells))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d assessments, %d wells, %d repeated (twp_id, date) pairs\n",
		len(rows), countWells(rows), countRepeats(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// loadHistory reads the history at path, or the configured backend when path
// is empty. Load already rejects a foreign column set.
func loadHistory(ctx context.Context, path string) ([]domain.RiskAssessment, string, error) {
	if path != "" {
		rows, err := history.NewCSVStore(path).Load(ctx)
		return rows, path, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	defer store.Close()

	source := cfg.HistoryPath
	if cfg.HistoryBackend == config.BackendSQLite {
		source = cfg.SQLitePath
	}
	rows, err := store.Load(ctx)
	return rows, source, err
}

// ── Phase 1: tier labels ──

func validateTiers(rows []domain.RiskAssessment) *phase {
	p := &phase{name: "Phase 1: Risk tiers"}
	for i, a := range rows {
		if want := domain.TierFor(a.FailureRisk); a.RiskLevel != want {
			p.errorf("row %d %s %s: risk_level %s, probability %.4f maps to %s",
				i+1, a.LocationID, a.Date.Format(domain.DateFormat), a.RiskLevel, a.FailureRisk, want)
		}
	}
	return p
}

// ── Phase 2: value ranges ──

func validateValues(rows []domain.RiskAssessment) *phase {
	p := &phase{name: "Phase 2: Value ranges"}
	for i, a := range rows {
		if math.IsNaN(a.FailureRisk) || a.FailureRisk < 0 || a.FailureRisk > 1 {
			p.errorf("row %d %s: failure_risk %v outside [0,1]", i+1, a.LocationID, a.FailureRisk)
		}
		if a.Rolling7d.Valid && (a.Rolling7d.Value < 0 || math.IsInf(a.Rolling7d.Value, 0) || math.IsNaN(a.Rolling7d.Value)) {
			p.errorf("row %d %s: rolling_7d %v is not a rainfall total", i+1, a.LocationID, a.Rolling7d.Value)
		}
		if a.LocationID == "" {
			p.errorf("row %d: empty twp_id", i+1)
		}
	}
	return p
}

// ── Phase 3: dates ──

func validateDates(rows []domain.RiskAssessment) *phase {
	p := &phase{name: "Phase 3: Observation and fetch dates"}
	for i, a := range rows {
		if a.Date.After(a.FetchedAt) {
			p.errorf("row %d %s: date %s after date_fetched %s", i+1, a.LocationID,
				a.Date.Format(domain.DateFormat), a.FetchedAt.Format(domain.DateFormat))
		}
	}
	return p
}

// ── Phase 4: catalog consistency ──

func validateCatalog(rows []domain.RiskAssessment, wells []domain.Location) *phase {
	p := &phase{name: "Phase 4: Catalog consistency"}
	byID := make(map[string]domain.Location, len(wells))
	for _, w := range wells {
		if _, ok := byID[w.ID]; !ok {
			byID[w.ID] = w
		}
	}
	const tolerance = 1e-9
	for i, a := range rows {
		w, ok := byID[a.LocationID]
		if !ok {
			p.errorf("row %d: twp_id %s not in catalog", i+1, a.LocationID)
			continue
		}
		if math.Abs(w.Geo.Lon-a.Geo.Lon) > tolerance || math.Abs(w.Geo.Lat-a.Geo.Lat) > tolerance {
			p.errorf("row %d %s: coordinates %s, catalog has %s", i+1, a.LocationID, a.Geo, w.Geo)
		}
	}
	return p
}

func countWells(rows []domain.RiskAssessment) int {
	seen := make(map[string]struct{})
	for _, a := range rows {
		seen[a.LocationID] = struct{}{}
	}
	return len(seen)
}

// countRepeats counts rows whose (twp_id, date) was already seen. History is
// append-only, so re-running a day is allowed and only reported.
func countRepeats(rows []domain.RiskAssessment) int {
	type key struct {
		id   string
		date time.Time
	}
	seen := make(map[key]struct{})
	n := 0
	for _, a := range rows {
		k := key{a.LocationID, a.Date}
		if _, ok := seen[k]; ok {
			n++
			continue
		}
		seen[k] = struct{}{}
	}
	return n
}
