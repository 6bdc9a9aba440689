package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/etmur007/rainfall-risk-dashboard/internal/adapter/history"
	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/pipeline"
)

// MaxRangeDays bounds one exploration request.
const MaxRangeDays = 366

// ExportFilename is the attachment name of the CSV export.
const ExportFilename = history.DefaultExportPath

// Explorer runs an exploration over a set of locations.
type Explorer interface {
	Explore(ctx context.Context, locations []domain.Location, r domain.DateRange, progress pipeline.ProgressFunc) (pipeline.Exploration, error)
}

// API serves the catalog and rainfall explorations as JSON and CSV.
type API struct {
	wells    []domain.Location
	explorer Explorer
	logger   *slog.Logger
}

// NewAPI creates the exploration API over a loaded catalog.
func NewAPI(wells []domain.Location, explorer Explorer, logger *slog.Logger) *API {
	return &API{wells: wells, explorer: explorer, logger: logger}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/wells", a.handleWells)
	mux.HandleFunc("GET /api/rainfall", a.handleRainfall)
	mux.HandleFunc("GET /api/rainfall.csv", a.handleRainfallCSV)
}

func (a *API) handleWells(w http.ResponseWriter, _ *http.Request) {
	wells := a.wells
	if wells == nil {
		wells = []domain.Location{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, wells)
}

type failureResponse struct {
	LocationID string `json:"twp_id"`
	Name       string `json:"name"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

type rainfallResponse struct {
	Start    string                  `json:"start"`
	End      string                  `json:"end"`
	Series   []domain.LocationSeries `json:"series"`
	Latest   []domain.RiskAssessment `json:"latest"`
	Failures []failureResponse       `json:"failures"`
}

func (a *API) handleRainfall(w http.ResponseWriter, r *http.Request) {
	ex, ok := a.explore(w, r)
	if !ok {
		return
	}

	resp := rainfallResponse{
		Start:    ex.Range.Start.Format(domain.DateFormat),
		End:      ex.Range.End.Format(domain.DateFormat),
		Series:   ex.Series,
		Latest:   ex.Latest,
		Failures: make([]failureResponse, 0, len(ex.Failures)),
	}
	if resp.Series == nil {
		resp.Series = []domain.LocationSeries{}
	}
	if resp.Latest == nil {
		resp.Latest = []domain.RiskAssessment{}
	}
	for _, f := range ex.Failures {
		resp.Failures = append(resp.Failures, failureResponse{
			LocationID: f.Location.ID,
			Name:       f.Location.Name,
			Stage:      f.Stage,
			Error:      f.Err.Error(),
		})
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (a *API) handleRainfallCSV(w http.ResponseWriter, r *http.Request) {
	ex, ok := a.explore(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ExportFilename))
	w.WriteHeader(http.StatusOK)
	if err := history.WriteSeriesCSV(w, ex.Series); err != nil {
		a.logger.Warn("write csv export failed", "error", err)
	}
}

// explore parses the request and runs the exploration, writing an error
// response and returning false on failure.
func (a *API) explore(w http.ResponseWriter, r *http.Request) (pipeline.Exploration, bool) {
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		writeError(w, http.StatusBadRequest, "start and end are required (YYYY-MM-DD)")
		return pipeline.Exploration{}, false
	}
	dr, err := domain.ParseDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return pipeline.Exploration{}, false
	}
	if dr.Days() > MaxRangeDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("date range exceeds %d days", MaxRangeDays))
		return pipeline.Exploration{}, false
	}

	wells := a.wells
	if id := q.Get("twp_id"); id != "" {
		wells = nil
		for _, loc := range a.wells {
			if loc.ID == id {
				wells = append(wells, loc)
			}
		}
		if len(wells) == 0 {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown twp_id %q", id))
			return pipeline.Exploration{}, false
		}
	}

	ex, err := a.explorer.Explore(r.Context(), wells, dr, nil)
	if err != nil && !errors.Is(err, domain.ErrEmptyRun) {
		a.logger.Error("exploration failed", "error", err, "range", dr.String())
		writeError(w, http.StatusInternalServerError, err.Error())
		return pipeline.Exploration{}, false
	}
	a.logger.Info("exploration served",
		"range", dr.String(),
		"wells", len(wells),
		"series", len(ex.Series),
		"failures", len(ex.Failures),
	)
	return ex, true
}
