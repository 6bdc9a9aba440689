package history

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
)

// DefaultExportPath is the file name the explorer exports to.
const DefaultExportPath = "rainfall_data.csv"

// SeriesColumns is the column set of an exported observation series.
var SeriesColumns = []string{"date", "rainfall", "twp_id", "name", "rolling_7d_rainfall"}

// WriteSeriesCSV writes every position of every series, locations in the given
// order. Missing values are empty cells.
func WriteSeriesCSV(w io.Writer, series []domain.LocationSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SeriesColumns); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, s := range series {
		for _, f := range s.Features {
			rec := []string{
				f.Date.Format(domain.DateFormat),
				f.Rainfall.String(),
				s.Location.ID,
				s.Location.Name,
				f.Rolling7d.String(),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write export row: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	return nil
}

// WriteAssessmentsCSV writes rows in the history format, header included.
func WriteAssessmentsCSV(w io.Writer, rows []domain.RiskAssessment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, a := range rows {
		if err := cw.Write(encode(a)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
