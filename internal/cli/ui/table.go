package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
)

// PreviewRows is the number of export rows shown before the chart.
const PreviewRows = 5

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Border).
		Headers(headers...)
}

func plainStyle(row, _ int) lipgloss.Style {
	if row == table.HeaderRow {
		return Styles.Header
	}
	return Styles.Cell
}

// RenderWells renders the catalog.
func RenderWells(wells []domain.Location) string {
	if len(wells) == 0 {
		return Styles.Muted.Render("No wells found")
	}
	t := newTable("TWP_ID", "NAME", "LON", "LAT").StyleFunc(plainStyle)
	for _, w := range wells {
		t.Row(w.ID, w.Name, formatCoord(w.Geo.Lon), formatCoord(w.Geo.Lat))
	}
	return t.Render()
}

// RenderPreview renders the first n export rows across all series, in
// export order.
func RenderPreview(series []domain.LocationSeries, n int) string {
	t := newTable("DATE", "RAINFALL", "TWP_ID", "NAME", "ROLLING_7D").StyleFunc(plainStyle)
	shown := 0
	for _, s := range series {
		for _, f := range s.Features {
			if shown == n {
				return t.Render()
			}
			t.Row(f.Date.Format(domain.DateFormat), formatAmount(f.Rainfall), s.Location.ID, s.Location.Name, formatAmount(f.Rolling7d))
			shown++
		}
	}
	if shown == 0 {
		return Styles.Muted.Render("No rows")
	}
	return t.Render()
}

// RenderAssessments renders the latest risk per well with colored tiers.
func RenderAssessments(rows []domain.RiskAssessment) string {
	if len(rows) == 0 {
		return Styles.Muted.Render("No assessments")
	}
	t := newTable("TWP_ID", "NAME", "DATE", "ROLLING_7D", "RISK", "LEVEL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Header
			}
			if col == 5 && row >= 0 && row < len(rows) {
				return TierStyle(rows[row].RiskLevel)
			}
			return Styles.Cell
		})
	for _, a := range rows {
		t.Row(a.LocationID, a.Name, a.Date.Format(domain.DateFormat), formatAmount(a.Rolling7d),
			fmt.Sprintf("%.2f", a.FailureRisk), string(a.RiskLevel))
	}
	return t.Render()
}

func formatAmount(a domain.Amount) string {
	if !a.Valid {
		return "-"
	}
	return strconv.FormatFloat(a.Value, 'f', 2, 64)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
