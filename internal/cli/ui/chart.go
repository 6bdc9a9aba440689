package ui

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
)

// ChartHeight is the plot height in terminal rows.
const ChartHeight = 12

// RenderChart plots daily rainfall against the rolling 7-day sum for one well.
// Missing values leave gaps.
func RenderChart(s domain.LocationSeries, width int) string {
	rain := make([]float64, len(s.Features))
	rolling := make([]float64, len(s.Features))
	var haveRain, haveRolling bool
	for i, f := range s.Features {
		rain[i] = f.Rainfall.OrNaN()
		rolling[i] = f.Rolling7d.OrNaN()
		haveRain = haveRain || f.Rainfall.Valid
		haveRolling = haveRolling || f.Rolling7d.Valid
	}
	if !haveRain {
		return Styles.Muted.Render(fmt.Sprintf("No rainfall data for %s", s.Location.Name))
	}

	data := [][]float64{rain}
	colors := []asciigraph.AnsiColor{asciigraph.Blue}
	legends := []string{"rainfall (mm)"}
	if haveRolling {
		data = append(data, rolling)
		colors = append(colors, asciigraph.Orange)
		legends = append(legends, "rolling 7d (mm)")
	}

	first := s.Features[0].Date.Format(domain.DateFormat)
	last := s.Features[len(s.Features)-1].Date.Format(domain.DateFormat)
	opts := []asciigraph.Option{
		asciigraph.Height(ChartHeight),
		asciigraph.Caption(fmt.Sprintf("%s (%s) %s..%s", s.Location.Name, s.Location.ID, first, last)),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(legends...),
		asciigraph.Precision(1),
	}
	if width > 0 {
		opts = append(opts, asciigraph.Width(width))
	}
	if maxOf(rain, rolling) == 0 {
		// Flat zero series; give the axis a range.
		opts = append(opts, asciigraph.UpperBound(1))
	}
	return asciigraph.PlotMany(data, opts...)
}

func maxOf(series ...[]float64) float64 {
	m := math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			if !math.IsNaN(v) && v > m {
				m = v
			}
		}
	}
	return m
}
