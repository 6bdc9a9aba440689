package domain

import (
	"sort"
	"time"
)

// RollingWindow is the number of consecutive series positions summed into one
// rolling rainfall value.
const RollingWindow = 7

// AggregatedFeature is one position of a location's series with its trailing sum.
type AggregatedFeature struct {
	LocationID string    `json:"twp_id"`
	Date       time.Time `json:"date"`
	Rainfall   Amount    `json:"rainfall"`
	Rolling7d  Amount    `json:"rolling_7d_rainfall"`
}

// Aggregate computes the trailing RollingWindow sum at every position of an
// ascending series. The sum is missing until RollingWindow positions are
// available and whenever any value inside the window is missing.
func Aggregate(series []DailyObservation) []AggregatedFeature {
	out := make([]AggregatedFeature, len(series))
	// missingInWindow counts missing values among the RollingWindow positions ending at i.
	missingInWindow := 0

	for i, obs := range series {
		if !obs.Rainfall.Valid {
			missingInWindow++
		}
		if i >= RollingWindow && !series[i-RollingWindow].Rainfall.Valid {
			missingInWindow--
		}

		out[i] = AggregatedFeature{
			LocationID: obs.LocationID,
			Date:       obs.Date,
			Rainfall:   obs.Rainfall,
		}
		if i >= RollingWindow-1 && missingInWindow == 0 {
			out[i].Rolling7d = Millimetres(windowSum(series[i-RollingWindow+1 : i+1]))
		}
	}
	return out
}

// windowSum adds a fully-present window from scratch so floating point error
// does not accumulate along long series.
func windowSum(window []DailyObservation) float64 {
	total := 0.0
	for _, obs := range window {
		total += obs.Rainfall.Value
	}
	return total
}

// Latest returns the final feature of a series.
func Latest(features []AggregatedFeature) (AggregatedFeature, bool) {
	if len(features) == 0 {
		return AggregatedFeature{}, false
	}
	return features[len(features)-1], true
}

// NormalizeSeries sorts observations by ascending date and drops repeated
// dates, keeping the first observation seen for each day.
func NormalizeSeries(series []DailyObservation) []DailyObservation {
	sorted := make([]DailyObservation, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := make([]DailyObservation, 0, len(sorted))
	for _, obs := range sorted {
		if len(out) > 0 && obs.Date.Equal(out[len(out)-1].Date) {
			continue
		}
		out = append(out, obs)
	}
	return out
}

// LocationSeries is the full aggregated series for one location.
type LocationSeries struct {
	Location Location            `json:"location"`
	Features []AggregatedFeature `json:"features"`
}
