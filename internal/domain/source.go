package domain

import "context"

// RainfallSource fetches the daily precipitation series for one location.
//
// Implementations return observations sorted by ascending date with unique
// dates. Any failure, including an empty result, is reported as an error;
// callers treat it as a FetchFailure for that location.
type RainfallSource interface {
	FetchDaily(ctx context.Context, loc Location, r DateRange) ([]DailyObservation, error)
}
