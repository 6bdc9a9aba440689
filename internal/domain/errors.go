package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoData means the source returned no frames for the requested range.
	ErrNoData = errors.New("no rainfall data returned")
	// ErrEmptyRun means every location failed, so nothing was produced.
	ErrEmptyRun = errors.New("no location produced a result")
)

// CatalogLoadError aborts a run before any fetch.
type CatalogLoadError struct {
	Path string
	Line int // 0 when the failure is not tied to a row
	Err  error
}

func (e *CatalogLoadError) Error() string {
	msg := "load catalog"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(": line %d", e.Line)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *CatalogLoadError) Unwrap() error { return e.Err }

// FetchFailure is a per-location fetch error. The location is skipped.
type FetchFailure struct {
	LocationID string
	Name       string
	Err        error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetch rainfall for %s (%s): %v", e.Name, e.LocationID, e.Err)
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// IncompatibleHistoryError rejects a persisted history whose columns differ
// from the rows being appended.
type IncompatibleHistoryError struct {
	Path string
	Want []string
	Got  []string
}

func (e *IncompatibleHistoryError) Error() string {
	return fmt.Sprintf("history %s has columns [%s], want [%s]",
		e.Path, strings.Join(e.Got, ","), strings.Join(e.Want, ","))
}
