// Package catalog loads the monitored well table.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
)

// Required catalog columns.
const (
	ColumnID     = "twp_id"
	ColumnName   = "name"
	ColumnCoords = "coords"
)

// Load reads and deduplicates the catalog at path.
func Load(path string) ([]domain.Location, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.CatalogLoadError{Path: path, Err: err}
	}
	defer f.Close()

	locs, err := Parse(f)
	if err != nil {
		var loadErr *domain.CatalogLoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
			return nil, loadErr
		}
		return nil, &domain.CatalogLoadError{Path: path, Err: err}
	}
	return locs, nil
}

// Parse reads catalog CSV rows, keeping the first row for each distinct
// (lon, lat) pair in source order.
func Parse(r io.Reader) ([]domain.Location, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.CatalogLoadError{Err: errors.New("empty catalog")}
		}
		return nil, &domain.CatalogLoadError{Err: fmt.Errorf("read header: %w", err)}
	}

	cols, err := indexColumns(header)
	if err != nil {
		return nil, &domain.CatalogLoadError{Line: 1, Err: err}
	}

	var locs []domain.Location
	seen := make(map[domain.Geo]struct{})

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			line := 0
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			return nil, &domain.CatalogLoadError{Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)
		if len(record) <= cols.max {
			return nil, &domain.CatalogLoadError{Line: line, Err: fmt.Errorf("expected at least %d fields, got %d", cols.max+1, len(record))}
		}

		geo, err := domain.ParseCoords(record[cols.coords])
		if err != nil {
			return nil, &domain.CatalogLoadError{Line: line, Err: err}
		}
		if _, dup := seen[geo]; dup {
			continue
		}
		seen[geo] = struct{}{}

		locs = append(locs, domain.Location{
			ID:   strings.TrimSpace(record[cols.id]),
			Name: strings.TrimSpace(record[cols.name]),
			Geo:  geo,
		})
	}

	return locs, nil
}

type columns struct {
	id, name, coords, max int
}

func indexColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		// Some exports carry a UTF-8 byte order mark on the first header cell.
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := idx[name]
		if !ok {
			missing = append(missing, name)
		}
		return i
	}
	c := columns{
		id:     lookup(ColumnID),
		name:   lookup(ColumnName),
		coords: lookup(ColumnCoords),
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	c.max = max(c.id, c.name, c.coords)
	return c, nil
}
