package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
)

// Geo represents a WGS-84 longitude/latitude pair in degrees.
type Geo struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// LatLng converts the coordinate to an s2 LatLng.
func (g Geo) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(g.Lat, g.Lon)
}

// String formats the pair in the catalog's packed "(lon,lat)" form.
func (g Geo) String() string {
	return "(" + strconv.FormatFloat(g.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(g.Lat, 'f', -1, 64) + ")"
}

// Location is one monitored well. Values are immutable once loaded.
type Location struct {
	ID   string `json:"twp_id"`
	Name string `json:"name"`
	Geo  Geo    `json:"geo"`
}

// ParseCoords parses a packed "(<lon>,<lat>)" coordinate string.
// Surrounding whitespace and parentheses are optional.
func ParseCoords(s string) (Geo, error) {
	trimmed := strings.Trim(strings.TrimSpace(s), "()")
	lonStr, latStr, ok := strings.Cut(trimmed, ",")
	if !ok {
		return Geo{}, fmt.Errorf("parse coords %q: expected \"(lon,lat)\"", s)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Geo{}, fmt.Errorf("parse coords %q: longitude: %w", s, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Geo{}, fmt.Errorf("parse coords %q: latitude: %w", s, err)
	}

	g := Geo{Lon: lon, Lat: lat}
	if !g.LatLng().IsValid() {
		return Geo{}, fmt.Errorf("parse coords %q: outside WGS-84 range", s)
	}
	return g, nil
}
