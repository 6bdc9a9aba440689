package domain

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the calendar date layout used on every boundary (flags, CSV, API).
const DateFormat = "2006-01-02"

// Amount is a rainfall quantity in millimetres that may be missing.
// The zero value is missing.
type Amount struct {
	Value float64
	Valid bool
}

// Millimetres returns a present amount.
func Millimetres(v float64) Amount {
	return Amount{Value: v, Valid: true}
}

// Missing returns an absent amount.
func Missing() Amount {
	return Amount{}
}

// ParseAmount converts a raw text value to an amount. Empty, unparsable and
// non-finite input is missing.
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Amount{}
	}
	return Millimetres(v)
}

// OrZero returns the value, or 0 when missing.
func (a Amount) OrZero() float64 {
	if !a.Valid {
		return 0
	}
	return a.Value
}

// OrNaN returns the value, or NaN when missing.
func (a Amount) OrNaN() float64 {
	if !a.Valid {
		return math.NaN()
	}
	return a.Value
}

// String formats the amount for CSV output; missing is the empty string.
func (a Amount) String() string {
	if !a.Valid {
		return ""
	}
	return strconv.FormatFloat(a.Value, 'f', -1, 64)
}

// MarshalJSON encodes missing as null.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value)
}

// UnmarshalJSON accepts a number or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Amount{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Millimetres(v)
	return nil
}

// DailyObservation is one day of rainfall at one location.
type DailyObservation struct {
	LocationID string    `json:"twp_id"`
	Date       time.Time `json:"date"`
	Rainfall   Amount    `json:"rainfall"`
}

// DateRange is a closed interval of calendar days [Start, End].
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range truncated to whole UTC days. End before Start is an error.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: TruncateDay(start), End: TruncateDay(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, errors.New("date range end is before start")
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD dates into a closed range.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.ParseInLocation(DateFormat, strings.TrimSpace(start), time.UTC)
	if err != nil {
		return DateRange{}, err
	}
	e, err := time.ParseInLocation(DateFormat, strings.TrimSpace(end), time.UTC)
	if err != nil {
		return DateRange{}, err
	}
	return NewDateRange(s, e)
}

// TrailingDays returns the n calendar days before asOf, excluding asOf itself.
// TrailingDays(7, today) covers today-7 through yesterday.
func TrailingDays(n int, asOf time.Time) DateRange {
	end := TruncateDay(asOf).AddDate(0, 0, -1)
	return DateRange{Start: end.AddDate(0, 0, -(n - 1)), End: end}
}

// Days returns the number of calendar days in the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether t's UTC day falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := TruncateDay(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.Format(DateFormat) + ".." + r.End.Format(DateFormat)
}
