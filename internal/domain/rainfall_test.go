package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want Amount
	}{
		{"4.25", Millimetres(4.25)},
		{"0", Millimetres(0)},
		{" 1 ", Millimetres(1)},
		{"", Missing()},
		{"null", Missing()},
		{"NaN", Missing()},
		{"Inf", Missing()},
		{"n/a", Missing()},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseAmount(tt.in), "input %q", tt.in)
	}
}

func TestAmount_Accessors(t *testing.T) {
	assert.Equal(t, 0.0, Missing().OrZero())
	assert.True(t, math.IsNaN(Missing().OrNaN()))
	assert.Equal(t, 2.5, Millimetres(2.5).OrNaN())
	assert.Equal(t, "", Missing().String())
	assert.Equal(t, "2.5", Millimetres(2.5).String())
}

func TestAmount_JSON(t *testing.T) {
	out, err := json.Marshal(struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}{Millimetres(1.5), Missing()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":null}`, string(out))

	var in struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal(out, &in))
	assert.Equal(t, Millimetres(1.5), in.A)
	assert.Equal(t, Missing(), in.B)
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("2024-01-01", "2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, 91, r.Days())
	assert.True(t, r.Contains(time.Date(2024, time.March, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-01..2024-03-31", r.String())

	_, err = ParseDateRange("2024-02-01", "2024-01-01")
	assert.Error(t, err)

	_, err = ParseDateRange("01/01/2024", "2024-01-31")
	assert.Error(t, err)
}

func TestTrailingDays(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2025, time.July, 8, 6, 30, 0, 0, time.UTC))
	SetClock(fake)
	t.Cleanup(func() { SetClock(nil) })

	r := TrailingDays(7, Today())

	assert.Equal(t, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2025, time.July, 7, 0, 0, 0, 0, time.UTC), r.End)
	assert.Equal(t, 7, r.Days())
	assert.False(t, r.Contains(Today()))
}
