package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.February, 29), d)

	d, err = ParseDate("2024-02-29T15:04:05+01:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	d, err = ParseDate("2024-02-29 08:30:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	for _, in := range []string{"29.02.2024", "2024-01-01garbage", "2024-01-011", ""} {
		_, err = ParseDate(in)
		assert.ErrorIs(t, err, ErrInvalidDate, in)
	}
}

func TestDateOfDropsClockAndZone(t *testing.T) {
	warsaw := time.FixedZone("CET", 3600)
	d := DateOf(time.Date(2024, time.March, 31, 23, 30, 0, 0, warsaw))
	assert.Equal(t, NewDate(2024, time.March, 31), d)
}

func TestDaysUntil(t *testing.T) {
	from := NewDate(2024, time.January, 1)
	assert.Equal(t, 0, from.DaysUntil(from))
	assert.Equal(t, 59, from.DaysUntil(NewDate(2024, time.February, 29)))
	assert.Equal(t, -1, from.DaysUntil(NewDate(2023, time.December, 31)))
	// spans the spring daylight saving change in most European zones
	assert.Equal(t, 7, NewDate(2024, time.March, 28).DaysUntil(NewDate(2024, time.April, 4)))
}

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		day  Date
		want Date
	}{
		{NewDate(2024, time.January, 1), NewDate(2024, time.January, 1)},  // Monday
		{NewDate(2024, time.January, 3), NewDate(2024, time.January, 1)},  // Wednesday
		{NewDate(2024, time.January, 7), NewDate(2024, time.January, 1)},  // Sunday
		{NewDate(2024, time.March, 1), NewDate(2024, time.February, 26)}, // Friday across months
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.day.StartOfWeek(), tc.day.String())
	}
}

func TestEndOfMonth(t *testing.T) {
	assert.Equal(t, NewDate(2024, time.February, 29), NewDate(2024, time.February, 10).EndOfMonth())
	assert.Equal(t, NewDate(2023, time.February, 28), NewDate(2023, time.February, 1).EndOfMonth())
	assert.Equal(t, NewDate(2024, time.December, 31), NewDate(2024, time.December, 31).EndOfMonth())
}

func TestWithin(t *testing.T) {
	from, to := NewDate(2024, time.January, 1), NewDate(2024, time.January, 31)
	assert.True(t, from.Within(from, to))
	assert.True(t, to.Within(from, to))
	assert.False(t, NewDate(2024, time.February, 1).Within(from, to))
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		D Date `json:"d"`
		E Date `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-05-17","e":null}`), &payload))
	assert.Equal(t, NewDate(2024, time.May, 17), payload.D)
	assert.True(t, payload.E.IsZero())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-05-17","e":null}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"d":20240517}`), &payload))
}
