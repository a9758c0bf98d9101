package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bucharest(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadLocation("Europe/Bucharest")
	require.NoError(t, err)
	return loc
}

func TestTodayUsesFixedZone(t *testing.T) {
	loc := bucharest(t)
	// 22:30 UTC on Jan 9 is already Jan 10 in Bucharest (+02:00).
	instant := time.Date(2024, 1, 9, 22, 30, 0, 0, time.UTC)
	c := NewWithNow(loc, func() time.Time { return instant })

	assert.Equal(t, "2024-01-10", c.Today())
	assert.Equal(t, "2024-01-09", c.Yesterday())
	assert.Equal(t, loc, c.Now().Location())
}

func TestYesterdayAcrossMonthBoundary(t *testing.T) {
	loc := bucharest(t)
	instant := time.Date(2024, 3, 1, 9, 0, 0, 0, loc)
	c := NewWithNow(loc, func() time.Time { return instant })

	assert.Equal(t, "2024-02-29", c.Yesterday())
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate(" 2024-01-10 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", got)

	for _, bad := range []string{"", "2024-1-10", "10/01/2024", "2024-02-30", "yesterday"} {
		_, err := ParseDate(bad)
		assert.True(t, errors.Is(err, ErrInvalidDate), "expected ErrInvalidDate for %q", bad)
	}
}

func TestStartOf(t *testing.T) {
	loc := bucharest(t)
	c := New(loc)

	start, err := c.StartOf("2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, loc), start)

	_, err = c.StartOf("nope")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestLoadLocationRejectsEmpty(t *testing.T) {
	_, err := LoadLocation("  ")
	assert.Error(t, err)

	_, err = LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}
