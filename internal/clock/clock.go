// Package clock pins the service to a single timezone so calendar dates,
// schedules and report timestamps all agree.
package clock

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// DateLayout is the ISO calendar date format used for ledger keys and artifact names.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for dates that are not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date")

// Clock reports the current instant in a fixed location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Clock in loc backed by time.Now.
func New(loc *time.Location) *Clock {
	return NewWithNow(loc, time.Now)
}

// NewWithNow returns a Clock in loc backed by now. Used for tests and replay.
func NewWithNow(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}
}

// Location returns the clock's fixed timezone.
func (c *Clock) Location() *time.Location { return c.loc }

// Now returns the current instant in the clock's timezone.
func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

// Today returns the current calendar date.
func (c *Clock) Today() string { return c.DateOf(c.now()) }

// Yesterday returns the calendar date before Today.
func (c *Clock) Yesterday() string {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day()-1, 12, 0, 0, 0, c.loc).Format(DateLayout)
}

// DateOf returns the calendar date t falls on in the clock's timezone.
func (c *Clock) DateOf(t time.Time) string { return t.In(c.loc).Format(DateLayout) }

// StartOf returns midnight of date in the clock's timezone.
func (c *Clock) StartOf(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}

// ZoneLabel returns the IANA name used on report titles.
func (c *Clock) ZoneLabel() string { return c.loc.String() }

// ParseDate validates a YYYY-MM-DD date and returns it normalized.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t.Format(DateLayout), nil
}

// LoadLocation resolves an IANA timezone name.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("timezone is empty")
	}
	return time.LoadLocation(name)
}
