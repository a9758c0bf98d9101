// Package ledger stores one check-in per host per calendar date.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattjoyce/rollcall/internal/clock"
	"github.com/mattjoyce/rollcall/internal/roster"
)

// ErrStore wraps every database failure surfaced by the ledger.
var ErrStore = errors.New("ledger store error")

// Outcome distinguishes a new check-in from a repeat on the same date.
type Outcome int

const (
	Recorded Outcome = iota + 1
	AlreadyPresent
)

func (o Outcome) String() string {
	switch o {
	case Recorded:
		return "recorded"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

// Record is one ledger row.
type Record struct {
	HostID     string     `json:"host_id"`
	Date       string     `json:"date"`
	CheckinAt  time.Time  `json:"checkin_time"`
	CheckoutAt *time.Time `json:"checkout_time"`
}

// DateCount is the number of rows stored for one date.
type DateCount struct {
	Date string `json:"date"`
	Rows int    `json:"rows"`
}

// Stats summarizes the ledger for diagnostics.
type Stats struct {
	Rows   int    `json:"rows"`
	Dates  int    `json:"dates"`
	Oldest string `json:"oldest_date,omitempty"`
	Newest string `json:"newest_date,omitempty"`
}

// Ledger is the SQLite-backed check-in table.
type Ledger struct {
	db        *sql.DB
	clock     *clock.Clock
	estimator *Estimator
	logger    *slog.Logger
}

// New returns a Ledger over db. The schema must already be bootstrapped.
func New(db *sql.DB, clk *clock.Clock, estimator *Estimator, logger *slog.Logger) *Ledger {
	if estimator == nil {
		estimator = NewEstimator(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		db:        db,
		clock:     clk,
		estimator: estimator,
		logger:    logger.With("component", "ledger"),
	}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// Record stores a check-in for entry at the given instant. The calendar date
// is taken from the instant in the ledger's timezone. A second check-in for the
// same host and date is a no-op returning the existing row and AlreadyPresent.
func (l *Ledger) Record(ctx context.Context, entry roster.Entry, at time.Time) (Record, Outcome, error) {
	at = at.In(l.clock.Location()).Truncate(time.Second)
	date := l.clock.DateOf(at)

	existing, found, err := l.get(ctx, entry.HostID, date)
	if err != nil {
		return Record{}, 0, err
	}
	if found {
		return existing, AlreadyPresent, nil
	}

	checkout := l.estimator.Estimate(at, entry.ExpectedHours)
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO checkins(hostname, checkin_time, date, checkout_time)
VALUES (?, ?, ?, ?)
ON CONFLICT(hostname, date) DO NOTHING;`,
		entry.HostID, formatTime(at), date, formatTime(checkout),
	)
	if err != nil {
		return Record{}, 0, storeErr("insert checkin", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, 0, storeErr("insert checkin", err)
	}
	if n == 0 {
		// Lost a race with a concurrent check-in for the same key.
		existing, found, err := l.get(ctx, entry.HostID, date)
		if err != nil {
			return Record{}, 0, err
		}
		if !found {
			return Record{}, 0, storeErr("insert checkin", fmt.Errorf("no row stored for %s on %s", entry.HostID, date))
		}
		return existing, AlreadyPresent, nil
	}

	l.logger.Debug("checkin recorded", "host", entry.HostID, "date", date, "checkout", formatTime(checkout))
	return Record{HostID: entry.HostID, Date: date, CheckinAt: at, CheckoutAt: &checkout}, Recorded, nil
}

func (l *Ledger) get(ctx context.Context, hostID, date string) (Record, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT hostname, date, checkin_time, checkout_time FROM checkins WHERE hostname = ? AND date = ?;`,
		hostID, date,
	)
	rec, err := l.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, storeErr("read checkin", err)
	}
	return rec, true, nil
}

// List returns the check-ins for date ordered by host id. An empty date lists every date.
func (l *Ledger) List(ctx context.Context, date string) ([]Record, error) {
	query := `SELECT hostname, date, checkin_time, checkout_time FROM checkins`
	var args []any
	if date != "" {
		query += ` WHERE date = ?`
		args = append(args, date)
	}
	query += ` ORDER BY date ASC, hostname ASC;`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list checkins", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := l.scan(rows)
		if err != nil {
			return nil, storeErr("scan checkin", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list checkins", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (l *Ledger) scan(s scanner) (Record, error) {
	var (
		rec      Record
		checkin  string
		checkout sql.NullString
	)
	if err := s.Scan(&rec.HostID, &rec.Date, &checkin, &checkout); err != nil {
		return Record{}, err
	}
	t, err := parseTime(checkin)
	if err != nil {
		return Record{}, fmt.Errorf("checkin_time for %s on %s: %w", rec.HostID, rec.Date, err)
	}
	rec.CheckinAt = t.In(l.clock.Location())
	if checkout.Valid && checkout.String != "" {
		if t, err := parseTime(checkout.String); err == nil {
			t = t.In(l.clock.Location())
			rec.CheckoutAt = &t
		} else {
			l.logger.Warn("unreadable checkout_time", "host", rec.HostID, "date", rec.Date, "value", checkout.String)
		}
	}
	return rec, nil
}

// Count returns the total number of rows.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkins;`).Scan(&n); err != nil {
		return 0, storeErr("count checkins", err)
	}
	return n, nil
}

// DateCounts returns per-date row counts, oldest date first.
func (l *Ledger) DateCounts(ctx context.Context) ([]DateCount, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT date, COUNT(*) FROM checkins GROUP BY date ORDER BY date ASC;`)
	if err != nil {
		return nil, storeErr("count dates", err)
	}
	defer rows.Close()

	var out []DateCount
	for rows.Next() {
		var dc DateCount
		if err := rows.Scan(&dc.Date, &dc.Rows); err != nil {
			return nil, storeErr("scan date count", err)
		}
		out = append(out, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("count dates", err)
	}
	return out, nil
}

// DeleteDates removes every row for the given dates in one transaction.
func (l *Ledger) DeleteDates(ctx context.Context, dates []string) (int64, error) {
	if len(dates) == 0 {
		return 0, nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(dates)), ",")
	args := make([]any, len(dates))
	for i, d := range dates {
		args[i] = d
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM checkins WHERE date IN (`+placeholders+`);`, args...)
	if err != nil {
		return 0, storeErr("delete dates", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("delete dates", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr("commit delete", err)
	}
	return n, nil
}

// Stats returns row and date totals with the oldest and newest dates.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	var (
		s              Stats
		oldest, newest sql.NullString
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT date), MIN(date), MAX(date) FROM checkins;`,
	).Scan(&s.Rows, &s.Dates, &oldest, &newest)
	if err != nil {
		return Stats{}, storeErr("stats", err)
	}
	s.Oldest = oldest.String
	s.Newest = newest.String
	return s, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	// Legacy rows use a space between date and time.
	return time.Parse("2006-01-02 15:04:05.999999-07:00", s)
}
