// Package retention bounds the ledger by deleting its oldest whole dates.
package retention

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/rollcall/internal/ledger"
)

// Ledger is the subset of the check-in ledger the collector needs.
type Ledger interface {
	Count(ctx context.Context) (int, error)
	DateCounts(ctx context.Context) ([]ledger.DateCount, error)
	DeleteDates(ctx context.Context, dates []string) (int64, error)
}

// ArtifactRemover deletes a rendered report. A missing artifact reports false.
type ArtifactRemover interface {
	Remove(date string) (bool, error)
}

// Result summarizes one collection pass.
type Result struct {
	MaxRows          int      `json:"max_rows"`
	RowsBefore       int      `json:"rows_before"`
	RowsDeleted      int      `json:"rows_deleted"`
	RowsAfter        int      `json:"rows_after"`
	Dates            []string `json:"dates_deleted"`
	ArtifactsRemoved int      `json:"artifacts_removed"`
}

// Collector runs retention passes.
type Collector struct {
	ledger    Ledger
	artifacts ArtifactRemover
	logger    *slog.Logger
}

// New returns a collector. artifacts may be nil when no reports are kept.
func New(l Ledger, artifacts ArtifactRemover, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{ledger: l, artifacts: artifacts, logger: logger.With("component", "retention")}
}

// SelectDates returns the shortest oldest-first prefix of counts whose rows
// meet or exceed excess. counts must be sorted by ascending date.
func SelectDates(counts []ledger.DateCount, excess int) []string {
	if excess <= 0 {
		return nil
	}
	var dates []string
	total := 0
	for _, dc := range counts {
		dates = append(dates, dc.Date)
		total += dc.Rows
		if total >= excess {
			break
		}
	}
	return dates
}

// Collect deletes whole dates, oldest first, until at most maxRows remain or
// the ledger is empty. Report artifacts for deleted dates are removed on a
// best-effort basis.
func (c *Collector) Collect(ctx context.Context, maxRows int) (Result, error) {
	if maxRows < 1 {
		return Result{}, fmt.Errorf("retention max rows must be positive, got %d", maxRows)
	}
	res := Result{MaxRows: maxRows}

	count, err := c.ledger.Count(ctx)
	if err != nil {
		return res, err
	}
	res.RowsBefore = count
	res.RowsAfter = count
	if count <= maxRows {
		c.logger.Info("retention not needed", "rows", count, "max_rows", maxRows)
		return res, nil
	}

	counts, err := c.ledger.DateCounts(ctx)
	if err != nil {
		return res, err
	}
	dates := SelectDates(counts, count-maxRows)
	if len(dates) == 0 {
		return res, nil
	}

	deleted, err := c.ledger.DeleteDates(ctx, dates)
	if err != nil {
		c.logger.Error("failed to delete dates", "dates", dates, "error", err)
		return res, err
	}
	res.Dates = dates
	res.RowsDeleted = int(deleted)
	res.RowsAfter = count - int(deleted)

	if c.artifacts != nil {
		for _, date := range dates {
			removed, err := c.artifacts.Remove(date)
			if err != nil {
				c.logger.Warn("failed to remove report artifact", "date", date, "error", err)
				continue
			}
			if removed {
				res.ArtifactsRemoved++
			}
		}
	}

	c.logger.Info("retention collected",
		"rows_before", res.RowsBefore,
		"rows_deleted", res.RowsDeleted,
		"rows_after", res.RowsAfter,
		"dates", len(dates),
		"artifacts_removed", res.ArtifactsRemoved,
	)
	return res, nil
}
