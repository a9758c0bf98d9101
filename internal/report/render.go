// Package report turns one date of the ledger into a paginated PDF.
package report

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/rollcall/internal/clock"
	"github.com/mattjoyce/rollcall/internal/ledger"
	"github.com/mattjoyce/rollcall/internal/roster"
)

// ErrRender marks failures producing or publishing a report.
var ErrRender = errors.New("report render error")

const timeLayout = "15:04:05"

// CheckinLister is the ledger read used by the renderer.
type CheckinLister interface {
	List(ctx context.Context, date string) ([]ledger.Record, error)
}

// RosterSource yields the current roster snapshot.
type RosterSource interface {
	Current() *roster.Roster
}

// Artifact describes a published report.
type Artifact struct {
	Date       string    `json:"date"`
	Path       string    `json:"path"`
	Filename   string    `json:"filename"`
	Checksum   string    `json:"checksum"`
	Pages      int       `json:"pages"`
	Present    int       `json:"present"`
	Absent     int       `json:"absent"`
	RenderedAt time.Time `json:"rendered_at"`
}

// Renderer builds and publishes per-date reports.
type Renderer struct {
	ledger    CheckinLister
	roster    RosterSource
	clock     *clock.Clock
	artifacts *Artifacts
	font      Font
	logger    *slog.Logger
}

// NewRenderer wires a renderer.
func NewRenderer(l CheckinLister, r RosterSource, clk *clock.Clock, artifacts *Artifacts, font Font, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		ledger:    l,
		roster:    r,
		clock:     clk,
		artifacts: artifacts,
		font:      font,
		logger:    logger.With("component", "report"),
	}
}

// BuildSheet merges the ledger for date with the roster. Present rows are
// ordered by display name then host id; absent names likewise.
func (r *Renderer) BuildSheet(ctx context.Context, date string) (Sheet, error) {
	records, err := r.ledger.List(ctx, date)
	if err != nil {
		return Sheet{}, err
	}
	ros := r.roster.Current()

	sheet := Sheet{Date: date, Zone: r.clock.ZoneLabel()}
	checked := make(map[string]bool, len(records))
	for _, rec := range records {
		checked[rec.HostID] = true
		row := PresentRow{
			HostID:   rec.HostID,
			Name:     ros.DisplayName(rec.HostID),
			Checkin:  rec.CheckinAt.In(r.clock.Location()).Format(timeLayout),
			Checkout: NotAvailable,
		}
		if rec.CheckoutAt != nil {
			row.Checkout = rec.CheckoutAt.In(r.clock.Location()).Format(timeLayout)
		}
		sheet.Present = append(sheet.Present, row)
	}
	sort.SliceStable(sheet.Present, func(i, j int) bool {
		a, b := sheet.Present[i], sheet.Present[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.HostID < b.HostID
	})

	var absent []roster.Entry
	for _, e := range ros.Entries() {
		if !checked[e.HostID] {
			absent = append(absent, e)
		}
	}
	sort.SliceStable(absent, func(i, j int) bool {
		a, b := ros.DisplayName(absent[i].HostID), ros.DisplayName(absent[j].HostID)
		if a != b {
			return a < b
		}
		return absent[i].HostID < absent[j].HostID
	})
	for _, e := range absent {
		sheet.Absent = append(sheet.Absent, ros.DisplayName(e.HostID))
	}
	return sheet, nil
}

// Render builds the report for date and atomically replaces any prior artifact.
func (r *Renderer) Render(ctx context.Context, date string) (Artifact, error) {
	logger := r.logger.With("date", date)

	sheet, err := r.BuildSheet(ctx, date)
	if err != nil {
		logger.Error("failed to load report data", "error", err)
		return Artifact{}, err
	}

	created, err := r.clock.StartOf(date)
	if err != nil {
		return Artifact{}, err
	}
	p, err := newPainter(r.font, sheet.Title(), created)
	if err != nil {
		logger.Error("failed to prepare report painter", "error", err)
		return Artifact{}, err
	}
	doc := Layout(sheet, p.measure)
	data, err := p.paint(doc)
	if err != nil {
		logger.Error("failed to paint report", "error", err)
		return Artifact{}, err
	}

	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	path, err := r.artifacts.Publish(date, data)
	if err != nil {
		logger.Error("failed to publish report", "error", err)
		return Artifact{}, fmt.Errorf("%w: %v", ErrRender, err)
	}

	art := Artifact{
		Date:       date,
		Path:       path,
		Filename:   DownloadName(date),
		Checksum:   Checksum(data),
		Pages:      len(doc.Pages),
		Present:    len(sheet.Present),
		Absent:     len(sheet.Absent),
		RenderedAt: r.clock.Now(),
	}
	logger.Info("report rendered", "path", path, "pages", art.Pages, "present", art.Present, "absent", art.Absent)
	return art, nil
}

// Checksum returns the blake3 hex digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
