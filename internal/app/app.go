// Package app is the rollcall application context. It owns the database,
// roster, renderer, mailer and scheduler, and exposes the operations used by
// the HTTP surface, the CLI and the scheduled jobs.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/rollcall/internal/clock"
	"github.com/mattjoyce/rollcall/internal/config"
	"github.com/mattjoyce/rollcall/internal/events"
	"github.com/mattjoyce/rollcall/internal/ledger"
	"github.com/mattjoyce/rollcall/internal/mail"
	"github.com/mattjoyce/rollcall/internal/report"
	"github.com/mattjoyce/rollcall/internal/retention"
	"github.com/mattjoyce/rollcall/internal/roster"
	"github.com/mattjoyce/rollcall/internal/scheduler"
	"github.com/mattjoyce/rollcall/internal/storage"
)

// Scheduled job names.
const (
	JobRetention = "retention"
	JobReport    = "report"
	JobEmail     = "email"
)

// Options overrides collaborators, mostly for tests.
type Options struct {
	// Transport replaces the SendGrid transport built from config.
	Transport mail.Transport
	// Rand seeds the checkout estimator.
	Rand *rand.Rand
	// Now replaces the wall clock.
	Now func() time.Time
	// Hub receives published events. A new hub is created when nil.
	Hub *events.Hub
}

// App wires every component around one ledger database.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	clock     *clock.Clock
	db        *sql.DB
	roster    *roster.Store
	ledger    *ledger.Ledger
	artifacts *report.Artifacts
	renderer  *report.Renderer
	collector *retention.Collector
	mailer    *mail.Dispatcher
	scheduler *scheduler.Scheduler
	hub       *events.Hub
	startedAt time.Time

	// passMu serializes report renders and retention passes so a render
	// never observes a date mid-deletion.
	passMu sync.Mutex

	closeOnce sync.Once
	running   bool
}

// New opens the database and loads the roster. An empty roster is fatal.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := clock.LoadLocation(cfg.Service.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	clk := clock.New(loc)
	if opts.Now != nil {
		clk = clock.NewWithNow(loc, opts.Now)
	}

	rosterStore := roster.NewStore(cfg.Roster.Path, cfg.Roster.Sheet, logger)
	if _, err := rosterStore.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	artifacts, err := report.NewArtifacts(cfg.Report.OutputDir)
	if err != nil {
		return nil, err
	}

	db, err := storage.OpenSQLite(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	transport := opts.Transport
	if transport == nil && cfg.Email.SendGridAPIKey != "" {
		sg, err := mail.NewSendGrid(cfg.Email.SendGridAPIKey)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		transport = sg
	}

	hub := opts.Hub
	if hub == nil {
		hub = events.NewHub(256)
	}

	l := ledger.New(db, clk, ledger.NewEstimator(opts.Rand), logger)
	font := report.Font{Dir: cfg.Report.FontDir, File: cfg.Report.FontFile, Name: cfg.Report.FontName}

	a := &App{
		cfg:       cfg,
		logger:    logger.With("component", "app"),
		clock:     clk,
		db:        db,
		roster:    rosterStore,
		ledger:    l,
		artifacts: artifacts,
		renderer:  report.NewRenderer(l, rosterStore, clk, artifacts, font, logger),
		collector: retention.New(l, artifacts, logger),
		mailer:    mail.NewDispatcher(transport, artifacts, cfg.Email.From, cfg.Email.RecipientList(), cfg.Email.Timeout, logger),
		scheduler: scheduler.New(clk, cfg.Service.TickInterval, hub, logger),
		hub:       hub,
		startedAt: clk.Now(),
	}
	return a, nil
}

// Start registers the scheduled jobs and starts the scheduler.
func (a *App) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  scheduler.RunnerFunc
	}{
		{JobRetention, a.cfg.Retention.Cron(), a.retentionJob},
		{JobReport, a.cfg.Schedule.Report.Cron(), a.reportJob},
		{JobEmail, a.cfg.Schedule.Email.Cron(), a.emailJob},
	}
	for _, j := range jobs {
		if err := a.scheduler.Add(j.name, j.spec, j.run); err != nil {
			return fmt.Errorf("%w: %v", config.ErrConfig, err)
		}
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	a.running = true
	return nil
}

// Close stops the scheduler and then closes the database.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.running {
			a.scheduler.Stop()
		}
		err = a.db.Close()
	})
	return err
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Clock returns the service clock.
func (a *App) Clock() *clock.Clock { return a.clock }

// Hub returns the event hub.
func (a *App) Hub() *events.Hub { return a.hub }

// Roster returns the current roster snapshot.
func (a *App) Roster() *roster.Roster { return a.roster.Current() }

// CheckinResult is the outcome of a check-in request.
type CheckinResult struct {
	HostID     string         `json:"host_id"`
	Name       string         `json:"name"`
	Outcome    ledger.Outcome `json:"-"`
	Date       string         `json:"date"`
	CheckinAt  time.Time      `json:"checkin_time"`
	CheckoutAt *time.Time     `json:"checkout_time,omitempty"`
}

// Checkin records a check-in for hostID at the current instant.
func (a *App) Checkin(ctx context.Context, hostID string) (CheckinResult, error) {
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return CheckinResult{}, fmt.Errorf("%w: hostname required", ErrValidation)
	}
	logger := a.logger.With("host", hostID)

	entry, err := a.roster.Authorize(hostID)
	if err != nil {
		logger.Warn("unauthorized hostname")
		return CheckinResult{}, err
	}

	rec, outcome, err := a.ledger.Record(ctx, entry, a.clock.Now())
	if err != nil {
		logger.Error("failed to record checkin", "error", err)
		return CheckinResult{}, err
	}

	res := CheckinResult{
		HostID:     rec.HostID,
		Name:       entry.DisplayName,
		Outcome:    outcome,
		Date:       rec.Date,
		CheckinAt:  rec.CheckinAt,
		CheckoutAt: rec.CheckoutAt,
	}
	if outcome == ledger.Recorded {
		logger.Info("checkin recorded", "date", rec.Date)
		a.hub.Publish(events.CheckinRecorded, res)
	} else {
		logger.Info("already checked in", "date", rec.Date)
	}
	return res, nil
}

// CheckinTimes is one host's entry in a status view.
type CheckinTimes struct {
	CheckinTime  string  `json:"checkin_time"`
	CheckoutTime *string `json:"checkout_time"`
}

// Status is today's check-ins keyed by host id.
type Status struct {
	Date     string                  `json:"-"`
	Checkins map[string]CheckinTimes `json:"checkins"`
}

// Status returns today's check-ins.
func (a *App) Status(ctx context.Context) (Status, error) {
	today := a.clock.Today()
	records, err := a.ledger.List(ctx, today)
	if err != nil {
		return Status{}, err
	}
	st := Status{Date: today, Checkins: make(map[string]CheckinTimes, len(records))}
	for _, r := range records {
		ct := CheckinTimes{CheckinTime: r.CheckinAt.Format(time.RFC3339)}
		if r.CheckoutAt != nil {
			out := r.CheckoutAt.Format(time.RFC3339)
			ct.CheckoutTime = &out
		}
		st.Checkins[r.HostID] = ct
	}
	return st, nil
}

// resolveDate validates an optional date, defaulting to yesterday.
func (a *App) resolveDate(date string) (string, error) {
	if strings.TrimSpace(date) == "" {
		return a.clock.Yesterday(), nil
	}
	return clock.ParseDate(date)
}

// GenerateReport renders the report for date (yesterday when empty).
func (a *App) GenerateReport(ctx context.Context, date string) (report.Artifact, error) {
	date, err := a.resolveDate(date)
	if err != nil {
		return report.Artifact{}, err
	}

	a.passMu.Lock()
	defer a.passMu.Unlock()
	return a.renderLocked(ctx, date)
}

// DownloadReport renders the report for date and returns its bytes.
func (a *App) DownloadReport(ctx context.Context, date string) (report.Artifact, []byte, error) {
	date, err := a.resolveDate(date)
	if err != nil {
		return report.Artifact{}, nil, err
	}

	a.passMu.Lock()
	defer a.passMu.Unlock()
	art, err := a.renderLocked(ctx, date)
	if err != nil {
		return report.Artifact{}, nil, err
	}
	data, err := a.artifacts.Read(date)
	if err != nil {
		return report.Artifact{}, nil, fmt.Errorf("%w: %v", report.ErrRender, err)
	}
	return art, data, nil
}

func (a *App) renderLocked(ctx context.Context, date string) (report.Artifact, error) {
	art, err := a.renderer.Render(ctx, date)
	if err != nil {
		return report.Artifact{}, err
	}
	a.hub.Publish(events.ReportRendered, art)
	return art, nil
}

// EmailReport sends the already rendered report for date (yesterday when empty).
func (a *App) EmailReport(ctx context.Context, date string) (mail.Delivery, error) {
	date, err := a.resolveDate(date)
	if err != nil {
		return mail.Delivery{}, err
	}
	d, err := a.mailer.SendReport(ctx, date)
	if err != nil {
		return mail.Delivery{}, err
	}
	a.hub.Publish(events.EmailSent, d)
	return d, nil
}

// RunRetention prunes the ledger down to the configured row budget.
func (a *App) RunRetention(ctx context.Context) (retention.Result, error) {
	a.passMu.Lock()
	defer a.passMu.Unlock()

	res, err := a.collector.Collect(ctx, a.cfg.Retention.MaxRows)
	if err != nil {
		return res, err
	}
	a.hub.Publish(events.RetentionCollected, res)
	return res, nil
}

// RosterInfo describes the loaded roster.
type RosterInfo struct {
	Hosts       int       `json:"hosts"`
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loaded_at"`
}

func rosterInfo(r *roster.Roster) RosterInfo {
	return RosterInfo{Hosts: r.Len(), Source: r.Source(), Fingerprint: r.Fingerprint(), LoadedAt: r.LoadedAt()}
}

// ReloadRoster re-reads the roster source. The previous roster stays active
// on failure.
func (a *App) ReloadRoster(ctx context.Context) (RosterInfo, error) {
	r, err := a.roster.Reload(ctx)
	if err != nil {
		a.logger.Error("roster reload failed", "error", err)
		return RosterInfo{}, err
	}
	info := rosterInfo(r)
	a.hub.Publish(events.RosterReloaded, info)
	return info, nil
}

// Stats returns ledger totals.
func (a *App) Stats(ctx context.Context) (ledger.Stats, error) {
	return a.ledger.Stats(ctx)
}

// Seed fills the ledger with simulated check-ins for the roster.
func (a *App) Seed(ctx context.Context, opts ledger.SeedOptions) (ledger.SeedResult, error) {
	if opts.End == "" {
		opts.End = a.clock.Yesterday()
	}
	if _, err := clock.ParseDate(opts.End); err != nil {
		return ledger.SeedResult{}, err
	}
	return a.ledger.Seed(ctx, a.roster.Current().Entries(), opts)
}

// Health is the liveness and diagnostics view.
type Health struct {
	Status        string                `json:"status"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Timezone      string                `json:"timezone"`
	RosterHosts   int                   `json:"roster_hosts"`
	LedgerRows    int                   `json:"ledger_rows"`
	OldestDate    string                `json:"oldest_date,omitempty"`
	NewestDate    string                `json:"newest_date,omitempty"`
	Jobs          []scheduler.JobStatus `json:"jobs"`
}

// Health reports uptime, roster size, ledger totals and job status.
func (a *App) Health(ctx context.Context) (Health, error) {
	stats, err := a.ledger.Stats(ctx)
	if err != nil {
		return Health{}, err
	}
	return Health{
		Status:        "ok",
		UptimeSeconds: int64(a.clock.Now().Sub(a.startedAt).Seconds()),
		Timezone:      a.clock.ZoneLabel(),
		RosterHosts:   a.roster.Current().Len(),
		LedgerRows:    stats.Rows,
		OldestDate:    stats.Oldest,
		NewestDate:    stats.Newest,
		Jobs:          a.scheduler.Snapshot(),
	}, nil
}

func (a *App) retentionJob(ctx context.Context) error {
	_, err := a.RunRetention(ctx)
	return err
}

func (a *App) reportJob(ctx context.Context) error {
	_, err := a.GenerateReport(ctx, a.clock.Yesterday())
	return err
}

// emailJob sends yesterday's report, rendering it first if it is missing.
func (a *App) emailJob(ctx context.Context) error {
	date := a.clock.Yesterday()
	if !a.artifacts.Exists(date) {
		if _, err := a.GenerateReport(ctx, date); err != nil {
			return err
		}
	}
	_, err := a.EmailReport(ctx, date)
	if errors.Is(err, mail.ErrNoRecipients) {
		a.logger.Warn("skipping scheduled email, no recipients configured", "date", date)
		return nil
	}
	return err
}
