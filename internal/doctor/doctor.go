// Package doctor checks a loaded rollcall configuration against the files
// and settings it points at.
package doctor

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/rollcall/internal/config"
	"github.com/mattjoyce/rollcall/internal/lock"
	"github.com/mattjoyce/rollcall/internal/roster"
	"github.com/mattjoyce/rollcall/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid       bool    `json:"valid"`
	RosterHosts int     `json:"roster_hosts,omitempty"`
	Errors      []Issue `json:"errors,omitempty"`
	Warnings    []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a configuration that already passed config.Load.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor for cfg.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateRoster(r)
	d.validateDatabase(r)
	d.validateReport(r)
	d.validateEmail(r)
	d.warnOpenAdminRoutes(r)
	d.warnScheduleOverlap(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateRoster loads the roster the same way startup does.
func (d *Doctor) validateRoster(r *Result) {
	path := d.cfg.Roster.Path
	ros, err := roster.Load(path, d.cfg.Roster.Sheet, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		d.addError(r, "roster", "roster.path", err.Error())
		return
	}
	r.RosterHosts = ros.Len()

	if d.cfg.Roster.Sheet != "" && strings.EqualFold(filepath.Ext(path), ".csv") {
		d.addWarning(r, "roster", "roster.sheet",
			fmt.Sprintf("sheet %q is ignored for csv rosters", d.cfg.Roster.Sheet))
	}
}

// validateDatabase checks the ledger directory and whether another
// instance holds the lock.
func (d *Doctor) validateDatabase(r *Result) {
	path := d.cfg.Database.Path
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil {
		d.addWarning(r, "database", "database.path",
			fmt.Sprintf("directory %q does not exist yet and will be created", dir))
	} else if !info.IsDir() {
		d.addError(r, "database", "database.path",
			fmt.Sprintf("%q is not a directory", dir))
		return
	}

	if m, err := storage.ProbeMount(path); err != nil {
		d.addWarning(r, "database", "database.path", fmt.Sprintf("cannot inspect filesystem: %v", err))
	} else if m.Network {
		d.addError(r, "database", "database.path",
			fmt.Sprintf("%q is on network filesystem %q; the ledger needs local disk", path, m.Type))
	}

	if pid, ok := lock.HolderPID(lock.PathFor(path)); ok {
		d.addWarning(r, "database", "database.path",
			fmt.Sprintf("lock file names pid %d; another instance may be running", pid))
	}
}

// validateReport checks the output directory and the configured font.
func (d *Doctor) validateReport(r *Result) {
	out := d.cfg.Report.OutputDir
	if info, err := os.Stat(out); err == nil && !info.IsDir() {
		d.addError(r, "report", "report.output_dir",
			fmt.Sprintf("%q exists and is not a directory", out))
	}
	if m, err := storage.ProbeMount(out); err == nil && m.Network {
		d.addWarning(r, "report", "report.output_dir",
			fmt.Sprintf("%q is on network filesystem %q; report replacement may not be atomic", out, m.Type))
	}

	font := d.cfg.Report.FontFile
	if font == "" {
		d.addWarning(r, "report", "report.font_file",
			"no font configured; reports fail for names outside cp1252")
		return
	}
	if !filepath.IsAbs(font) {
		font = filepath.Join(d.cfg.Report.FontDir, font)
	}
	if _, err := os.Stat(font); err != nil {
		d.addError(r, "report", "report.font_file",
			fmt.Sprintf("font %q not readable: %v", font, err))
	}
}

// validateEmail checks that scheduled delivery can actually send.
func (d *Doctor) validateEmail(r *Result) {
	if strings.TrimSpace(d.cfg.Email.From) == "" {
		d.addError(r, "email", "email.from", "sender address is required")
	}
	recipients := d.cfg.Email.RecipientList()
	if len(recipients) == 0 {
		d.addWarning(r, "email", "email.recipients",
			"no recipients configured; scheduled email is skipped")
	}
	for _, addr := range recipients {
		if !strings.Contains(addr, "@") {
			d.addError(r, "email", "email.recipients",
				fmt.Sprintf("recipient %q is not an email address", addr))
		}
	}
	if d.cfg.Email.SendGridAPIKey == "" {
		d.addWarning(r, "email", "email.sendgrid_api_key",
			"SendGrid API key not set; email delivery will fail")
	}
}

func (d *Doctor) warnOpenAdminRoutes(r *Result) {
	if d.cfg.Server.Auth.APIKey == "" {
		d.addWarning(r, "api", "server.auth.api_key",
			"no api key configured; report, email and retention routes are unauthenticated")
	}
}

// warnScheduleOverlap flags jobs that fire in the same minute. They still
// run, but render and retention take turns.
func (d *Doctor) warnScheduleOverlap(r *Result) {
	report := d.cfg.Schedule.Report
	retention := d.cfg.Retention
	if report.Hour == retention.Hour && report.Minute == retention.Minute {
		d.addWarning(r, "schedule", "schedule.report",
			fmt.Sprintf("report and retention both fire at %02d:%02d", report.Hour, report.Minute))
	}
	email := d.cfg.Schedule.Email
	if email.Hour < report.Hour || (email.Hour == report.Hour && email.Minute <= report.Minute) {
		d.addWarning(r, "schedule", "schedule.email",
			fmt.Sprintf("email at %02d:%02d fires before the %02d:%02d report render; it renders on demand",
				email.Hour, email.Minute, report.Hour, report.Minute))
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		fmt.Fprintf(&b, "Configuration valid (%d roster hosts).\n", r.RosterHosts)
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
