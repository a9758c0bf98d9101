package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/rollcall/internal/app"
	"github.com/mattjoyce/rollcall/internal/config"
	"github.com/mattjoyce/rollcall/internal/doctor"
	"github.com/mattjoyce/rollcall/internal/ledger"
	"github.com/mattjoyce/rollcall/internal/lock"
	"github.com/mattjoyce/rollcall/internal/log"
	"github.com/mattjoyce/rollcall/internal/tui/watch"
)

const redacted = "********"

// toolFlags are shared by every one-shot command.
type toolFlags struct {
	fs         *flag.FlagSet
	configPath *string
	jsonOut    *bool
	// exclusive commands hold the instance lock while they run.
	exclusive bool
}

func newToolFlags(name string) toolFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return toolFlags{
		fs:         fs,
		configPath: fs.String("config", "", "Path to configuration file"),
		jsonOut:    fs.Bool("json", false, "Output in structured JSON format"),
	}
}

func (t toolFlags) parse(args []string) bool {
	if err := t.fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return false
	}
	if t.fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Unexpected arguments: %v\n", t.fs.Args())
		return false
	}
	return true
}

// openApp builds the application without starting the scheduler. Logs go
// to stderr so stdout stays parseable.
func openApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: log.ParseLevel(cfg.Service.LogLevel)}))
	return app.New(ctx, cfg, logger, app.Options{})
}

// toolContext is cancelled on SIGINT/SIGTERM.
func toolContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// withApp opens the app, runs fn and reports its result.
func withApp(t toolFlags, fn func(ctx context.Context, a *app.App) (any, string, error)) int {
	ctx, cancel := toolContext()
	defer cancel()

	cfg, err := loadConfig(*t.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	if t.exclusive {
		pidLock, err := lock.Acquire(lock.PathFor(cfg.Database.Path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to acquire PID lock (is rollcall system start running?): %v\n", err)
			return 1
		}
		defer pidLock.Release()
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer a.Close()

	result, summary, err := fn(ctx, a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error (%s): %v\n", app.KindOf(err), err)
		return 1
	}
	if *t.jsonOut {
		return printJSON(result)
	}
	fmt.Println(summary)
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()
	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if *strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	reveal := fs.Bool("reveal", false, "Print secrets instead of masking them")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	shown := *cfg
	if !*reveal {
		shown = redactConfig(shown)
	}

	if *jsonOut {
		return printJSON(shown)
	}
	data, err := yaml.Marshal(shown)
	if err != nil {
		fmt.Fprintf(os.Stderr, "YAML encode error: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

func redactConfig(cfg config.Config) config.Config {
	if cfg.Server.Auth.APIKey != "" {
		cfg.Server.Auth.APIKey = redacted
	}
	if cfg.Email.SendGridAPIKey != "" {
		cfg.Email.SendGridAPIKey = redacted
	}
	return cfg
}

func runReportRender(args []string) int {
	t := newToolFlags("render")
	t.exclusive = true
	date := t.fs.String("date", "", "Report date YYYY-MM-DD (default: yesterday)")
	if !t.parse(args) {
		return 1
	}
	return withApp(t, func(ctx context.Context, a *app.App) (any, string, error) {
		art, err := a.GenerateReport(ctx, *date)
		if err != nil {
			return nil, "", err
		}
		return art, fmt.Sprintf("Rendered %s (%d page(s), %d present, %d absent)", art.Path, art.Pages, art.Present, art.Absent), nil
	})
}

func runReportEmail(args []string) int {
	t := newToolFlags("email")
	t.exclusive = true
	date := t.fs.String("date", "", "Report date YYYY-MM-DD (default: yesterday)")
	if !t.parse(args) {
		return 1
	}
	return withApp(t, func(ctx context.Context, a *app.App) (any, string, error) {
		d, err := a.EmailReport(ctx, *date)
		if err != nil {
			return nil, "", err
		}
		return d, fmt.Sprintf("Sent %s to %d recipient(s) (status %d)", d.Filename, len(d.Recipients), d.StatusCode), nil
	})
}

func runRetentionRun(args []string) int {
	t := newToolFlags("retention")
	t.exclusive = true
	if !t.parse(args) {
		return 1
	}
	return withApp(t, func(ctx context.Context, a *app.App) (any, string, error) {
		res, err := a.RunRetention(ctx)
		if err != nil {
			return nil, "", err
		}
		return res, fmt.Sprintf("Ledger rows: %d -> %d (max %d), deleted %d row(s) across %d date(s), removed %d report(s)",
			res.RowsBefore, res.RowsAfter, res.MaxRows, res.RowsDeleted, len(res.Dates), res.ArtifactsRemoved), nil
	})
}

func runLedgerStats(args []string) int {
	t := newToolFlags("stats")
	if !t.parse(args) {
		return 1
	}
	return withApp(t, func(ctx context.Context, a *app.App) (any, string, error) {
		st, err := a.Stats(ctx)
		if err != nil {
			return nil, "", err
		}
		summary := fmt.Sprintf("Rows: %d\nDates: %d", st.Rows, st.Dates)
		if st.Oldest != "" {
			summary += fmt.Sprintf("\nRange: %s .. %s", st.Oldest, st.Newest)
		}
		return st, summary, nil
	})
}

func runLedgerSeed(args []string) int {
	t := newToolFlags("seed")
	t.exclusive = true
	days := t.fs.Int("days", 30, "Number of consecutive dates to fill")
	fraction := t.fs.Float64("fraction", 0.8, "Fraction of roster hosts checking in per day")
	end := t.fs.String("end", "", "Last date to fill YYYY-MM-DD (default: yesterday)")
	seed := t.fs.Uint64("seed", 0, "Random seed (0 picks one)")
	if !t.parse(args) {
		return 1
	}

	opts := ledger.SeedOptions{End: *end, Days: *days, Fraction: *fraction}
	if *seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(*seed, *seed))
	}
	return withApp(t, func(ctx context.Context, a *app.App) (any, string, error) {
		res, err := a.Seed(ctx, opts)
		if err != nil {
			return nil, "", err
		}
		return res, fmt.Sprintf("Seeded %d date(s): %d recorded, %d already present", res.Dates, res.Recorded, res.Skipped), nil
	})
}

type rosterListing struct {
	app.RosterInfo
	Entries []rosterRow `json:"entries"`
}

type rosterRow struct {
	HostID        string  `json:"host_id"`
	DisplayName   string  `json:"display_name"`
	ExpectedHours float64 `json:"expected_hours"`
}

func runRosterShow(args []string) int {
	t := newToolFlags("roster")
	if !t.parse(args) {
		return 1
	}
	return withApp(t, func(ctx context.Context, a *app.App) (any, string, error) {
		r := a.Roster()
		listing := rosterListing{RosterInfo: app.RosterInfo{
			Hosts:       r.Len(),
			Source:      r.Source(),
			Fingerprint: r.Fingerprint(),
			LoadedAt:    r.LoadedAt(),
		}}
		summary := fmt.Sprintf("Roster %s (%d hosts, blake3 %s)", r.Source(), r.Len(), shortenCommit(r.Fingerprint()))
		for _, e := range r.Entries() {
			listing.Entries = append(listing.Entries, rosterRow{HostID: e.HostID, DisplayName: e.DisplayName, ExpectedHours: e.ExpectedHours})
			summary += fmt.Sprintf("\n  %-20s %-30s %4.1fh", e.HostID, e.DisplayName, e.ExpectedHours)
		}
		return listing, summary, nil
	})
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	apiURL := fs.String("api-url", "http://localhost:3001", "rollcall API URL")
	apiKey := fs.String("api-key", os.Getenv("ROLLCALL_API_KEY"), "API Bearer Token (or ROLLCALL_API_KEY)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}
