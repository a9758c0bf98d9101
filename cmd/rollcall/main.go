package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "report":
		return runReportNoun(args)
	case "retention":
		return runRetentionNoun(args)
	case "ledger":
		return runLedgerNoun(args)
	case "roster":
		return runRosterNoun(args)

	case "start":
		return runStart(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: rollcall version [--json]")
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		return printJSON(info)
	}

	fmt.Printf("rollcall %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(built); ok {
		info.BuildTime = normalized
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

func printUsage() {
	fmt.Print(`rollcall - attendance check-in service

Usage:
  rollcall <noun> <action> [flags]

System Commands:
  system start      Start the HTTP service and scheduler in foreground
  system watch      Live attendance monitoring TUI

Config Commands:
  config check      Validate configuration and the files it points at
  config show       Print the effective configuration

Report Commands:
  report render     Render the PDF report for a date (default: yesterday)
  report email      Email the rendered report for a date (default: yesterday)

Maintenance Commands:
  retention run     Prune the ledger to retention.max_rows
  ledger stats      Show ledger row and date totals
  ledger seed       Fill the ledger with simulated check-ins
  roster show       Load and list the roster

General:
  version           Show version information
  help              Show this help message

Use 'rollcall <noun> help' for action-specific flags.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// action is one verb under a noun.
type action struct {
	run   func(args []string) int
	usage string
}

// dispatch routes args[0] to the matching action of noun.
func dispatch(noun string, args []string, actions map[string]action, order []string) int {
	help := func(w *os.File) {
		fmt.Fprintf(w, "Usage: rollcall %s <action> [flags]\n", noun)
		fmt.Fprintln(w, "Actions:")
		for _, name := range order {
			fmt.Fprintf(w, "  %s\n", actions[name].usage)
		}
	}

	if len(args) < 1 {
		help(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		help(os.Stdout)
		return 0
	}

	act, ok := actions[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown %s action: %s\n", noun, args[0])
		return 1
	}
	if hasHelpFlag(args[1:]) {
		fmt.Printf("Usage: rollcall %s %s\n", noun, act.usage)
		return 0
	}
	return act.run(args[1:])
}

func runSystemNoun(args []string) int {
	return dispatch("system", args, map[string]action{
		"start": {runStart, "start [--config PATH]"},
		"watch": {runWatch, "watch [--api-url URL] [--api-key KEY]"},
	}, []string{"start", "watch"})
}

func runConfigNoun(args []string) int {
	return dispatch("config", args, map[string]action{
		"check": {runConfigCheck, "check [--config PATH] [--json] [--strict]"},
		"show":  {runConfigShow, "show [--config PATH] [--json] [--reveal]"},
	}, []string{"check", "show"})
}

func runReportNoun(args []string) int {
	return dispatch("report", args, map[string]action{
		"render": {runReportRender, "render [--config PATH] [--date YYYY-MM-DD] [--json]"},
		"email":  {runReportEmail, "email [--config PATH] [--date YYYY-MM-DD] [--json]"},
	}, []string{"render", "email"})
}

func runRetentionNoun(args []string) int {
	return dispatch("retention", args, map[string]action{
		"run": {runRetentionRun, "run [--config PATH] [--json]"},
	}, []string{"run"})
}

func runLedgerNoun(args []string) int {
	return dispatch("ledger", args, map[string]action{
		"stats": {runLedgerStats, "stats [--config PATH] [--json]"},
		"seed":  {runLedgerSeed, "seed [--config PATH] [--days N] [--fraction F] [--end YYYY-MM-DD] [--seed N]"},
	}, []string{"stats", "seed"})
}

func runRosterNoun(args []string) int {
	return dispatch("roster", args, map[string]action{
		"show": {runRosterShow, "show [--config PATH] [--json]"},
	}, []string{"show"})
}
