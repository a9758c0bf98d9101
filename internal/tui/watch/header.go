package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState is the last /healthz answer plus connection state.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	Timezone      string
	RosterHosts   int
	LedgerRows    int
	OldestDate    string
	NewestDate    string
	Connected     bool
	LastCheck     time.Time
}

func renderHeader(health HealthState, present int, ticker Ticker, spinner Spinner, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	statusText := theme.StatusOK.Render("HEALTHY")
	if !health.Connected {
		statusText = theme.StatusFailed.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.StatusFailed.Render("DEGRADED")
	}

	lastEventStr := "never"
	if !spinner.LastEvent().IsZero() {
		lastEventStr = fmt.Sprintf("%s ago", now.Sub(spinner.LastEvent()).Round(time.Second))
	}

	tickerStr := theme.Highlight.Render(ticker.Current())
	clock := theme.Dim.Render(now.Format("15:04:05"))
	if health.Timezone != "" {
		if loc, err := time.LoadLocation(health.Timezone); err == nil {
			clock = theme.Dim.Render(now.In(loc).Format("15:04:05") + " " + health.Timezone)
		}
	}
	titleText := fmt.Sprintf(" ROLLCALL WATCH %s", tickerStr)

	pad := innerWidth - lipgloss.Width(titleText) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	absent := health.RosterHosts - present
	if absent < 0 {
		absent = 0
	}
	statsLine := fmt.Sprintf(" %s  ⏱ %s  Present: %d  Absent: %d  Roster: %d",
		statusText,
		formatDuration(time.Duration(health.UptimeSeconds)*time.Second),
		present, absent, health.RosterHosts,
	)

	ledgerLine := fmt.Sprintf(" Ledger: %d rows", health.LedgerRows)
	if health.OldestDate != "" {
		ledgerLine += fmt.Sprintf(" (%s .. %s)", health.OldestDate, health.NewestDate)
	}
	activityLine := fmt.Sprintf(" Last event: %s %s", lastEventStr, spinner.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, ledgerLine, activityLine)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
