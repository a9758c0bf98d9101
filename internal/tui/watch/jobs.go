package watch

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/rollcall/internal/events"
	"github.com/mattjoyce/rollcall/internal/scheduler"
)

// JobState tracks one scheduled job in the watch TUI.
type JobState struct {
	Name      string
	Spec      string
	NextRun   time.Time
	LastRun   time.Time
	LastError string
	Running   bool
}

// syncJobs replaces job state with the scheduler snapshot from /healthz.
func syncJobs(jobs map[string]*JobState, snapshot []scheduler.JobStatus) {
	for _, js := range snapshot {
		state, ok := jobs[js.Name]
		if !ok {
			state = &JobState{Name: js.Name}
			jobs[js.Name] = state
		}
		state.Spec = js.Spec
		state.NextRun = js.NextRun
		state.Running = js.Running
		state.LastError = js.LastError
		if js.LastRun != nil {
			state.LastRun = *js.LastRun
		}
	}
}

// updateJobState applies scheduler events between health polls.
func updateJobState(jobs map[string]*JobState, e events.Event) {
	if e.Type != events.SchedulerFired && e.Type != events.SchedulerFailed {
		return
	}
	var data struct {
		Job   string `json:"job"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || data.Job == "" {
		return
	}
	state, ok := jobs[data.Job]
	if !ok {
		state = &JobState{Name: data.Job}
		jobs[data.Job] = state
	}

	switch e.Type {
	case events.SchedulerFired:
		state.Running = true
		state.LastRun = e.At
		state.LastError = ""
	case events.SchedulerFailed:
		state.Running = false
		state.LastError = data.Error
	}
}

func renderJobs(jobs map[string]*JobState, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	if len(jobs) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("JOBS"),
			theme.Dim.Render("  No scheduled jobs reported yet..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	names := make([]string, 0, len(jobs))
	for name := range jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{theme.Title.Render("JOBS")}
	for _, name := range names {
		lines = append(lines, renderJobRow(jobs[name], theme, now))
	}
	return theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderJobRow(j *JobState, theme Theme, now time.Time) string {
	status := theme.StatusOK.Render("[idle]")
	switch {
	case j.Running:
		status = theme.StatusRunning.Render("[running]")
	case j.LastError != "":
		status = theme.StatusFailed.Render("[failed]")
	}

	next := "next: -"
	if !j.NextRun.IsZero() {
		next = fmt.Sprintf("next: %s (%s)", j.NextRun.Format("Mon 15:04"), formatCountdown(j.NextRun.Sub(now)))
	}
	last := ""
	if !j.LastRun.IsZero() {
		last = " last: " + j.LastRun.Format("Mon 15:04")
	}
	errText := ""
	if j.LastError != "" {
		errText = " " + theme.StatusFailed.Render(j.LastError)
	}

	return fmt.Sprintf(" %-10s %-18s %s %s%s%s", j.Name, j.Spec, status, theme.Dim.Render(next), theme.Dim.Render(last), errText)
}

func formatCountdown(until time.Duration) string {
	if until <= 0 {
		return "due now"
	}
	until = until.Round(time.Second)
	if until < time.Minute {
		return fmt.Sprintf("in %ds", int(until.Seconds()))
	}
	if until < time.Hour {
		return fmt.Sprintf("in %dm%02ds", int(until.Minutes()), int(until.Seconds())%60)
	}
	if until < 48*time.Hour {
		return fmt.Sprintf("in %dh%02dm", int(until.Hours()), int(until.Minutes())%60)
	}
	return fmt.Sprintf("in %dd", int(until.Hours()/24))
}
