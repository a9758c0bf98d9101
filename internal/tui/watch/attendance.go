package watch

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/rollcall/internal/app"
	"github.com/mattjoyce/rollcall/internal/events"
)

const attendanceRows = 10

// Attendance holds today's check-ins keyed by host id.
type Attendance struct {
	Date    string
	entries map[string]app.CheckinTimes
	table   table.Model
}

func newAttendance(theme Theme) Attendance {
	t := table.New(
		table.WithColumns(attendanceColumns(80)),
		table.WithHeight(attendanceRows),
		table.WithFocused(true),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Foreground(theme.Header.GetForeground()).Bold(true)
	s.Selected = s.Selected.Foreground(theme.Highlight.GetForeground()).Bold(false)
	t.SetStyles(s)
	return Attendance{entries: make(map[string]app.CheckinTimes), table: t}
}

func attendanceColumns(width int) []table.Column {
	host := width - 4 - 2*12 - 6
	if host < 12 {
		host = 12
	}
	return []table.Column{
		{Title: "Host", Width: host},
		{Title: "Check-in", Width: 12},
		{Title: "Check-out", Width: 12},
	}
}

// Replace swaps in a full /status snapshot.
func (a *Attendance) Replace(checkins map[string]app.CheckinTimes, loc *time.Location) {
	a.entries = make(map[string]app.CheckinTimes, len(checkins))
	for host, times := range checkins {
		a.entries[host] = times
	}
	a.refresh(loc)
}

// Apply folds a checkin.recorded event into the table.
func (a *Attendance) Apply(e events.Event, loc *time.Location) bool {
	if e.Type != events.CheckinRecorded {
		return false
	}
	var res struct {
		HostID       string     `json:"host_id"`
		CheckinTime  time.Time  `json:"checkin_time"`
		CheckoutTime *time.Time `json:"checkout_time"`
	}
	if err := json.Unmarshal(e.Data, &res); err != nil || res.HostID == "" {
		return false
	}
	times := app.CheckinTimes{CheckinTime: res.CheckinTime.Format(time.RFC3339)}
	if res.CheckoutTime != nil {
		out := res.CheckoutTime.Format(time.RFC3339)
		times.CheckoutTime = &out
	}
	a.entries[res.HostID] = times
	a.refresh(loc)
	return true
}

// Len is the number of hosts present today.
func (a Attendance) Len() int { return len(a.entries) }

func (a *Attendance) refresh(loc *time.Location) {
	hosts := make([]string, 0, len(a.entries))
	for host := range a.entries {
		hosts = append(hosts, host)
	}
	sort.Slice(hosts, func(i, j int) bool {
		ti, tj := a.entries[hosts[i]].CheckinTime, a.entries[hosts[j]].CheckinTime
		if ti != tj {
			return ti < tj
		}
		return hosts[i] < hosts[j]
	})

	rows := make([]table.Row, 0, len(hosts))
	for _, host := range hosts {
		times := a.entries[host]
		out := "N/A"
		if times.CheckoutTime != nil {
			out = clockTime(*times.CheckoutTime, loc)
		}
		rows = append(rows, table.Row{host, clockTime(times.CheckinTime, loc), out})
	}
	a.table.SetRows(rows)
}

func (a *Attendance) resize(width int) {
	a.table.SetColumns(attendanceColumns(width))
	a.table.SetWidth(width - 6)
}

// clockTime renders an RFC3339 instant as HH:MM:SS in loc.
func clockTime(raw string, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("15:04:05")
}

func renderAttendance(a Attendance, theme Theme, width int) string {
	innerWidth := width - 4
	title := theme.Title.Render("PRESENT TODAY")

	if a.Len() == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			theme.Dim.Render("  Nobody has checked in yet..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, a.table.View())
	return theme.Border.Width(innerWidth).Render(content)
}
