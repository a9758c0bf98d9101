package watch

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/rollcall/internal/events"
)

const pollInterval = 5 * time.Second

type pollMsg struct{}

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	health     HealthState
	location   *time.Location
	attendance Attendance
	jobs       map[string]*JobState
	eventLog   []events.Event

	ticker  Ticker
	spinner Spinner
	theme   Theme

	hubEvents chan events.Event
	now       func() time.Time

	lastError string
}

// New creates a watch model that talks to the API at apiURL.
func New(apiURL, apiKey string) *Model {
	theme := NewDefaultTheme()
	return &Model{
		apiURL:     apiURL,
		apiKey:     apiKey,
		location:   time.Local,
		attendance: newAttendance(theme),
		jobs:       make(map[string]*JobState),
		hubEvents:  make(chan events.Event, 100),
		ticker:     NewTicker(),
		theme:      theme,
		now:        time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		m.poll(),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) poll() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return fetchHealth(m.apiURL, m.apiKey) },
		func() tea.Msg { return fetchStatus(m.apiURL, m.apiKey) },
	)
}

func (m Model) schedulePoll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.poll()
		}
		var cmd tea.Cmd
		m.attendance.table, cmd = m.attendance.table.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.attendance.resize(msg.Width)

	case tickMsg:
		m.ticker.Tick()
		m.spinner.Decay(time.Time(msg))
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case pollMsg:
		return m, m.poll()

	case eventMsg:
		e := events.Event(msg)

		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > eventLogSize {
			m.eventLog = m.eventLog[:eventLogSize]
		}
		m.spinner.OnEvent(e.At)
		m.attendance.Apply(e, m.location)
		updateJobState(m.jobs, e)

		m.health.Connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.Timezone = msg.Timezone
		m.health.RosterHosts = msg.RosterHosts
		m.health.LedgerRows = msg.LedgerRows
		m.health.OldestDate = msg.OldestDate
		m.health.NewestDate = msg.NewestDate
		m.health.Connected = true
		m.health.LastCheck = m.now()
		if loc, err := time.LoadLocation(msg.Timezone); err == nil && msg.Timezone != "" {
			m.location = loc
		}
		syncJobs(m.jobs, msg.Jobs)
		m.lastError = ""
		return m, m.schedulePoll()

	case statusMsg:
		m.attendance.Replace(msg.Checkins, m.location)

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "SSE disconnected, reconnecting..."
		// The pending receiveNextEvent keeps reading the same channel.
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, m.schedulePoll()
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing rollcall watch..."
	}
	now := m.now()

	parts := []string{
		renderHeader(m.health, m.attendance.Len(), m.ticker, m.spinner, m.theme, m.width, now),
		renderAttendance(m.attendance, m.theme, m.width),
		renderJobs(m.jobs, m.theme, m.width, now),
		renderEventStream(m.eventLog, m.theme, m.width),
	}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [r] Refresh • [↑/↓] Scroll attendance"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
