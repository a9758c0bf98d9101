package watch

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/rollcall/internal/app"
	"github.com/mattjoyce/rollcall/internal/events"
	"github.com/mattjoyce/rollcall/internal/scheduler"
)

func TestReadSSE(t *testing.T) {
	stream := ": keep-alive\n\n" +
		"id: 7\nevent: checkin.recorded\ndata: {\"host_id\":\"h1\"}\n\n" +
		"id: 8\nevent: scheduler.fired\ndata: {\"job\":\"report\"}\n\n"

	ch := make(chan events.Event, 4)
	readSSE(bufio.NewScanner(strings.NewReader(stream)), ch)
	close(ch)

	var got []events.Event
	for e := range ch {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, events.CheckinRecorded, got[0].Type)
	assert.JSONEq(t, `{"host_id":"h1"}`, string(got[0].Data))
	assert.Equal(t, events.SchedulerFired, got[1].Type)
	assert.False(t, got[1].At.IsZero())
}

func TestFetchHealthAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/healthz":
			_, _ = w.Write([]byte(`{"status":"ok","uptime_seconds":61,"timezone":"Europe/Bucharest","roster_hosts":3,"ledger_rows":10,"jobs":[{"name":"report","spec":"0 8 * * *","next_run":"2024-01-11T08:00:00+02:00","running":false}]}`))
		case "/status":
			_, _ = w.Write([]byte(`{"checkins":{"h1":{"checkin_time":"2024-01-10T08:00:00+02:00","checkout_time":null}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	h, ok := fetchHealth(srv.URL+"/", "secret").(healthMsg)
	require.True(t, ok)
	assert.Equal(t, 3, h.RosterHosts)
	require.Len(t, h.Jobs, 1)
	assert.Equal(t, "report", h.Jobs[0].Name)

	st, ok := fetchStatus(srv.URL, "secret").(statusMsg)
	require.True(t, ok)
	require.Contains(t, st.Checkins, "h1")
	assert.Nil(t, st.Checkins["h1"].CheckoutTime)
}

func TestFetchHealthNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, ok := fetchHealth(srv.URL, "").(errMsg)
	assert.True(t, ok)
}

func checkinEvent(t *testing.T, host string, at time.Time) eventMsg {
	t.Helper()
	data, err := json.Marshal(app.CheckinResult{HostID: host, Name: host, Date: at.Format(time.DateOnly), CheckinAt: at})
	require.NoError(t, err)
	return eventMsg(events.Event{ID: 1, Type: events.CheckinRecorded, At: at, Data: data})
}

func TestModelTracksAttendance(t *testing.T) {
	loc := time.FixedZone("EET", 2*3600)
	m := *New("http://localhost", "")
	m.location = loc

	out := "2024-01-10T16:30:00+02:00"
	next, _ := m.Update(statusMsg(app.Status{Checkins: map[string]app.CheckinTimes{
		"h1": {CheckinTime: "2024-01-10T08:00:00+02:00", CheckoutTime: &out},
	}}))
	m = next.(Model)
	assert.Equal(t, 1, m.attendance.Len())

	next, _ = m.Update(checkinEvent(t, "h2", time.Date(2024, 1, 10, 7, 30, 0, 0, loc)))
	m = next.(Model)
	assert.Equal(t, 2, m.attendance.Len())
	require.Len(t, m.eventLog, 1)
	assert.True(t, m.health.Connected)

	rows := m.attendance.table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"h2", "07:30:00", "N/A"}, []string(rows[0]), "ordered by check-in time")
	assert.Equal(t, []string{"h1", "08:00:00", "16:30:00"}, []string(rows[1]))
}

func TestModelHealthUpdatesJobs(t *testing.T) {
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	m := *New("http://localhost", "")
	m.now = func() time.Time { return now }

	next, cmd := m.Update(healthMsg(app.Health{
		Status:      "ok",
		Timezone:    "UTC",
		RosterHosts: 5,
		Jobs:        []scheduler.JobStatus{{Name: "retention", Spec: "0 0 * * *", NextRun: now.Add(15 * time.Hour)}},
	}))
	m = next.(Model)
	assert.NotNil(t, cmd, "schedules the next poll")
	assert.Equal(t, 5, m.health.RosterHosts)
	assert.Equal(t, time.UTC, m.location)
	require.Contains(t, m.jobs, "retention")

	failed, err := json.Marshal(map[string]string{"job": "retention", "error": "disk full"})
	require.NoError(t, err)
	next, _ = m.Update(eventMsg(events.Event{Type: events.SchedulerFailed, At: now, Data: failed}))
	m = next.(Model)
	assert.Equal(t, "disk full", m.jobs["retention"].LastError)
	assert.False(t, m.jobs["retention"].Running)
}

func TestModelViewRendersPanels(t *testing.T) {
	m := *New("http://localhost", "")
	assert.Contains(t, m.View(), "Initializing")

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(Model)
	next, _ = m.Update(checkinEvent(t, "lab-01", time.Now()))
	m = next.(Model)

	view := m.View()
	for _, want := range []string{"ROLLCALL WATCH", "PRESENT TODAY", "lab-01", "JOBS", "EVENT STREAM"} {
		assert.Contains(t, view, want)
	}
}

func TestModelQuit(t *testing.T) {
	m := *New("http://localhost", "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestExtractEventDesc(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"scheduler", `{"job":"email","run_id":"0123456789abcdef"}`, "[01234567] email"},
		{"checkin", `{"host_id":"h1","name":"Ana","date":"2024-01-10"}`, "h1 Ana 2024-01-10"},
		{"retention", `{"rows_deleted":1000}`, "deleted=1000"},
		{"roster", `{"hosts":4}`, "hosts=4"},
		{"raw", `{"x":1}`, `{"x":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractEventDesc(events.Event{Data: json.RawMessage(tt.data)}))
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "due now", formatCountdown(0))
	assert.Equal(t, "in 45s", formatCountdown(45*time.Second))
	assert.Equal(t, "in 2m05s", formatCountdown(125*time.Second))
	assert.Equal(t, "in 3h00m", formatCountdown(3*time.Hour))
	assert.Equal(t, "in 3d", formatCountdown(72*time.Hour))

	assert.Equal(t, "59s", formatDuration(59*time.Second))
	assert.Equal(t, "1h 1m", formatDuration(61*time.Minute))

	assert.Equal(t, "not-a-time", clockTime("not-a-time", nil))
}

func TestSpinnerDecays(t *testing.T) {
	var s Spinner
	at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	s.OnEvent(at)
	s.Decay(at.Add(3 * time.Second))
	assert.Equal(t, 4, s.dots)
	s.Decay(at.Add(time.Minute))
	assert.Equal(t, 0, s.dots)
}
