// Package scheduler fires named jobs on cron schedules in a fixed timezone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/mattjoyce/rollcall/internal/clock"
	"github.com/mattjoyce/rollcall/internal/events"
)

// DefaultTick is how often wall-clock minutes are checked. It must stay under
// one minute or firings can be missed.
const DefaultTick = 20 * time.Second

// ErrStarted is returned when jobs are added after Start.
var ErrStarted = errors.New("scheduler already started")

// JobStatus is a point-in-time view of one job.
type JobStatus struct {
	Name      string     `json:"name"`
	Spec      string     `json:"spec"`
	NextRun   time.Time  `json:"next_run"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastRunID string     `json:"last_run_id,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Running   bool       `json:"running"`
}

type job struct {
	name     string
	spec     string
	schedule cron.Schedule
	runner   Runner

	// Guarded by Scheduler.mu.
	lastMinute time.Time
	running    bool
	lastRun    *time.Time
	lastRunID  string
	lastError  string
}

// Scheduler owns a set of named jobs. Each job fires at most once per
// matching wall-clock minute; minutes missed while stopped are not replayed.
type Scheduler struct {
	clock  *clock.Clock
	tick   time.Duration
	events events.Publisher
	logger *slog.Logger

	mu      sync.Mutex
	jobs    []*job
	started bool

	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	runs   sync.WaitGroup
}

// New creates a scheduler. A non-positive tick uses DefaultTick.
func New(clk *clock.Clock, tick time.Duration, hub events.Publisher, logger *slog.Logger) *Scheduler {
	if tick <= 0 || tick > time.Minute {
		tick = DefaultTick
	}
	if hub == nil {
		hub = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:  clk,
		tick:   tick,
		events: hub,
		logger: logger.With("component", "scheduler"),
		stopCh: make(chan struct{}),
	}
}

// Add registers a job under a standard five-field cron spec.
func (s *Scheduler) Add(name, spec string, r Runner) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("job %q: invalid cron spec %q: %w", name, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	for _, j := range s.jobs {
		if j.name == name {
			return fmt.Errorf("job %q already registered", name)
		}
	}
	s.jobs = append(s.jobs, &job{name: name, spec: spec, schedule: schedule, runner: r})
	return nil
}

// Start begins the tick loop. Jobs run with a context that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrStarted
	}
	s.started = true
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Info("Starting scheduler", "jobs", len(s.jobs), "timezone", s.clock.ZoneLabel(), "tick", s.tick.String())
	s.wg.Add(1)
	go s.tickLoop(runCtx)
	return nil
}

// Stop halts the tick loop, cancels running jobs and waits for them.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	close(s.stopCh)
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.runs.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	s.tickAt(ctx, s.clock.Now())

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tickAt(ctx, s.clock.Now())
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.logger.Warn("Scheduler context cancelled, stopping tick loop")
			return
		}
	}
}

// tickAt starts every job whose schedule matches the minute containing now.
func (s *Scheduler) tickAt(ctx context.Context, now time.Time) {
	minute := now.In(s.clock.Location()).Truncate(time.Minute)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if !matches(j.schedule, minute) || j.lastMinute.Equal(minute) {
			continue
		}
		j.lastMinute = minute
		if j.running {
			s.logger.Warn("Skipped scheduled job, previous run still in progress", "job", j.name)
			continue
		}
		j.running = true
		runID := uuid.NewString()
		s.runs.Add(1)
		go s.run(ctx, j, runID, minute)
	}
}

func (s *Scheduler) run(ctx context.Context, j *job, runID string, minute time.Time) {
	defer s.runs.Done()
	logger := s.logger.With("job", j.name, "run_id", runID)

	logger.Info("Scheduled job fired", "minute", minute.Format(time.RFC3339))
	s.events.Publish(events.SchedulerFired, map[string]any{
		"job":    j.name,
		"run_id": runID,
		"minute": minute,
	})

	started := time.Now()
	err := j.runner.Run(ctx)
	elapsed := time.Since(started)

	s.mu.Lock()
	j.running = false
	at := s.clock.Now()
	j.lastRun = &at
	j.lastRunID = runID
	j.lastError = ""
	if err != nil {
		j.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("Scheduled job failed", "duration_ms", elapsed.Milliseconds(), "error", err)
		s.events.Publish(events.SchedulerFailed, map[string]any{
			"job":    j.name,
			"run_id": runID,
			"error":  err.Error(),
		})
		return
	}
	logger.Info("Scheduled job completed", "duration_ms", elapsed.Milliseconds())
}

// Snapshot returns the status of every job in registration order.
func (s *Scheduler) Snapshot() []JobStatus {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := JobStatus{
			Name:      j.name,
			Spec:      j.spec,
			NextRun:   j.schedule.Next(now),
			LastRunID: j.lastRunID,
			LastError: j.lastError,
			Running:   j.running,
		}
		if j.lastRun != nil {
			last := *j.lastRun
			st.LastRun = &last
		}
		out = append(out, st)
	}
	return out
}

// matches reports whether the schedule fires at the given whole minute.
func matches(schedule cron.Schedule, minute time.Time) bool {
	return schedule.Next(minute.Add(-time.Second)).Equal(minute)
}
