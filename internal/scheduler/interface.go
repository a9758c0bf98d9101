package scheduler

import "context"

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks github.com/mattjoyce/rollcall/internal/scheduler Runner

// Runner is the work behind a scheduled job.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }
