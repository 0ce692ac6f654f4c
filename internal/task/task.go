// Package task runs periodic background work sequentially.
//
// A Runner sweeps its tasks in registration order once per second and runs
// those that are due. Due times live in a tempo.Store keyed by task name.
// The delay before the next run comes from the task itself when it succeeds
// (floored to MinInterval) or from the failure policy when it fails:
//
//	Ok(d)            max(d, 60s)
//	Reschedule       123s
//	CannotExec(d)    exactly d
//	ExpRetry         196s (also used for untyped errors)
package task

import (
	"context"
	"time"
)

const (
	InitialFloor    = 3 * time.Second
	MinInterval     = 60 * time.Second
	RescheduleDelay = 123 * time.Second
	ExpRetryDelay   = 196 * time.Second
	SweepInterval   = time.Second
)

// Task is a unit of periodic work. Name must be stable and unique within a
// Runner.
type Task interface {
	Name() string
	// InitialDelay is called once, when the task is added.
	InitialDelay(now time.Time) time.Duration
	// Execute returns the delay before the next run, or an error built with
	// Reschedule, CannotExec or ExpRetry.
	Execute(ctx context.Context, now time.Time) (time.Duration, error)
}

// Func adapts plain functions to Task.
type Func struct {
	TaskName string
	Initial  time.Duration
	Run      func(ctx context.Context, now time.Time) (time.Duration, error)
}

func (f Func) Name() string                         { return f.TaskName }
func (f Func) InitialDelay(time.Time) time.Duration { return f.Initial }
func (f Func) Execute(ctx context.Context, now time.Time) (time.Duration, error) {
	return f.Run(ctx, now)
}
