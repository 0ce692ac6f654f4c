package task

import (
	"context"
	"time"

	logx "github.com/Leryan/flobot/pkg/logx"
)

// Tick logs a line on every run. It asks for one second and therefore runs
// every MinInterval, which makes it a cheap liveness marker in the logs.
type Tick struct {
	Log logx.Logger
}

func (Tick) Name() string                         { return "tick" }
func (Tick) InitialDelay(time.Time) time.Duration { return 0 }

func (t Tick) Execute(_ context.Context, now time.Time) (time.Duration, error) {
	t.Log.Debug("tick", logx.Time("at", now))
	return time.Second, nil
}
