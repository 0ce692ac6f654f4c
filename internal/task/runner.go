package task

import (
	"context"
	"sync"
	"time"

	"github.com/Leryan/flobot/internal/eventbus"
	"github.com/Leryan/flobot/internal/tempo"
	logx "github.com/Leryan/flobot/pkg/logx"
)

// Runner executes tasks one after the other on a single goroutine.
//
// Add must be called before RunForever; tasks cannot be removed. A slow task
// delays every task behind it in the same sweep.
type Runner struct {
	mu   sync.Mutex
	cont bool

	tasks []Task
	due   *tempo.Store

	now   func() time.Time
	sweep time.Duration
	log   logx.Logger
	bus   eventbus.Bus
}

type Option func(*Runner)

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(log logx.Logger) Option { return func(r *Runner) { r.log = log } }

func WithBus(bus eventbus.Bus) Option { return func(r *Runner) { r.bus = bus } }

// WithSweepInterval overrides the pause between two sweeps.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.sweep = d
		}
	}
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		cont:  true,
		now:   time.Now,
		sweep: SweepInterval,
	}
	for _, o := range opts {
		o(r)
	}
	if r.log.IsZero() {
		r.log = logx.Nop()
	}
	r.log = r.log.With(logx.String("comp", "scheduler"))
	r.due = tempo.New(tempo.WithClock(r.now))
	return r
}

// Add registers t and returns the delay before its first run, never less
// than InitialFloor.
func (r *Runner) Add(t Task) time.Duration {
	now := r.now()
	d := max(t.InitialDelay(now), InitialFloor)
	r.due.Set(t.Name(), d)

	r.mu.Lock()
	r.tasks = append(r.tasks, t)
	r.mu.Unlock()

	r.log.Info("task added", logx.String("task", t.Name()), logx.Duration("first_run_in", d))
	return d
}

// Names lists registered tasks in registration order.
func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Name())
	}
	return out
}

func (r *Runner) running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cont
}

// Stop asks RunForever to return. It is observed at the next sweep boundary.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.cont = false
	r.mu.Unlock()
}

// RunForever sweeps until Stop is called or ctx is done.
func (r *Runner) RunForever(ctx context.Context) error {
	r.log.Info("scheduler started", logx.Int("tasks", len(r.Names())))
	defer r.log.Info("scheduler stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for r.running() {
		r.RunOnce(ctx)

		timer.Reset(r.sweep)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
	return nil
}

// RunOnce runs every due task once, in registration order, and returns how
// many were executed.
func (r *Runner) RunOnce(ctx context.Context) int {
	r.mu.Lock()
	tasks := append([]Task(nil), r.tasks...)
	r.mu.Unlock()

	ran := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			return ran
		}
		if r.due.Exists(t.Name()) {
			continue
		}
		ran++
		r.execute(ctx, t)
	}
	return ran
}

func (r *Runner) execute(ctx context.Context, t Task) {
	name := t.Name()
	start := r.now()

	next, err := r.safeExecute(ctx, t, start)
	if err == nil {
		next = max(next, MinInterval)
		r.due.Set(name, next)
		r.log.Debug("task executed", logx.String("task", name), logx.Duration("next_in", next))
		r.publish(eventbus.TypeTaskExecuted, name, next, nil)
		return
	}

	next = PolicyDelay(err)
	r.due.Set(name, next)
	r.log.Warn("task failed",
		logx.String("task", name),
		logx.String("policy", KindOf(err).String()),
		logx.Duration("next_in", next),
		logx.Err(err),
	)
	r.publish(eventbus.TypeTaskFailed, name, next, err)
}

func (r *Runner) safeExecute(ctx context.Context, t Task, now time.Time) (d time.Duration, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			d, err = 0, ExpRetry(panicMessage(rec))
		}
	}()
	return t.Execute(ctx, now)
}

func (r *Runner) publish(typ, name string, next time.Duration, err error) {
	if r.bus == nil {
		return
	}
	data := map[string]any{"task": name, "next_in": next.String()}
	if err != nil {
		data["error"] = err.Error()
	}
	r.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
