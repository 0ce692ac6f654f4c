package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leryan/flobot/internal/eventbus"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func fixed(name string, rec *recorder, initial, next time.Duration, err error) Task {
	return Func{
		TaskName: name,
		Initial:  initial,
		Run: func(context.Context, time.Time) (time.Duration, error) {
			rec.add(name)
			return next, err
		},
	}
}

func TestAddAppliesRegistrationFloor(t *testing.T) {
	t.Parallel()
	clk := newClock()
	rec := &recorder{}
	r := NewRunner(WithClock(clk.Now))

	assert.Equal(t, InitialFloor, r.Add(fixed("zero", rec, 0, time.Minute, nil)))
	assert.Equal(t, 10*time.Second, r.Add(fixed("ten", rec, 10*time.Second, time.Minute, nil)))

	ctx := context.Background()
	clk.Advance(2999 * time.Millisecond)
	assert.Equal(t, 0, r.RunOnce(ctx))

	clk.Advance(time.Millisecond)
	assert.Equal(t, 1, r.RunOnce(ctx))
	assert.Equal(t, []string{"zero"}, rec.get())

	clk.Advance(7 * time.Second)
	r.RunOnce(ctx)
	assert.Equal(t, []string{"zero", "ten"}, rec.get())
}

func TestSuccessIsFlooredToMinInterval(t *testing.T) {
	t.Parallel()
	clk := newClock()
	rec := &recorder{}
	r := NewRunner(WithClock(clk.Now))
	r.Add(fixed("fast", rec, 0, time.Millisecond, nil))

	ctx := context.Background()
	clk.Advance(InitialFloor)
	r.RunOnce(ctx)
	require.Len(t, rec.get(), 1)

	clk.Advance(59 * time.Second)
	r.RunOnce(ctx)
	assert.Len(t, rec.get(), 1)

	clk.Advance(time.Second)
	r.RunOnce(ctx)
	assert.Len(t, rec.get(), 2)
}

func TestFailurePolicies(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"reschedule", Reschedule("busy"), RescheduleDelay},
		{"cannot exec", CannotExec(24*time.Hour, "closed"), 24 * time.Hour},
		{"cannot exec below floor", CannotExec(5*time.Second, "soon"), 5 * time.Second},
		{"exp retry", ExpRetry("down"), ExpRetryDelay},
		{"untyped", errors.New("boom"), ExpRetryDelay},
		{"wrapped", AsCannotExec(time.Hour, "http", errors.New("404")), time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clk := newClock()
			rec := &recorder{}
			r := NewRunner(WithClock(clk.Now))
			r.Add(fixed("t", rec, 0, 0, tt.err))

			ctx := context.Background()
			clk.Advance(InitialFloor)
			r.RunOnce(ctx)
			require.Len(t, rec.get(), 1)

			clk.Advance(tt.want - time.Millisecond)
			r.RunOnce(ctx)
			assert.Len(t, rec.get(), 1, "ran before policy delay")

			clk.Advance(time.Millisecond)
			r.RunOnce(ctx)
			assert.Len(t, rec.get(), 2, "not run after policy delay")
		})
	}
}

func TestFailureDoesNotStopOtherTasks(t *testing.T) {
	t.Parallel()
	clk := newClock()
	rec := &recorder{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	r := NewRunner(WithClock(clk.Now), WithBus(bus))
	r.Add(fixed("a", rec, 0, time.Minute, nil))
	r.Add(fixed("b", rec, 0, 0, errors.New("boom")))
	r.Add(Func{TaskName: "c", Run: func(context.Context, time.Time) (time.Duration, error) {
		rec.add("c")
		panic("oops")
	}})
	r.Add(fixed("d", rec, 0, time.Minute, nil))

	clk.Advance(InitialFloor)
	assert.Equal(t, 4, r.RunOnce(context.Background()))
	assert.Equal(t, []string{"a", "b", "c", "d"}, rec.get())
	assert.Equal(t, []string{"a", "b", "c", "d"}, r.Names())

	var failed int
	for i := 0; i < 4; i++ {
		if e := <-events; e.Type == eventbus.TypeTaskFailed {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
}

func TestRunForeverStops(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	r := NewRunner(WithSweepInterval(5 * time.Millisecond))
	r.Add(fixed("t", rec, 0, time.Minute, nil))

	done := make(chan error, 1)
	go func() { done <- r.RunForever(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	r.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Empty(t, rec.get(), "floor keeps the task from running")
}

func TestRunForeverHonoursContext(t *testing.T) {
	t.Parallel()
	r := NewRunner(WithSweepInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.RunForever(ctx) }()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner ignored context")
	}
}

func TestStopBeforeRun(t *testing.T) {
	t.Parallel()
	r := NewRunner()
	r.Stop()
	assert.NoError(t, r.RunForever(context.Background()))
}
