package tempo

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)}
}

func TestExistsUntilExpiry(t *testing.T) {
	t.Parallel()
	clk := newClock()
	s := New(WithClock(clk.Now))

	assert.False(t, s.Exists("k"))

	s.Set("k", 10*time.Second)
	assert.True(t, s.Exists("k"))

	clk.Advance(9 * time.Second)
	assert.True(t, s.Exists("k"))

	clk.Advance(time.Second)
	assert.False(t, s.Exists("k"), "expires_at <= now is absent")
	assert.Equal(t, 0, s.Len(), "expired key reclaimed on lookup")
}

func TestSetOverwrites(t *testing.T) {
	t.Parallel()
	clk := newClock()
	s := New(WithClock(clk.Now))

	s.Set("k", time.Hour)
	s.Set("k", 5*time.Second)

	clk.Advance(6 * time.Second)
	assert.False(t, s.Exists("k"))

	s.Set("j", time.Second)
	s.Set("j", time.Minute)
	clk.Advance(30 * time.Second)
	assert.True(t, s.Exists("j"))
}

func TestZeroTTLIsAbsent(t *testing.T) {
	t.Parallel()
	s := New(WithClock(newClock().Now))
	s.Set("k", 0)
	assert.False(t, s.Exists("k"))
}

func TestDumpLoad(t *testing.T) {
	t.Parallel()
	clk := newClock()
	s := New(WithClock(clk.Now))
	s.Set("short", 10*time.Second)
	s.Set("long", time.Hour)

	data, err := s.Dump()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"store"`)

	clk.Advance(time.Minute)
	restored := New(WithClock(clk.Now))
	require.NoError(t, restored.Load(data))

	assert.False(t, restored.Exists("short"))
	assert.True(t, restored.Exists("long"))

	clk.Advance(time.Hour)
	assert.False(t, restored.Exists("long"))
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Parallel()
	s := New()
	assert.Error(t, s.Load([]byte("nope")))
	assert.Error(t, s.Load([]byte(`{"store":{"k":"yesterday"}}`)))
}

func TestConcurrentUse(t *testing.T) {
	t.Parallel()
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Set("k", time.Minute)
				_ = s.Exists("k")
			}
		}()
	}
	wg.Wait()
	assert.True(t, s.Exists("k"))
}
