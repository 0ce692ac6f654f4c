package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw   string
		kind  SpecKind
		every time.Duration
		src   string
	}{
		{"23 7 * * *", SpecCron, 0, "cron"},
		{"@daily", SpecCron, 0, "cron"},
		{"cron:0 */2 * * *", SpecCron, 0, "cron"},
		{"55m", SpecInterval, 55 * time.Minute, "duration"},
		{"02:30", SpecInterval, 150 * time.Minute, "hhmm"},
		{"every:1h", SpecInterval, time.Hour, "duration"},
		{"interval:00:05", SpecInterval, 5 * time.Minute, "hhmm"},
	}
	for _, tt := range tests {
		sc, err := ParseSchedule(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.kind, sc.Kind, tt.raw)
		assert.Equal(t, tt.every, sc.Every, tt.raw)
		assert.Equal(t, tt.src, sc.Source, tt.raw)
	}
}

func TestParseScheduleErrors(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "soon", "00:61", "0s", "cron:", "61 * * * *"} {
		_, err := ParseSchedule(raw)
		assert.Error(t, err, raw)
	}
}

func TestScheduleDelay(t *testing.T) {
	t.Parallel()
	sc := MustParseSchedule("23 7 * * *")
	now := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, 23*time.Minute, sc.Delay(now))

	after := time.Date(2024, 3, 1, 7, 23, 0, 0, time.UTC)
	assert.Equal(t, 24*time.Hour, sc.Delay(after))

	every := MustParseSchedule("90m")
	assert.Equal(t, 90*time.Minute, every.Delay(now))
}

func TestPolicyDelayAndKind(t *testing.T) {
	t.Parallel()
	assert.Equal(t, KindReschedule, KindOf(Reschedule("x")))
	assert.Equal(t, KindCannotExec, KindOf(CannotExec(time.Hour, "x")))
	assert.Equal(t, KindExpRetry, KindOf(assert.AnError))
	assert.Equal(t, time.Duration(0), PolicyDelay(CannotExec(-time.Second, "x")))
	assert.Nil(t, AsExpRetry("x", nil))
	assert.ErrorIs(t, AsExpRetry("post", assert.AnError), assert.AnError)
	assert.Contains(t, CannotExec(time.Hour, "closed").Error(), "cannot_exec(1h0m0s)")
}
