package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sinkMock struct{ mock.Mock }

func (m *sinkMock) ErrorNotify(ctx context.Context, message string) error {
	return m.Called(ctx, message).Error(0)
}

func TestZeroLoggerIsSilent(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	l.Info("nothing")
	l.With(String("k", "v")).Error("still nothing")
	assert.False(t, Nop().IsZero())
}

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With(String("comp", "test"))
	l.Info("hello", Int("n", 3), Err(errors.New("boom")), Err(nil), Duration("d", time.Second))
	l.Trace("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &m))
	assert.Equal(t, "hello", m["message"])
	assert.Equal(t, "test", m["comp"])
	assert.Equal(t, float64(3), m["n"])
	assert.Equal(t, "boom", m["err"])
	assert.Contains(t, m["caller"], "logging_test.go:")
}

func TestErrorKeyDoesNotDependOnConstructor(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, "info").Info("x", Err(errors.New("boom")))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "boom", m["err"])
	assert.NotContains(t, m, "error")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" debug "))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelInfo, ParseLevel("chatty"))

	_, ok := LookupLevel("")
	assert.False(t, ok)
	lvl, ok := LookupLevel("Error")
	assert.True(t, ok)
	assert.Equal(t, LevelError, lvl)
}

func TestConsoleLoggerLevel(t *testing.T) {
	l := NewConsole("warn")
	assert.False(t, l.IsZero())
	assert.Equal(t, LevelWarn, l.root().GetLevel())
	assert.Equal(t, LevelInfo, NewConsole("").root().GetLevel())
}

func TestUint64Field(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, "info").Info("published", Uint64("hash", 1<<63))
	assert.Contains(t, buf.String(), `"hash":9223372036854775808`)
}

func TestChatSinkForwardsAboveMinLevel(t *testing.T) {
	sink := &sinkMock{}
	delivered := make(chan string, 4)
	sink.On("ErrorNotify", mock.Anything, mock.MatchedBy(func(msg string) bool {
		return strings.HasPrefix(msg, "**ERROR** disk full")
	})).Run(func(args mock.Arguments) {
		delivered <- args.String(1)
	}).Return(nil).Once()

	svc, l := New(Config{
		Level: "debug",
		File:  FileConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "flobot.log")},
		Chat:  ChatConfig{Enabled: true, MinLevel: "error", RatePerSec: 5},
	}, sink)
	defer svc.Close()

	l.Warn("below threshold")
	l.Error("disk full", String("path", "/var"))

	select {
	case msg := <-delivered:
		assert.Contains(t, msg, "`path`: /var")
	case <-time.After(2 * time.Second):
		t.Fatal("chat sink not called")
	}
	sink.AssertExpectations(t)
}

func TestApplyChangesLevelLive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flobot.log")
	svc, l := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}}, nil)
	defer svc.Close()

	derived := l.With(String("comp", "x"))
	derived.Debug("hidden")
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	derived.Debug("shown")
	require.NoError(t, svc.Close())
	derived.Info("after close")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hidden")
	assert.Contains(t, string(b), "shown")
	assert.NotContains(t, string(b), "after close")
}

func TestApplyKeepsFileAcrossReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flobot.log")
	cfg := Config{Level: "info", File: FileConfig{Enabled: true, Path: path}}
	svc, l := New(cfg, nil)
	defer svc.Close()

	l.Info("first")
	svc.Apply(cfg)
	l.Info("second")
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(b), "\n"))
}

func TestFormatChatJSON(t *testing.T) {
	msg := formatChatJSON([]byte(`{"level":"warn","message":"slow","stack":"trace"}`))
	assert.True(t, strings.HasPrefix(msg, "**WARN** slow"))
	assert.Contains(t, msg, "```\ntrace\n```")

	sorted := formatChatJSON([]byte(`{"level":"error","message":"m","zz":1,"aa":"x"}`))
	assert.Equal(t, "**ERROR** m\n * `aa`: x\n * `zz`: 1", sorted)

	assert.Equal(t, "not json", formatChatJSON([]byte("not json\n")))
	assert.Len(t, truncate(strings.Repeat("x", 50), 20), 20)
}
