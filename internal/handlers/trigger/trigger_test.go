package trigger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leryan/flobot/internal/chat"
	"github.com/Leryan/flobot/internal/chat/chattest"
	"github.com/Leryan/flobot/internal/storage"
	"github.com/Leryan/flobot/internal/tempo"
	logx "github.com/Leryan/flobot/pkg/logx"
)

type fixture struct {
	h      *Handler
	client *chattest.Client
	store  storage.Store
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "t.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{client: chattest.New(), store: st, now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	tp := tempo.New(tempo.WithClock(func() time.Time { return f.now }))
	f.h = New(st, f.client, tp, 10*time.Minute, logx.Nop())
	return f
}

func (f *fixture) send(t *testing.T, channel, msg string) {
	t.Helper()
	p := chat.Post{ID: fmt.Sprintf("in-%d", len(f.client.SentPosts())), TeamID: "T1", ChannelID: channel, UserID: "U2", Message: msg}
	require.NoError(t, f.h.Handle(context.Background(), p))
}

func TestMatches(t *testing.T) {
	t.Parallel()
	assert.True(t, Matches("ha ha", "ha"))
	assert.True(t, Matches("bon café", "café"))
	assert.True(t, Matches("un mot ici", "mot"))
	assert.True(t, Matches("mot", "mot"))
	assert.False(t, Matches("motus", "mot"))
	assert.False(t, Matches("emoticon", "mot"))
}

func TestCommands(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.send(t, "C1", `!trigger text "Bonjour" "salut toi"`)
	f.send(t, "C1", `!trigger reaction "café" :coffee:`)
	assert.Len(t, f.client.SentReactions(), 2)

	f.send(t, "C1", "!trigger list")
	posts := f.client.SentPosts()
	require.Len(t, posts, 1)
	assert.Equal(t, "Ya 2 triggers.\n * `bonjour`: salut toi\n * `café`: :coffee:\n", posts[0].Message)
	assert.Empty(t, posts[0].RootID)

	f.send(t, "C1", `!trigger del "café"`)
	got, err := f.store.ListTriggers(context.Background(), "T1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	f.send(t, "C1", `!trigger del "absent"`)
	posts = f.client.SentPosts()
	assert.Contains(t, posts[len(posts)-1].Message, "absent")
}

func TestListIsChunked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	for i := 0; i < 25; i++ {
		require.NoError(t, f.store.AddTextTrigger(context.Background(), "T1", fmt.Sprintf("w%02d", i), "x"))
	}
	f.send(t, "C1", "!trigger list")
	posts := f.client.SentPosts()
	require.Len(t, posts, 2)
	assert.Contains(t, posts[0].Message, "Ya 25 triggers.")
	assert.Contains(t, posts[1].Message, "`w24`")
}

func TestTextTriggerIsDebounced(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	require.NoError(t, f.store.AddTextTrigger(context.Background(), "T1", "ping", "pong"))

	f.send(t, "C1", "ping")
	require.Len(t, f.client.SentPosts(), 1)
	assert.Equal(t, "pong", f.client.SentPosts()[0].Message)

	// a hit inside the window refreshes it
	f.now = f.now.Add(9 * time.Minute)
	f.send(t, "C1", "alors ping")
	assert.Len(t, f.client.SentPosts(), 1)

	f.now = f.now.Add(9 * time.Minute)
	f.send(t, "C1", "ping encore")
	assert.Len(t, f.client.SentPosts(), 1)

	// other channels are independent
	f.send(t, "C2", "ping")
	assert.Len(t, f.client.SentPosts(), 2)

	f.now = f.now.Add(10 * time.Minute)
	f.send(t, "C1", "ping")
	assert.Len(t, f.client.SentPosts(), 3)
}

func TestReactionsAreNotDebounced(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	require.NoError(t, f.store.AddReactionTrigger(context.Background(), "T1", "café", "coffee"))
	require.NoError(t, f.store.AddReactionTrigger(context.Background(), "T1", "thé", "tea"))

	f.send(t, "C1", "café ou thé")
	f.send(t, "C1", "Café")
	reactions := f.client.SentReactions()
	require.Len(t, reactions, 3)
	assert.Equal(t, "coffee", reactions[0].Emoji)
	assert.Equal(t, "tea", reactions[1].Emoji)
}

func TestSetDelay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.h.SetDelay(time.Second)
	assert.Equal(t, time.Second, f.h.Delay())
	txt, ok := f.h.Help()
	assert.True(t, ok)
	assert.Contains(t, txt, "!trigger list")
}
