package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leryan/flobot/internal/chat"
	"github.com/Leryan/flobot/internal/chat/chattest"
	"github.com/Leryan/flobot/internal/eventbus"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func recordingHandler(name, help string, log *callLog, err error) Handler {
	return HandlerFunc{
		HandlerName: name,
		HelpText:    help,
		Fn: func(context.Context, chat.Post) error {
			log.add(name)
			return err
		},
	}
}

func recordingMiddleware(name string, log *callLog, cont Continue, err error) Middleware {
	return MiddlewareFunc{
		MiddlewareName: name,
		Fn: func(context.Context, *chat.Event) (Continue, error) {
			log.add(name)
			return cont, err
		},
	}
}

func post(user, msg string) chat.Event {
	return chat.NewPost(chat.Post{ID: "p-in", ChannelID: "C1", TeamID: "T1", UserID: user, Message: msg})
}

func TestHandlersRunInOrderDespiteErrors(t *testing.T) {
	t.Parallel()
	client := chattest.New()
	calls := &callLog{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	inst := New(client, WithBus(bus))
	inst.AddHandler(recordingHandler("A", "", calls, nil))
	inst.AddHandler(recordingHandler("B", "", calls, errors.New("b exploded")))
	inst.AddHandler(recordingHandler("C", "", calls, nil))

	require.NoError(t, inst.Process(context.Background(), post("U2", "hello")))
	assert.Equal(t, []string{"A", "B", "C"}, calls.get())

	debug := client.Notified("debug")
	require.Len(t, debug, 1)
	assert.Contains(t, debug[0], "error:")
	assert.Contains(t, debug[0], "b exploded")

	e := <-events
	assert.Equal(t, eventbus.TypeHandlerError, e.Type)
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	t.Parallel()
	client := chattest.New()
	calls := &callLog{}
	inst := New(client)
	inst.AddHandler(HandlerFunc{HandlerName: "boom", Fn: func(context.Context, chat.Post) error { panic("nope") }})
	inst.AddHandler(recordingHandler("after", "", calls, nil))

	require.NoError(t, inst.Process(context.Background(), post("U2", "x")))
	assert.Equal(t, []string{"after"}, calls.get())
	assert.Len(t, client.Notified("debug"), 1)
}

func TestDebugNotifyFailureIsOnlyLogged(t *testing.T) {
	t.Parallel()
	client := chattest.New()
	client.NotifyErr = errors.New("debug channel gone")
	calls := &callLog{}
	inst := New(client)
	inst.AddHandler(recordingHandler("A", "", calls, errors.New("fail")))
	inst.AddHandler(recordingHandler("B", "", calls, nil))

	assert.NoError(t, inst.Process(context.Background(), post("U2", "x")))
	assert.Equal(t, []string{"A", "B"}, calls.get())
}

func TestMiddlewareVeto(t *testing.T) {
	t.Parallel()
	calls := &callLog{}
	inst := New(chattest.New())
	inst.AddMiddleware(recordingMiddleware("m1", calls, Stop, nil))
	inst.AddMiddleware(recordingMiddleware("m2", calls, Next, nil))
	inst.AddHandler(recordingHandler("h", "", calls, nil))

	require.NoError(t, inst.Process(context.Background(), post("U2", "x")))
	assert.Equal(t, []string{"m1"}, calls.get())
}

func TestMiddlewareErrorIsFatal(t *testing.T) {
	t.Parallel()
	calls := &callLog{}
	inst := New(chattest.New())
	inst.AddMiddleware(recordingMiddleware("broken", calls, Next, errors.New("send failed")))
	inst.AddHandler(recordingHandler("h", "", calls, nil))

	err := inst.Process(context.Background(), post("U2", "x"))
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrMiddleware, kind)
	assert.Equal(t, []string{"broken"}, calls.get())
}

func TestMiddlewareRewritesEvent(t *testing.T) {
	t.Parallel()
	var seen string
	inst := New(chattest.New())
	inst.AddMiddleware(MiddlewareFunc{MiddlewareName: "upper", Fn: func(_ context.Context, ev *chat.Event) (Continue, error) {
		ev.Post.Message = "rewritten"
		return Next, nil
	}})
	inst.AddHandler(HandlerFunc{HandlerName: "h", Fn: func(_ context.Context, p chat.Post) error {
		seen = p.Message
		return nil
	}})

	require.NoError(t, inst.Process(context.Background(), post("U2", "x")))
	assert.Equal(t, "rewritten", seen)
}

func TestIgnoreSelfAndHelpScenario(t *testing.T) {
	t.Parallel()
	client := chattest.New()
	calls := &callLog{}
	inst := New(client)
	inst.AddMiddleware(IgnoreSelf{UserID: "U1"})
	inst.AddHandler(recordingHandler("zeta", "b", calls, nil))
	inst.AddHandler(recordingHandler("alpha", "a", calls, nil))

	ctx := context.Background()
	require.NoError(t, inst.Process(ctx, post("U1", "hi")))
	assert.Empty(t, calls.get())
	assert.Empty(t, client.SentPosts())

	require.NoError(t, inst.Process(ctx, post("U2", "!help")))
	posts := client.SentPosts()
	require.Len(t, posts, 1)
	assert.Equal(t, "`alpha`\n`zeta`\n", posts[0].Message)
	assert.Equal(t, "p-in", posts[0].RootID)
	assert.Equal(t, []string{"zeta", "alpha"}, calls.get(), "handlers still see the help post")
}

func TestHelpForOneHandler(t *testing.T) {
	t.Parallel()
	client := chattest.New()
	calls := &callLog{}
	inst := New(client)
	inst.AddHandler(recordingHandler("trigger", "old help", calls, nil))
	inst.AddHandler(recordingHandler("trigger", "new help", calls, nil))
	inst.AddHandler(recordingHandler("silent", "", calls, nil))

	ctx := context.Background()
	require.NoError(t, inst.Process(ctx, post("U2", "!help trigger please")))
	require.NoError(t, inst.Process(ctx, post("U2", "!help silent")))
	require.NoError(t, inst.Process(ctx, post("U2", "!helpme")))
	require.NoError(t, inst.Process(ctx, post("U2", "!help")))

	posts := client.SentPosts()
	require.Len(t, posts, 3)
	assert.Equal(t, "new help", posts[0].Message)
	assert.Equal(t, helpNotFound, posts[1].Message)
	assert.Equal(t, "`trigger`\n", posts[2].Message)
}

func TestNonPostEvents(t *testing.T) {
	t.Parallel()
	calls := &callLog{}
	inst := New(chattest.New())
	inst.AddHandler(recordingHandler("h", "", calls, nil))
	ctx := context.Background()

	assert.NoError(t, inst.Process(ctx, chat.NewHello(chat.Hello{ServerVersion: "9.0"})))
	assert.NoError(t, inst.Process(ctx, chat.NewPostEdited(chat.Post{ID: "x"})))
	assert.NoError(t, inst.Process(ctx, chat.NewStatus(chat.Status{Code: chat.StatusOK})))
	assert.NoError(t, inst.Process(ctx, chat.NewStatus(chat.Status{Code: chat.StatusUnsupported})))
	assert.NoError(t, inst.Process(ctx, chat.NewUnsupported([]byte(`{"event":"typing"}`))))
	assert.Empty(t, calls.get())

	for _, code := range []chat.StatusCode{chat.StatusError, chat.StatusUnknown} {
		err := inst.Process(ctx, chat.NewStatus(chat.Status{Code: code, Error: &chat.ServerError{ID: "api.web_socket", Message: "bad"}}))
		require.Error(t, err)
		kind, _ := KindOf(err)
		assert.Equal(t, ErrStatus, kind)
	}
}

func TestRunStopsOnShutdown(t *testing.T) {
	t.Parallel()
	client := chattest.New()
	calls := &callLog{}
	inst := New(client, WithVersion("abc123"))
	inst.AddMiddleware(recordingMiddleware("m", calls, Next, nil))
	inst.AddHandler(recordingHandler("h", "", calls, nil))

	events := make(chan chat.Event, 4)
	events <- post("U2", "one")
	events <- chat.Shutdown()

	done := make(chan error, 1)
	go func() { done <- inst.Run(context.Background(), events) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, []string{"m", "h"}, calls.get(), "sentinel reaches no middleware")

	startup := client.Notified("startup")
	require.Len(t, startup, 1)
	assert.Contains(t, startup[0], "## Build\n * `abc123`\n")
	assert.Contains(t, startup[0], "## Loaded middlewares\n * `m`\n## Loaded post handlers\n * `h`\n")
}

func TestRunClosedChannel(t *testing.T) {
	t.Parallel()
	events := make(chan chat.Event)
	close(events)

	err := New(chattest.New()).Run(context.Background(), events)
	require.ErrorIs(t, err, ErrChannelClosed)
	kind, _ := KindOf(err)
	assert.Equal(t, ErrConsumer, kind)
}

func TestRunReturnsFatalError(t *testing.T) {
	t.Parallel()
	events := make(chan chat.Event, 1)
	events <- chat.NewStatus(chat.Status{Code: chat.StatusError, Raw: "FAIL"})

	err := New(chattest.New()).Run(context.Background(), events)
	assert.True(t, IsFatal(err))
}

func TestBannerIsDeterministic(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 3, 1, 7, 23, 0, 0, time.UTC)
	inst := New(chattest.New(), WithClock(func() time.Time { return at }), WithVersion("v1"))
	inst.AddMiddleware(IgnoreSelf{})
	inst.AddHandler(DebugHandler{})

	want := "# Startup 2024-03-01T07:23:00Z\n" +
		"## Build\n * `v1`\n" +
		"## Loaded middlewares\n * `ignore_self`\n" +
		"## Loaded post handlers\n * `debug`\n"
	assert.Equal(t, want, inst.Banner())
}
