package mattermost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leryan/flobot/internal/chat"
	logx "github.com/Leryan/flobot/pkg/logx"
)

func TestListenAuthenticatesAndDecodes(t *testing.T) {
	t.Parallel()
	auth := make(chan wireAuth, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wsPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var a wireAuth
		if err := conn.ReadJSON(&a); err != nil {
			return
		}
		auth <- a
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"status":"OK","seq_reply":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(postedFrame))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	}))
	defer srv.Close()

	l := NewListener(Config{WSURL: "ws" + strings.TrimPrefix(srv.URL, "http"), Token: "secret"}, logx.Nop())
	events := make(chan chat.Event, 4)

	err := l.Listen(context.Background(), events)
	require.Error(t, err, "server closed the connection")

	a := <-auth
	assert.Equal(t, "authentication_challenge", a.Action)
	assert.Equal(t, "secret", a.Data["token"])
	assert.Equal(t, uint64(1), a.Seq)

	require.Len(t, events, 2)
	assert.Equal(t, chat.KindStatus, (<-events).Kind)
	ev := <-events
	require.Equal(t, chat.KindPost, ev.Kind)
	assert.Equal(t, "test", ev.Post.Message)
}

func TestListenStopsWithContext(t *testing.T) {
	t.Parallel()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	l := NewListener(Config{WSURL: "ws" + strings.TrimPrefix(srv.URL, "http")}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Listen(ctx, make(chan chat.Event)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenDialError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	l := NewListener(Config{WSURL: "ws" + strings.TrimPrefix(srv.URL, "http")}, logx.Nop())
	err := l.Listen(context.Background(), make(chan chat.Event))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
