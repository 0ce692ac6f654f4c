package mattermost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Leryan/flobot/internal/chat"
	logx "github.com/Leryan/flobot/pkg/logx"
)

const (
	wsPath       = "/api/v4/websocket"
	pingInterval = 30 * time.Second
	readTimeout  = 2 * pingInterval
)

// Listener reads the Mattermost websocket. Listen handles one connection;
// the caller restarts it to reconnect.
type Listener struct {
	url    string
	token  string
	dialer *websocket.Dialer
	log    logx.Logger
	seq    atomic.Uint64
}

var _ chat.Listener = (*Listener)(nil)

func NewListener(cfg Config, log logx.Logger) *Listener {
	return &Listener{
		url:    strings.TrimRight(cfg.WSURL, "/") + wsPath,
		token:  cfg.Token,
		dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second, Proxy: http.ProxyFromEnvironment},
		log:    log.With(logx.String("comp", "websocket")),
	}
}

// Listen connects, authenticates and pushes decoded events until the
// connection drops or ctx is done. It returns nil only when ctx is done.
func (l *Listener) Listen(ctx context.Context, events chan<- chat.Event) error {
	conn, resp, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial %s: %s: %w", l.url, resp.Status, err)
		}
		return fmt.Errorf("websocket dial %s: %w", l.url, err)
	}
	defer conn.Close()

	auth := wireAuth{
		Action: "authentication_challenge",
		Seq:    l.seq.Add(1),
		Data:   map[string]any{"token": l.token},
	}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("websocket auth: %w", err)
	}
	l.log.Info("websocket connected", logx.String("url", l.url))

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go l.keepAlive(ctx, conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		ev := DecodeEvent(data)
		select {
		case events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// keepAlive pings the server and closes the connection when ctx is done so
// the blocked read returns.
func (l *Listener) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					l.log.Debug("websocket ping failed", logx.Err(err))
				}
				return
			}
		}
	}
}
