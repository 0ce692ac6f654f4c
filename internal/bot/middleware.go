package bot

import (
	"context"
	"fmt"

	"github.com/Leryan/flobot/internal/chat"
	logx "github.com/Leryan/flobot/pkg/logx"
)

// Continue tells the dispatcher whether the event goes on to the next
// middleware. Stop is a veto, not an error.
type Continue bool

const (
	Stop Continue = false
	Next Continue = true
)

// Middleware runs on every event before handlers, in registration order.
// It may rewrite the event in place. A returned error stops the dispatcher.
type Middleware interface {
	Name() string
	Process(ctx context.Context, ev *chat.Event) (Continue, error)
}

type MiddlewareFunc struct {
	MiddlewareName string
	Fn             func(ctx context.Context, ev *chat.Event) (Continue, error)
}

func (m MiddlewareFunc) Name() string { return m.MiddlewareName }

func (m MiddlewareFunc) Process(ctx context.Context, ev *chat.Event) (Continue, error) {
	return m.Fn(ctx, ev)
}

// DebugMiddleware logs every event. Register it first.
type DebugMiddleware struct {
	Log logx.Logger
}

func (DebugMiddleware) Name() string { return "debug" }

func (d DebugMiddleware) Process(_ context.Context, ev *chat.Event) (Continue, error) {
	fields := []logx.Field{logx.String("kind", ev.Kind.String())}
	switch {
	case ev.Post != nil:
		fields = append(fields, logx.Any("post", *ev.Post))
	case ev.PostEdited != nil:
		fields = append(fields, logx.Any("post", *ev.PostEdited))
	case ev.Hello != nil:
		fields = append(fields, logx.String("server_version", ev.Hello.ServerVersion))
	case ev.Status != nil:
		fields = append(fields, logx.String("status", ev.Status.Code.String()))
	case len(ev.Raw) > 0:
		fields = append(fields, logx.String("raw", string(ev.Raw)))
	}
	d.Log.Debug("event", fields...)
	return Next, nil
}

// IgnoreSelf drops posts written by the bot itself.
type IgnoreSelf struct {
	UserID string
}

// NewIgnoreSelf looks up the bot user through g.
func NewIgnoreSelf(ctx context.Context, g chat.Getter) (IgnoreSelf, error) {
	me, err := g.Me(ctx)
	if err != nil {
		return IgnoreSelf{}, fmt.Errorf("ignore self: %w", err)
	}
	return IgnoreSelf{UserID: me.ID}, nil
}

func (IgnoreSelf) Name() string { return "ignore_self" }

func (m IgnoreSelf) Process(_ context.Context, ev *chat.Event) (Continue, error) {
	if ev.Post != nil && ev.Post.UserID == m.UserID {
		return Stop, nil
	}
	return Next, nil
}
