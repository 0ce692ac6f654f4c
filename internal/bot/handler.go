package bot

import (
	"context"
	"sync"

	"github.com/Leryan/flobot/internal/chat"
	logx "github.com/Leryan/flobot/pkg/logx"
)

// Handler is invoked for every post that survives the middleware chain.
type Handler interface {
	Name() string
	// Help returns the text shown by "!help <name>". Handlers without help
	// are not listed by "!help".
	Help() (string, bool)
	Handle(ctx context.Context, post chat.Post) error
}

// HandlerFunc builds a Handler from a function.
type HandlerFunc struct {
	HandlerName string
	HelpText    string
	Fn          func(ctx context.Context, post chat.Post) error
}

func (h HandlerFunc) Name() string { return h.HandlerName }

func (h HandlerFunc) Help() (string, bool) { return h.HelpText, h.HelpText != "" }

func (h HandlerFunc) Handle(ctx context.Context, post chat.Post) error { return h.Fn(ctx, post) }

// Synchronized serializes every call to the wrapped handler. Use it for
// handlers holding mutable state that a scheduled task also touches.
type Synchronized[H Handler] struct {
	mu    sync.Mutex
	inner H
}

func Synchronize[H Handler](h H) *Synchronized[H] {
	return &Synchronized[H]{inner: h}
}

func (s *Synchronized[H]) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Name()
}

func (s *Synchronized[H]) Help() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Help()
}

func (s *Synchronized[H]) Handle(ctx context.Context, post chat.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Handle(ctx, post)
}

// With runs fn with exclusive access to the wrapped handler.
func (s *Synchronized[H]) With(fn func(h H)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.inner)
}

// DebugHandler logs every post. Not registered in production.
type DebugHandler struct {
	Log logx.Logger
}

func (DebugHandler) Name() string         { return "debug" }
func (DebugHandler) Help() (string, bool) { return "", false }

func (d DebugHandler) Handle(_ context.Context, post chat.Post) error {
	d.Log.Debug("post",
		logx.String("post_id", post.ID),
		logx.String("channel_id", post.ChannelID),
		logx.String("user_id", post.UserID),
		logx.String("message", post.Message),
	)
	return nil
}
