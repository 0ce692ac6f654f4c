// Package bot dispatches chat events to middlewares and handlers.
//
// An Instance is the single consumer of the event channel. Each event goes
// through the middleware chain in registration order, then "!help" is
// answered, then every handler sees the post in registration order. A
// handler error is reported on the debug channel and never stops the
// dispatch. Middleware errors and backend error statuses are fatal.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Leryan/flobot/internal/chat"
	"github.com/Leryan/flobot/internal/eventbus"
	logx "github.com/Leryan/flobot/pkg/logx"
)

type Instance struct {
	client      chat.Client
	middlewares []Middleware
	handlers    []Handler
	helps       map[string]string

	version string
	now     func() time.Time
	log     logx.Logger
	bus     eventbus.Bus
}

type Option func(*Instance)

func WithLogger(log logx.Logger) Option { return func(i *Instance) { i.log = log } }
func WithBus(bus eventbus.Bus) Option   { return func(i *Instance) { i.bus = bus } }

// WithVersion sets the build version shown in the startup banner.
func WithVersion(v string) Option { return func(i *Instance) { i.version = v } }

func WithClock(now func() time.Time) Option {
	return func(i *Instance) {
		if now != nil {
			i.now = now
		}
	}
}

func New(client chat.Client, opts ...Option) *Instance {
	i := &Instance{
		client:  client,
		helps:   map[string]string{},
		version: "dev",
		now:     time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	if i.log.IsZero() {
		i.log = logx.Nop()
	}
	i.log = i.log.With(logx.String("comp", "dispatcher"))
	return i
}

// AddMiddleware appends m to the chain. Registration must happen before Run.
func (i *Instance) AddMiddleware(m Middleware) *Instance {
	i.middlewares = append(i.middlewares, m)
	return i
}

// AddHandler appends h and indexes its help text under its name. The last
// registration wins on name collision.
func (i *Instance) AddHandler(h Handler) *Instance {
	i.handlers = append(i.handlers, h)
	if txt, ok := h.Help(); ok {
		i.helps[h.Name()] = txt
	}
	return i
}

func (i *Instance) MiddlewareNames() []string {
	out := make([]string, 0, len(i.middlewares))
	for _, m := range i.middlewares {
		out = append(out, m.Name())
	}
	return out
}

func (i *Instance) HandlerNames() []string {
	out := make([]string, 0, len(i.handlers))
	for _, h := range i.handlers {
		out = append(out, h.Name())
	}
	return out
}

// Banner renders the startup announcement.
func (i *Instance) Banner() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Startup %s\n", i.now().Format(time.RFC3339))
	fmt.Fprintf(&b, "## Build\n * `%s`\n", i.version)
	b.WriteString("## Loaded middlewares\n")
	for _, name := range i.MiddlewareNames() {
		fmt.Fprintf(&b, " * `%s`\n", name)
	}
	b.WriteString("## Loaded post handlers\n")
	for _, name := range i.HandlerNames() {
		fmt.Fprintf(&b, " * `%s`\n", name)
	}
	return b.String()
}

// StartupNotify announces the banner on the startup channel.
func (i *Instance) StartupNotify(ctx context.Context) error {
	if err := i.client.StartupNotify(ctx, i.Banner()); err != nil {
		return clientErr("startup_notify", err)
	}
	return nil
}

// Run announces startup, then processes events until the shutdown sentinel,
// a fatal error, a closed channel or ctx cancellation.
func (i *Instance) Run(ctx context.Context, events <-chan chat.Event) error {
	if err := i.StartupNotify(ctx); err != nil {
		i.log.Warn("startup notification failed", logx.Err(err))
	}
	i.log.Info("dispatcher started",
		logx.Strings("middlewares", i.MiddlewareNames()),
		logx.Strings("handlers", i.HandlerNames()),
	)

	for {
		var (
			ev chat.Event
			ok bool
		)
		select {
		case <-ctx.Done():
			i.log.Info("dispatcher stopped", logx.String("reason", "context done"))
			return nil
		case ev, ok = <-events:
		}
		if !ok {
			return consumerErr(ErrChannelClosed)
		}
		if ev.IsShutdown() {
			i.log.Info("dispatcher stopped", logx.String("reason", "shutdown"))
			return nil
		}
		if err := i.Process(ctx, ev); err != nil {
			i.log.Error("dispatcher failed", logx.Err(err))
			return err
		}
	}
}

// Process handles a single event. Only fatal errors are returned.
func (i *Instance) Process(ctx context.Context, ev chat.Event) error {
	if ev.IsShutdown() {
		return nil
	}

	for _, m := range i.middlewares {
		cont, err := m.Process(ctx, &ev)
		if err != nil {
			return middlewareErr(m.Name(), err)
		}
		if cont == Stop {
			i.log.Trace("event vetoed", logx.String("middleware", m.Name()), logx.String("kind", ev.Kind.String()))
			return nil
		}
	}

	switch ev.Kind {
	case chat.KindPost:
		if ev.Post == nil {
			return nil
		}
		i.dispatchPost(ctx, *ev.Post)
		return nil
	case chat.KindPostEdited:
		i.log.Debug("edits are unsupported for now")
		return nil
	case chat.KindHello:
		version := ""
		if ev.Hello != nil {
			version = ev.Hello.ServerVersion
		}
		i.log.Info("hello", logx.String("server_version", version))
		return nil
	case chat.KindStatus:
		return i.status(ev.Status)
	default:
		i.log.Trace("unsupported event", logx.String("raw", string(ev.Raw)))
		return nil
	}
}

func (i *Instance) status(st *chat.Status) error {
	if st == nil {
		return statusErr(nil)
	}
	switch st.Code {
	case chat.StatusOK:
		return nil
	case chat.StatusUnsupported:
		i.log.Debug("unsupported status", logx.String("raw", st.Raw))
		return nil
	default:
		return statusErr(st)
	}
}

func (i *Instance) dispatchPost(ctx context.Context, post chat.Post) {
	log := i.log.With(logx.String("dispatch_id", uuid.NewString()), logx.String("post_id", post.ID))

	if reply, ok := i.helpReply(post.Message); ok {
		if _, err := i.client.Reply(ctx, post, reply); err != nil {
			i.reportHandlerError(ctx, log, WrapHandlerError("help", err))
		}
	}

	for _, h := range i.handlers {
		if err := i.safeHandle(ctx, h, post); err != nil {
			i.reportHandlerError(ctx, log, WrapHandlerError(h.Name(), err))
		}
	}
}

func (i *Instance) safeHandle(ctx context.Context, h Handler, post chat.Post) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			i.log.Error("handler panic recovered",
				logx.String("handler", h.Name()),
				logx.Any("panic", rec),
				logx.Stack(string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h.Handle(ctx, post)
}

func (i *Instance) reportHandlerError(ctx context.Context, log logx.Logger, err error) {
	log.Warn("handler failed", logx.Err(err))
	if i.bus != nil {
		i.bus.Publish(eventbus.Event{Type: eventbus.TypeHandlerError, Data: err.Error()})
	}
	if nerr := i.client.DebugNotify(ctx, "error: "+err.Error()); nerr != nil {
		log.Error("debug notification failed", logx.Err(nerr), logx.String("handler_error", err.Error()))
	}
}
