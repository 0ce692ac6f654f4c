package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	chatQueueSize   = 256
	chatSendTimeout = 10 * time.Second
	// Mattermost rejects posts above 4000 runes by default.
	chatMaxMessage = 3500
	chatMaxField   = 600
	chatMaxStack   = 900
)

// chatSink is a zerolog.LevelWriter posting records on the error channel.
// Writes never block: records over the rate or beyond the queue are dropped.
type chatSink struct {
	mu       sync.Mutex
	sink     ChatSink
	minLevel Level
	limiter  *rate.Limiter

	queue  chan string
	once   sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ zerolog.LevelWriter = (*chatSink)(nil)

func newChatSink(sink ChatSink) *chatSink {
	return &chatSink{sink: sink, minLevel: LevelError, queue: make(chan string, chatQueueSize)}
}

func (c *chatSink) setSink(sink ChatSink) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
}

// configure starts the worker on first use.
func (c *chatSink) configure(minLevel Level, perSec int) {
	perSec = max(1, perSec)
	c.mu.Lock()
	c.minLevel = minLevel
	c.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
	c.mu.Unlock()

	c.once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.run(ctx)
		}()
	})
}

func (c *chatSink) stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		c.wg.Wait()
	}
}

func (c *chatSink) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.queue:
			c.mu.Lock()
			sink := c.sink
			c.mu.Unlock()
			if sink == nil {
				continue
			}
			sctx, cancel := context.WithTimeout(ctx, chatSendTimeout)
			_ = sink.ErrorNotify(sctx, msg)
			cancel()
		}
	}
}

func (c *chatSink) Write(p []byte) (int, error) { return c.WriteLevel(LevelInfo, p) }

func (c *chatSink) WriteLevel(level Level, p []byte) (int, error) {
	c.mu.Lock()
	accept := c.sink != nil && c.limiter != nil && level >= c.minLevel && c.limiter.Allow()
	c.mu.Unlock()
	if !accept {
		return len(p), nil
	}
	if msg := formatChatJSON(p); msg != "" {
		select {
		case c.queue <- msg:
		default:
		}
	}
	return len(p), nil
}

// formatChatJSON renders one JSON record as Mattermost markdown: the level
// in bold, the message, then the fields sorted by key with the stack last.
func formatChatJSON(p []byte) string {
	line := strings.TrimSpace(string(p))
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return truncate(line, chatMaxMessage)
	}

	var b strings.Builder
	if lvl, _ := m[zerolog.LevelFieldName].(string); lvl != "" {
		fmt.Fprintf(&b, "**%s** ", strings.ToUpper(lvl))
	}
	msg, _ := m[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName, "stack":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n * `%s`: %s", k, truncate(fmt.Sprint(m[k]), chatMaxField))
	}
	if stack, ok := m["stack"]; ok {
		fmt.Fprintf(&b, "\n```\n%s\n```", truncate(fmt.Sprint(stack), chatMaxStack))
	}
	return truncate(b.String(), chatMaxMessage)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n < 10 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
