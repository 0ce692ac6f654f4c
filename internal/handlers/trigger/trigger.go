// Package trigger answers configured words with a text reply or an emoji
// reaction, and manages the word list through "!trigger" commands.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Leryan/flobot/internal/chat"
	"github.com/Leryan/flobot/internal/storage"
	"github.com/Leryan/flobot/internal/tempo"
	logx "github.com/Leryan/flobot/pkg/logx"
)

const (
	okEmoji   = "ok_hand"
	listChunk = 20
)

var (
	reList     = regexp.MustCompile(`^!trigger list.*$`)
	reDel      = regexp.MustCompile(`^!trigger del "(.+)".*`)
	reReaction = regexp.MustCompile(`^!trigger reaction "([^"]+)" [:"]([^:"]+)[:"].*$`)
	reText     = regexp.MustCompile(`^!trigger text "([^"]+)" "([^"]+)".*$`)
)

const help = "Réagit à des mots.\n" +
	" * `!trigger list`\n" +
	" * `!trigger text \"mot\" \"réponse\"`\n" +
	" * `!trigger reaction \"mot\" :emoji:`\n" +
	" * `!trigger del \"mot\"`\n"

type Handler struct {
	store  storage.Triggers
	client chat.Sender
	tempo  *tempo.Store
	delay  atomic.Int64
	log    logx.Logger
}

// New builds the handler. Text replies for the same word in the same
// channel are sent at most once per delay; tempo may be shared with other
// components.
func New(store storage.Triggers, client chat.Sender, t *tempo.Store, delay time.Duration, log logx.Logger) *Handler {
	if t == nil {
		t = tempo.New()
	}
	h := &Handler{store: store, client: client, tempo: t, log: log.With(logx.String("comp", "trigger"))}
	h.SetDelay(delay)
	return h
}

// SetDelay changes the repeat delay. Safe to call while handling posts.
func (h *Handler) SetDelay(d time.Duration) { h.delay.Store(int64(d)) }

func (h *Handler) Delay() time.Duration { return time.Duration(h.delay.Load()) }

func (h *Handler) Name() string { return "trigger" }

func (h *Handler) Help() (string, bool) { return help, true }

func (h *Handler) Handle(ctx context.Context, post chat.Post) error {
	msg := post.Message
	if !strings.HasPrefix(msg, "!trigger ") {
		return h.fire(ctx, post)
	}

	if reList.MatchString(msg) {
		return h.list(ctx, post)
	}
	if m := reText.FindStringSubmatch(msg); m != nil {
		if err := h.store.AddTextTrigger(ctx, post.TeamID, m[1], m[2]); err != nil {
			return fmt.Errorf("add text trigger: %w", err)
		}
		return h.client.React(ctx, post, okEmoji)
	}
	if m := reReaction.FindStringSubmatch(msg); m != nil {
		if err := h.store.AddReactionTrigger(ctx, post.TeamID, m[1], m[2]); err != nil {
			return fmt.Errorf("add reaction trigger: %w", err)
		}
		return h.client.React(ctx, post, okEmoji)
	}
	if m := reDel.FindStringSubmatch(msg); m != nil {
		err := h.store.DelTrigger(ctx, post.TeamID, m[1])
		if errors.Is(err, storage.ErrNotFound) {
			_, err = h.client.Reply(ctx, post, fmt.Sprintf("pas de trigger `%s`", m[1]))
			return err
		}
		if err != nil {
			return fmt.Errorf("del trigger: %w", err)
		}
		return h.client.React(ctx, post, okEmoji)
	}
	return nil
}

// Matches reports whether word appears in message as a whole word.
func Matches(message, word string) bool {
	return strings.Contains(message, " "+word+" ") ||
		strings.HasPrefix(message, word+" ") ||
		strings.HasSuffix(message, " "+word) ||
		message == word
}

func (h *Handler) fire(ctx context.Context, post chat.Post) error {
	triggers, err := h.store.ListTriggers(ctx, post.TeamID)
	if err != nil {
		return fmt.Errorf("list triggers: %w", err)
	}
	message := strings.ToLower(post.Message)

	for _, t := range triggers {
		if !Matches(message, t.Word) {
			continue
		}
		if t.IsReaction() {
			if err := h.client.React(ctx, post, t.Emoji); err != nil {
				return err
			}
			continue
		}

		key := post.TeamID + post.ChannelID + t.Word
		delay := h.Delay()
		if h.tempo.Exists(key) {
			h.tempo.Set(key, delay)
			h.log.Debug("trigger delayed", logx.String("word", t.Word), logx.String("channel_id", post.ChannelID))
			return nil
		}
		h.tempo.Set(key, delay)
		_, err := h.client.Reply(ctx, post, t.Text)
		return err
	}
	return nil
}

func (h *Handler) list(ctx context.Context, post chat.Post) error {
	triggers, err := h.store.ListTriggers(ctx, post.TeamID)
	if err != nil {
		return fmt.Errorf("list triggers: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ya %d triggers.\n", len(triggers))
	count := 0
	for _, t := range triggers {
		if t.IsReaction() {
			fmt.Fprintf(&b, " * `%s`: :%s:\n", t.Word, t.Emoji)
		} else {
			fmt.Fprintf(&b, " * `%s`: %s\n", t.Word, t.Text)
		}
		count++
		if count == listChunk {
			if _, err := h.client.Post(ctx, post.InChannel(post.ChannelID).WithMessage(b.String())); err != nil {
				return err
			}
			b.Reset()
			count = 0
		}
	}
	if count > 0 || len(triggers) == 0 {
		_, err := h.client.Post(ctx, post.InChannel(post.ChannelID).WithMessage(b.String()))
		return err
	}
	return nil
}
