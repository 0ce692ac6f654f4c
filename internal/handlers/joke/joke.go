// Package joke tells jokes on "!blague" and keeps a per-team list of
// jokes written by the users.
package joke

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Leryan/flobot/internal/chat"
	"github.com/Leryan/flobot/internal/storage"
	logx "github.com/Leryan/flobot/pkg/logx"
)

const (
	okEmoji = "ok_hand"
	maxLen  = 300

	cmd     = "!blague"
	cmdList = "!blague list"
	cmdDel  = "!blague del "
)

const help = "```\n" +
	"!blague # raconte une blague\n" +
	"!blague <une blague> # enregistre une nouvelle blague\n" +
	"!blague list\n" +
	"!blague del <num>\n" +
	"```\n"

const (
	msgTooLong = "la blague est trop longue. max 300 caractères"
	msgListHdr = "Liste des blagounettes enregistrées à la meuson:\n"
)

type Handler struct {
	store    storage.Jokes
	provider Provider
	client   chat.Sender
	log      logx.Logger
}

// New builds the handler. provider answers "!blague"; it usually wraps a
// Stored over the same store.
func New(store storage.Jokes, provider Provider, client chat.Sender, log logx.Logger) *Handler {
	return &Handler{store: store, provider: provider, client: client, log: log.With(logx.String("comp", "blague"))}
}

func (h *Handler) Name() string { return "blague" }

func (h *Handler) Help() (string, bool) { return help, true }

func (h *Handler) Handle(ctx context.Context, post chat.Post) error {
	msg := strings.TrimSpace(post.Message)
	switch {
	case msg == cmd:
		return h.tell(ctx, post)
	case msg == cmdList:
		return h.list(ctx, post)
	case strings.HasPrefix(msg, cmdDel):
		return h.del(ctx, post, strings.TrimSpace(strings.TrimPrefix(msg, cmdDel)))
	case strings.HasPrefix(msg, cmd+" "):
		return h.add(ctx, post, strings.TrimSpace(strings.TrimPrefix(msg, cmd+" ")))
	}
	return nil
}

func (h *Handler) tell(ctx context.Context, post chat.Post) error {
	joke, err := h.provider.Random(ctx, post.TeamID)
	if errors.Is(err, ErrNoJoke) {
		h.log.Warn("no joke", logx.Err(err))
		_, err = h.client.Reply(ctx, post, ErrNoJoke.Error())
		return err
	}
	if err != nil {
		return fmt.Errorf("random joke: %w", err)
	}
	_, err = h.client.Post(ctx, post.InChannel(post.ChannelID).WithMessage(joke))
	return err
}

func (h *Handler) list(ctx context.Context, post chat.Post) error {
	jokes, err := h.store.ListJokes(ctx, post.TeamID)
	if err != nil {
		return fmt.Errorf("list jokes: %w", err)
	}
	var b strings.Builder
	b.WriteString(msgListHdr)
	for _, j := range jokes {
		fmt.Fprintf(&b, " * %d: %s\n", j.ID, j.Text)
	}
	_, err = h.client.Post(ctx, post.InChannel(post.ChannelID).WithMessage(b.String()))
	return err
}

func (h *Handler) del(ctx context.Context, post chat.Post, raw string) error {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		_, err = h.client.Reply(ctx, post, fmt.Sprintf("beurk: %q n'est pas un numéro", raw))
		return err
	}
	err = h.store.DelJoke(ctx, post.TeamID, id)
	if errors.Is(err, storage.ErrNotFound) {
		_, err = h.client.Reply(ctx, post, fmt.Sprintf("pas de blague %d", id))
		return err
	}
	if err != nil {
		return fmt.Errorf("del joke: %w", err)
	}
	return h.client.React(ctx, post, okEmoji)
}

func (h *Handler) add(ctx context.Context, post chat.Post, text string) error {
	if utf8.RuneCountInString(text) > maxLen {
		_, err := h.client.Reply(ctx, post, msgTooLong)
		return err
	}
	if _, err := h.store.AddJoke(ctx, post.TeamID, text); err != nil {
		return fmt.Errorf("add joke: %w", err)
	}
	return h.client.React(ctx, post, okEmoji)
}
