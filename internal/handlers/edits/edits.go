// Package edits rewrites "!e <word>" posts into a stored replacement, and
// manages the replacements through "!edits" commands.
package edits

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Leryan/flobot/internal/chat"
	"github.com/Leryan/flobot/internal/storage"
	logx "github.com/Leryan/flobot/pkg/logx"
)

const okEmoji = "ok_hand"

var (
	reList = regexp.MustCompile(`^!edits list.*$`)
	reAdd  = regexp.MustCompile(`^!edits add "([^"]+)" "([^"]+)".*$`)
	reDel  = regexp.MustCompile(`^!edits del "([^"]+)".*$`)
	reEdit = regexp.MustCompile(`^!e ([^\s]+)\s*$`)
)

const help = "Remplace ton message par un autre.\n" +
	"```\n" +
	"!edits list\n" +
	"!edits add \"edit\" \"replace\"\n" +
	"!edits del \"edit\"\n" +
	"!e edit\n" +
	"```\n"

const (
	msgSameWord = "aha, aha… il est boubourse :3"
	msgNoTeam   = "je sais pas encore faire des edits privés :/"
	msgEmpty    = "yen a pô :GE:"
)

type Handler struct {
	store  storage.Edits
	client chat.Sender
	log    logx.Logger
}

func New(store storage.Edits, client chat.Sender, log logx.Logger) *Handler {
	return &Handler{store: store, client: client, log: log.With(logx.String("comp", "edits"))}
}

func (h *Handler) Name() string { return "edits" }

func (h *Handler) Help() (string, bool) { return help, true }

func (h *Handler) Handle(ctx context.Context, post chat.Post) error {
	msg := strings.TrimSpace(post.Message)
	if !strings.HasPrefix(msg, "!e") {
		return nil
	}
	if post.TeamID == "" && (reEdit.MatchString(msg) || strings.HasPrefix(msg, "!edits ")) {
		_, err := h.client.Reply(ctx, post, msgNoTeam)
		return err
	}

	if m := reEdit.FindStringSubmatch(msg); m != nil {
		return h.edit(ctx, post, m[1])
	}
	if reList.MatchString(msg) {
		return h.list(ctx, post)
	}
	if m := reAdd.FindStringSubmatch(msg); m != nil {
		word, replace := strings.ToLower(m[1]), m[2]
		if word == strings.ToLower(replace) {
			_, err := h.client.Reply(ctx, post, msgSameWord)
			return err
		}
		if err := h.store.AddEdit(ctx, post.TeamID, word, replace); err != nil {
			return fmt.Errorf("add edit: %w", err)
		}
		return h.client.React(ctx, post, okEmoji)
	}
	if m := reDel.FindStringSubmatch(msg); m != nil {
		err := h.store.DelEdit(ctx, post.TeamID, strings.ToLower(m[1]))
		if errors.Is(err, storage.ErrNotFound) {
			_, err = h.client.Reply(ctx, post, fmt.Sprintf("pas d'edit `%s`", m[1]))
			return err
		}
		if err != nil {
			return fmt.Errorf("del edit: %w", err)
		}
		return h.client.React(ctx, post, okEmoji)
	}
	return nil
}

// edit rewrites the author's own post. Unknown words leave it untouched.
func (h *Handler) edit(ctx context.Context, post chat.Post, word string) error {
	e, err := h.store.FindEdit(ctx, post.TeamID, strings.ToLower(word))
	if errors.Is(err, storage.ErrNotFound) {
		h.log.Debug("no edit", logx.String("word", word))
		return nil
	}
	if err != nil {
		return fmt.Errorf("find edit: %w", err)
	}
	if _, err := h.client.Edit(ctx, post.ID, e.Replace); err != nil {
		return fmt.Errorf("edit post %s: %w", post.ID, err)
	}
	return nil
}

func (h *Handler) list(ctx context.Context, post chat.Post) error {
	edits, err := h.store.ListEdits(ctx, post.TeamID)
	if err != nil {
		return fmt.Errorf("list edits: %w", err)
	}
	if len(edits) == 0 {
		_, err := h.client.Reply(ctx, post, msgEmpty)
		return err
	}
	var b strings.Builder
	b.WriteString("Remplacements disponibles:\n")
	for _, e := range edits {
		fmt.Fprintf(&b, " * `%s` -> %s\n", e.Word, e.Replace)
	}
	_, err = h.client.Reply(ctx, post, b.String())
	return err
}
