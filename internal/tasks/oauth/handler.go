package oauth

import (
	"context"
	"errors"
	"regexp"

	"github.com/Leryan/flobot/internal/chat"
)

var reAuth = regexp.MustCompile(`^!oauth\s+(\S+)\s+(\S+)\s*$`)

// Handler completes the authorization flow from the chat.
type Handler struct {
	keeper *Keeper
	client chat.Sender
}

func NewHandler(k *Keeper, client chat.Sender) *Handler {
	return &Handler{keeper: k, client: client}
}

func (h *Handler) Name() string { return "oauth" }

func (h *Handler) Help() (string, bool) {
	return "Termine une autorisation OAuth: `!oauth <code> <state>`", true
}

func (h *Handler) Handle(ctx context.Context, post chat.Post) error {
	m := reAuth.FindStringSubmatch(post.Message)
	if m == nil {
		return nil
	}
	err := h.keeper.Authenticate(ctx, m[1], m[2])
	if errors.Is(err, ErrBadState) {
		_, rerr := h.client.Reply(ctx, post, "state invalide")
		return rerr
	}
	if err != nil {
		return err
	}
	return h.client.React(ctx, post, "ok_hand")
}
