// Package chattest provides an in-memory chat.Client for tests.
package chattest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Leryan/flobot/internal/chat"
)

type Reaction struct {
	PostID string
	Emoji  string
}

type EditCall struct {
	PostID  string
	Message string
}

type Notification struct {
	Kind    string // startup | debug | error | required_action
	Message string
}

// Client records every outbound call. Set the *Err fields to make the
// matching calls fail.
type Client struct {
	mu sync.Mutex

	Self chat.User

	Posts         []chat.Post
	Reactions     []Reaction
	Edits         []EditCall
	Notifications []Notification
	Archived      []string

	PostErr   error
	ReactErr  error
	EditErr   error
	NotifyErr error

	seq int
}

var _ chat.Client = (*Client)(nil)

func New() *Client {
	return &Client{Self: chat.User{ID: "bot", Username: "flobot"}}
}

func (c *Client) nextID() string {
	c.seq++
	return fmt.Sprintf("p%d", c.seq)
}

func (c *Client) Post(_ context.Context, p chat.Post) (chat.Post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PostErr != nil {
		return chat.Post{}, c.PostErr
	}
	p.ID = c.nextID()
	p.UserID = c.Self.ID
	c.Posts = append(c.Posts, p)
	return p, nil
}

func (c *Client) Reply(ctx context.Context, p chat.Post, message string) (chat.Post, error) {
	out := chat.Post{ChannelID: p.ChannelID, TeamID: p.TeamID, Message: message, RootID: p.ID, ParentID: p.ID}
	return c.Post(ctx, out)
}

func (c *Client) React(_ context.Context, p chat.Post, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReactErr != nil {
		return c.ReactErr
	}
	c.Reactions = append(c.Reactions, Reaction{PostID: p.ID, Emoji: emoji})
	return nil
}

// Edit succeeds on any post ID, like a bot with edit_others_posts.
func (c *Client) Edit(_ context.Context, postID, message string) (chat.Post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.EditErr != nil {
		return chat.Post{}, c.EditErr
	}
	c.Edits = append(c.Edits, EditCall{PostID: postID, Message: message})
	for i := range c.Posts {
		if c.Posts[i].ID == postID {
			c.Posts[i].Message = message
			return c.Posts[i], nil
		}
	}
	return chat.Post{ID: postID, Message: message}, nil
}

// EditCalls returns a copy of the recorded edits.
func (c *Client) EditCalls() []EditCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]EditCall(nil), c.Edits...)
}

func (c *Client) CreatePrivateChannel(_ context.Context, teamID, name string) (chat.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return chat.Channel{ID: "c-" + name, TeamID: teamID, Name: name, Type: "P"}, nil
}

func (c *Client) AddChannelMember(context.Context, string, string) error { return nil }

func (c *Client) ArchiveChannel(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Archived = append(c.Archived, channelID)
	return nil
}

func (c *Client) Me(context.Context) (chat.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Self, nil
}

func (c *Client) UsersByIDs(_ context.Context, ids []string) ([]chat.User, error) {
	out := make([]chat.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, chat.User{ID: id, Username: id})
	}
	return out, nil
}

func (c *Client) notify(kind, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.NotifyErr != nil {
		return c.NotifyErr
	}
	c.Notifications = append(c.Notifications, Notification{Kind: kind, Message: msg})
	return nil
}

func (c *Client) StartupNotify(_ context.Context, m string) error { return c.notify("startup", m) }
func (c *Client) DebugNotify(_ context.Context, m string) error   { return c.notify("debug", m) }
func (c *Client) ErrorNotify(_ context.Context, m string) error   { return c.notify("error", m) }
func (c *Client) RequiredActionNotify(_ context.Context, m string) error {
	return c.notify("required_action", m)
}

// SentPosts returns a copy of the recorded posts.
func (c *Client) SentPosts() []chat.Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Post(nil), c.Posts...)
}

func (c *Client) SentReactions() []Reaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Reaction(nil), c.Reactions...)
}

// Notified returns the recorded notifications of the given kind.
func (c *Client) Notified(kind string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, n := range c.Notifications {
		if n.Kind == kind {
			out = append(out, n.Message)
		}
	}
	return out
}
