// Package mattermost implements chat.Client over the Mattermost v4 REST API
// and chat.Listener over its websocket.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Leryan/flobot/internal/chat"
	logx "github.com/Leryan/flobot/pkg/logx"
)

type Config struct {
	// APIURL includes the /api/v4 prefix.
	APIURL       string
	WSURL        string
	Token        string
	DebugChannel string
	Timeout      time.Duration
	// RatePerSec bounds outbound API calls. 0 means 10.
	RatePerSec int
}

// Client is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger

	mu sync.Mutex
	me *chat.User
}

var _ chat.Client = (*Client)(nil)

func New(cfg Config, log logx.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log.With(logx.String("comp", "mattermost")),
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return chat.TimeoutErr(op, err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return chat.BodyErr(op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, body)
	if err != nil {
		return chat.OtherErr(op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var nerr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
			return chat.TimeoutErr(op, err)
		}
		return chat.OtherErr(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var appErr wireAppError
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		if json.Unmarshal(b, &appErr) == nil && appErr.Message != "" {
			return chat.StatusErr(op, resp.StatusCode, fmt.Errorf("%s: %s", appErr.ID, appErr.Message))
		}
		return chat.StatusErr(op, resp.StatusCode, nil)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return chat.BodyErr(op, err)
	}
	return nil
}

// Me returns the bot user, fetched once.
func (c *Client) Me(ctx context.Context) (chat.User, error) {
	c.mu.Lock()
	if c.me != nil {
		me := *c.me
		c.mu.Unlock()
		return me, nil
	}
	c.mu.Unlock()

	var u chat.User
	if err := c.do(ctx, "users_me", http.MethodGet, "/users/me", nil, &u); err != nil {
		return chat.User{}, err
	}
	u.DisplayName = u.Username

	c.mu.Lock()
	c.me = &u
	c.mu.Unlock()
	c.log.Info("bot user", logx.String("user_id", u.ID), logx.String("username", u.Username))
	return u, nil
}

func (c *Client) myID(ctx context.Context) string {
	me, err := c.Me(ctx)
	if err != nil {
		return ""
	}
	return me.ID
}

func (c *Client) create(ctx context.Context, op string, p wirePost) (chat.Post, error) {
	var out wirePost
	if err := c.do(ctx, op, http.MethodPost, "/posts", p, &out); err != nil {
		return chat.Post{}, err
	}
	return out.toPost(""), nil
}

func (c *Client) Post(ctx context.Context, p chat.Post) (chat.Post, error) {
	out, err := c.create(ctx, "post", wirePost{
		ChannelID: p.ChannelID,
		UserID:    c.myID(ctx),
		Message:   p.Message,
		RootID:    p.RootID,
		ParentID:  p.ParentID,
	})
	out.TeamID = p.TeamID
	return out, err
}

func (c *Client) Reply(ctx context.Context, p chat.Post, message string) (chat.Post, error) {
	root := p.ID
	if p.RootID != "" {
		root = p.RootID
	}
	out, err := c.create(ctx, "reply", wirePost{
		ChannelID: p.ChannelID,
		UserID:    c.myID(ctx),
		Message:   message,
		RootID:    root,
		ParentID:  p.ID,
	})
	out.TeamID = p.TeamID
	return out, err
}

func (c *Client) React(ctx context.Context, p chat.Post, emoji string) error {
	return c.do(ctx, "react", http.MethodPost, "/reactions", wireReaction{
		UserID:    c.myID(ctx),
		PostID:    p.ID,
		EmojiName: strings.Trim(emoji, ":"),
	}, nil)
}

func (c *Client) Edit(ctx context.Context, postID, message string) (chat.Post, error) {
	var out wirePost
	if err := c.do(ctx, "edit", http.MethodPut, "/posts/"+postID+"/patch", wirePatch{Message: message}, &out); err != nil {
		return chat.Post{}, err
	}
	return out.toPost(""), nil
}

// CreatePrivateChannel creates a private channel named after name with a
// random suffix, so the same name can be reused.
func (c *Client) CreatePrivateChannel(ctx context.Context, teamID, name string) (chat.Channel, error) {
	channelName := strings.ToLower(name + "-" + strings.ReplaceAll(uuid.NewString(), "-", ""))
	var out chat.Channel
	err := c.do(ctx, "create_channel", http.MethodPost, "/channels", wireCreateChannel{
		TeamID:      teamID,
		Name:        channelName,
		DisplayName: name,
		Type:        "P",
	}, &out)
	return out, err
}

func (c *Client) AddChannelMember(ctx context.Context, channelID, userID string) error {
	return c.do(ctx, "add_member", http.MethodPost, "/channels/"+channelID+"/members", wireMember{UserID: userID}, nil)
}

func (c *Client) ArchiveChannel(ctx context.Context, channelID string) error {
	return c.do(ctx, "archive_channel", http.MethodDelete, "/channels/"+channelID, nil, nil)
}

func (c *Client) UsersByIDs(ctx context.Context, ids []string) ([]chat.User, error) {
	var users []chat.User
	if err := c.do(ctx, "users_by_ids", http.MethodPost, "/users/ids", ids, &users); err != nil {
		return nil, err
	}
	for i := range users {
		users[i].DisplayName = users[i].Username
	}
	return users, nil
}

func (c *Client) notify(ctx context.Context, message string) error {
	_, err := c.Post(ctx, chat.Post{ChannelID: c.cfg.DebugChannel, Message: message})
	return err
}

func (c *Client) StartupNotify(ctx context.Context, message string) error {
	return c.notify(ctx, message)
}

func (c *Client) DebugNotify(ctx context.Context, message string) error {
	return c.notify(ctx, message)
}

func (c *Client) ErrorNotify(ctx context.Context, message string) error {
	return c.notify(ctx, message)
}

func (c *Client) RequiredActionNotify(ctx context.Context, message string) error {
	return c.notify(ctx, message)
}
