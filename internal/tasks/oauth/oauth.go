// Package oauth keeps an OAuth2 access token fresh for tasks that call a
// third party API on behalf of the operators.
//
// While no usable token is known the keeper posts an authorization link on
// the required action channel. Operators complete the flow with
// "!oauth <code> <state>".
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/Leryan/flobot/internal/chat"
	"github.com/Leryan/flobot/internal/storage"
	"github.com/Leryan/flobot/internal/task"
	logx "github.com/Leryan/flobot/pkg/logx"
)

const (
	snapshotName  = "oauth.token"
	refreshMargin = time.Hour
	checkEvery    = 60 * time.Second
)

var (
	ErrNoToken  = errors.New("oauth: no token")
	ErrBadState = errors.New("oauth: state mismatch")
)

type Config struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

// Keeper is both the scheduled task and an oauth2.TokenSource.
type Keeper struct {
	name     string
	conf     *oauth2.Config
	notifier chat.Notifier
	store    storage.Snapshots
	now      func() time.Time
	log      logx.Logger

	mu     sync.Mutex
	state  string
	token  *oauth2.Token
	posted bool
	loaded bool
}

type Option func(*Keeper)

// WithStore persists the token across restarts.
func WithStore(s storage.Snapshots) Option { return func(k *Keeper) { k.store = s } }

func WithClock(now func() time.Time) Option {
	return func(k *Keeper) {
		if now != nil {
			k.now = now
		}
	}
}

func New(cfg Config, notifier chat.Notifier, log logx.Logger, opts ...Option) *Keeper {
	name := cfg.Name
	if name == "" {
		name = "oauth"
	}
	k := &Keeper{
		name: name,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		notifier: notifier,
		now:      time.Now,
		state:    uuid.NewString(),
		log:      log.With(logx.String("comp", "oauth"), logx.String("provider", name)),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

func (k *Keeper) Name() string { return k.name + ".token" }

func (k *Keeper) InitialDelay(time.Time) time.Duration { return 0 }

// AuthURL returns the link operators must follow.
func (k *Keeper) AuthURL() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.conf.AuthCodeURL(k.state)
}

// Token implements oauth2.TokenSource.
func (k *Keeper) Token() (*oauth2.Token, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.token == nil || k.token.AccessToken == "" {
		return nil, ErrNoToken
	}
	cp := *k.token
	return &cp, nil
}

func (k *Keeper) Execute(ctx context.Context, now time.Time) (time.Duration, error) {
	k.loadOnce(ctx)

	k.mu.Lock()
	tok := k.token
	posted := k.posted
	k.mu.Unlock()

	switch {
	case tok == nil, tok.RefreshToken == "" && !tok.Expiry.IsZero() && !tok.Expiry.After(now):
		if posted {
			return checkEvery, nil
		}
		if err := k.notifier.RequiredActionNotify(ctx, k.AuthURL()); err != nil {
			return 0, task.AsExpRetry("post authorization link", err)
		}
		k.mu.Lock()
		k.token = nil
		k.posted = true
		k.mu.Unlock()
		k.log.Info("authorization link posted")
		return checkEvery, nil

	case tok.RefreshToken != "" && !tok.Expiry.IsZero() && tok.Expiry.Sub(now) < refreshMargin:
		fresh, err := k.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
		if err != nil {
			return 0, task.AsExpRetry("refresh token", err)
		}
		k.setToken(ctx, fresh)
		k.log.Info("token refreshed", logx.Time("expiry", fresh.Expiry))
	}
	return checkEvery, nil
}

// Authenticate exchanges an authorization code for a token.
func (k *Keeper) Authenticate(ctx context.Context, code, state string) error {
	k.mu.Lock()
	expected := k.state
	k.mu.Unlock()
	if code == "" || state != expected {
		return ErrBadState
	}

	tok, err := k.conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("oauth exchange: %w", err)
	}
	k.setToken(ctx, tok)
	k.log.Info("authenticated", logx.Time("expiry", tok.Expiry))
	return nil
}

func (k *Keeper) setToken(ctx context.Context, tok *oauth2.Token) {
	k.mu.Lock()
	if tok.RefreshToken == "" && k.token != nil {
		tok.RefreshToken = k.token.RefreshToken
	}
	k.token = tok
	k.posted = false
	k.mu.Unlock()

	if k.store == nil {
		return
	}
	b, err := json.Marshal(tok)
	if err != nil {
		k.log.Warn("token not persisted", logx.String("stage", "encode"), logx.Err(err))
		return
	}
	if err := k.store.PutSnapshot(ctx, k.snapshotKey(), b); err != nil {
		k.log.Warn("token not persisted", logx.Err(err))
	}
}

func (k *Keeper) loadOnce(ctx context.Context) {
	k.mu.Lock()
	if k.loaded || k.store == nil {
		k.loaded = true
		k.mu.Unlock()
		return
	}
	k.loaded = true
	k.mu.Unlock()

	b, ok, err := k.store.GetSnapshot(ctx, k.snapshotKey())
	if err != nil || !ok {
		return
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		k.log.Warn("stored token unreadable", logx.Err(err))
		return
	}
	k.mu.Lock()
	if k.token == nil {
		k.token = &tok
	}
	k.mu.Unlock()
}

func (k *Keeper) snapshotKey() string { return snapshotName + "." + k.name }
