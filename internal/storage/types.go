package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("not found")
)

// Config configures storage.
//
// If Driver is empty it defaults to "sqlite"; "none" disables storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Trigger reacts to a word posted in a team, either with a text reply or
// an emoji reaction.
type Trigger struct {
	ID     int64
	TeamID string
	Word   string
	Text   string
	Emoji  string
}

func (t Trigger) IsReaction() bool { return t.Emoji != "" }

type Triggers interface {
	ListTriggers(ctx context.Context, teamID string) ([]Trigger, error)
	// AddTextTrigger and AddReactionTrigger replace an existing trigger on
	// the same word.
	AddTextTrigger(ctx context.Context, teamID, word, text string) error
	AddReactionTrigger(ctx context.Context, teamID, word, emoji string) error
	DelTrigger(ctx context.Context, teamID, word string) error
}

// Edit rewrites a post reading "!e <word>" into Replace.
type Edit struct {
	ID      int64
	TeamID  string
	Word    string
	Replace string
}

type Edits interface {
	ListEdits(ctx context.Context, teamID string) ([]Edit, error)
	// FindEdit returns ErrNotFound when the team has no edit for word.
	FindEdit(ctx context.Context, teamID, word string) (Edit, error)
	// AddEdit replaces an existing edit on the same word.
	AddEdit(ctx context.Context, teamID, word, replace string) error
	DelEdit(ctx context.Context, teamID, word string) error
}

type Joke struct {
	ID     int64
	TeamID string
	Text   string
}

type Jokes interface {
	// ListJokes returns the team's jokes by ascending ID.
	ListJokes(ctx context.Context, teamID string) ([]Joke, error)
	AddJoke(ctx context.Context, teamID, text string) (int64, error)
	DelJoke(ctx context.Context, teamID string, id int64) error
}

// Snapshots keeps opaque named blobs, used for tempo.Store dumps.
type Snapshots interface {
	PutSnapshot(ctx context.Context, name string, data []byte) error
	GetSnapshot(ctx context.Context, name string) ([]byte, bool, error)
}

type Store interface {
	Triggers
	Edits
	Jokes
	Snapshots
	Close() error
}
