// Package chat defines the events, posts and outbound capabilities shared by
// the dispatcher, the scheduled tasks and the chat backend implementations.
package chat

import "encoding/json"

type EventKind int

const (
	KindUnsupported EventKind = iota
	KindPost
	KindPostEdited
	KindHello
	KindStatus
	KindShutdown
)

func (k EventKind) String() string {
	switch k {
	case KindPost:
		return "post"
	case KindPostEdited:
		return "post_edited"
	case KindHello:
		return "hello"
	case KindStatus:
		return "status"
	case KindShutdown:
		return "shutdown"
	default:
		return "unsupported"
	}
}

// Event is one inbound unit from the chat backend.
//
// Exactly one of the variant pointers matching Kind is set. Events are
// passed by value over the dispatcher channel and must not be mutated by
// the producer after sending.
type Event struct {
	Kind       EventKind
	Post       *Post
	PostEdited *Post
	Hello      *Hello
	Status     *Status

	// Raw keeps the undecoded payload of unsupported events for debugging.
	Raw json.RawMessage
}

func NewPost(p Post) Event       { return Event{Kind: KindPost, Post: &p} }
func NewPostEdited(p Post) Event { return Event{Kind: KindPostEdited, PostEdited: &p} }
func NewHello(h Hello) Event     { return Event{Kind: KindHello, Hello: &h} }
func NewStatus(s Status) Event   { return Event{Kind: KindStatus, Status: &s} }

func NewUnsupported(raw json.RawMessage) Event {
	return Event{Kind: KindUnsupported, Raw: raw}
}

// Shutdown builds the sentinel event that unwinds the dispatcher loop.
func Shutdown() Event { return Event{Kind: KindShutdown} }

func (e Event) IsShutdown() bool { return e.Kind == KindShutdown }

type Post struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	TeamID    string `json:"team_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	RootID    string `json:"root_id,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`
}

// WithMessage returns a copy of p carrying msg.
func (p Post) WithMessage(msg string) Post {
	p.Message = msg
	return p
}

// InChannel returns a fresh post addressed to channelID, dropping ids and
// threading of p.
func (p Post) InChannel(channelID string) Post {
	return Post{ChannelID: channelID, TeamID: p.TeamID, Message: p.Message}
}

type Hello struct {
	ServerVersion string `json:"server_version"`
}

type StatusCode int

const (
	StatusOK StatusCode = iota
	StatusError
	StatusUnknown
	StatusUnsupported
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

type ServerError struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type Status struct {
	Code  StatusCode
	Raw   string
	Error *ServerError
}

type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
	DisplayName string `json:"-"`
}

type Channel struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}
