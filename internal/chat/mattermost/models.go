package mattermost

import (
	"encoding/json"
	"strings"

	"github.com/Leryan/flobot/internal/chat"
)

type wirePost struct {
	ID        string `json:"id,omitempty"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message"`
	RootID    string `json:"root_id,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`
}

func (p wirePost) toPost(teamID string) chat.Post {
	parent := p.ParentID
	if parent == "" {
		parent = p.RootID
	}
	return chat.Post{
		ID:        p.ID,
		ChannelID: p.ChannelID,
		TeamID:    teamID,
		UserID:    p.UserID,
		Message:   p.Message,
		RootID:    p.RootID,
		ParentID:  parent,
	}
}

type wireReaction struct {
	UserID    string `json:"user_id"`
	PostID    string `json:"post_id"`
	EmojiName string `json:"emoji_name"`
}

type wirePatch struct {
	Message string `json:"message"`
}

type wireCreateChannel struct {
	TeamID      string `json:"team_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

type wireMember struct {
	UserID string `json:"user_id"`
}

type wireAppError struct {
	ID            string  `json:"id"`
	Message       string  `json:"message"`
	DetailedError string  `json:"detailed_error"`
	RequestID     string  `json:"request_id,omitempty"`
	StatusCode    float64 `json:"status_code"`
}

type wireAuth struct {
	Action string         `json:"action"`
	Seq    uint64         `json:"seq"`
	Data   map[string]any `json:"data"`
}

// wireMessage is the union of everything the websocket sends: either a
// status reply to one of our actions, or a broadcast event.
type wireMessage struct {
	Status  string          `json:"status"`
	Error   *wireAppError   `json:"error"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	SeqRepl uint64          `json:"seq_reply"`
}

type wirePostedData struct {
	Post   string `json:"post"`
	TeamID string `json:"team_id"`
}

type wireHelloData struct {
	ServerVersion string `json:"server_version"`
}

// DecodeEvent converts one websocket frame into a chat event. Frames that
// cannot be understood become unsupported events carrying the raw payload.
func DecodeEvent(raw []byte) chat.Event {
	var m wireMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return chat.NewUnsupported(append(json.RawMessage(nil), raw...))
	}

	if m.Status != "" {
		return chat.NewStatus(decodeStatus(m, string(raw)))
	}

	switch m.Event {
	case "posted", "post_edited":
		var d wirePostedData
		if err := json.Unmarshal(m.Data, &d); err != nil || d.Post == "" {
			break
		}
		var p wirePost
		if err := json.Unmarshal([]byte(d.Post), &p); err != nil {
			break
		}
		if m.Event == "posted" {
			return chat.NewPost(p.toPost(d.TeamID))
		}
		return chat.NewPostEdited(p.toPost(d.TeamID))
	case "hello":
		var d wireHelloData
		if err := json.Unmarshal(m.Data, &d); err == nil {
			return chat.NewHello(chat.Hello{ServerVersion: d.ServerVersion})
		}
	}
	return chat.NewUnsupported(append(json.RawMessage(nil), raw...))
}

func decodeStatus(m wireMessage, raw string) chat.Status {
	switch {
	case strings.Contains(m.Status, "OK"):
		return chat.Status{Code: chat.StatusOK, Raw: raw}
	case strings.Contains(m.Status, "FAIL") && m.Error != nil:
		return chat.Status{Code: chat.StatusError, Raw: raw, Error: &chat.ServerError{
			ID:         m.Error.ID,
			Message:    m.Error.Message,
			StatusCode: int(m.Error.StatusCode),
		}}
	case strings.Contains(m.Status, "FAIL"):
		return chat.Status{Code: chat.StatusUnknown, Raw: raw}
	default:
		return chat.Status{Code: chat.StatusUnsupported, Raw: raw}
	}
}
