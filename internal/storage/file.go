package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "github.com/Leryan/flobot/pkg/logx"
)

// fileStore keeps everything in one JSON document that is rewritten
// through a temporary file and a rename on every change.
type fileStore struct {
	log  logx.Logger
	path string

	mu  sync.Mutex
	doc fileDoc
}

type fileDoc struct {
	NextID    int64             `json:"next_id"`
	Triggers  []fileTrigger     `json:"triggers"`
	Edits     []fileEdit        `json:"edits,omitempty"`
	Jokes     []fileJoke        `json:"jokes,omitempty"`
	Snapshots map[string][]byte `json:"snapshots"`
}

type fileEdit struct {
	ID      int64  `json:"id"`
	TeamID  string `json:"team_id"`
	Word    string `json:"word"`
	Replace string `json:"replace"`
}

type fileJoke struct {
	ID     int64  `json:"id"`
	TeamID string `json:"team_id"`
	Text   string `json:"text"`
}

type fileTrigger struct {
	ID     int64  `json:"id"`
	TeamID string `json:"team_id"`
	Word   string `json:"word"`
	Text   string `json:"text,omitempty"`
	Emoji  string `json:"emoji,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path, doc: fileDoc{NextID: 1, Snapshots: map[string][]byte{}}}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(b, &s.doc); err != nil {
			return nil, err
		}
		if s.doc.Snapshots == nil {
			s.doc.Snapshots = map[string][]byte{}
		}
		if s.doc.NextID < 1 {
			s.doc.NextID = 1
		}
	}
	log.Info("storage opened", logx.String("path", path),
		logx.Int("triggers", len(s.doc.Triggers)),
		logx.Int("edits", len(s.doc.Edits)),
		logx.Int("jokes", len(s.doc.Jokes)),
	)
	return s, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) ListTriggers(_ context.Context, teamID string) ([]Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Trigger
	for _, t := range s.doc.Triggers {
		if t.TeamID == teamID {
			out = append(out, Trigger(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out, nil
}

func (s *fileStore) AddTextTrigger(_ context.Context, teamID, word, text string) error {
	return s.upsert(teamID, word, text, "")
}

func (s *fileStore) AddReactionTrigger(_ context.Context, teamID, word, emoji string) error {
	return s.upsert(teamID, word, "", emoji)
}

func (s *fileStore) upsert(teamID, word, text, emoji string) error {
	word = normWord(word)
	if word == "" {
		return errors.New("empty trigger word")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.doc.Triggers {
		t := &s.doc.Triggers[i]
		if t.TeamID == teamID && t.Word == word {
			t.Text, t.Emoji = text, emoji
			return s.flushLocked()
		}
	}
	s.doc.Triggers = append(s.doc.Triggers, fileTrigger{ID: s.nextIDLocked(), TeamID: teamID, Word: word, Text: text, Emoji: emoji})
	return s.flushLocked()
}

func (s *fileStore) DelTrigger(_ context.Context, teamID, word string) error {
	word = normWord(word)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.doc.Triggers {
		if t.TeamID == teamID && t.Word == word {
			s.doc.Triggers = append(s.doc.Triggers[:i], s.doc.Triggers[i+1:]...)
			return s.flushLocked()
		}
	}
	return ErrNotFound
}

func (s *fileStore) ListEdits(_ context.Context, teamID string) ([]Edit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Edit
	for _, e := range s.doc.Edits {
		if e.TeamID == teamID {
			out = append(out, Edit(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out, nil
}

func (s *fileStore) FindEdit(_ context.Context, teamID, word string) (Edit, error) {
	word = normWord(word)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.doc.Edits {
		if e.TeamID == teamID && e.Word == word {
			return Edit(e), nil
		}
	}
	return Edit{}, ErrNotFound
}

func (s *fileStore) AddEdit(_ context.Context, teamID, word, replace string) error {
	word = normWord(word)
	if word == "" || strings.TrimSpace(replace) == "" {
		return errors.New("empty edit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.doc.Edits {
		if e := &s.doc.Edits[i]; e.TeamID == teamID && e.Word == word {
			e.Replace = replace
			return s.flushLocked()
		}
	}
	s.doc.Edits = append(s.doc.Edits, fileEdit{ID: s.nextIDLocked(), TeamID: teamID, Word: word, Replace: replace})
	return s.flushLocked()
}

func (s *fileStore) DelEdit(_ context.Context, teamID, word string) error {
	word = normWord(word)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.doc.Edits {
		if e.TeamID == teamID && e.Word == word {
			s.doc.Edits = append(s.doc.Edits[:i], s.doc.Edits[i+1:]...)
			return s.flushLocked()
		}
	}
	return ErrNotFound
}

func (s *fileStore) ListJokes(_ context.Context, teamID string) ([]Joke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Joke
	for _, j := range s.doc.Jokes {
		if j.TeamID == teamID {
			out = append(out, Joke(j))
		}
	}
	return out, nil
}

func (s *fileStore) AddJoke(_ context.Context, teamID, text string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, errors.New("empty joke")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextIDLocked()
	s.doc.Jokes = append(s.doc.Jokes, fileJoke{ID: id, TeamID: teamID, Text: text})
	return id, s.flushLocked()
}

func (s *fileStore) DelJoke(_ context.Context, teamID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.doc.Jokes {
		if j.TeamID == teamID && j.ID == id {
			s.doc.Jokes = append(s.doc.Jokes[:i], s.doc.Jokes[i+1:]...)
			return s.flushLocked()
		}
	}
	return ErrNotFound
}

func (s *fileStore) nextIDLocked() int64 {
	id := s.doc.NextID
	s.doc.NextID++
	return id
}

func (s *fileStore) PutSnapshot(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Snapshots[name] = append([]byte(nil), data...)
	return s.flushLocked()
}

func (s *fileStore) GetSnapshot(_ context.Context, name string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.doc.Snapshots[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (s *fileStore) flushLocked() error {
	b, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Warn("storage flush failed", logx.Err(err))
		return err
	}
	return nil
}
