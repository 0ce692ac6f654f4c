package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DefaultFile is used when the file output is enabled without a path.
const DefaultFile = "./flobot.log"

// Config selects the outputs. With neither Console nor File enabled,
// records still go to the console.
type Config struct {
	Level   string
	Console bool
	File    FileConfig
	Chat    ChatConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// ChatConfig controls the chat sink: records at or above MinLevel are
// forwarded to the bot's error channel, at most RatePerSec per second.
type ChatConfig struct {
	Enabled    bool
	MinLevel   string
	RatePerSec int
}

// ChatSink is satisfied by chat.Client.
type ChatSink interface {
	ErrorNotify(ctx context.Context, message string) error
}

// Service owns the process outputs. Loggers it hands out pick up every
// Apply without being rebuilt.
type Service struct {
	root atomic.Pointer[zerolog.Logger]

	mu       sync.Mutex
	file     *os.File
	filePath string
	chat     *chatSink
}

// New applies cfg and returns the Service with its root Logger. sink may be
// nil until the chat client exists; see SetSink.
func New(cfg Config, sink ChatSink) (*Service, Logger) {
	s := &Service{chat: newChatSink(sink)}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// SetSink points the chat output at sink.
func (s *Service) SetSink(sink ChatSink) { s.chat.setSink(sink) }

// Apply swaps level and outputs. Safe for concurrent use with logging.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, newConsoleWriter(os.Stdout))
	}
	if cfg.File.Enabled {
		if w := s.openFile(cfg.File.Path); w != nil {
			writers = append(writers, w)
		}
	} else {
		s.closeFile()
	}
	if cfg.Chat.Enabled {
		s.chat.configure(parseLevel(cfg.Chat.MinLevel, LevelError), cfg.Chat.RatePerSec)
		writers = append(writers, s.chat)
	}
	if len(writers) == 0 {
		writers = append(writers, newConsoleWriter(os.Stdout))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, LevelInfo)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

// openFile keeps the current handle when the path is unchanged. Callers
// hold s.mu.
func (s *Service) openFile(path string) io.Writer {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultFile
	}
	if s.file != nil && s.filePath == path {
		return zerolog.SyncWriter(s.file)
	}
	s.closeFile()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logx: logging.file.path %q: %v\n", path, err)
		return nil
	}
	s.file, s.filePath = f, path
	return zerolog.SyncWriter(f)
}

func (s *Service) closeFile() {
	if s.file != nil {
		_ = s.file.Close()
		s.file, s.filePath = nil, ""
	}
}

// Close stops the chat worker and closes the log file. Loggers handed out
// earlier fall back to stderr at the same level.
func (s *Service) Close() error {
	s.chat.stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.file != nil {
		err = s.file.Close()
		s.file, s.filePath = nil, ""
	}
	zl := s.current().Output(newConsoleWriter(os.Stderr))
	s.root.Store(&zl)
	return err
}
