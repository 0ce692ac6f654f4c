// Package meteo posts a daily weather summary for a list of cities.
package meteo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Leryan/flobot/internal/chat"
	"github.com/Leryan/flobot/internal/task"
	logx "github.com/Leryan/flobot/pkg/logx"
)

const (
	DefaultBaseURL  = "https://wttr.in"
	DefaultSchedule = "23 7 * * *"

	format   = "%l: %c %t"
	header   = "Mééééééééééééétéoooooooooooo :\n"
	tomorrow = 24 * time.Hour
)

type Config struct {
	Cities    []string
	ChannelID string
	Schedule  task.Schedule
	BaseURL   string
	Timeout   time.Duration
}

type Task struct {
	cfg    Config
	client chat.Sender
	http   *http.Client
	log    logx.Logger
}

func New(cfg Config, client chat.Sender, log logx.Logger) *Task {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Schedule.IsZero() {
		cfg.Schedule = task.MustParseSchedule(DefaultSchedule)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Task{
		cfg:    cfg,
		client: client,
		http:   &http.Client{Timeout: cfg.Timeout},
		log:    log.With(logx.String("comp", "meteo")),
	}
}

func (t *Task) Name() string { return "meteo" }

func (t *Task) InitialDelay(now time.Time) time.Duration { return t.cfg.Schedule.Delay(now) }

func (t *Task) Execute(ctx context.Context, now time.Time) (time.Duration, error) {
	var b strings.Builder
	b.WriteString(header)

	for _, city := range t.cfg.Cities {
		line, err := t.fetch(ctx, city)
		if err != nil {
			return 0, err
		}
		b.WriteString(" * ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	if _, err := t.client.Post(ctx, chat.Post{ChannelID: t.cfg.ChannelID, Message: b.String()}); err != nil {
		return 0, task.AsExpRetry("cannot post", err)
	}
	t.log.Info("weather posted", logx.Int("cities", len(t.cfg.Cities)))
	return t.cfg.Schedule.Delay(now), nil
}

func (t *Task) fetch(ctx context.Context, city string) (string, error) {
	u := fmt.Sprintf("%s/%s?format=%s", strings.TrimRight(t.cfg.BaseURL, "/"), url.PathEscape(city), url.QueryEscape(format))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", task.AsCannotExec(tomorrow, "build request", err)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return "", task.AsCannotExec(tomorrow, city, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return "", task.ExpRetry(resp.Status)
	case resp.StatusCode >= 400:
		return "", task.CannotExec(tomorrow, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", task.AsExpRetry("read body", err)
	}
	return strings.TrimSpace(string(body)), nil
}
