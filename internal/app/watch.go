package app

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"time"

	"github.com/Leryan/flobot/internal/chat"
	"github.com/Leryan/flobot/internal/config"
	"github.com/Leryan/flobot/internal/eventbus"
	"github.com/Leryan/flobot/internal/handlers/joke"
	"github.com/Leryan/flobot/internal/task"
	"github.com/Leryan/flobot/pkg/logx"
)

const shutdownRetry = 100 * time.Millisecond

// watchSignals stops the scheduler and hands the shutdown sentinel to the
// dispatcher once parent is done or a signal arrives.
func (a *App) watchSignals(parent context.Context) {
	sigCtx, stop := signal.NotifyContext(parent, a.signals()...)
	a.sup.Go0("signal.watch", func(c context.Context) {
		defer stop()
		select {
		case <-c.Done():
			return
		case <-sigCtx.Done():
		}
		if parent.Err() != nil {
			a.setReason(StopAppStop)
		} else {
			a.setReason(StopSignal)
		}
		a.log.Info("stop requested")
		a.runner.Stop()
		a.sendShutdown(c)
	})
}

// sendShutdown retries until the dispatcher takes the sentinel or the run
// context ends.
func (a *App) sendShutdown(ctx context.Context) {
	t := time.NewTicker(shutdownRetry)
	defer t.Stop()
	for attempt := 1; ; attempt++ {
		select {
		case a.events <- chat.Shutdown():
			a.log.Debug("shutdown sentinel delivered", logx.Int("attempt", attempt))
			return
		case <-ctx.Done():
			return
		case <-t.C:
			a.log.Debug("event queue full; retrying shutdown", logx.Int("attempt", attempt))
		}
	}
}

// validateReload rejects a reloaded config that the next restart could not
// start with, so a bad edit never becomes the committed config.
func (a *App) validateReload(_ context.Context, cfg *config.Config) error {
	if cfg.Meteo.Enabled() {
		if _, err := task.ParseSchedule(cfg.Meteo.Schedule); err != nil {
			return fmt.Errorf("meteo.schedule: %w", err)
		}
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if f := strings.TrimSpace(cfg.Jokes.URLsFile); f != "" {
		if _, err := joke.LoadURLs(f); err != nil {
			return fmt.Errorf("jokes.urls_file: %w", err)
		}
	}
	return nil
}

// reloadConfig applies the live sections of every published config.
func (a *App) reloadConfig(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	changed, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(changed) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	a.logs.Apply(logConfig(newCfg, a.opts.Debug))
	if a.trigger != nil {
		a.trigger.SetDelay(newCfg.Trigger.Delay())
	}
	if rr := config.RestartRequired(changed); len(rr) > 0 {
		a.log.Warn("config sections changed; restart required for changes to take effect", logx.Strings("sections", rr))
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReload, Data: changed})
	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// logEvents keeps bus traffic at debug level; scheduler events are frequent.
func (a *App) logEvents(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
		}
	}
}
