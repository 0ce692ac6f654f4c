// Package app wires the chat client, the dispatcher and the scheduler into
// one process and owns its startup and shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Leryan/flobot/internal/bot"
	"github.com/Leryan/flobot/internal/chat"
	"github.com/Leryan/flobot/internal/chat/mattermost"
	"github.com/Leryan/flobot/internal/config"
	"github.com/Leryan/flobot/internal/eventbus"
	"github.com/Leryan/flobot/internal/handlers/edits"
	"github.com/Leryan/flobot/internal/handlers/joke"
	"github.com/Leryan/flobot/internal/handlers/trigger"
	"github.com/Leryan/flobot/internal/runtime/supervisor"
	"github.com/Leryan/flobot/internal/storage"
	"github.com/Leryan/flobot/internal/task"
	"github.com/Leryan/flobot/internal/tasks/meteo"
	"github.com/Leryan/flobot/internal/tasks/oauth"
	"github.com/Leryan/flobot/internal/tempo"
	"github.com/Leryan/flobot/pkg/logx"
)

const eventQueue = 64

// Options are the process-level knobs, usually set from the command line.
type Options struct {
	ConfigPath string
	// EnvFile is loaded before the config. Empty means config.DefaultEnvFile.
	EnvFile string
	Debug   bool
	Version string

	// Environ replaces the process environment for the config overlay.
	Environ map[string]string
	// Client and Listener replace the Mattermost implementations.
	Client   chat.Client
	Listener chat.Listener
	// Signals trigger a graceful stop. nil means SIGINT and SIGTERM.
	Signals []os.Signal
}

type App struct {
	opts Options
	cfgm *config.ConfigManager

	logs *logx.Service
	root logx.Logger
	log  logx.Logger
	bus  eventbus.Bus

	store    storage.Store
	client   chat.Client
	listener chat.Listener

	bot     *bot.Instance
	runner  *task.Runner
	tempo   *tempo.Store
	trigger *trigger.Handler

	reconnect       time.Duration
	shutdownTimeout time.Duration

	sup        *supervisor.Supervisor
	cancelRun  context.CancelFunc
	events     chan chat.Event
	dispatched chan error

	mu     sync.Mutex
	reason StopReason
}

// New loads the configuration and builds every component. Nothing runs
// until Start.
func New(opts Options) (*App, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = config.DefaultEnvFile
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfgm := config.NewConfigManager(opts.ConfigPath)
	if opts.Environ != nil {
		cfgm.SetEnviron(opts.Environ)
	}
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// The chat sink is attached once the client exists.
	logs, root := logx.New(logConfig(cfg, opts.Debug), nil)
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	requestTimeout, err := config.ParseDurationOrDefault("bot.request_timeout", cfg.Bot.RequestTimeout, config.DefaultRequestTimeout)
	if err != nil {
		return nil, err
	}
	reconnect, err := config.ParseDurationOrDefault("bot.reconnect_delay", cfg.Bot.ReconnectDelay, config.DefaultReconnectDelay)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := config.ParseDurationOrDefault("shutdown.timeout", cfg.Shutdown.Timeout, config.DefaultShutdownTimeout)
	if err != nil {
		return nil, err
	}

	mm := mattermost.Config{
		APIURL:       cfg.Bot.APIURL,
		WSURL:        cfg.Bot.WSURL,
		Token:        cfg.Bot.Token,
		DebugChannel: cfg.Bot.DebugChannel,
		Timeout:      requestTimeout,
		RatePerSec:   cfg.Bot.RatePerSec,
	}
	client := opts.Client
	if client == nil {
		client = mattermost.New(mm, root)
	}
	listener := opts.Listener
	if listener == nil {
		listener = mattermost.NewListener(mm, root)
	}
	logs.SetSink(client)

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		store, err = storage.Open(sc, root)
		if err != nil {
			return nil, err
		}
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	a := &App{
		opts:            opts,
		cfgm:            cfgm,
		logs:            logs,
		root:            root,
		log:             log,
		bus:             bus,
		store:           store,
		client:          client,
		listener:        listener,
		tempo:           tempo.New(),
		reconnect:       reconnect,
		shutdownTimeout: shutdownTimeout,
		events:          make(chan chat.Event, eventQueue),
		dispatched:      make(chan error, 1),
	}
	cfgm.SetValidator(a.validateReload)
	if err := a.build(cfg); err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	return a, nil
}

// build assembles the dispatcher and the scheduler from cfg.
func (a *App) build(cfg *config.Config) error {
	version := a.opts.Version
	if version == "" {
		version = "dev"
	}
	a.bot = bot.New(a.client,
		bot.WithLogger(a.root),
		bot.WithBus(a.bus),
		bot.WithVersion(version),
	)
	if a.opts.Debug {
		a.bot.AddMiddleware(bot.DebugMiddleware{Log: a.root.With(logx.String("comp", "debug"))})
	}

	a.runner = task.NewRunner(task.WithLogger(a.root), task.WithBus(a.bus))
	a.runner.Add(task.Tick{Log: a.root.With(logx.String("comp", "tick"))})

	if a.store != nil {
		a.trigger = trigger.New(a.store, a.client, a.tempo, cfg.Trigger.Delay(), a.root)
		a.bot.AddHandler(a.trigger)
		a.bot.AddHandler(edits.New(a.store, a.client, a.root))
		providers, err := a.jokeProviders(cfg)
		if err != nil {
			return err
		}
		a.bot.AddHandler(joke.New(a.store, joke.NewSelect(providers...), a.client, a.root))
	} else {
		a.log.Warn("storage disabled; trigger, edits and blague handlers not loaded")
	}

	if cfg.Meteo.Enabled() {
		sched, err := task.ParseSchedule(cfg.Meteo.Schedule)
		if err != nil {
			return fmt.Errorf("meteo.schedule: %w", err)
		}
		timeout, err := config.ParseDurationField("meteo.timeout", cfg.Meteo.Timeout)
		if err != nil {
			return err
		}
		a.runner.Add(meteo.New(meteo.Config{
			Cities:    cfg.Meteo.Cities,
			ChannelID: cfg.Meteo.ChannelID,
			Schedule:  sched,
			BaseURL:   cfg.Meteo.BaseURL,
			Timeout:   timeout,
		}, a.client, a.root))
	}

	if cfg.OAuth.Enabled() {
		var kopts []oauth.Option
		if a.store != nil {
			kopts = append(kopts, oauth.WithStore(a.store))
		}
		keeper := oauth.New(oauth.Config{
			Name:         cfg.OAuth.Name,
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			AuthURL:      cfg.OAuth.AuthURL,
			TokenURL:     cfg.OAuth.TokenURL,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       cfg.OAuth.Scopes,
		}, a.client, a.root, kopts...)
		a.runner.Add(keeper)
		a.bot.AddHandler(oauth.NewHandler(keeper, a.client))
	}
	return nil
}

// jokeProviders returns the stored jokes plus every configured remote.
func (a *App) jokeProviders(cfg *config.Config) ([]joke.Provider, error) {
	providers := []joke.Provider{joke.NewStored(a.store)}
	timeout, err := config.ParseDurationOrDefault("jokes.timeout", cfg.Jokes.Timeout, joke.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.Jokes.BlaguesAPIToken); token != "" {
		providers = append(providers, joke.NewBlaguesAPI("", token, timeout))
	}
	if f := strings.TrimSpace(cfg.Jokes.URLsFile); f != "" {
		urls, err := joke.LoadURLs(f)
		if err != nil {
			return nil, fmt.Errorf("jokes.urls_file: %w", err)
		}
		providers = append(providers, urls)
	}
	if cfg.Jokes.BadJokes {
		providers = append(providers, joke.NewBadJokes("", timeout))
	}
	a.log.Debug("joke providers", logx.Int("count", len(providers)))
	return providers, nil
}

func logConfig(cfg *config.Config, debug bool) logx.Config {
	lc := cfg.Logging.LogConfig()
	if debug {
		lc.Level = "debug"
	}
	return lc
}

// Start launches the listener, the scheduler, the dispatcher and the
// watchers. Cancelling ctx, or receiving one of the configured signals,
// requests a graceful stop; Wait observes its end.
func (a *App) Start(ctx context.Context) error {
	self, err := bot.NewIgnoreSelf(ctx, a.client)
	if err != nil {
		return err
	}
	a.bot.AddMiddleware(self)

	a.restoreTempo(ctx)

	// The run context outlives ctx: components keep running until the
	// dispatcher has drained and Wait cancels them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancelRun = cancel
	a.sup = supervisor.New(runCtx, supervisor.WithLogger(a.root))

	cfgSub := a.cfgm.Subscribe(4)
	busSub, unsub := a.bus.Subscribe(128)

	a.sup.GoRestart("mattermost.listener", func(c context.Context) error {
		return a.listener.Listen(c, a.events)
	},
		supervisor.WithRestartBackoff(a.reconnect, 6*a.reconnect),
		// A stream that ends while the bot runs is a lost connection.
		supervisor.WithStopOnCleanExit(false),
		supervisor.WithPublishErrors(true),
	)
	a.sup.Go("scheduler", a.runner.RunForever)
	a.sup.Go0("dispatcher", func(c context.Context) {
		a.dispatched <- a.bot.Run(c, a.events)
	})
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		a.logEvents(c, busSub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(cfgSub)
		a.reloadConfig(c, cfgSub)
	})
	a.watchSignals(ctx)
	a.startWatchdog()

	a.notifyReady()
	a.log.Info("app started",
		logx.Strings("tasks", a.runner.Names()),
		logx.Strings("handlers", a.bot.HandlerNames()),
	)
	return nil
}

// Wait blocks until the dispatcher returns, then stops every other
// component. Joining them is bounded by the shutdown timeout. The returned
// error is the dispatcher's.
func (a *App) Wait() error {
	err := <-a.dispatched
	reason := a.stopReason(err)
	a.log.Info("stopping", logx.String("reason", string(reason)))

	a.runner.Stop()
	a.notifyStopping()
	a.persistTempo()
	a.cancelRun()

	jctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if jerr := a.sup.Wait(jctx); jerr != nil {
		if jctx.Err() != nil {
			a.log.Warn("shutdown join timed out",
				logx.String("reason", string(StopJoinTimeout)),
				logx.Duration("timeout", a.shutdownTimeout),
				logx.Strings("running", a.sup.Running()),
			)
		} else {
			a.log.Warn("supervised goroutine failed", logx.Err(jerr))
		}
	}

	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			a.log.Warn("storage close failed", logx.Err(cerr))
		}
	}
	a.log.Info("stopped", logx.String("reason", string(reason)))
	_ = a.logs.Close()
	return err
}

// Run is Start followed by Wait.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.logs.Close()
		return err
	}
	return a.Wait()
}

func (a *App) signals() []os.Signal {
	if a.opts.Signals != nil {
		return a.opts.Signals
	}
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

func (a *App) setReason(r StopReason) {
	a.mu.Lock()
	if a.reason == "" {
		a.reason = r
	}
	a.mu.Unlock()
}

func (a *App) stopReason(dispatchErr error) StopReason {
	if dispatchErr != nil {
		if k, ok := bot.KindOf(dispatchErr); ok && k == bot.ErrStatus {
			return StopServerClosed
		}
		return StopFatalError
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reason == "" {
		return StopUnknown
	}
	return a.reason
}
