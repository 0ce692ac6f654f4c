package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Leryan/flobot/pkg/logx"
)

// Config is the whole process configuration. It is read from an optional
// JSON or YAML file and then overlaid with BOT_* environment variables.
type Config struct {
	Bot      BotConfig      `json:"bot"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Trigger  TriggerConfig  `json:"trigger"`
	Meteo    MeteoConfig    `json:"meteo"`
	OAuth    OAuthConfig    `json:"oauth"`
	Jokes    JokesConfig    `json:"jokes"`
	Shutdown ShutdownConfig `json:"shutdown"`
}

type BotConfig struct {
	APIURL         string `json:"api_url" env:"BOT_API_URL"`
	WSURL          string `json:"ws_url" env:"BOT_WS_URL"`
	Token          string `json:"token" env:"BOT_TOKEN"`
	DebugChannel   string `json:"debug_channel" env:"BOT_DEBUG_CHAN"`
	RequestTimeout string `json:"request_timeout" env:"BOT_REQUEST_TIMEOUT"`
	RatePerSec     int    `json:"rate_per_sec" env:"BOT_RATE_PER_SEC"`
	ReconnectDelay string `json:"reconnect_delay" env:"BOT_RECONNECT_DELAY"`
}

type LoggingConfig struct {
	Level   string            `json:"level" env:"BOT_LOG_LEVEL"`
	Console bool              `json:"console" env:"BOT_LOG_CONSOLE"`
	File    LoggingFileConfig `json:"file"`
	Chat    LoggingChatConfig `json:"chat"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled" env:"BOT_LOG_FILE_ENABLED"`
	Path    string `json:"path" env:"BOT_LOG_FILE"`
}

type LoggingChatConfig struct {
	Enabled    bool   `json:"enabled" env:"BOT_LOG_CHAT_ENABLED"`
	MinLevel   string `json:"min_level" env:"BOT_LOG_CHAT_MIN_LEVEL"`
	RatePerSec int    `json:"rate_per_sec" env:"BOT_LOG_CHAT_RATE_PER_SEC"`
}

type StorageConfig struct {
	Driver      string `json:"driver" env:"BOT_DB_DRIVER"`
	Path        string `json:"path" env:"BOT_DB_URL"`
	BusyTimeout string `json:"busy_timeout" env:"BOT_DB_BUSY_TIMEOUT"`
}

type TriggerConfig struct {
	DelaySeconds int `json:"delay_seconds" env:"BOT_TRIGGER_DELAY_SECONDS"`
}

// Delay is the window during which a repeated text trigger is not answered.
func (c TriggerConfig) Delay() time.Duration {
	if c.DelaySeconds <= 0 {
		return DefaultTriggerDelay
	}
	return time.Duration(c.DelaySeconds) * time.Second
}

type MeteoConfig struct {
	Cities    []string `json:"cities" env:"BOT_METEO_CITIES" envSeparator:","`
	ChannelID string   `json:"channel_id" env:"BOT_METEO_ON_CHANNEL_ID"`
	Schedule  string   `json:"schedule" env:"BOT_METEO_SCHEDULE"`
	BaseURL   string   `json:"base_url" env:"BOT_METEO_BASE_URL"`
	Timeout   string   `json:"timeout" env:"BOT_METEO_TIMEOUT"`
}

// Enabled reports whether the weather task has somewhere to post and something to post.
func (c MeteoConfig) Enabled() bool {
	return strings.TrimSpace(c.ChannelID) != "" && len(c.Cities) > 0
}

type OAuthConfig struct {
	Name         string   `json:"name" env:"BOT_OAUTH_NAME"`
	ClientID     string   `json:"client_id" env:"BOT_OAUTH_CLIENT_ID"`
	ClientSecret string   `json:"client_secret" env:"BOT_OAUTH_CLIENT_SECRET"`
	AuthURL      string   `json:"auth_url" env:"BOT_OAUTH_AUTH_URL"`
	TokenURL     string   `json:"token_url" env:"BOT_OAUTH_TOKEN_URL"`
	RedirectURL  string   `json:"redirect_url" env:"BOT_OAUTH_REDIRECT_URL"`
	Scopes       []string `json:"scopes" env:"BOT_OAUTH_SCOPES" envSeparator:","`
}

func (c OAuthConfig) Enabled() bool {
	return strings.TrimSpace(c.ClientID) != ""
}

// JokesConfig adds remote joke providers next to the stored jokes.
type JokesConfig struct {
	BlaguesAPIToken string `json:"blaguesapi_token" env:"BOT_BLAGUESAPI_TOKEN"`
	URLsFile        string `json:"urls_file" env:"BOT_BLAGUES_URLS"`
	BadJokes        bool   `json:"bad_jokes" env:"BOT_BLAGUES_BADJOKES"`
	Timeout         string `json:"timeout" env:"BOT_BLAGUES_TIMEOUT"`
}

type ShutdownConfig struct {
	Timeout string `json:"timeout" env:"BOT_SHUTDOWN_TIMEOUT"`
}

const (
	DefaultTriggerDelay    = 5 * time.Minute
	DefaultRequestTimeout  = 10 * time.Second
	DefaultReconnectDelay  = 5 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMeteoSchedule   = "23 7 * * *"
	DefaultOAuthName       = "oauth"
	DefaultLogLevel        = "info"
	DefaultLogFile         = "./flobot.log"
	DefaultChatMinLevel    = "error"
	DefaultChatRatePerSec  = 1
	DefaultStorageDriver   = "sqlite"
	DefaultStoragePath     = "./flobot.db"
)

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if !c.Logging.Console && !c.Logging.File.Enabled {
		c.Logging.Console = true
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		c.Logging.File.Path = DefaultLogFile
	}
	if strings.TrimSpace(c.Logging.Chat.MinLevel) == "" {
		c.Logging.Chat.MinLevel = DefaultChatMinLevel
	}
	if c.Logging.Chat.RatePerSec <= 0 {
		c.Logging.Chat.RatePerSec = DefaultChatRatePerSec
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if strings.TrimSpace(c.Storage.Path) == "" && c.Storage.Driver != "none" {
		c.Storage.Path = DefaultStoragePath
	}
	if strings.TrimSpace(c.Meteo.Schedule) == "" {
		c.Meteo.Schedule = DefaultMeteoSchedule
	}
	if strings.TrimSpace(c.OAuth.Name) == "" {
		c.OAuth.Name = DefaultOAuthName
	}
}

// Validate checks the fields the process cannot start without and the
// shape of every duration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	var missing []string
	if strings.TrimSpace(c.Bot.APIURL) == "" {
		missing = append(missing, "bot.api_url (BOT_API_URL)")
	}
	if strings.TrimSpace(c.Bot.WSURL) == "" {
		missing = append(missing, "bot.ws_url (BOT_WS_URL)")
	}
	if strings.TrimSpace(c.Bot.Token) == "" {
		missing = append(missing, "bot.token (BOT_TOKEN)")
	}
	if strings.TrimSpace(c.Bot.DebugChannel) == "" {
		missing = append(missing, "bot.debug_channel (BOT_DEBUG_CHAN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	for key, raw := range map[string]string{
		"bot.request_timeout (BOT_REQUEST_TIMEOUT)":  c.Bot.RequestTimeout,
		"bot.reconnect_delay (BOT_RECONNECT_DELAY)":  c.Bot.ReconnectDelay,
		"storage.busy_timeout (BOT_DB_BUSY_TIMEOUT)": c.Storage.BusyTimeout,
		"meteo.timeout (BOT_METEO_TIMEOUT)":          c.Meteo.Timeout,
		"jokes.timeout (BOT_BLAGUES_TIMEOUT)":        c.Jokes.Timeout,
		"shutdown.timeout (BOT_SHUTDOWN_TIMEOUT)":    c.Shutdown.Timeout,
	} {
		if _, err := ParseDurationField(key, raw); err != nil {
			return err
		}
	}
	if c.Trigger.DelaySeconds < 0 {
		return fmt.Errorf("trigger.delay_seconds: must be >= 0")
	}
	for key, lvl := range map[string]string{
		"logging.level (BOT_LOG_LEVEL)":                   c.Logging.Level,
		"logging.chat.min_level (BOT_LOG_CHAT_MIN_LEVEL)": c.Logging.Chat.MinLevel,
	} {
		if _, ok := logx.LookupLevel(lvl); !ok && strings.TrimSpace(lvl) != "" {
			return fmt.Errorf("%s: unknown level %q", key, lvl)
		}
	}
	if c.OAuth.Enabled() && (strings.TrimSpace(c.OAuth.AuthURL) == "" || strings.TrimSpace(c.OAuth.TokenURL) == "") {
		return fmt.Errorf("oauth: auth_url and token_url are required when client_id is set")
	}
	return nil
}

// LogConfig converts the logging section for logx.
func (c LoggingConfig) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    c.Chat.Enabled,
			MinLevel:   c.Chat.MinLevel,
			RatePerSec: c.Chat.RatePerSec,
		},
	}
}
