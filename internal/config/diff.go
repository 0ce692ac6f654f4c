package config

import (
	"reflect"
	"sort"
	"strings"

	"github.com/Leryan/flobot/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging (never includes tokens or secrets).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Bot (never log token)
	ob, nb := oldCfg.Bot, newCfg.Bot
	if strings.TrimSpace(ob.APIURL) != strings.TrimSpace(nb.APIURL) ||
		strings.TrimSpace(ob.WSURL) != strings.TrimSpace(nb.WSURL) ||
		strings.TrimSpace(ob.DebugChannel) != strings.TrimSpace(nb.DebugChannel) ||
		strings.TrimSpace(ob.RequestTimeout) != strings.TrimSpace(nb.RequestTimeout) ||
		strings.TrimSpace(ob.ReconnectDelay) != strings.TrimSpace(nb.ReconnectDelay) ||
		ob.RatePerSec != nb.RatePerSec ||
		ob.Token != nb.Token {
		changed = append(changed, "bot")
		attrs = append(attrs,
			logx.String("bot.api_url", strings.TrimSpace(nb.APIURL)),
			logx.String("bot.ws_url", strings.TrimSpace(nb.WSURL)),
			logx.Bool("bot.token_changed", ob.Token != nb.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.chat_enabled", newCfg.Logging.Chat.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
		)
	}

	if oldCfg.Trigger != newCfg.Trigger {
		changed = append(changed, "trigger")
		attrs = append(attrs, logx.Duration("trigger.delay", newCfg.Trigger.Delay()))
	}

	if !reflect.DeepEqual(oldCfg.Meteo, newCfg.Meteo) {
		changed = append(changed, "meteo")
		attrs = append(attrs,
			logx.Int("meteo.city_count", len(newCfg.Meteo.Cities)),
			logx.String("meteo.schedule", strings.TrimSpace(newCfg.Meteo.Schedule)),
		)
	}

	// OAuth (never log the client secret)
	if !reflect.DeepEqual(oldCfg.OAuth, newCfg.OAuth) {
		changed = append(changed, "oauth")
		attrs = append(attrs,
			logx.Bool("oauth.enabled", newCfg.OAuth.Enabled()),
			logx.String("oauth.name", newCfg.OAuth.Name),
		)
	}

	// Jokes (never log the API token)
	if oldCfg.Jokes != newCfg.Jokes {
		changed = append(changed, "jokes")
		attrs = append(attrs,
			logx.Bool("jokes.blaguesapi", strings.TrimSpace(newCfg.Jokes.BlaguesAPIToken) != ""),
			logx.String("jokes.urls_file", strings.TrimSpace(newCfg.Jokes.URLsFile)),
			logx.Bool("jokes.bad_jokes", newCfg.Jokes.BadJokes),
		)
	}

	if oldCfg.Shutdown != newCfg.Shutdown {
		changed = append(changed, "shutdown")
		attrs = append(attrs, logx.String("shutdown.timeout", strings.TrimSpace(newCfg.Shutdown.Timeout)))
	}

	sort.Strings(changed)
	return changed, attrs
}

// LiveSections are the sections applied without a restart.
var LiveSections = map[string]bool{"logging": true, "trigger": true}

// RestartRequired returns the changed sections that only take effect after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if !LiveSections[s] {
			out = append(out, s)
		}
	}
	return out
}
