package config

import (
	"reflect"
	"sort"
	"strings"

	"triggerd/internal/trigger"
	logx "triggerd/pkg/logx"
)

// SummarizeChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like
// tokens), and (3) names of trigger definitions that were added or
// edited. Removed definitions are not reported: reconciliation is
// additive, so their entities stay as they were.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Notify endpoint
	if strings.TrimSpace(oldCfg.Notify.BaseURL) != strings.TrimSpace(newCfg.Notify.BaseURL) ||
		strings.TrimSpace(oldCfg.Notify.RequestTimeout) != strings.TrimSpace(newCfg.Notify.RequestTimeout) ||
		strings.TrimSpace(oldCfg.Notify.ResetDelay) != strings.TrimSpace(newCfg.Notify.ResetDelay) {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.String("notify.base_url", strings.TrimSpace(newCfg.Notify.BaseURL)),
			logx.String("notify.request_timeout", strings.TrimSpace(newCfg.Notify.RequestTimeout)),
			logx.String("notify.reset_delay", strings.TrimSpace(newCfg.Notify.ResetDelay)),
		)
	}

	// API (never log the token itself)
	if oldCfg.API.Enabled != newCfg.API.Enabled ||
		strings.TrimSpace(oldCfg.API.Addr) != strings.TrimSpace(newCfg.API.Addr) ||
		oldCfg.API.AllowInsecure != newCfg.API.AllowInsecure ||
		strings.TrimSpace(oldCfg.API.ReadTimeout) != strings.TrimSpace(newCfg.API.ReadTimeout) ||
		strings.TrimSpace(oldCfg.API.WriteTimeout) != strings.TrimSpace(newCfg.API.WriteTimeout) ||
		strings.TrimSpace(oldCfg.API.IdleTimeout) != strings.TrimSpace(newCfg.API.IdleTimeout) ||
		(strings.TrimSpace(oldCfg.API.Token) != "") != (strings.TrimSpace(newCfg.API.Token) != "") {
		changed = append(changed, "api")
		attrs = append(attrs,
			logx.Bool("api.enabled", newCfg.API.Enabled),
			logx.String("api.addr", strings.TrimSpace(newCfg.API.Addr)),
			logx.Bool("api.token_set", strings.TrimSpace(newCfg.API.Token) != ""),
			logx.Bool("api.allow_insecure", newCfg.API.AllowInsecure),
		)
	}

	// Storage (nil means disabled). The path is not a secret, so a
	// relocated store is reported by value.
	var oDriver, nDriver, oBusy, nBusy, oPath, nPath string
	if s := oldCfg.Storage; s != nil {
		oDriver = strings.TrimSpace(s.Driver)
		oBusy = strings.TrimSpace(s.BusyTimeout)
		oPath = strings.TrimSpace(s.Path)
	}
	if s := newCfg.Storage; s != nil {
		nDriver = strings.TrimSpace(s.Driver)
		nBusy = strings.TrimSpace(s.BusyTimeout)
		nPath = strings.TrimSpace(s.Path)
	}
	if oDriver != nDriver || oBusy != nBusy || oPath != nPath {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.String("storage.path", nPath),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	// Triggers
	triggersChanged := diffTriggers(oldCfg.Triggers, newCfg.Triggers)
	if len(triggersChanged) > 0 {
		changed = append(changed, "triggers")
		attrs = append(attrs,
			logx.Int("triggers.changed_count", len(triggersChanged)),
			logx.Int("triggers.declared_count", len(newCfg.Triggers)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, triggersChanged
}

// diffTriggers reports names that are new or whose definition content
// changed. Definitions that vanished from the new set are ignored.
func diffTriggers(oldDefs, newDefs []trigger.Definition) []string {
	oldByName := make(map[string]trigger.Definition, len(oldDefs))
	for _, d := range oldDefs {
		oldByName[d.Name] = d
	}

	out := make([]string, 0, len(newDefs))
	for _, d := range newDefs {
		prev, known := oldByName[d.Name]
		if !known || !reflect.DeepEqual(prev, d) {
			out = append(out, d.Name)
		}
	}
	sort.Strings(out)
	return out
}
