package config

import (
	"fmt"
	"strings"
)

// Validate checks the structural invariants a reload must satisfy
// before it can be committed.
//
// It deliberately does not validate individual trigger definitions:
// those are skipped one by one during reconciliation, so a single bad
// definition must not reject the whole config. Duplicate names are
// rejected here because two definitions claiming the same identity
// would race each other.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Notify.BaseURL) == "" {
		return fmt.Errorf("notify.base_url is required")
	}
	if _, err := ParseDurationField("notify.request_timeout", c.Notify.RequestTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("notify.reset_delay", c.Notify.ResetDelay); err != nil {
		return err
	}
	for _, f := range []struct{ path, raw string }{
		{"api.read_timeout", c.API.ReadTimeout},
		{"api.write_timeout", c.API.WriteTimeout},
		{"api.idle_timeout", c.API.IdleTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if c.Storage != nil {
		switch d := strings.TrimSpace(c.Storage.Driver); d {
		case "", "none", "file", "sqlite":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", d)
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(c.Triggers))
	for _, d := range c.Triggers {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			continue // skipped by reconciliation, not a config error
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("triggers: duplicate name %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
