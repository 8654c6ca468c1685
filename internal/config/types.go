package config

import (
	"triggerd/internal/trigger"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Notify configures the outbound notification endpoint shared by all
	// triggers.
	Notify NotifyConfig `json:"notify"`

	// API controls the local HTTP control surface.
	API APIConfig `json:"api,omitempty"`

	// Storage is the optional entity cache. Nil means identities and host
	// metadata live only in memory and are re-derived on restart.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Triggers is the declared set. Reconciliation is additive: removing
	// an entry here never removes the entity it created.
	Triggers []trigger.Definition `json:"triggers"`
}

// NotifyConfig points triggerd at the remote notify service.
//
// All durations are Go duration strings (e.g. "500ms", "10s").
type NotifyConfig struct {
	// BaseURL is the scheme://host[:port] root of the notify API,
	// without the /notify-json path.
	BaseURL string `json:"base_url"`

	// RequestTimeout bounds one outbound POST. Default "10s".
	RequestTimeout string `json:"request_timeout,omitempty"`

	// ResetDelay is how long an activated trigger stays in its internal
	// active phase. Default "1s". Exposed mainly for test setups.
	ResetDelay string `json:"reset_delay,omitempty"`
}

// APIConfig controls the local control server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8686").
//   - If you bind to a non-loopback address, set a token or explicitly
//     allow_insecure.
type APIConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8686"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// StorageConfig controls the entity cache.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./triggerd_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
