package storage

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (snapshot + journal)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled and entities are
// recreated on every start.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// EntityRecord is one cached trigger entity.
// Keep it compact and schema-stable.
type EntityRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Context   json.RawMessage `json:"context,omitempty"`  // last bound definition
	Metadata  json.RawMessage `json:"metadata,omitempty"` // opaque host blob, preserved verbatim
	UpdatedAt time.Time       `json:"updated_at"`
}
