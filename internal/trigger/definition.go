package trigger

import (
	"fmt"
	"strings"
)

// GroupPrefix marks a target as a group target.
//
// The prefix is a convention of the remote notify API: it decides single vs
// group delivery from the targetId itself. triggerd passes the value through
// verbatim and never branches on it.
const GroupPrefix = "GRP"

// Definition is one user-declared trigger. It is immutable for the duration
// of a reconciliation pass; reloads replace it wholesale on the entity.
type Definition struct {
	Name     string `json:"name"`
	TargetID string `json:"target_id"`
	Token    string `json:"token"`
	Text     string `json:"text"`

	Title     string `json:"title,omitempty"`
	GroupType string `json:"group_type,omitempty"`
	IconURL   string `json:"icon_url,omitempty"`

	// Schedule optionally auto-activates the trigger on a cron expression
	// or fixed interval (e.g. "@hourly", "*/5 * * * *", "30m").
	Schedule string `json:"schedule,omitempty"`
}

// Validate reports the first missing required field.
//
// A failing definition is skipped by reconciliation; it never aborts the
// batch it arrived in.
func (d Definition) Validate() error {
	for _, f := range []struct {
		name, val string
	}{
		{"name", d.Name},
		{"target_id", d.TargetID},
		{"token", d.Token},
		{"text", d.Text},
	} {
		if strings.TrimSpace(f.val) == "" {
			return &MissingFieldError{Definition: d.Name, Field: f.name}
		}
	}
	return nil
}

// MissingFieldError identifies an invalid definition by name (when present)
// and the first required field it lacks.
type MissingFieldError struct {
	Definition string // may be empty when name itself is missing
	Field      string
}

func (e *MissingFieldError) Error() string {
	if strings.TrimSpace(e.Definition) == "" {
		return fmt.Sprintf("trigger definition missing required field %q", e.Field)
	}
	return fmt.Sprintf("trigger %q missing required field %q", e.Definition, e.Field)
}

// RedactToken returns a loggable form of a credential. Tokens are never
// logged in full.
func RedactToken(tok string) string {
	tok = strings.TrimSpace(tok)
	if len(tok) <= 4 {
		return "****"
	}
	return tok[:4] + "…"
}
