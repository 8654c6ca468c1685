package trigger

import (
	"encoding/json"
	"sync"
)

// State is a trigger's switch state as the host surface understands it.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// Entity is the reconciled, addressable runtime object for one trigger name.
//
// Identity is stable: the same name always maps to the same ID, so an entity
// created once is reused across restarts and reloads. Entities are never
// destroyed; a definition that disappears from config leaves its entity (and
// any host metadata attached to it) untouched.
//
// State is two-layered on purpose:
//   - phase is the internal idle/active flag that exists only to mark an
//     in-flight activation window,
//   - State(), what the outside world sees, is always StateIdle, so the
//     trigger always appears ready to fire again, even mid-dispatch.
type Entity struct {
	ID   string
	Name string

	mu       sync.RWMutex
	def      Definition
	metadata json.RawMessage
	phase    State
}

func NewEntity(id string, def Definition) *Entity {
	return &Entity{ID: id, Name: def.Name, def: def, phase: StateIdle}
}

// Definition returns the entity's current definition.
func (e *Entity) Definition() Definition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.def
}

// SetDefinition replaces the bound definition wholesale. Reconciliation
// calls this for reused entities so a reload picks up edited fields.
func (e *Entity) SetDefinition(d Definition) {
	e.mu.Lock()
	e.def = d
	e.mu.Unlock()
}

// Metadata is the opaque host-level blob (placement, grouping, favorites).
// triggerd preserves it verbatim and never interprets it.
func (e *Entity) Metadata() json.RawMessage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metadata
}

func (e *Entity) SetMetadata(m json.RawMessage) {
	e.mu.Lock()
	e.metadata = m
	e.mu.Unlock()
}

// EnterActive flips the internal phase. It returns the previous phase so
// callers can log re-entrant activations, which are allowed.
func (e *Entity) EnterActive() State {
	e.mu.Lock()
	prev := e.phase
	e.phase = StateActive
	e.mu.Unlock()
	return prev
}

// ResetIdle is the unconditional timeout transition.
func (e *Entity) ResetIdle() {
	e.mu.Lock()
	e.phase = StateIdle
	e.mu.Unlock()
}

// Phase exposes the internal phase. Only the dispatcher and tests should
// care; everything host-facing goes through State().
func (e *Entity) Phase() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}

// State reports the externally visible state, which is always idle: a
// trigger must never be observed as busy, or automations chained on it
// would stall waiting for a reset they can't influence.
func (e *Entity) State() State { return StateIdle }
