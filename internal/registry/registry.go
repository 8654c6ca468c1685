// Package registry maps declared trigger definitions onto stable runtime
// entities.
//
// Reconciliation is additive-only: entities whose declaration disappears
// from config are left registered (and keep their host metadata) so that a
// temporarily commented-out trigger never loses its placement. This mirrors
// how accessory hosts treat cached devices.
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"triggerd/internal/eventbus"
	"triggerd/internal/storage"
	"triggerd/internal/trigger"
	logx "triggerd/pkg/logx"
)

type Registry struct {
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store // may be nil (no persistence)

	mu     sync.RWMutex
	byID   map[string]*trigger.Entity
	byName map[string]*trigger.Entity
}

func New(store storage.Store, log logx.Logger, bus eventbus.Bus) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		log:    log,
		bus:    bus,
		store:  store,
		byID:   map[string]*trigger.Entity{},
		byName: map[string]*trigger.Entity{},
	}
}

// Restore loads the cached entity set from the store. Call once before the
// first Reconcile so cached identities (and their metadata) are reused
// instead of recreated.
func (r *Registry) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	recs, err := r.store.ListEntities(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		var def trigger.Definition
		if len(rec.Context) > 0 {
			if err := json.Unmarshal(rec.Context, &def); err != nil {
				r.log.Warn("cached entity has unreadable context; keeping identity only",
					logx.String("id", rec.ID), logx.String("name", rec.Name), logx.Err(err))
			}
		}
		if def.Name == "" {
			def.Name = rec.Name
		}
		ent := trigger.NewEntity(rec.ID, def)
		ent.SetMetadata(rec.Metadata)
		r.byID[rec.ID] = ent
		r.byName[ent.Name] = ent
	}
	r.log.Debug("entity cache restored", logx.Int("entities", len(recs)))
	return nil
}

// Reconcile maps declared definitions onto entities, in declaration order.
//
// Per definition: validate (skip and diagnose invalid ones individually),
// derive the identifier, then either reuse the known entity (definition
// replaced wholesale, metadata untouched) or create a new one and signal
// the registration. Entities that are known but no longer declared are left
// alone. The operation is idempotent for identical input.
func (r *Registry) Reconcile(ctx context.Context, declared []trigger.Definition) []*trigger.Entity {
	out := make([]*trigger.Entity, 0, len(declared))

	for _, def := range declared {
		if err := def.Validate(); err != nil {
			r.log.Warn("skipping invalid trigger definition", logx.Err(err))
			continue
		}

		id := Identifier(def.Name)

		r.mu.Lock()
		ent, known := r.byID[id]
		if known {
			ent.SetDefinition(def)
		} else {
			ent = trigger.NewEntity(id, def)
			r.byID[id] = ent
			r.byName[def.Name] = ent
		}
		r.mu.Unlock()

		if known {
			r.log.Debug("trigger reused", logx.String("name", def.Name), logx.String("id", id))
		} else {
			r.log.Info("trigger registered",
				logx.String("name", def.Name),
				logx.String("id", id),
				logx.String("target", def.TargetID),
				logx.String("token", trigger.RedactToken(def.Token)),
			)
			if r.bus != nil {
				r.bus.Publish(eventbus.Event{
					Type: eventbus.TypeTriggerRegistered,
					Data: eventbus.TriggerEvent{Name: def.Name, ID: id, TargetID: def.TargetID, At: time.Now()},
				})
			}
		}

		r.persist(ctx, ent)
		out = append(out, ent)
	}

	return out
}

// persist is best-effort: a failed write never blocks reconciliation.
func (r *Registry) persist(ctx context.Context, ent *trigger.Entity) {
	if r.store == nil {
		return
	}
	def := ent.Definition()
	blob, err := json.Marshal(def)
	if err != nil {
		r.log.Warn("entity context marshal failed", logx.String("name", ent.Name), logx.Err(err))
		return
	}
	rec := storage.EntityRecord{
		ID:       ent.ID,
		Name:     ent.Name,
		Context:  blob,
		Metadata: ent.Metadata(),
	}
	if err := r.store.PutEntity(ctx, rec); err != nil {
		r.log.Warn("entity persist failed", logx.String("name", ent.Name), logx.Err(err))
	}
}

// Get looks an entity up by trigger name.
func (r *Registry) Get(name string) (*trigger.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ent, ok := r.byName[name]
	return ent, ok
}

// GetByID looks an entity up by its stable identifier.
func (r *Registry) GetByID(id string) (*trigger.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ent, ok := r.byID[id]
	return ent, ok
}

// List returns all known entities, declared or not.
func (r *Registry) List() []*trigger.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*trigger.Entity, 0, len(r.byID))
	for _, ent := range r.byID {
		out = append(out, ent)
	}
	return out
}
