package registry

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"triggerd/internal/eventbus"
	"triggerd/internal/storage"
	"triggerd/internal/trigger"
	logx "triggerd/pkg/logx"
)

func validDef(name string) trigger.Definition {
	return trigger.Definition{Name: name, TargetID: "ABC12345", Token: "T", Text: "Hi"}
}

func TestIdentifierDeterministic(t *testing.T) {
	a := Identifier("Doorbell")
	b := Identifier("Doorbell")
	if a != b {
		t.Fatalf("identifier not stable: %s != %s", a, b)
	}
	if a == Identifier("Garage") {
		t.Fatalf("distinct names produced the same identifier")
	}
}

func drainRegistered(ch <-chan eventbus.Event) int {
	n := 0
	for {
		select {
		case e := <-ch:
			if e.Type == eventbus.TypeTriggerRegistered {
				n++
			}
		case <-time.After(50 * time.Millisecond):
			return n
		}
	}
}

func TestReconcileCreatesOncePerDefinition(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	r := New(nil, logx.Nop(), bus)
	ents := r.Reconcile(context.Background(), []trigger.Definition{validDef("Doorbell"), validDef("Garage")})
	if len(ents) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(ents))
	}
	if got := drainRegistered(events); got != 2 {
		t.Fatalf("expected 2 registration signals, got %d", got)
	}
}

func TestReconcileReusesKnownEntity(t *testing.T) {
	bus := eventbus.New()
	r := New(nil, logx.Nop(), bus)

	first := r.Reconcile(context.Background(), []trigger.Definition{validDef("Doorbell")})

	events, unsub := bus.Subscribe(16)
	defer unsub()

	updated := validDef("Doorbell")
	updated.Text = "Ding dong"
	second := r.Reconcile(context.Background(), []trigger.Definition{updated})

	if first[0] != second[0] {
		t.Fatalf("expected the same entity instance to be reused")
	}
	if second[0].Definition().Text != "Ding dong" {
		t.Fatalf("definition was not replaced on reuse")
	}
	if got := drainRegistered(events); got != 0 {
		t.Fatalf("reuse must not signal registration, got %d", got)
	}
}

func TestReconcileSkipsInvalidIndividually(t *testing.T) {
	r := New(nil, logx.Nop(), nil)

	bad := validDef("NoText")
	bad.Text = ""
	defs := []trigger.Definition{validDef("A"), bad, validDef("B")}

	ents := r.Reconcile(context.Background(), defs)
	if len(ents) != 2 {
		t.Fatalf("expected 2 valid entities, got %d", len(ents))
	}
	if ents[0].Name != "A" || ents[1].Name != "B" {
		t.Fatalf("declaration order not preserved: %s, %s", ents[0].Name, ents[1].Name)
	}
	if _, ok := r.Get("NoText"); ok {
		t.Fatalf("invalid definition must not create an entity")
	}
}

func TestReconcileIsAdditiveOnly(t *testing.T) {
	r := New(nil, logx.Nop(), nil)

	r.Reconcile(context.Background(), []trigger.Definition{validDef("Doorbell"), validDef("Garage")})
	r.Reconcile(context.Background(), []trigger.Definition{validDef("Doorbell")})

	if _, ok := r.Get("Garage"); !ok {
		t.Fatalf("undeclared entity must remain known")
	}
	if len(r.List()) != 2 {
		t.Fatalf("expected 2 known entities, got %d", len(r.List()))
	}
}

func TestReconcileKeepsMetadataAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	st, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	r := New(st, logx.Nop(), nil)
	ents := r.Reconcile(context.Background(), []trigger.Definition{validDef("Doorbell")})
	id := ents[0].ID

	// Simulate the host attaching metadata after registration.
	ents[0].SetMetadata(json.RawMessage(`{"room":"Hallway"}`))
	r.persist(context.Background(), ents[0])
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// New process: restore cache, reconcile the same declaration.
	st2, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st2.Close()

	r2 := New(st2, logx.Nop(), nil)
	if err := r2.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	ents2 := r2.Reconcile(context.Background(), []trigger.Definition{validDef("Doorbell")})

	if ents2[0].ID != id {
		t.Fatalf("identity changed across restart: %s != %s", ents2[0].ID, id)
	}
	if string(ents2[0].Metadata()) != `{"room":"Hallway"}` {
		t.Fatalf("metadata lost across reconcile: %s", ents2[0].Metadata())
	}
}

func TestReconcileIdempotent(t *testing.T) {
	r := New(nil, logx.Nop(), nil)
	defs := []trigger.Definition{validDef("Doorbell")}

	a := r.Reconcile(context.Background(), defs)
	b := r.Reconcile(context.Background(), defs)

	if a[0] != b[0] || len(r.List()) != 1 {
		t.Fatalf("reconcile with identical input must be idempotent")
	}
}
