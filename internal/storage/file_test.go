package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	logx "triggerd/pkg/logx"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	meta := json.RawMessage(`{"room":"Hallway","favorite":true}`)
	rec := EntityRecord{
		ID:       "id-1",
		Name:     "Doorbell",
		Context:  json.RawMessage(`{"name":"Doorbell","target_id":"ABC12345","token":"T","text":"Hi"}`),
		Metadata: meta,
	}
	if err := st.PutEntity(context.Background(), rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen: snapshot + journal replay must restore the record.
	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	got, ok, err := st2.GetEntity(context.Background(), "id-1")
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if got.Name != "Doorbell" {
		t.Fatalf("unexpected name %q", got.Name)
	}
	// Host metadata is opaque and must survive byte-for-byte.
	if !bytes.Equal(got.Metadata, meta) {
		t.Fatalf("metadata changed: %s", got.Metadata)
	}

	list, err := st2.ListEntities(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(list))
	}
}

func TestFileStoreLastWriteWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	for _, text := range []string{"one", "two", "three"} {
		rec := EntityRecord{ID: "id-1", Name: "Doorbell", Context: json.RawMessage(`{"text":"` + text + `"}`)}
		if err := st.PutEntity(context.Background(), rec); err != nil {
			t.Fatalf("put %q: %v", text, err)
		}
	}

	got, ok, _ := st.GetEntity(context.Background(), "id-1")
	if !ok {
		t.Fatalf("missing record")
	}
	if string(got.Context) != `{"text":"three"}` {
		t.Fatalf("expected newest context, got %s", got.Context)
	}
}

func TestOpenDisabled(t *testing.T) {
	st, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil store for disabled driver")
	}

	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
