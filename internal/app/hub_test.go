package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"triggerd/internal/eventbus"
	"triggerd/internal/registry"
	"triggerd/internal/storage"
	"triggerd/internal/trigger"
	logx "triggerd/pkg/logx"
)

func newTestHub(t *testing.T, baseURL string) (*hub, *registry.Registry) {
	t.Helper()
	reg := registry.New(nil, logx.Nop(), eventbus.New())
	h := newHub(reg, logx.Nop(), nil)
	err := h.configure(notifySettings{
		baseURL:        baseURL,
		requestTimeout: 2 * time.Second,
		resetDelay:     20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	return h, reg
}

func TestHubActivateDispatches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, reg := newTestHub(t, srv.URL)
	ents := reg.Reconcile(context.Background(), []trigger.Definition{
		{Name: "doorbell", TargetID: "phone-1", Token: "tok", Text: "Hi"},
	})
	h.attach(ents)

	if !h.Activate("doorbell", true) {
		t.Fatal("Activate returned false for known trigger")
	}
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hits.Load() != 1 {
		t.Fatalf("remote hit %d times", hits.Load())
	}

	if h.Activate("ghost", true) {
		t.Fatal("Activate returned true for unknown trigger")
	}
}

func TestHubViewsAlwaysIdle(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	h, reg := newTestHub(t, srv.URL)
	h.attach(reg.Reconcile(context.Background(), []trigger.Definition{
		{Name: "b", TargetID: "t", Token: "super-secret", Text: "x"},
		{Name: "a", TargetID: "t", Token: "super-secret", Text: "x"},
	}))

	h.Activate("a", true)

	view, ok := h.Get("a")
	if !ok {
		t.Fatal("Get failed")
	}
	if view.State != "idle" {
		t.Fatalf("state = %q mid-dispatch, must read idle", view.State)
	}
	if strings.Contains(view.Token, "secret") {
		t.Fatalf("view exposes raw token: %q", view.Token)
	}

	views := h.List()
	if len(views) != 2 || views[0].Name != "a" || views[1].Name != "b" {
		t.Fatalf("List() = %+v, want sorted by name", views)
	}
}

func TestHubReconfigureKeepsEntities(t *testing.T) {
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer first.Close()

	var hits atomic.Int32
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer second.Close()

	h, reg := newTestHub(t, first.URL)
	h.attach(reg.Reconcile(context.Background(), []trigger.Definition{
		{Name: "doorbell", TargetID: "t", Token: "k", Text: "x"},
	}))

	// Point at the second endpoint; existing triggers must follow.
	if err := h.configure(notifySettings{
		baseURL:        second.URL,
		requestTimeout: 2 * time.Second,
		resetDelay:     20 * time.Millisecond,
	}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	h.Activate("doorbell", true)
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hits.Load() != 1 {
		t.Fatalf("second endpoint hit %d times after reconfigure", hits.Load())
	}
}

func TestRestoredUndeclaredTriggerStillActivates(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "entities.db")
	open := func() storage.Store {
		t.Helper()
		st, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		return st
	}

	st := open()
	reg := registry.New(st, logx.Nop(), eventbus.New())
	reg.Reconcile(context.Background(), []trigger.Definition{
		{Name: "doorbell", TargetID: "phone-1", Token: "tok", Text: "Hi"},
	})
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Restart: the store still knows the entity, the config no longer
	// declares it.
	st = open()
	defer st.Close()
	reg = registry.New(st, logx.Nop(), eventbus.New())
	if err := reg.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}

	h := newHub(reg, logx.Nop(), nil)
	err := h.configure(notifySettings{
		baseURL:        srv.URL,
		requestTimeout: 2 * time.Second,
		resetDelay:     20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	reg.Reconcile(context.Background(), nil)
	h.attach(reg.List())

	if !h.Activate("doorbell", true) {
		t.Fatal("restored trigger not activatable after its declaration was removed")
	}
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hits.Load() != 1 {
		t.Fatalf("remote hit %d times, want 1", hits.Load())
	}
}
