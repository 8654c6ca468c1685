package app

import (
	"sort"
	"sync"

	"triggerd/internal/api"
	"triggerd/internal/dispatch"
	"triggerd/internal/eventbus"
	"triggerd/internal/registry"
	"triggerd/internal/trigger"
	logx "triggerd/pkg/logx"
)

// hub binds reconciled entities to their dispatchers and serves as the
// control API's view of the trigger set. It is the one place that knows
// both the registry and the dispatch layer.
type hub struct {
	reg *registry.Registry
	log logx.Logger
	bus eventbus.Bus

	mu          sync.RWMutex
	sender      *dispatch.Sender
	settings    notifySettings
	dispatchers map[string]*dispatch.Dispatcher
}

func newHub(reg *registry.Registry, log logx.Logger, bus eventbus.Bus) *hub {
	return &hub{
		reg:         reg,
		log:         log,
		bus:         bus,
		dispatchers: make(map[string]*dispatch.Dispatcher),
	}
}

// configure swaps the sender settings. Existing dispatchers are rebuilt
// so edits to the endpoint or reset delay apply to every trigger, not
// just new ones.
func (h *hub) configure(ns notifySettings) error {
	sender, err := dispatch.NewSender(ns.baseURL, ns.requestTimeout, h.log.With(logx.String("comp", "sender")))
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sender = sender
	h.settings = ns
	for name := range h.dispatchers {
		ent, ok := h.reg.Get(name)
		if !ok {
			continue
		}
		h.dispatchers[name] = h.newDispatcherLocked(ent)
	}
	return nil
}

// attach ensures each entity has a dispatcher. Entities keep their
// existing dispatcher across reloads; only new names get one.
func (h *hub) attach(ents []*trigger.Entity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ent := range ents {
		if _, ok := h.dispatchers[ent.Name]; ok {
			continue
		}
		h.dispatchers[ent.Name] = h.newDispatcherLocked(ent)
	}
}

func (h *hub) newDispatcherLocked(ent *trigger.Entity) *dispatch.Dispatcher {
	return dispatch.New(ent, h.sender, h.log, h.bus,
		dispatch.WithResetDelay(h.settings.resetDelay))
}

// Activate raises the set-state edge for one trigger. Unknown names
// report false; schedules and API callers both land here.
func (h *hub) Activate(name string, on bool) bool {
	h.mu.RLock()
	dp, ok := h.dispatchers[name]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	dp.Activate(on)
	return true
}

func (h *hub) Get(name string) (api.TriggerView, bool) {
	ent, ok := h.reg.Get(name)
	if !ok {
		return api.TriggerView{}, false
	}
	return viewOf(ent), true
}

func (h *hub) List() []api.TriggerView {
	ents := h.reg.List()
	views := make([]api.TriggerView, 0, len(ents))
	for _, ent := range ents {
		views = append(views, viewOf(ent))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}

func viewOf(ent *trigger.Entity) api.TriggerView {
	def := ent.Definition()
	return api.TriggerView{
		ID:       ent.ID,
		Name:     ent.Name,
		TargetID: def.TargetID,
		State:    string(ent.State()),
		Token:    trigger.RedactToken(def.Token),
		Title:    def.Title,
		Schedule: def.Schedule,
	}
}
