// Package app wires the daemon together: config, logging, storage, the
// trigger registry, dispatchers, schedules, and the control API.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"triggerd/internal/api"
	"triggerd/internal/config"
	"triggerd/internal/eventbus"
	"triggerd/internal/registry"
	"triggerd/internal/runtime/supervisor"
	"triggerd/internal/schedule"
	"triggerd/internal/storage"
	"triggerd/internal/trigger"
	logx "triggerd/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	reg   *registry.Registry
	hub   *hub
	sched *schedule.Runner
	api   *api.Service
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Entity cache (optional). Without it, identities are still stable
	// (they derive from names) but host metadata does not survive restarts.
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	reg := registry.New(store, log.With(logx.String("comp", "registry")), bus)
	h := newHub(reg, log.With(logx.String("comp", "dispatch")), bus)

	ns, err := mapNotifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := h.configure(ns); err != nil {
		return nil, err
	}

	apiCfg, err := mapAPIConfig(cfg)
	if err != nil {
		return nil, err
	}
	apiSvc := api.New(apiCfg, h, log.With(logx.String("comp", "api")))

	schedRunner := schedule.NewRunner(func(name string) {
		if !h.Activate(name, true) {
			log.Warn("schedule fired for unknown trigger", logx.String("trigger", name))
		}
	}, log.With(logx.String("comp", "schedule")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		reg:     reg,
		hub:     h,
		sched:   schedRunner,
		api:     apiSvc,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal
// error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if _, err := mapNotifyConfig(cfg); err != nil {
			return err
		}
		if _, err := mapAPIConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	// Restore cached entities, then overlay the declared set.
	if err := a.reg.Restore(a.sup.Context()); err != nil {
		return fmt.Errorf("restore entities: %w", err)
	}
	cfg := a.cfgm.Get()
	a.reconcile(a.sup.Context(), cfg.Triggers)

	if a.api.Enabled() {
		a.api.Start(a.sup.Context())
	}

	// Event log for observability/debug.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.Int("triggers", len(cfg.Triggers)))
	return nil
}

// reconcile maps the declared definitions onto entities, attaches
// dispatchers to anything new, and rebuilds the schedule set.
//
// Dispatchers are attached for the full registry, not just the declared
// set: a restored entity whose declaration is gone must still activate
// with its last definition.
func (a *App) reconcile(ctx context.Context, declared []trigger.Definition) {
	a.reg.Reconcile(ctx, declared)
	a.hub.attach(a.reg.List())

	entries := make([]schedule.Entry, 0)
	for _, d := range declared {
		if strings.TrimSpace(d.Schedule) == "" {
			continue
		}
		if _, ok := a.reg.Get(d.Name); !ok {
			continue // skipped as invalid during reconciliation
		}
		entries = append(entries, schedule.Entry{Name: d.Name, Spec: d.Schedule})
	}
	a.sched.Rebuild(entries)
}

func (a *App) applyReload(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, triggersChanged := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		switch s {
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "logging":
			a.logs.Apply(logx.Config{
				Level:   newCfg.Logging.Level,
				Console: newCfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: newCfg.Logging.File.Enabled,
					Path:    newCfg.Logging.File.Path,
				},
			})
		case "notify":
			ns, err := mapNotifyConfig(newCfg)
			if err != nil {
				a.log.Warn("invalid notify config; keeping previous", logx.Any("err", err))
				continue
			}
			if err := a.hub.configure(ns); err != nil {
				a.log.Warn("notify reconfigure failed; keeping previous", logx.Any("err", err))
			}
		case "api":
			apiCfg, err := mapAPIConfig(newCfg)
			if err != nil {
				a.log.Warn("invalid api config; keeping previous", logx.Any("err", err))
				continue
			}
			a.api.Reconfigure(ctx, apiCfg)
		}
	}

	// Always re-run reconciliation: new and edited definitions take
	// effect, removed ones leave their entities alone.
	a.reconcile(ctx, newCfg.Triggers)
	if len(triggersChanged) > 0 {
		a.log.Info("trigger definitions updated", logx.Any("names", triggersChanged))
	}

	a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Run each shutdown step with an upper bound so one component can't
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.String("err", err.Error()))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("schedules", 2*time.Second, func(c context.Context) error { a.sched.Stop(); return nil })
	step("api", 2*time.Second, func(c context.Context) error { a.api.Stop(c); return nil })
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
