// Package schedule auto-activates triggers on cron expressions or fixed
// intervals. A schedule is optional sugar on top of the control API: it
// raises the same off-to-on edge an API caller would.
package schedule

import (
	"sync"

	"github.com/robfig/cron/v3"

	logx "triggerd/pkg/logx"
)

// Entry binds one trigger name to its schedule string.
type Entry struct {
	Name string
	Spec string
}

// Runner owns the cron instance. The entry set is rebuilt wholesale on
// every config reload; unlike entities, schedules do follow removals,
// since they only exist while declared.
type Runner struct {
	log      logx.Logger
	activate func(name string)
	parser   cron.Parser

	mu sync.Mutex
	c  *cron.Cron
}

// NewRunner creates a stopped runner. activate is called on the runner's
// goroutines each time an entry fires.
func NewRunner(activate func(name string), log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		log:      log,
		activate: activate,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Rebuild replaces the running entry set. Invalid specs are skipped with
// a warning so one bad schedule doesn't take down the rest.
func (r *Runner) Rebuild(entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.c != nil {
		ctx := r.c.Stop()
		<-ctx.Done()
		r.c = nil
	}
	if len(entries) == 0 {
		return
	}

	c := cron.New(cron.WithParser(r.parser))
	registered := 0
	for _, ent := range entries {
		name := ent.Name
		spec, err := ParseSpec(ent.Spec)
		if err != nil {
			r.log.Warn("schedule skipped",
				logx.String("trigger", name),
				logx.String("schedule", ent.Spec),
				logx.Err(err))
			continue
		}

		job := cron.FuncJob(func() {
			r.log.Debug("schedule fired", logx.String("trigger", name))
			r.activate(name)
		})

		switch spec.Kind {
		case SpecInterval:
			c.Schedule(cron.Every(spec.Every), job)
			registered++
		default:
			if _, err := c.AddJob(spec.Cron, job); err != nil {
				r.log.Warn("schedule skipped",
					logx.String("trigger", name),
					logx.String("schedule", ent.Spec),
					logx.Err(err))
				continue
			}
			registered++
		}
	}

	if registered == 0 {
		return
	}
	c.Start()
	r.c = c
	r.log.Info("schedules active", logx.Int("count", registered))
}

// Stop halts the cron instance and waits for in-flight jobs.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		ctx := r.c.Stop()
		<-ctx.Done()
		r.c = nil
	}
}
