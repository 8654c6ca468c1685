// Package dispatch turns trigger activations into outbound
// notifications. Each activation fires exactly one HTTP POST and arms
// an independent reset timer; neither waits on the other, and a failed
// delivery never delays or cancels the reset.
package dispatch

import (
	"context"
	"time"

	"triggerd/internal/eventbus"
	"triggerd/internal/trigger"
	logx "triggerd/pkg/logx"
)

// DefaultResetDelay is how long a trigger stays in its internal active
// phase before snapping back to idle.
const DefaultResetDelay = 1000 * time.Millisecond

// Dispatcher binds one trigger entity to the sender. Activations are
// fire-and-forget: Activate returns immediately, delivery and reset run
// on their own goroutines.
type Dispatcher struct {
	ent    *trigger.Entity
	sender *Sender
	log    logx.Logger
	bus    eventbus.Bus

	resetDelay time.Duration
}

type Option func(*Dispatcher)

// WithResetDelay overrides the active-phase duration. Intended for
// tests; production triggers always use DefaultResetDelay.
func WithResetDelay(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.resetDelay = d
		}
	}
}

func New(ent *trigger.Entity, sender *Sender, log logx.Logger, bus eventbus.Bus, opts ...Option) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	dp := &Dispatcher{
		ent:        ent,
		sender:     sender,
		log:        log.With(logx.String("trigger", ent.Name), logx.String("trigger_id", ent.ID)),
		bus:        bus,
		resetDelay: DefaultResetDelay,
	}
	for _, o := range opts {
		o(dp)
	}
	return dp
}

// Activate processes one set-state command. Only the off-to-on edge
// does anything: "off" is acknowledged and dropped, since triggers
// reset themselves on a timer rather than on command.
func (dp *Dispatcher) Activate(on bool) {
	if !on {
		dp.log.Debug("off command ignored")
		return
	}

	prev := dp.ent.EnterActive()
	dp.log.Info("trigger activated", logx.String("previous_phase", string(prev)))
	dp.publish(eventbus.TypeTriggerActivated, "")

	// Delivery and reset are deliberately independent. The notification
	// goroutine may still be waiting on the remote when the reset timer
	// fires, and the trigger must accept a new activation at that point.
	go dp.dispatchOnce()
	time.AfterFunc(dp.resetDelay, dp.reset)
}

func (dp *Dispatcher) dispatchOnce() {
	def := dp.ent.Definition()

	// Background context on purpose: a dispatch in flight outlives any
	// caller and is never cancelled by the reset.
	att := dp.sender.Send(context.Background(), def)

	switch att.Outcome {
	case OutcomeDelivered:
		dp.log.Info("notification delivered",
			logx.String("target", def.TargetID),
			logx.Int("status", att.Status))
		dp.publish(eventbus.TypeDispatchDelivered, "")
	case OutcomeRejected:
		dp.log.Warn("notification rejected",
			logx.String("target", def.TargetID),
			logx.Int("status", att.Status),
			logx.String("reason", att.Reason))
		dp.publish(eventbus.TypeDispatchRejected, att.Reason)
	default:
		dp.log.Warn("notification failed",
			logx.String("target", def.TargetID),
			logx.String("reason", att.Reason))
		dp.publish(eventbus.TypeDispatchFailed, att.Reason)
	}
}

func (dp *Dispatcher) reset() {
	dp.ent.ResetIdle()
	dp.log.Debug("trigger reset to idle")
	dp.publish(eventbus.TypeTriggerReset, "")
}

func (dp *Dispatcher) publish(typ string, detail string) {
	if dp.bus == nil {
		return
	}
	def := dp.ent.Definition()
	dp.bus.Publish(eventbus.Event{
		Type: typ,
		Data: eventbus.TriggerEvent{
			Name:     dp.ent.Name,
			ID:       dp.ent.ID,
			TargetID: def.TargetID,
			Detail:   detail,
			At:       time.Now(),
		},
	})
}
