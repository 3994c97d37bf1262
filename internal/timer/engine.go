package timer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/mobdhq/mobd/internal/bus"
)

// Engine applies actions to the store and publishes a change event for every
// successful mutation. It also owns the countdown: while a timer is running,
// its remaining time is decremented once per second and observers are ticked.
type Engine struct {
	store  *Store
	events bus.Bus
	clock  clockwork.Clock
}

// NewEngine wires the engine to its store and event bus.
func NewEngine(store *Store, events bus.Bus, clock clockwork.Clock) *Engine {
	return &Engine{store: store, events: events, clock: clock}
}

// Dispatch applies action to the timer identified by id. On success a tick
// event is published so observers receive a fresh snapshot. Dispatching
// against a missing timer returns ErrNotFound and publishes nothing.
func (e *Engine) Dispatch(ctx context.Context, id string, action Action) error {
	var applyErr error
	ok := e.store.Update(id, func(t *Timer) {
		applyErr = apply(t, action)
	})
	if !ok {
		return fmt.Errorf("dispatch %T: %w", action, ErrNotFound)
	}
	if applyErr != nil {
		return applyErr
	}

	e.events.Publish(bus.Event{Kind: bus.KindTick, TimerID: id})
	return nil
}

func apply(t *Timer, action Action) error {
	switch a := action.(type) {
	case Start:
		seconds := max(a.Seconds, 0)
		t.Duration = seconds
		t.Remaining = seconds
		t.Running = seconds > 0
	case Pause:
		t.Running = false
	case Reset:
		t.Running = false
		t.Remaining = t.Duration
	case MobAdd:
		if lo.Contains(t.Mob, a.Name) {
			return fmt.Errorf("add %q: %w", a.Name, ErrDuplicateName)
		}
		t.Mob = append(t.Mob, a.Name)
	case MobRemove:
		t.Mob = slices.DeleteFunc(t.Mob, func(name string) bool {
			return name == a.Name
		})
	case MobCycle:
		cycleMob(t)
	case MobShuffle:
		lo.Shuffle(t.Mob)
	case TokenAdd:
		t.Tokens = append(t.Tokens, a.Token)
	case TokenRemove:
		t.Tokens = slices.DeleteFunc(t.Tokens, func(tok string) bool {
			return tok == a.Token
		})
	case Keepalive:
		// Update already refreshed the activity deadline.
	default:
		return fmt.Errorf("unknown action %T", action)
	}
	return nil
}

func cycleMob(t *Timer) {
	if len(t.Mob) > 1 {
		t.Mob = append(t.Mob[1:], t.Mob[0])
	}
}

// Run drives every running countdown until ctx is cancelled. One shared
// ticker covers all timers; a second is coarse enough that per-timer tickers
// would buy nothing.
func (e *Engine) Run(ctx context.Context) {
	ticker := e.clock.NewTicker(time.Second)
	defer ticker.Stop()

	log.Info().Msg("countdown engine started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("countdown engine stopped")
			return
		case <-ticker.Chan():
			e.step()
		}
	}
}

// step advances every running timer by one second.
func (e *Engine) step() {
	for id, t := range e.store.Snapshot() {
		if !t.Running {
			continue
		}
		e.store.Update(id, func(t *Timer) {
			if !t.Running {
				return
			}
			t.Remaining--
			if t.Remaining <= 0 {
				t.Remaining = 0
				t.Running = false
				// Countdown finished: hand off to the next driver.
				cycleMob(t)
			}
		})
		e.events.Publish(bus.Event{Kind: bus.KindTick, TimerID: id})
	}
}
