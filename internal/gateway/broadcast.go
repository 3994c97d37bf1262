package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mobdhq/mobd/internal/bus"
	"github.com/mobdhq/mobd/internal/timer"
)

// Broadcaster subscribes to the event bus and pushes fresh snapshots to every
// connection observing the changed timer.
type Broadcaster struct {
	store    *timer.Store
	registry *Registry
	events   bus.Bus
	unsub    func()
}

// NewBroadcaster wires the fan-out path.
func NewBroadcaster(store *timer.Store, registry *Registry, events bus.Bus) *Broadcaster {
	return &Broadcaster{store: store, registry: registry, events: events}
}

// Start subscribes to the bus.
func (b *Broadcaster) Start() error {
	unsub, err := b.events.Subscribe(b.handle)
	if err != nil {
		return fmt.Errorf("subscribe broadcaster: %w", err)
	}
	b.unsub = unsub
	return nil
}

// Stop unsubscribes. Safe to call more than once.
func (b *Broadcaster) Stop() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
}

// handle processes one bus event. The payload is re-read from the store at
// send time; the event only names the timer, since it may be stale by now.
// A timer that expired between publish and handling produces no message.
func (b *Broadcaster) handle(evt bus.Event) {
	if evt.Kind != bus.KindTick {
		return
	}

	view, ok := b.store.View(evt.TimerID)
	if !ok {
		return
	}

	data, err := json.Marshal(wsMessage{Type: messageTypeTick, State: view})
	if err != nil {
		log.Error().Err(err).Str("timer_id", evt.TimerID).Msg("failed to marshal tick")
		return
	}

	sent := 0
	b.registry.ForEach(evt.TimerID, func(c *Conn) {
		if !c.trySend(data) {
			// Slow or vanished peer. Close it and move on; the other
			// observers still get their message.
			log.Warn().Str("connection_id", c.id).Msg("send failed, closing connection")
			c.shutdown()
			return
		}
		sent++
	})

	log.Debug().
		Str("timer_id", evt.TimerID).
		Int("connections", sent).
		Msg("tick broadcast")
}
