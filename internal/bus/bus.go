// Package bus carries timer change events from whatever mutates timer state to
// whatever observes it. Implementations must preserve per-subscriber event
// order; delivery is best-effort.
package bus

// EventKind discriminates the closed set of event variants.
type EventKind string

const (
	// KindTick signals that a timer's state changed and observers should be
	// sent a fresh snapshot.
	KindTick EventKind = "tick"

	// KindExpired signals that a timer record was dropped from the store.
	KindExpired EventKind = "expired"
)

// Event is a change notification for a single timer. It intentionally carries
// no payload beyond the id: consumers re-read authoritative state at handling
// time, since the event may be stale by then.
type Event struct {
	Kind    EventKind `json:"kind"`
	TimerID string    `json:"timer_id"`
}

// Bus is a publish/subscribe channel for timer events.
type Bus interface {
	// Publish delivers evt to all current subscribers. It must not block
	// the caller indefinitely.
	Publish(evt Event)

	// Subscribe registers fn for every subsequent event and returns an
	// unsubscribe function. fn is called from a single goroutine per
	// subscriber, so events arrive in publish order.
	Subscribe(fn func(Event)) (func(), error)

	// Close releases the bus. Publish and Subscribe are no-ops afterwards.
	Close()
}
