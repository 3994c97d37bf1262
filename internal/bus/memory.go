package bus

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Memory is the in-process bus used when the gateway owns its own event
// traffic. A single dispatch goroutine fans events out to subscribers, which
// keeps per-subscriber ordering identical to publish order.
type Memory struct {
	mu   sync.RWMutex
	subs map[int]func(Event)
	next int

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewMemory creates a running in-process bus.
func NewMemory() *Memory {
	m := &Memory{
		subs:   make(map[int]func(Event)),
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Memory) run() {
	for {
		select {
		case <-m.done:
			return
		case evt := <-m.events:
			m.mu.RLock()
			fns := make([]func(Event), 0, len(m.subs))
			for _, fn := range m.subs {
				fns = append(fns, fn)
			}
			m.mu.RUnlock()

			for _, fn := range fns {
				fn(evt)
			}
		}
	}
}

// Publish enqueues evt for dispatch. If the buffer is full the event is
// dropped; observers recover on the next event since payloads are re-read.
func (m *Memory) Publish(evt Event) {
	select {
	case <-m.done:
		return
	default:
	}

	select {
	case m.events <- evt:
	default:
		log.Warn().Str("timer_id", evt.TimerID).Msg("event buffer full, dropping event")
	}
}

// Subscribe registers fn and returns its unsubscribe function.
func (m *Memory) Subscribe(fn func(Event)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.next
	m.next++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}, nil
}

// Close stops the dispatch goroutine. Safe to call more than once.
func (m *Memory) Close() {
	m.once.Do(func() {
		close(m.done)
	})
}
