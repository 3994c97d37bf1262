package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryDeliversInPublishOrder(t *testing.T) {
	req := require.New(t)
	m := NewMemory()
	defer m.Close()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	unsub, err := m.Subscribe(func(evt Event) {
		mu.Lock()
		got = append(got, evt.TimerID)
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
	})
	req.NoError(err)
	defer unsub()

	m.Publish(Event{Kind: KindTick, TimerID: "a"})
	m.Publish(Event{Kind: KindTick, TimerID: "b"})
	m.Publish(Event{Kind: KindTick, TimerID: "c"})

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("events not delivered in time")
	}

	mu.Lock()
	defer mu.Unlock()
	req.Equal([]string{"a", "b", "c"}, got)
}

func TestMemoryUnsubscribeStopsDelivery(t *testing.T) {
	req := require.New(t)
	m := NewMemory()
	defer m.Close()

	first := make(chan Event, 8)
	second := make(chan Event, 8)

	unsub, err := m.Subscribe(func(evt Event) { first <- evt })
	req.NoError(err)
	_, err = m.Subscribe(func(evt Event) { second <- evt })
	req.NoError(err)

	unsub()
	m.Publish(Event{Kind: KindTick, TimerID: "a"})

	select {
	case <-second:
	case <-time.After(time.Second):
		req.Fail("remaining subscriber did not receive event")
	}

	select {
	case <-first:
		req.Fail("unsubscribed handler still received event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryPublishAfterClose(t *testing.T) {
	m := NewMemory()
	m.Close()
	m.Close() // idempotent

	// Must not panic or block.
	m.Publish(Event{Kind: KindTick, TimerID: "a"})
}
