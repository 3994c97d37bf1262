package gateway

import (
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mobdhq/mobd/internal/bus"
	"github.com/mobdhq/mobd/internal/timer"
)

func newBroadcastFixture(t *testing.T) (*Broadcaster, *timer.Store, *Registry) {
	t.Helper()
	store := timer.NewStore(clockwork.NewFakeClock(), 0)
	cfg := DefaultConnConfig()
	cfg.SendBuffer = 4
	registry := NewRegistry(cfg)
	events := bus.NewMemory()
	t.Cleanup(events.Close)
	return NewBroadcaster(store, registry, events), store, registry
}

func drain(c *Conn) []byte {
	select {
	case data := <-c.send:
		return data
	default:
		return nil
	}
}

func TestBroadcastFansOutToTimerPoolOnly(t *testing.T) {
	req := require.New(t)
	b, store, registry := newBroadcastFixture(t)
	store.Ensure("alpha")
	store.Update("alpha", func(tm *timer.Timer) {
		tm.Tokens = []string{"tok-1", "tok-2", "tok-3"}
		tm.Mob = []string{"ann"}
	})
	store.Ensure("beta")

	var alphaConns []*Conn
	for _, tok := range []string{"tok-1", "tok-2", "tok-3"} {
		c := newPoolConn(registry, tok, "alpha", nil)
		registry.Register(c)
		alphaConns = append(alphaConns, c)
	}
	other := newPoolConn(registry, "tok-b", "beta", nil)
	registry.Register(other)

	b.handle(bus.Event{Kind: bus.KindTick, TimerID: "alpha"})

	var payloads []string
	for _, c := range alphaConns {
		data := drain(c)
		req.NotNil(data, "every observer of alpha gets the tick")
		payloads = append(payloads, string(data))
	}
	req.Equal(payloads[0], payloads[1])
	req.Equal(payloads[1], payloads[2], "all observers get the identical serialized view")
	req.Nil(drain(other), "observers of other timers get nothing")

	var msg wsMessage
	req.NoError(json.Unmarshal([]byte(payloads[0]), &msg))
	req.Equal(messageTypeTick, msg.Type)
	req.Empty(msg.Token)
	req.Equal(3, msg.State.Connections)
	req.Equal([]string{"ann"}, msg.State.Mob)
}

func TestBroadcastSkipsExpiredTimer(t *testing.T) {
	req := require.New(t)
	b, _, registry := newBroadcastFixture(t)

	c := newPoolConn(registry, "tok-1", "gone", nil)
	registry.Register(c)

	// The event may be stale by send time; a vanished record means silence.
	b.handle(bus.Event{Kind: bus.KindTick, TimerID: "gone"})
	req.Nil(drain(c))
}

func TestBroadcastIgnoresNonTickEvents(t *testing.T) {
	req := require.New(t)
	b, store, registry := newBroadcastFixture(t)
	store.Ensure("alpha")

	c := newPoolConn(registry, "tok-1", "alpha", nil)
	registry.Register(c)

	b.handle(bus.Event{Kind: bus.KindExpired, TimerID: "alpha"})
	req.Nil(drain(c))
}

func TestBroadcastIsolatesFailingConnection(t *testing.T) {
	req := require.New(t)
	b, store, registry := newBroadcastFixture(t)
	store.Ensure("alpha")

	var closed atomic.Int32
	healthy1 := newPoolConn(registry, "tok-1", "alpha", nil)
	stuck := newConn(nil, "tok-2", "alpha", registry, func(*Conn) { closed.Add(1) })
	healthy2 := newPoolConn(registry, "tok-3", "alpha", nil)
	for _, c := range []*Conn{healthy1, stuck, healthy2} {
		registry.Register(c)
	}

	// Fill the stuck connection's buffer so the next send fails.
	for stuck.trySend([]byte("x")) {
	}

	b.handle(bus.Event{Kind: bus.KindTick, TimerID: "alpha"})

	req.NotNil(drain(healthy1), "healthy peers still receive their message")
	req.NotNil(drain(healthy2), "healthy peers still receive their message")
	req.Equal(int32(1), closed.Load(), "failing connection is closed")
	req.Equal(2, registry.Count("alpha"))
}
