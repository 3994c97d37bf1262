package gateway

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func newPoolConn(r *Registry, token, timerID string, closed *atomic.Int32) *Conn {
	return newConn(nil, token, timerID, r, func(*Conn) {
		if closed != nil {
			closed.Add(1)
		}
	})
}

func TestRegistryRegisterDeregister(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(DefaultConnConfig())

	c1 := newPoolConn(r, "tok-1", "alpha", nil)
	c2 := newPoolConn(r, "tok-2", "alpha", nil)
	r.Register(c1)
	r.Register(c2)
	req.Equal(2, r.Count("alpha"))

	req.True(r.Deregister(c1))
	req.Equal(1, r.Count("alpha"))

	// Deregistration is idempotent: a late close event is a no-op.
	req.False(r.Deregister(c1))
	req.Equal(1, r.Count("alpha"))

	req.True(r.Deregister(c2))
	req.Equal(0, r.Count("alpha"))
	req.False(r.Deregister(c2))
}

func TestRegistryForEachScopedToTimer(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(DefaultConnConfig())

	a1 := newPoolConn(r, "tok-a1", "alpha", nil)
	a2 := newPoolConn(r, "tok-a2", "alpha", nil)
	b1 := newPoolConn(r, "tok-b1", "beta", nil)
	for _, c := range []*Conn{a1, a2, b1} {
		r.Register(c)
	}

	var visited []*Conn
	r.ForEach("alpha", func(c *Conn) { visited = append(visited, c) })
	req.ElementsMatch([]*Conn{a1, a2}, visited)

	visited = nil
	r.ForEach("gamma", func(c *Conn) { visited = append(visited, c) })
	req.Empty(visited)
}

func TestConnShutdownExactlyOnce(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(DefaultConnConfig())

	var closed atomic.Int32
	c := newPoolConn(r, "tok-1", "alpha", &closed)
	r.Register(c)

	// Close can race in from the reader pump, the writer pump and
	// teardown; the token-revocation hook must still fire once.
	c.shutdown()
	c.shutdown()
	r.CloseAll()

	req.Equal(int32(1), closed.Load())
	req.Equal(0, r.Count("alpha"))
}

func TestConnTrySend(t *testing.T) {
	req := require.New(t)
	cfg := DefaultConnConfig()
	cfg.SendBuffer = 1
	r := NewRegistry(cfg)

	c := newPoolConn(r, "tok-1", "alpha", nil)
	req.True(c.trySend([]byte("one")))
	req.False(c.trySend([]byte("two")), "full buffer must not block")

	c.shutdown()
	req.False(c.trySend([]byte("three")), "closed connection rejects sends")
}

func TestCloseAllEmptiesEveryPool(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(DefaultConnConfig())

	var closed atomic.Int32
	for _, id := range []string{"alpha", "alpha", "beta"} {
		c := newPoolConn(r, "tok-"+id, id, &closed)
		r.Register(c)
	}

	r.CloseAll()
	req.Equal(int32(3), closed.Load())
	req.Equal(0, r.Count("alpha"))
	req.Equal(0, r.Count("beta"))
}
