package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnConfig holds per-connection WebSocket settings.
type ConnConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnConfig returns the default WebSocket settings.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512, // the protocol is receive-only, clients send nothing
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      32,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Conn is one live observer socket. The token and timer id are fixed at
// handshake time and never change for the life of the connection.
type Conn struct {
	id      string
	token   string
	timerID string

	ws       *websocket.Conn
	send     chan []byte
	done     chan struct{}
	registry *Registry
	onClose  func(*Conn)

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, token, timerID string, registry *Registry, onClose func(*Conn)) *Conn {
	return &Conn{
		id:       timerID + "/" + token,
		token:    token,
		timerID:  timerID,
		ws:       ws,
		send:     make(chan []byte, registry.config.SendBuffer),
		done:     make(chan struct{}),
		registry: registry,
		onClose:  onClose,
	}
}

// Token returns the credential minted for this connection.
func (c *Conn) Token() string { return c.token }

// TimerID returns the timer this connection observes.
func (c *Conn) TimerID() string { return c.timerID }

// trySend enqueues data for the writer without blocking. It reports false if
// the connection is closed or its buffer is full.
func (c *Conn) trySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown tears the connection down exactly once: deregister, close the
// socket, then fire the close hook. Safe to call from any code path,
// including after the registry was already cleared.
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.registry.Deregister(c)
		if c.ws != nil {
			c.ws.Close()
		}
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

// start runs the read and write pumps.
func (c *Conn) start() {
	go c.writePump()
	go c.readPump()
}

func (c *Conn) writePump() {
	cfg := c.registry.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Str("connection_id", c.id).Msg("failed to write to WebSocket")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the socket so close frames and pongs are processed. The
// protocol is receive-only; client payloads are discarded.
func (c *Conn) readPump() {
	cfg := c.registry.config
	defer c.shutdown()

	c.ws.SetReadLimit(cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.id).Msg("unexpected WebSocket close")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}

// Registry tracks every live connection, indexed by the timer it observes.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]map[*Conn]bool
	config ConnConfig
}

// NewRegistry creates an empty registry.
func NewRegistry(config ConnConfig) *Registry {
	return &Registry{
		conns:  make(map[string]map[*Conn]bool),
		config: config,
	}
}

// Register adds a connection to its timer's pool.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[c.timerID] == nil {
		r.conns[c.timerID] = make(map[*Conn]bool)
	}
	r.conns[c.timerID][c] = true

	log.Debug().
		Str("connection_id", c.id).
		Str("timer_id", c.timerID).
		Int("pool_size", len(r.conns[c.timerID])).
		Msg("connection registered")
}

// Deregister removes a connection. It is idempotent: a connection whose close
// fires after the registry was cleared is a no-op.
func (r *Registry) Deregister(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.conns[c.timerID]
	if !ok {
		return false
	}
	if !pool[c] {
		return false
	}
	delete(pool, c)
	if len(pool) == 0 {
		delete(r.conns, c.timerID)
	}

	log.Debug().
		Str("connection_id", c.id).
		Str("timer_id", c.timerID).
		Msg("connection deregistered")
	return true
}

// ForEach calls fn for every connection observing timerID. fn runs outside
// the registry lock against a snapshot of the pool.
func (r *Registry) ForEach(timerID string, fn func(*Conn)) {
	r.mu.RLock()
	pool := r.conns[timerID]
	targets := make([]*Conn, 0, len(pool))
	for c := range pool {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		fn(c)
	}
}

// Count returns the number of connections observing timerID.
func (r *Registry) Count(timerID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[timerID])
}

// CloseAll shuts down every connection. Used at teardown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	var all []*Conn
	for _, pool := range r.conns {
		for c := range pool {
			all = append(all, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range all {
		c.shutdown()
	}
}
