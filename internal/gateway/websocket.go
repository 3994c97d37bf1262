package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mobdhq/mobd/internal/timer"
)

// TokenSource mints observer credentials. Injected so tests can substitute a
// deterministic source.
type TokenSource interface {
	Token() string
}

// UUIDTokenSource mints random UUID credentials.
type UUIDTokenSource struct{}

func (UUIDTokenSource) Token() string { return uuid.NewString() }

// WSHandler runs the observer handshake: resolve the timer named in the
// path, mint a credential, enroll it, register the connection and push the
// initial snapshot. Unlike the HTTP routes, it never validates an existing
// token; connecting is how a viewer acquires one.
type WSHandler struct {
	store      *timer.Store
	dispatcher Dispatcher
	registry   *Registry
	tokens     TokenSource
	upgrader   websocket.Upgrader
}

// NewWSHandler creates the handshake handler.
func NewWSHandler(store *timer.Store, dispatcher Dispatcher, registry *Registry, tokens TokenSource) *WSHandler {
	cfg := registry.config
	return &WSHandler{
		store:      store,
		dispatcher: dispatcher,
		registry:   registry,
		tokens:     tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// ServeTimer upgrades the request and enrolls the connection as an observer
// of timerID. An unknown timer closes the socket immediately: no credential
// is minted and no registry entry is made.
func (h *WSHandler) ServeTimer(w http.ResponseWriter, r *http.Request, timerID string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("timer_id", timerID).Msg("failed to upgrade connection")
		return
	}

	if _, ok := h.store.View(timerID); !ok {
		log.Debug().Str("timer_id", timerID).Msg("handshake against unknown timer")
		ws.Close()
		return
	}

	token := h.tokens.Token()
	if err := h.dispatcher.Dispatch(r.Context(), timerID, timer.TokenAdd{Token: token}); err != nil {
		log.Warn().Err(err).Str("timer_id", timerID).Msg("failed to enroll token")
		ws.Close()
		return
	}

	conn := newConn(ws, token, timerID, h.registry, func(c *Conn) {
		// The token dies with its connection. Dispatch may race timer
		// expiry; a missing record makes this a no-op.
		if err := h.dispatcher.Dispatch(context.Background(), c.timerID, timer.TokenRemove{Token: c.token}); err != nil {
			log.Debug().Err(err).Str("timer_id", c.timerID).Msg("token removal dispatch failed")
		}
	})

	// The initial message is enqueued before the connection joins the
	// broadcast pool, so the client always sees its token before any tick.
	view, _ := h.store.View(timerID)
	initial, err := json.Marshal(wsMessage{Type: messageTypeToken, Token: token, State: view})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal handshake message")
		conn.shutdown()
		return
	}
	conn.trySend(initial)

	h.registry.Register(conn)
	conn.start()

	log.Info().
		Str("connection_id", conn.id).
		Str("timer_id", timerID).
		Msg("observer connected")
}
