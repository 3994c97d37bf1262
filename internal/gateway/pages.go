package gateway

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mobdhq/mobd/internal/timer"
)

//go:embed viewer.html
var viewerHTML string

var viewerTemplate = template.Must(template.New("viewer").Parse(viewerHTML))

// SingleTimerID is the fixed record served in single-timer mode.
const SingleTimerID = "timer"

// Pages serves the viewer page and routes WebSocket upgrades on the same
// paths. Visiting a page creates the timer if it does not exist yet; the
// matching WebSocket handshake then observes it.
type Pages struct {
	store  *timer.Store
	ws     *WSHandler
	single bool
}

// NewPages creates the unprotected HTTP surface.
func NewPages(store *timer.Store, ws *WSHandler, single bool) *Pages {
	return &Pages{store: store, ws: ws, single: single}
}

// RegisterRoutes mounts the viewer routes for the configured mode.
func (p *Pages) RegisterRoutes(mux *http.ServeMux) {
	if p.single {
		mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/"+SingleTimerID, http.StatusFound)
		})
		mux.HandleFunc("/"+SingleTimerID, func(w http.ResponseWriter, r *http.Request) {
			p.serve(w, r, SingleTimerID)
		})
		return
	}
	mux.HandleFunc("/{timerID}", func(w http.ResponseWriter, r *http.Request) {
		p.serve(w, r, r.PathValue("timerID"))
	})
}

// serve dispatches by intent: upgrades become observer handshakes, plain GETs
// create the timer if needed and render the viewer.
func (p *Pages) serve(w http.ResponseWriter, r *http.Request, timerID string) {
	if websocket.IsWebSocketUpgrade(r) {
		p.ws.ServeTimer(w, r, timerID)
		return
	}

	p.store.Ensure(timerID)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viewerTemplate.Execute(w, struct{ TimerID string }{TimerID: timerID}); err != nil {
		log.Error().Err(err).Str("timer_id", timerID).Msg("failed to render viewer")
	}
}
