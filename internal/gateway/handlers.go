package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mobdhq/mobd/internal/timer"
)

// API exposes the REST control plane. Every route authenticates, reads at
// most one snapshot, dispatches at most one or two actions, and responds
// without waiting for the resulting broadcast.
type API struct {
	store      *timer.Store
	dispatcher Dispatcher
}

// NewAPI creates the control-plane handler set.
func NewAPI(store *timer.Store, dispatcher Dispatcher) *API {
	return &API{store: store, dispatcher: dispatcher}
}

// RegisterRoutes mounts the protected control routes.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/ping", a.requireToken(a.handlePing))
	mux.HandleFunc("GET /api/reset", a.requireToken(a.handleReset))
	mux.HandleFunc("GET /api/mob/add/{name}", a.requireToken(a.handleMobAdd))
	mux.HandleFunc("GET /api/mob/remove/{name}", a.requireToken(a.handleMobRemove))
	mux.HandleFunc("GET /api/mob/cycle", a.requireToken(a.handleMobCycle))
	mux.HandleFunc("GET /api/mob/shuffle", a.requireToken(a.handleMobShuffle))
	mux.HandleFunc("GET /api/timer/start/{seconds}", a.requireToken(a.handleTimerStart))
	mux.HandleFunc("GET /api/timer/resume", a.requireToken(a.handleTimerResume))
	mux.HandleFunc("GET /api/timer/pause", a.requireToken(a.handleTimerPause))
}

// handlePing refreshes the timer's activity deadline. 205 tells the client
// its timer is gone and a refresh (new handshake) is required; it is a soft
// signal, not an error.
func (a *API) handlePing(w http.ResponseWriter, r *http.Request) {
	id := TimerID(r)
	if err := a.dispatcher.Dispatch(r.Context(), id, timer.Keepalive{}); errors.Is(err, timer.ErrNotFound) {
		w.WriteHeader(http.StatusResetContent)
		return
	}
	if _, ok := a.store.Get(id); !ok {
		w.WriteHeader(http.StatusResetContent)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	a.dispatch(r, timer.Reset{})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMobAdd(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := a.dispatcher.Dispatch(r.Context(), TimerID(r), timer.MobAdd{Name: name}); errors.Is(err, timer.ErrDuplicateName) {
		writeError(w, http.StatusBadRequest, "name already in mob")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (a *API) handleMobRemove(w http.ResponseWriter, r *http.Request) {
	a.dispatch(r, timer.MobRemove{Name: r.PathValue("name")})
	w.WriteHeader(http.StatusCreated)
}

func (a *API) handleMobCycle(w http.ResponseWriter, r *http.Request) {
	a.dispatch(r, timer.MobCycle{})
	w.WriteHeader(http.StatusCreated)
}

func (a *API) handleMobShuffle(w http.ResponseWriter, r *http.Request) {
	a.dispatch(r, timer.MobShuffle{})
	w.WriteHeader(http.StatusCreated)
}

func (a *API) handleTimerStart(w http.ResponseWriter, r *http.Request) {
	seconds, err := strconv.Atoi(r.PathValue("seconds"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "seconds must be numeric")
		return
	}
	a.dispatch(r, timer.Start{Seconds: seconds})
	w.WriteHeader(http.StatusCreated)
}

// handleTimerResume restarts the countdown from the stored duration.
func (a *API) handleTimerResume(w http.ResponseWriter, r *http.Request) {
	t, _ := a.store.Get(TimerID(r))
	a.dispatch(r, timer.Start{Seconds: t.Duration})
	w.WriteHeader(http.StatusCreated)
}

// handleTimerPause takes no parameters; resume replays the stored duration.
func (a *API) handleTimerPause(w http.ResponseWriter, r *http.Request) {
	a.dispatch(r, timer.Pause{})
	w.WriteHeader(http.StatusCreated)
}

// dispatch fires an advisory action. The HTTP response does not depend on the
// side effect having propagated to observers.
func (a *API) dispatch(r *http.Request, action timer.Action) {
	if err := a.dispatcher.Dispatch(r.Context(), TimerID(r), action); err != nil {
		log.Debug().Err(err).Str("timer_id", TimerID(r)).Msg("dispatch failed")
	}
}
