package gateway

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/mobdhq/mobd/internal/timer"
)

// ResolveToken finds the timer whose token set contains token. The snapshot
// is the authoritative read at authentication time; token sets are disjoint
// across timers, so at most one record matches.
func ResolveToken(snapshot map[string]timer.Timer, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	for id, t := range snapshot {
		if slices.Contains(t.Tokens, token) {
			return id, true
		}
	}
	return "", false
}

type contextKey int

const timerIDKey contextKey = iota

// TimerID returns the timer id resolved by the auth middleware.
func TimerID(r *http.Request) string {
	id, _ := r.Context().Value(timerIDKey).(string)
	return id
}

// requireToken authenticates the `Authorization: token <credential>` header
// against the current snapshot and stores the resolved timer id in the
// request context. An unresolvable credential short-circuits to 401 before
// the handler runs, so no action is ever dispatched for it.
func (a *API) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timerID, ok := ResolveToken(a.store.Snapshot(), bearerToken(r))
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), timerIDKey, timerID)))
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || parts[0] != "token" {
		return ""
	}
	return parts[1]
}
