package timer

import (
	"slices"
	"time"
)

// Timer is the authoritative record for a single shared countdown. Tokens holds
// the credentials of every live observer; it is never serialized to clients.
type Timer struct {
	ID        string
	Tokens    []string
	Mob       []string
	Duration  int // seconds, as last started
	Remaining int
	Running   bool
	Accessed  time.Time
}

// PublicView is the client-facing projection of a Timer. The token set is
// replaced by its cardinality.
type PublicView struct {
	ID          string   `json:"id"`
	Mob         []string `json:"mob"`
	Duration    int      `json:"duration"`
	Remaining   int      `json:"remaining"`
	Running     bool     `json:"running"`
	Connections int      `json:"connections"`
}

// View projects the timer into its public form.
func (t Timer) View() PublicView {
	mob := t.Mob
	if mob == nil {
		mob = []string{}
	}
	return PublicView{
		ID:          t.ID,
		Mob:         slices.Clone(mob),
		Duration:    t.Duration,
		Remaining:   t.Remaining,
		Running:     t.Running,
		Connections: len(t.Tokens),
	}
}

func (t Timer) clone() Timer {
	c := t
	c.Tokens = slices.Clone(t.Tokens)
	c.Mob = slices.Clone(t.Mob)
	return c
}
