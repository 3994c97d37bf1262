package timer

import "errors"

var (
	// ErrNotFound is returned when an action targets a timer that does not
	// exist (never created, or already expired).
	ErrNotFound = errors.New("timer not found")

	// ErrDuplicateName is returned when a name is added to a mob that
	// already contains it.
	ErrDuplicateName = errors.New("name already in mob")
)

// Action is a request to mutate one timer record. The concrete type selects
// the mutation; actions are applied atomically by the engine.
type Action interface {
	isAction()
}

// Start begins (or restarts) the countdown from Seconds.
type Start struct {
	Seconds int
}

// Pause stops the countdown, keeping the remaining time.
type Pause struct{}

// Reset stops the countdown and restores the stored duration.
type Reset struct{}

// MobAdd appends a name to the mob. Duplicates are rejected.
type MobAdd struct {
	Name string
}

// MobRemove deletes every occurrence of a name from the mob.
type MobRemove struct {
	Name string
}

// MobCycle rotates the mob so the current first participant moves to the end.
type MobCycle struct{}

// MobShuffle randomizes the mob order.
type MobShuffle struct{}

// TokenAdd appends a freshly minted credential to the timer's token set.
type TokenAdd struct {
	Token string
}

// TokenRemove revokes a credential.
type TokenRemove struct {
	Token string
}

// Keepalive refreshes the timer's activity deadline without other mutation.
type Keepalive struct{}

func (Start) isAction()       {}
func (Pause) isAction()       {}
func (Reset) isAction()       {}
func (MobAdd) isAction()      {}
func (MobRemove) isAction()   {}
func (MobCycle) isAction()    {}
func (MobShuffle) isAction()  {}
func (TokenAdd) isAction()    {}
func (TokenRemove) isAction() {}
func (Keepalive) isAction()   {}
