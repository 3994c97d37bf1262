package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Store is the in-memory collection of timer records. All reads hand out
// copies; mutation goes through Update so callers never hold a live pointer.
type Store struct {
	mu     sync.RWMutex
	timers map[string]*Timer

	clock clockwork.Clock
	ttl   time.Duration
}

// NewStore creates a store whose records expire after ttl of inactivity.
// A ttl of zero disables expiry.
func NewStore(clock clockwork.Clock, ttl time.Duration) *Store {
	return &Store{
		timers: make(map[string]*Timer),
		clock:  clock,
		ttl:    ttl,
	}
}

// Snapshot returns a point-in-time copy of every record, keyed by id.
func (s *Store) Snapshot() map[string]Timer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]Timer, len(s.timers))
	for id, t := range s.timers {
		snapshot[id] = t.clone()
	}
	return snapshot
}

// Get returns a copy of the record for id.
func (s *Store) Get(id string) (Timer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.timers[id]
	if !ok {
		return Timer{}, false
	}
	return t.clone(), true
}

// View returns the public projection of the record for id.
func (s *Store) View(id string) (PublicView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.timers[id]
	if !ok {
		return PublicView{}, false
	}
	return t.View(), true
}

// Ensure creates the record for id if it does not exist and returns a copy.
func (s *Store) Ensure(id string) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[id]
	if !ok {
		t = &Timer{ID: id, Mob: []string{}, Accessed: s.clock.Now()}
		s.timers[id] = t
		log.Info().Str("timer_id", id).Msg("timer created")
	}
	return t.clone()
}

// Update applies fn to the record for id under the store lock and refreshes
// its activity deadline. It reports whether the record existed.
func (s *Store) Update(id string, fn func(*Timer)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[id]
	if !ok {
		return false
	}
	fn(t)
	t.Accessed = s.clock.Now()
	return true
}

// sweep removes records idle longer than the ttl and returns their ids.
func (s *Store) sweep() []string {
	if s.ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.ttl)
	var expired []string
	for id, t := range s.timers {
		if t.Accessed.Before(cutoff) {
			delete(s.timers, id)
			expired = append(expired, id)
		}
	}
	return expired
}

// RunSweeper periodically drops expired records until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration, onExpire func(id string)) {
	if s.ttl <= 0 {
		return
	}

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			for _, id := range s.sweep() {
				log.Info().Str("timer_id", id).Msg("timer expired")
				if onExpire != nil {
					onExpire(id)
				}
			}
		}
	}
}
