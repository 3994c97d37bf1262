package timer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestStoreEnsureCreatesOnce(t *testing.T) {
	req := require.New(t)
	store := NewStore(clockwork.NewFakeClock(), 0)

	first := store.Ensure("alpha")
	req.Equal("alpha", first.ID)
	req.Empty(first.Mob)

	store.Update("alpha", func(tm *Timer) {
		tm.Mob = append(tm.Mob, "ann")
	})

	again := store.Ensure("alpha")
	req.Equal([]string{"ann"}, again.Mob, "Ensure must not reset an existing record")
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	req := require.New(t)
	store := NewStore(clockwork.NewFakeClock(), 0)
	store.Ensure("alpha")
	store.Update("alpha", func(tm *Timer) {
		tm.Tokens = append(tm.Tokens, "tok-1")
	})

	snapshot := store.Snapshot()
	snap := snapshot["alpha"]
	snap.Tokens[0] = "mutated"
	snap.Mob = append(snap.Mob, "intruder")

	current, ok := store.Get("alpha")
	req.True(ok)
	req.Equal([]string{"tok-1"}, current.Tokens)
	req.Empty(current.Mob)
}

func TestStoreViewHidesTokens(t *testing.T) {
	req := require.New(t)
	store := NewStore(clockwork.NewFakeClock(), 0)
	store.Ensure("alpha")
	store.Update("alpha", func(tm *Timer) {
		tm.Tokens = []string{"tok-1", "tok-2"}
	})

	view, ok := store.View("alpha")
	req.True(ok)
	req.Equal(2, view.Connections)
}

func TestStoreUpdateMissing(t *testing.T) {
	store := NewStore(clockwork.NewFakeClock(), 0)
	require.False(t, store.Update("ghost", func(tm *Timer) {}))
}

func TestStoreSweepExpiresIdleRecords(t *testing.T) {
	req := require.New(t)
	clock := clockwork.NewFakeClock()
	store := NewStore(clock, time.Minute)

	store.Ensure("stale")
	clock.Advance(30 * time.Second)
	store.Ensure("fresh")
	clock.Advance(45 * time.Second)

	expired := store.sweep()
	req.Equal([]string{"stale"}, expired)

	_, ok := store.Get("stale")
	req.False(ok)
	_, ok = store.Get("fresh")
	req.True(ok)
}

func TestStoreActivityDefersExpiry(t *testing.T) {
	req := require.New(t)
	clock := clockwork.NewFakeClock()
	store := NewStore(clock, time.Minute)

	store.Ensure("alpha")
	clock.Advance(45 * time.Second)
	store.Update("alpha", func(tm *Timer) {}) // any action refreshes the deadline
	clock.Advance(45 * time.Second)

	req.Empty(store.sweep())
}

func TestStoreRunSweeperReportsExpiry(t *testing.T) {
	req := require.New(t)
	clock := clockwork.NewFakeClock()
	store := NewStore(clock, time.Minute)
	store.Ensure("stale")

	expired := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go store.RunSweeper(ctx, 10*time.Second, func(id string) {
		expired <- id
	})

	clock.BlockUntil(1)
	clock.Advance(2 * time.Minute)

	select {
	case id := <-expired:
		req.Equal("stale", id)
	case <-time.After(time.Second):
		req.Fail("sweeper did not report expiry")
	}
}
