package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilecore/internal/tilecoord"
	"tilecore/internal/vectortile"
)

func coord(z uint8, x, y uint32) tilecoord.Coord {
	return tilecoord.Coord{Z: z, X: x, Y: y}
}

func TestInsertPendingCreatedThenJoined(t *testing.T) {
	r := New()
	c := coord(1, 0, 0)

	outcome, _ := r.InsertPending(c, nil)
	require.Equal(t, Created, outcome)

	outcome, _ = r.InsertPending(c, nil)
	require.Equal(t, Joined, outcome)
}

func TestInsertPendingAlreadyTerminalOk(t *testing.T) {
	r := New()
	c := coord(1, 0, 0)

	outcome, _ := r.InsertPending(c, nil)
	require.Equal(t, Created, outcome)
	r.Transition(c, Ok, vectortile.New([]byte("tile")))

	var called int32
	outcome, state := r.InsertPending(c, func(got tilecoord.Coord) {
		atomic.AddInt32(&called, 1)
		require.Equal(t, c, got)
	})
	require.Equal(t, AlreadyTerminal, outcome)
	require.Equal(t, Ok, state)
	require.EqualValues(t, 1, called)
}

func TestInsertPendingAlreadyTerminalNonOkDropsListener(t *testing.T) {
	r := New()
	c := coord(2, 1, 1)

	r.InsertPending(c, nil)
	r.Transition(c, UnknownError, nil)

	var called int32
	outcome, state := r.InsertPending(c, func(tilecoord.Coord) {
		atomic.AddInt32(&called, 1)
	})
	require.Equal(t, AlreadyTerminal, outcome)
	require.Equal(t, UnknownError, state)
	require.EqualValues(t, 0, called)
}

func TestTransitionIsStickyAndPanicsOnRepeat(t *testing.T) {
	r := New()
	c := coord(0, 0, 0)

	r.InsertPending(c, nil)
	r.Transition(c, Ok, vectortile.New([]byte("x")))

	state, ok := r.StateOf(c)
	require.True(t, ok)
	require.Equal(t, Ok, state)

	assert.Panics(t, func() {
		r.Transition(c, UnknownError, nil)
	})
}

func TestTransitionDrainsWaitersAndInvokesEachExactlyOnce(t *testing.T) {
	r := New()
	c := coord(3, 2, 2)

	const n = 50
	var wg sync.WaitGroup
	counts := make([]int32, n)

	r.InsertPending(c, nil)
	for i := 0; i < n; i++ {
		idx := i
		outcome, _ := r.InsertPending(c, func(tilecoord.Coord) {
			atomic.AddInt32(&counts[idx], 1)
		})
		require.Equal(t, Joined, outcome)
	}

	waiters := r.Transition(c, Ok, vectortile.New([]byte("tile")))
	require.Len(t, waiters, n)

	wg.Add(len(waiters))
	for _, l := range waiters {
		l := l
		go func() {
			defer wg.Done()
			l(c)
		}()
	}
	wg.Wait()

	for i, c := range counts {
		require.EqualValues(t, 1, c, "listener %d invoked %d times", i, c)
	}
}

func TestLookupIsConsistentSnapshot(t *testing.T) {
	r := New()
	ok1 := coord(0, 0, 0)
	ok2 := coord(1, 0, 0)
	pending := coord(2, 0, 0)
	missing := coord(3, 0, 0)

	r.InsertPending(ok1, nil)
	r.Transition(ok1, Ok, vectortile.New([]byte("a")))
	r.InsertPending(ok2, nil)
	r.Transition(ok2, Ok, vectortile.New([]byte("b")))
	r.InsertPending(pending, nil)

	hits, states := r.Lookup([]tilecoord.Coord{ok1, ok2, pending, missing})

	require.Len(t, hits, 2)
	require.Contains(t, hits, ok1)
	require.Contains(t, hits, ok2)

	require.Equal(t, Ok, states[ok1])
	require.Equal(t, Ok, states[ok2])
	require.Equal(t, Pending, states[pending])
	_, missingPresent := states[missing]
	require.False(t, missingPresent)
}

func TestConcurrentInsertPendingSingleFlight(t *testing.T) {
	r := New()
	c := coord(4, 3, 3)

	const n = 50
	outcomes := make([]InsertOutcome, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		idx := i
		go func() {
			defer wg.Done()
			outcome, _ := r.InsertPending(c, func(tilecoord.Coord) {})
			outcomes[idx] = outcome
		}()
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		if o == Created {
			created++
		}
	}
	require.Equal(t, 1, created, "exactly one caller should observe Created")
}
