// Package registry implements the in-memory Tile Registry: the single
// source of truth for every tile's load state, guarded by one mutex.
//
// All four operations acquire the same lock, hold it only long enough
// to read or mutate the map, and never perform I/O, parsing, or
// listener invocation while holding it. Transition returns the drained
// waiter list so the caller invokes listeners after releasing the
// lock — this is what lets a listener safely re-enter RequestTiles
// from, say, a UI paint callback without deadlocking.
package registry

import (
	"sync"

	"tilecore/internal/tilecoord"
	"tilecore/internal/vectortile"
)

// State is a tile's position in its load state machine.
type State uint8

const (
	// Pending means an asynchronous load is in flight for this coord.
	Pending State = iota
	// Ok means the tile was fetched and parsed successfully.
	Ok
	// ParsingFailed means the raw bytes could not be decoded.
	ParsingFailed
	// Cancelled is reachable in principle but never entered by this
	// core; see spec §5 and DESIGN.md's Open Questions.
	Cancelled
	// UnknownError covers network and disk failures that aren't a
	// parse failure.
	UnknownError
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ok:
		return "ok"
	case ParsingFailed:
		return "parsing_failed"
	case Cancelled:
		return "cancelled"
	case UnknownError:
		return "unknown_error"
	default:
		return "invalid"
	}
}

// Terminal reports whether s is a sticky terminal state.
func (s State) Terminal() bool {
	return s != Pending
}

// Listener is invoked exactly once when its coord reaches the Ok
// state: on the worker thread that performs the transition, or, if the
// coord is already Ok when the listener is registered, synchronously by
// InsertPending on the caller's goroutine. It is never invoked for any
// other terminal state.
type Listener func(tilecoord.Coord)

// InsertOutcome reports what InsertPending did.
type InsertOutcome uint8

const (
	// Created means a new Pending entry was installed; the caller must
	// dispatch a load job.
	Created InsertOutcome = iota
	// Joined means an existing Pending entry absorbed this listener;
	// no dispatch is needed.
	Joined
	// AlreadyTerminal means the entry was already in a terminal state.
	AlreadyTerminal
)

type entry struct {
	state   State
	payload *vectortile.Tile
	waiters []Listener
}

// Registry is the mutex-guarded map described in spec §3-4.1.
type Registry struct {
	mu      sync.Mutex
	entries map[tilecoord.Coord]*entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[tilecoord.Coord]*entry)}
}

// Lookup performs a single locked scan of coords, returning a snapshot
// of Ok payloads and the state of every requested coord (coords absent
// from the map are omitted from states).
func (r *Registry) Lookup(coords []tilecoord.Coord) (hits map[tilecoord.Coord]*vectortile.Tile, states map[tilecoord.Coord]State) {
	hits = make(map[tilecoord.Coord]*vectortile.Tile)
	states = make(map[tilecoord.Coord]State)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range coords {
		e, ok := r.entries[c]
		if !ok {
			continue
		}
		states[c] = e.state
		if e.state == Ok {
			hits[c] = e.payload
		}
	}
	return hits, states
}

// InsertPending registers listener against coord, creating a new
// Pending entry if none exists, joining an existing Pending entry's
// waiter list, or reporting that the entry is already terminal — in
// which case the returned State identifies which terminal state, and
// listener is invoked immediately (outside the lock) if that state is
// Ok, or dropped silently otherwise. The returned State is only
// meaningful when outcome is AlreadyTerminal.
func (r *Registry) InsertPending(coord tilecoord.Coord, listener Listener) (InsertOutcome, State) {
	r.mu.Lock()
	e, ok := r.entries[coord]
	if !ok {
		e = &entry{state: Pending}
		if listener != nil {
			e.waiters = append(e.waiters, listener)
		}
		r.entries[coord] = e
		r.mu.Unlock()
		return Created, Pending
	}

	if e.state == Pending {
		if listener != nil {
			e.waiters = append(e.waiters, listener)
		}
		r.mu.Unlock()
		return Joined, Pending
	}

	// Already terminal.
	state := e.state
	r.mu.Unlock()

	if state == Ok && listener != nil {
		listener(coord)
	}
	return AlreadyTerminal, state
}

// Transition atomically moves coord from Pending to a terminal state,
// attaching payload when newState is Ok, and returns the drained
// waiter list for the caller to invoke after releasing this lock.
// Calling Transition on a coord that is absent or already terminal is
// a programming error (spec §7's "Registry: any -> abort") and panics.
func (r *Registry) Transition(coord tilecoord.Coord, newState State, payload *vectortile.Tile) []Listener {
	if newState == Pending {
		panic("registry: Transition called with Pending as the target state")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[coord]
	if !ok {
		panic("registry: Transition called on a coord with no entry")
	}
	if e.state.Terminal() {
		panic("registry: Transition called on a coord already in terminal state " + e.state.String())
	}

	e.state = newState
	if newState == Ok {
		e.payload = payload
	}
	waiters := e.waiters
	e.waiters = nil
	return waiters
}

// StateOf is a test/debug hook reporting a coord's current state.
func (r *Registry) StateOf(coord tilecoord.Coord) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[coord]
	if !ok {
		return 0, false
	}
	return e.state, true
}
