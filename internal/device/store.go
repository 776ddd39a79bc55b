package device

import "sync"

// Store holds the single State instance and serialises writes to it.
//
// Reads take a shared lock and always observe a state produced by a
// complete Write, so both mode flags are read from the same transition.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	state State
	mu    sync.RWMutex
}

// NewStore creates a Store seeded with initial.
func NewStore(initial State) *Store {
	return &Store{state: initial}
}

// Read returns a snapshot of the current state.
func (s *Store) Read() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Write applies mutator under the exclusive lock and returns the
// transition it produced. No other Write interleaves with it.
//
// The mutator receives the current state by value and must return a valid
// next state; it must not call back into the Store.
func (s *Store) Write(mutator func(State) State) Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	s.state = mutator(prev)
	return Transition{Prev: prev, Next: s.state}
}
