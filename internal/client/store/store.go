package store

import "sync"

// Store serializes dispatches over Reduce and notifies subscribers of every new state.
type Store struct {
	mu     sync.Mutex
	state  State
	seq    map[Kind]uint64
	subs   map[int]func(State)
	nextID int
}

func New(initial State) *Store {
	return &Store{
		state: initial,
		seq:   map[Kind]uint64{},
		subs:  map[int]func(State){},
	}
}

// NextSeq issues a new, strictly increasing sequence number for kind.
func (s *Store) NextSeq(kind Kind) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[kind]++
	return s.seq[kind]
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch reduces a and calls subscribers with the resulting state.
// Subscribers run on the dispatching goroutine, outside the store lock.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	subs := make([]func(State), 0, len(s.subs))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
