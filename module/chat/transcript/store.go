package transcript

import (
	"sync"

	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/model"
)

// Event is what subscribers see: either one appended message or a wipe.
type Event struct {
	Cleared bool
	Message model.Message
}

type Listener func(Event)

// Store is the ordered chat transcript. Only Append and Clear mutate it;
// readers get copies and may call from any goroutine.
type Store struct {
	mu   sync.RWMutex
	msgs []model.Message

	lmu       sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func NewStore() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Append adds msg at the tail. Identical messages are kept as distinct entries.
func (s *Store) Append(msg model.Message) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()

	s.notify(Event{Message: msg})
}

// Clear empties the transcript. Clearing an empty store is fine.
func (s *Store) Clear() {
	s.mu.Lock()
	s.msgs = nil
	s.mu.Unlock()

	s.notify(Event{Cleared: true})
}

func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Subscribe registers fn and returns a func that removes it. Listeners run
// synchronously on the mutating goroutine and must not block.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) notify(ev Event) {
	s.lmu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.lmu.Unlock()

	for _, l := range ls {
		l(ev)
	}
}
