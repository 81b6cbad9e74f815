package session

import "sync"

// Listener receives the new id; ok is false after Clear.
type Listener func(id int64, ok bool)

// Tracker holds the server issued session id of the current connection.
type Tracker struct {
	mu  sync.RWMutex
	id  int64
	set bool

	lmu       sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func NewTracker() *Tracker {
	return &Tracker{listeners: make(map[int]Listener)}
}

// Set replaces any prior value. Listeners run only when the value changed.
func (t *Tracker) Set(id int64) (changed bool) {
	t.mu.Lock()
	changed = !t.set || t.id != id
	t.id, t.set = id, true
	t.mu.Unlock()

	if changed {
		t.notify(id, true)
	}
	return changed
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	wasSet := t.set
	t.id, t.set = 0, false
	t.mu.Unlock()

	if wasSet {
		t.notify(0, false)
	}
}

func (t *Tracker) Current() (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.id, t.set
}

func (t *Tracker) Subscribe(fn Listener) (cancel func()) {
	t.lmu.Lock()
	defer t.lmu.Unlock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.lmu.Lock()
		delete(t.listeners, id)
		t.lmu.Unlock()
	}
}

func (t *Tracker) notify(id int64, ok bool) {
	t.lmu.Lock()
	ls := make([]Listener, 0, len(t.listeners))
	for _, l := range t.listeners {
		ls = append(ls, l)
	}
	t.lmu.Unlock()

	for _, l := range ls {
		l(id, ok)
	}
}
