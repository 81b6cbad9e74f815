package outbound

import "sync"

// Queue buffers raw outbound text while no live socket exists. It is FIFO
// and unbounded. Enqueue may be called while a Drain is running; the new
// item simply waits its turn at the tail.
type Queue struct {
	mu    sync.Mutex
	items []string

	drainMu sync.Mutex // one consumer at a time
}

func NewQueue() *Queue { return &Queue{} }

func (q *Queue) Enqueue(text string) {
	q.mu.Lock()
	q.items = append(q.items, text)
	q.mu.Unlock()
}

// Drain hands items to send, head first, for as long as ready reports true.
// An item is removed only after send returns nil; on error it stays at the
// head and Drain stops, so nothing is skipped and nothing is sent twice.
func (q *Queue) Drain(ready func() bool, send func(string) error) (sent int, err error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	for {
		head, ok := q.peek()
		if !ok || !ready() {
			return sent, nil
		}
		if err := send(head); err != nil {
			return sent, err
		}
		q.pop()
		sent++
	}
}

func (q *Queue) peek() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	return q.items[0], true
}

func (q *Queue) pop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[0] = ""
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns the pending items in send order.
func (q *Queue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
