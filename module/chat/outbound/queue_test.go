package outbound

import (
	"errors"
	"reflect"
	"testing"
)

func always() bool { return true }

func TestDrainFIFO(t *testing.T) {
	q := NewQueue()
	for _, s := range []string{"a", "b", "c"} {
		q.Enqueue(s)
	}
	var got []string
	n, err := q.Drain(always, func(s string) error {
		got = append(got, s)
		return nil
	})
	if err != nil || n != 3 {
		t.Fatalf("drain: n=%d err=%v", n, err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("order: %v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty")
	}
}

func TestDrainStopsWhenNotReady(t *testing.T) {
	q := NewQueue()
	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("c")

	ready := true
	var got []string
	_, _ = q.Drain(func() bool { return ready }, func(s string) error {
		got = append(got, s)
		ready = false // channel drops after the first frame
		return nil
	})
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("sent %v", got)
	}
	if !reflect.DeepEqual(q.Snapshot(), []string{"b", "c"}) {
		t.Fatalf("remainder %v", q.Snapshot())
	}
}

func TestDrainSendErrorKeepsHead(t *testing.T) {
	q := NewQueue()
	q.Enqueue("a")
	q.Enqueue("b")

	boom := errors.New("boom")
	n, err := q.Drain(always, func(s string) error { return boom })
	if !errors.Is(err, boom) || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if !reflect.DeepEqual(q.Snapshot(), []string{"a", "b"}) {
		t.Fatalf("head lost: %v", q.Snapshot())
	}

	var got []string
	_, _ = q.Drain(always, func(s string) error { got = append(got, s); return nil })
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("second drain sent %v", got)
	}
}

func TestEnqueueDuringDrain(t *testing.T) {
	q := NewQueue()
	q.Enqueue("a")
	var got []string
	_, _ = q.Drain(always, func(s string) error {
		got = append(got, s)
		if s == "a" {
			q.Enqueue("b")
		}
		return nil
	})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("got %v", got)
	}
}

func TestClear(t *testing.T) {
	q := NewQueue()
	q.Enqueue("a")
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("clear failed")
	}
}
