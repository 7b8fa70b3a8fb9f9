package alert

import (
	"container/heap"
	"sync"
	"time"
)

// Queue is an unbounded priority queue of pending events, ordered by
// (Priority, CreatedAt) ascending with a stable sequence tie-break so
// equal-urgency events cannot starve each other.
//
// Push is safe for any number of producer goroutines and never fails; an
// unbounded burst is mitigated by the cooldown filter, not by capacity.
// PopBlocking and Drain are meant for a single consumer.
type Queue struct {
	filter *CooldownFilter

	mu    sync.Mutex
	items eventHeap
	seq   uint64

	// wake has capacity 1: a push after an empty period nudges the
	// consumer, extra pushes coalesce.
	wake chan struct{}
}

// NewQueue creates a queue whose admission checks go through filter.
func NewQueue(filter *CooldownFilter) *Queue {
	return &Queue{
		filter: filter,
		wake:   make(chan struct{}, 1),
	}
}

// Push enqueues an event. The cooldown check here is advisory, avoiding a
// flood of events that would certainly be dropped; admission is re-checked
// at pop time since time has elapsed.
func (q *Queue) Push(ev Event) {
	if !q.filter.Admit(ev, time.Now()) {
		return
	}

	q.mu.Lock()
	q.seq++
	heap.Push(&q.items, queuedEvent{Event: ev, seq: q.seq})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// PopBlocking removes and returns the most urgent admissible event, blocking
// until one is available or timeout elapses. A head event that fails the
// cooldown re-check is discarded, not requeued, and the next one is tried.
func (q *Queue) PopBlocking(timeout time.Duration) (Event, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if ev, ok := q.tryPop(); ok {
			return ev, true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Event{}, false
		}

		timer := time.NewTimer(remaining)
		select {
		case <-q.wake:
			timer.Stop()
		case <-timer.C:
			ev, ok := q.tryPop()
			return ev, ok
		}
	}
}

// Drain removes and returns all remaining admissible events without
// blocking. Used during shutdown to flush urgent events before exit;
// recently-repeated events are dropped silently.
func (q *Queue) Drain() []Event {
	now := time.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Event
	for q.items.Len() > 0 {
		item := heap.Pop(&q.items).(queuedEvent)
		if q.filter.Admit(item.Event, now) {
			out = append(out, item.Event)
		}
	}
	return out
}

// Len returns the number of queued events, admissible or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *Queue) tryPop() (Event, bool) {
	now := time.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() > 0 {
		item := heap.Pop(&q.items).(queuedEvent)
		if q.filter.Admit(item.Event, now) {
			return item.Event, true
		}
	}
	return Event{}, false
}

type queuedEvent struct {
	Event
	seq uint64
}

type eventHeap []queuedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	if !h[i].CreatedAt.Equal(h[j].CreatedAt) {
		return h[i].CreatedAt.Before(h[j].CreatedAt)
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(queuedEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
