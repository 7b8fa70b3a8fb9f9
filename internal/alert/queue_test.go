package alert

import (
	"sync"
	"testing"
	"time"
)

func TestQueueOrdersByPriorityThenAge(t *testing.T) {
	q := NewQueue(NewCooldownFilter())

	// Distinct keys so the cooldown filter stays out of the way.
	q.Push(NewKeyed(CategoryObject, PriorityRoutine, "cup", "k1"))
	q.Push(NewKeyed(CategoryObstacle, PriorityUrgent, "obstacle", "k2"))
	q.Push(NewKeyed(CategoryObject, PriorityRoutine, "chair", "k3"))
	q.Push(NewKeyed(CategoryEmergency, PriorityEmergency, "emergency", "k4"))

	want := []string{"emergency", "obstacle", "cup", "chair"}
	for i, text := range want {
		ev, ok := q.PopBlocking(time.Second)
		if !ok {
			t.Fatalf("pop %d: queue unexpectedly empty", i)
		}
		if ev.Text != text {
			t.Errorf("pop %d: got %q, want %q", i, ev.Text, text)
		}
	}
}

func TestQueuePopTimesOutWhenEmpty(t *testing.T) {
	q := NewQueue(NewCooldownFilter())

	start := time.Now()
	_, ok := q.PopBlocking(50 * time.Millisecond)
	if ok {
		t.Fatal("expected timeout on empty queue")
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("pop returned before the timeout elapsed")
	}
}

func TestQueuePopWakesOnPush(t *testing.T) {
	q := NewQueue(NewCooldownFilter())

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(New(CategorySystem, PriorityRoutine, "ready"))
	}()

	ev, ok := q.PopBlocking(2 * time.Second)
	if !ok {
		t.Fatal("expected event pushed by concurrent producer")
	}
	if ev.Text != "ready" {
		t.Errorf("got %q, want %q", ev.Text, "ready")
	}
}

func TestQueueDropsInadmissibleHeadAtPop(t *testing.T) {
	filter := NewCooldownFilter()
	q := NewQueue(filter)

	stale := NewKeyed(CategoryObject, PriorityUrgent, "knife", "knife")
	fresh := NewKeyed(CategoryObject, PriorityRoutine, "cup", "cup")
	q.Push(stale)
	q.Push(fresh)

	// The key becomes inadmissible after enqueue but before pop.
	filter.RecordSpoken(stale, time.Now())

	ev, ok := q.PopBlocking(time.Second)
	if !ok {
		t.Fatal("expected the admissible event")
	}
	if ev.Text != "cup" {
		t.Errorf("got %q, want the stale head discarded and %q returned", ev.Text, "cup")
	}
	if q.Len() != 0 {
		t.Errorf("discarded head should not be requeued, %d events remain", q.Len())
	}
}

func TestQueueDrainReturnsAdmissibleEvents(t *testing.T) {
	filter := NewCooldownFilter()
	q := NewQueue(filter)

	repeat := NewKeyed(CategoryObject, PriorityRoutine, "cup", "cup")
	q.Push(repeat)
	filter.RecordSpoken(repeat, time.Now())

	q.Push(New(CategoryEmergency, PriorityEmergency, "emergency triggered"))
	q.Push(NewKeyed(CategorySystem, PriorityRoutine, "shutting down", "sys"))

	events := q.Drain()
	if len(events) != 2 {
		t.Fatalf("drain returned %d events, want 2", len(events))
	}
	if events[0].Category != CategoryEmergency {
		t.Errorf("drain order: got %s first, want emergency", events[0].Category)
	}
	if q.Len() != 0 {
		t.Errorf("queue should be empty after drain, %d remain", q.Len())
	}
}

func TestQueueConcurrentPushers(t *testing.T) {
	q := NewQueue(NewCooldownFilter())

	var wg sync.WaitGroup
	const producers = 8
	const perProducer = 50

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(NewKeyed(CategoryObject, PriorityRoutine, "x", "unique"))
			}
		}(p)
	}
	wg.Wait()

	// Push-time admission only consults spoken state, so every push lands.
	if got := q.Len(); got != producers*perProducer {
		t.Errorf("queue holds %d events, want %d", got, producers*perProducer)
	}

	// Exactly-once removal: popping everything yields the same count.
	count := 0
	for {
		_, ok := q.PopBlocking(10 * time.Millisecond)
		if !ok {
			break
		}
		count++
	}
	if count != producers*perProducer {
		t.Errorf("popped %d events, want %d", count, producers*perProducer)
	}
}

func TestQueueStableOrderForEqualPriority(t *testing.T) {
	q := NewQueue(NewCooldownFilter())

	now := time.Now()
	for i, text := range []string{"first", "second", "third"} {
		ev := NewKeyed(CategoryObject, PriorityRoutine, text, "k"+text)
		ev.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		q.Push(ev)
	}

	for _, want := range []string{"first", "second", "third"} {
		ev, _ := q.PopBlocking(time.Second)
		if ev.Text != want {
			t.Errorf("got %q, want %q (FIFO among equal priorities)", ev.Text, want)
		}
	}
}
