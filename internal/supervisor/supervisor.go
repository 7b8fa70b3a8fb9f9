// Package supervisor owns the lifecycle of every producer and consumer
// goroutine: start, cooperative stop signal, and bounded join.
package supervisor

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultJoinGrace is how long a worker gets to honor its stop flag before
// it is logged as unresponsive and abandoned.
const DefaultJoinGrace = 2 * time.Second

// StopFlag is a cooperative stop signal: written once per shutdown by the
// supervisor, polled by the owning worker at a bounded interval (once per
// frame, per audio chunk, per ranging cycle).
type StopFlag struct {
	fired atomic.Bool
}

// Set raises the flag. Idempotent.
func (f *StopFlag) Set() { f.fired.Store(true) }

// IsSet reports whether the flag has been raised.
func (f *StopFlag) IsSet() bool { return f.fired.Load() }

// Sleep waits for d, returning early (false) if the flag is raised. Workers
// with long pacing intervals use it so they stay responsive to shutdown.
func (f *StopFlag) Sleep(d time.Duration) bool {
	const step = 50 * time.Millisecond
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if f.fired.Load() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining > step {
			remaining = step
		}
		time.Sleep(remaining)
	}
	return !f.fired.Load()
}

// Worker is a long-running loop that must poll stop and return promptly
// once it is set.
type Worker func(stop *StopFlag)

type handle struct {
	name     string
	stop     *StopFlag
	done     chan struct{}
	producer bool
}

// Supervisor starts workers and coordinates their shutdown. Producers (event
// sources) and consumers (the dispatcher) are tracked separately, because
// shutdown stops producers first and the dispatcher last.
type Supervisor struct {
	logger    *slog.Logger
	joinGrace time.Duration

	mu      sync.Mutex
	handles []*handle
}

// Option configures the Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithJoinGrace sets the per-worker join grace period.
func WithJoinGrace(d time.Duration) Option {
	return func(s *Supervisor) { s.joinGrace = d }
}

// New creates a Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		logger:    slog.Default(),
		joinGrace: DefaultJoinGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartProducer launches a producer worker.
func (s *Supervisor) StartProducer(name string, w Worker) *StopFlag {
	return s.start(name, w, true)
}

// StartConsumer launches a consumer worker (the announcement dispatcher).
func (s *Supervisor) StartConsumer(name string, w Worker) *StopFlag {
	return s.start(name, w, false)
}

func (s *Supervisor) start(name string, w Worker, producer bool) *StopFlag {
	h := &handle{
		name:     name,
		stop:     &StopFlag{},
		done:     make(chan struct{}),
		producer: producer,
	}

	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()

	go func() {
		defer close(h.done)
		w(h.stop)
	}()

	s.logger.Info("worker started", "name", name, "producer", producer)
	return h.stop
}

// StopProducers raises the stop flag on every producer. Consumers keep
// running so queued events can still be spoken.
func (s *Supervisor) StopProducers() {
	for _, h := range s.snapshot() {
		if h.producer {
			h.stop.Set()
		}
	}
}

// JoinProducers waits for each producer to exit, up to the grace period
// each. A wedged producer is logged as unresponsive and abandoned; it must
// never block process exit.
func (s *Supervisor) JoinProducers() {
	s.join(true)
}

// StopConsumers raises the stop flag on every consumer.
func (s *Supervisor) StopConsumers() {
	for _, h := range s.snapshot() {
		if !h.producer {
			h.stop.Set()
		}
	}
}

// JoinConsumers waits for each consumer to exit, up to the grace period each.
func (s *Supervisor) JoinConsumers() {
	s.join(false)
}

func (s *Supervisor) join(producers bool) {
	for _, h := range s.snapshot() {
		if h.producer != producers {
			continue
		}
		select {
		case <-h.done:
			s.logger.Info("worker exited", "name", h.name)
		case <-time.After(s.joinGrace):
			s.logger.Warn("worker unresponsive, proceeding with shutdown",
				"name", h.name,
				"grace", s.joinGrace,
			)
		}
	}
}

func (s *Supervisor) snapshot() []*handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*handle, len(s.handles))
	copy(out, s.handles)
	return out
}
