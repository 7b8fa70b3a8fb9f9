package supervisor

import (
	"log/slog"
	"time"
)

// DefaultDrainDeadline bounds how long the shutdown flush may keep speaking
// leftover events.
const DefaultDrainDeadline = 5 * time.Second

// Coordinator drives the cooperative shutdown protocol:
//
//  1. stop every producer, so no new events enter the queue
//  2. join producers with a bounded grace period
//  3. flush the queue, speaking remaining admissible events under a deadline
//  4. stop and join the dispatcher
//  5. run collaborator release hooks (camera, audio device, SMTP client)
//
// This ordering guarantees nothing queued before shutdown is lost while
// guaranteeing nothing is produced after step 1.
type Coordinator struct {
	sup           *Supervisor
	flush         func(deadline time.Time)
	releaseHooks  []func()
	drainDeadline time.Duration
	logger        *slog.Logger
}

// CoordinatorOption configures the Coordinator.
type CoordinatorOption func(*Coordinator)

// WithDrainDeadline bounds the shutdown flush.
func WithDrainDeadline(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.drainDeadline = d }
}

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

// WithReleaseHook appends a collaborator release hook, run last.
func WithReleaseHook(hook func()) CoordinatorOption {
	return func(c *Coordinator) { c.releaseHooks = append(c.releaseHooks, hook) }
}

// NewCoordinator creates a Coordinator. flush drains the alert queue and
// speaks what remains; it may be nil when there is nothing to flush.
func NewCoordinator(sup *Supervisor, flush func(deadline time.Time), opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		sup:           sup,
		flush:         flush,
		drainDeadline: DefaultDrainDeadline,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Shutdown runs the full protocol. Safe to call from the main control loop;
// returns once every step completed or timed out.
func (c *Coordinator) Shutdown() {
	c.logger.Info("shutdown started")

	c.sup.StopProducers()
	c.sup.JoinProducers()

	if c.flush != nil {
		c.flush(time.Now().Add(c.drainDeadline))
	}

	c.sup.StopConsumers()
	c.sup.JoinConsumers()

	for _, hook := range c.releaseHooks {
		hook()
	}

	c.logger.Info("shutdown complete")
}
