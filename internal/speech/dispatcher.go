package speech

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rajvardhan-Desai/vision-aid/internal/alert"
	"github.com/Rajvardhan-Desai/vision-aid/internal/supervisor"
)

// DefaultPopTimeout keeps the dispatcher responsive to its stop flag while
// waiting for events.
const DefaultPopTimeout = 200 * time.Millisecond

// Dispatcher is the single consumer draining the alert queue. It is the only
// component permitted to call the Speaker, which guarantees utterances are
// never interleaved or overlapped.
type Dispatcher struct {
	queue      *alert.Queue
	filter     *alert.CooldownFilter
	speaker    Speaker
	logger     *slog.Logger
	popTimeout time.Duration

	muted atomic.Bool

	// speakMu serializes every utterance. Run and Flush both call
	// speakEvent, and during shutdown they briefly coexist; the lock keeps
	// spoken output from ever overlapping.
	speakMu sync.Mutex

	mu       sync.Mutex
	onSpoken []func(alert.Event)
}

// DispatcherOption configures the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithPopTimeout sets the blocking-pop timeout.
func WithPopTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.popTimeout = t }
}

// NewDispatcher creates a dispatcher. The filter must be the same one the
// queue admits through, since the dispatcher records spoken events into it.
func NewDispatcher(queue *alert.Queue, filter *alert.CooldownFilter, speaker Speaker, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queue:      queue,
		filter:     filter,
		speaker:    speaker,
		logger:     slog.Default(),
		popTimeout: DefaultPopTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnSpoken registers a callback invoked after each successfully spoken
// event. Used by the history store and the remote feed. Register before
// starting the run loop.
func (d *Dispatcher) OnSpoken(fn func(alert.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSpoken = append(d.onSpoken, fn)
}

// SetMuted toggles announcement muting. While muted, only voice feedback and
// emergency events reach the speaker, so the user still hears confirmations.
func (d *Dispatcher) SetMuted(muted bool) {
	d.muted.Store(muted)
}

// Muted reports the current mute state.
func (d *Dispatcher) Muted() bool {
	return d.muted.Load()
}

// Run is the consumer loop, started by the supervisor. It pops with a short
// timeout so it notices its stop flag promptly.
func (d *Dispatcher) Run(stop *supervisor.StopFlag) {
	for !stop.IsSet() {
		ev, ok := d.queue.PopBlocking(d.popTimeout)
		if !ok {
			continue
		}
		d.speakEvent(ev)
	}
}

// Flush drains the queue and speaks the remaining admissible events, best
// effort, until the deadline. Called by the shutdown coordinator after
// producers have been joined.
func (d *Dispatcher) Flush(deadline time.Time) {
	events := d.queue.Drain()
	for i, ev := range events {
		if time.Now().After(deadline) {
			d.logger.Warn("drain deadline reached, dropping remaining events",
				"dropped", len(events)-i,
			)
			return
		}
		d.speakEvent(ev)
	}
}

func (d *Dispatcher) speakEvent(ev alert.Event) {
	d.speakMu.Lock()
	defer d.speakMu.Unlock()

	if d.muted.Load() && ev.Category != alert.CategoryVoiceFeedback && ev.Category != alert.CategoryEmergency {
		return
	}

	if err := d.speaker.Speak(ev.Text); err != nil {
		// One failed utterance must never stall future ones: log,
		// drop, move on. No retry.
		d.logger.Error("speech render failed, dropping event",
			"category", ev.Category,
			"text", ev.Text,
			"error", err,
		)
		return
	}

	now := time.Now()
	d.filter.RecordSpoken(ev, now)

	d.mu.Lock()
	callbacks := make([]func(alert.Event), len(d.onSpoken))
	copy(callbacks, d.onSpoken)
	d.mu.Unlock()
	for _, fn := range callbacks {
		fn(ev)
	}
}
