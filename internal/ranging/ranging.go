// Package ranging turns obstacle distance readings into announcements and
// haptic cues. Readings are median-smoothed over a short window so a single
// bad echo does not fire an urgent alert.
package ranging

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Rajvardhan-Desai/vision-aid/internal/alert"
	"github.com/Rajvardhan-Desai/vision-aid/internal/supervisor"
)

// Ranger is the obstacle-ranging collaborator: one distance measurement in
// centimeters per call. A negative value or error means no valid reading.
type Ranger interface {
	Distance() (float64, error)
}

// Pattern selects a haptic cue strength.
type Pattern string

const (
	PatternUrgent  Pattern = "urgent"
	PatternWarning Pattern = "warning"
	PatternGentle  Pattern = "gentle"
	PatternNone    Pattern = "none"
)

// Pulser is the vibration collaborator. Pulse must not block the ranging
// loop for longer than one cycle.
type Pulser interface {
	Pulse(pattern Pattern)
}

// Distance bands in centimeters.
const (
	bandUrgent  = 40
	bandWarning = 70
	bandGentle  = 110
)

// PriorityForDistance maps a distance to an announcement priority. The
// second return is false when the distance warrants no event (out of range
// or invalid).
func PriorityForDistance(cm float64) (int, bool) {
	switch {
	case cm < 0:
		return 0, false
	case cm < bandUrgent:
		return alert.PriorityUrgent, true
	case cm < bandWarning:
		return alert.PriorityWarning, true
	case cm < bandGentle:
		return alert.PriorityGentle, true
	default:
		return 0, false
	}
}

// PatternForDistance maps a distance to a haptic cue.
func PatternForDistance(cm float64) Pattern {
	switch {
	case cm < 0:
		return PatternNone
	case cm < bandUrgent:
		return PatternUrgent
	case cm < bandWarning:
		return PatternWarning
	case cm < bandGentle:
		return PatternGentle
	default:
		return PatternNone
	}
}

// Config tunes the producer.
type Config struct {
	Interval   time.Duration // pacing between readings
	WindowSize int           // median smoothing window
}

// DefaultConfig returns the device defaults.
func DefaultConfig() Config {
	return Config{
		Interval:   100 * time.Millisecond,
		WindowSize: 7,
	}
}

// Producer is the obstacle-ranging worker.
type Producer struct {
	ranger Ranger
	pulser Pulser
	queue  *alert.Queue
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	window []float64
	last   float64 // most recent smoothed distance; -1 before first reading
}

// NewProducer creates a ranging producer. pulser may be nil when no
// vibration hardware is present.
func NewProducer(ranger Ranger, pulser Pulser, queue *alert.Queue, cfg Config, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 7
	}
	return &Producer{
		ranger: ranger,
		pulser: pulser,
		queue:  queue,
		cfg:    cfg,
		logger: logger,
		last:   -1,
	}
}

// LastDistance returns the most recent smoothed distance in cm, or -1 when
// no valid reading has been taken. Used by the "distance" voice command.
func (p *Producer) LastDistance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run is the producer loop; polls its stop flag once per reading cycle.
func (p *Producer) Run(stop *supervisor.StopFlag) {
	for !stop.IsSet() {
		p.cycle()
		if !stop.Sleep(p.cfg.Interval) {
			return
		}
	}
}

func (p *Producer) cycle() {
	cm, err := p.ranger.Distance()
	if err != nil {
		p.logger.Debug("ranging read failed", "error", err)
		return
	}
	if cm < 0 {
		return
	}

	med := p.smooth(cm)

	if priority, ok := PriorityForDistance(med); ok {
		p.queue.Push(alert.NewKeyed(alert.CategoryObstacle, priority,
			fmt.Sprintf("Obstacle at %d centimeters", int(med)), "obstacle"))
	}
	if p.pulser != nil {
		if pattern := PatternForDistance(med); pattern != PatternNone {
			p.pulser.Pulse(pattern)
		}
	}
}

func (p *Producer) smooth(cm float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.window = append(p.window, cm)
	if len(p.window) > p.cfg.WindowSize {
		p.window = p.window[1:]
	}

	sorted := make([]float64, len(p.window))
	copy(sorted, p.window)
	sort.Float64s(sorted)
	med := sorted[len(sorted)/2]

	p.last = med
	return med
}
