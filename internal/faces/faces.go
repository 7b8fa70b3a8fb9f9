// Package faces announces recognized people. Recognition itself happens in a
// collaborator; this package only decides which matches are worth speaking.
package faces

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Rajvardhan-Desai/vision-aid/internal/alert"
	"github.com/Rajvardhan-Desai/vision-aid/internal/supervisor"
)

// Match is one recognized face in a frame.
type Match struct {
	Name       string
	Confidence float64
}

// Recognizer is the face-recognition collaborator: matches for the current
// frame, one call per cycle.
type Recognizer interface {
	Recognize() ([]Match, error)
}

// UnknownName is the label recognizers use for faces not in the gallery.
const UnknownName = "Unknown"

// Config tunes the producer.
type Config struct {
	Interval  time.Duration
	Threshold float64 // minimum confidence to announce
}

// DefaultConfig returns the runtime defaults.
func DefaultConfig() Config {
	return Config{
		Interval:  500 * time.Millisecond,
		Threshold: 0.55,
	}
}

// Producer is the face-announcement worker.
type Producer struct {
	recognizer Recognizer
	queue      *alert.Queue
	cfg        Config
	logger     *slog.Logger

	mu       sync.Mutex
	lastSeen []string
}

// NewProducer creates a face producer.
func NewProducer(recognizer Recognizer, queue *alert.Queue, cfg Config, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.55
	}
	return &Producer{
		recognizer: recognizer,
		queue:      queue,
		cfg:        cfg,
		logger:     logger,
	}
}

// LastSeen returns the names recognized in the most recent frame. Used by
// the "faces" voice command.
func (p *Producer) LastSeen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.lastSeen))
	copy(out, p.lastSeen)
	return out
}

// Run is the producer loop; polls its stop flag once per cycle.
func (p *Producer) Run(stop *supervisor.StopFlag) {
	for !stop.IsSet() {
		p.cycle()
		if !stop.Sleep(p.cfg.Interval) {
			return
		}
	}
}

func (p *Producer) cycle() {
	matches, err := p.recognizer.Recognize()
	if err != nil {
		p.logger.Debug("face recognition failed", "error", err)
		return
	}

	var seen []string
	for _, m := range matches {
		if m.Name == UnknownName || m.Confidence < p.cfg.Threshold {
			continue
		}
		seen = append(seen, m.Name)
		p.queue.Push(alert.NewKeyed(alert.CategoryFace, alert.PriorityGentle,
			m.Name, "face:"+m.Name))
	}

	p.mu.Lock()
	p.lastSeen = seen
	p.mu.Unlock()
}
