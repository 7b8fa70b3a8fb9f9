package vision

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Rajvardhan-Desai/vision-aid/internal/alert"
	"github.com/Rajvardhan-Desai/vision-aid/internal/supervisor"
)

var errNoFrame = errors.New("no frame")

// scriptedSource replays a fixed sequence of frames, then errors so the
// producer backs off without processing further (empty) frames.
type scriptedSource struct {
	frames [][]Detection
	idx    int
}

func (s *scriptedSource) Next() ([]Detection, error) {
	if s.idx >= len(s.frames) {
		return nil, errNoFrame
	}
	frame := s.frames[s.idx]
	s.idx++
	return frame, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func det(label string, conf float64, x, y float64) Detection {
	return Detection{Label: label, Confidence: conf, Box: [4]float64{x, y, x + 40, y + 40}}
}

func runFrames(t *testing.T, p *Producer, frames int) {
	t.Helper()
	var stop supervisor.StopFlag
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(&stop)
	}()
	time.Sleep(time.Duration(frames+5) * 10 * time.Millisecond)
	stop.Set()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop")
	}
}

func TestStabilityGridRequiresConsecutiveFrames(t *testing.T) {
	queue := alert.NewQueue(alert.NewCooldownFilter())
	cfg := DefaultConfig()
	cfg.RequiredFrames = 3

	// Same knife in the same cell for three frames; a one-frame flicker of
	// a person elsewhere.
	src := &scriptedSource{frames: [][]Detection{
		{det("knife", 0.9, 100, 100), det("person", 0.9, 300, 300)},
		{det("knife", 0.9, 105, 102)},
		{det("knife", 0.9, 103, 99)},
	}}

	p := NewProducer(src, nil, queue, cfg, quietLogger())
	runFrames(t, p, 3)

	events := queue.Drain()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 stable knife announcement: %v", len(events), events)
	}
	if events[0].Text != "knife" {
		t.Errorf("announced %q, want knife", events[0].Text)
	}
	if events[0].Priority != alert.PriorityUrgent {
		t.Errorf("harmful object priority = %d, want %d", events[0].Priority, alert.PriorityUrgent)
	}
}

func TestVerbosityLessSkipsHarmlessObjects(t *testing.T) {
	queue := alert.NewQueue(alert.NewCooldownFilter())
	cfg := DefaultConfig()
	cfg.RequiredFrames = 1
	cfg.AlertAll = false

	src := &scriptedSource{frames: [][]Detection{
		{det("cup", 0.9, 100, 100), det("scissors", 0.9, 300, 300)},
	}}

	p := NewProducer(src, nil, queue, cfg, quietLogger())
	runFrames(t, p, 1)

	events := queue.Drain()
	if len(events) != 1 || events[0].Text != "scissors" {
		t.Errorf("events = %v, want only the harmful scissors", events)
	}
}

func TestVerbosityAllAnnouncesEverything(t *testing.T) {
	queue := alert.NewQueue(alert.NewCooldownFilter())
	cfg := DefaultConfig()
	cfg.RequiredFrames = 1
	cfg.AlertAll = true

	src := &scriptedSource{frames: [][]Detection{
		{det("cup", 0.9, 100, 100), det("chair", 0.9, 300, 300)},
	}}

	p := NewProducer(src, nil, queue, cfg, quietLogger())
	runFrames(t, p, 1)

	if events := queue.Drain(); len(events) != 2 {
		t.Errorf("got %d events with alert-all, want 2", len(events))
	}
}

func TestConfidenceThresholdFiltersDetections(t *testing.T) {
	queue := alert.NewQueue(alert.NewCooldownFilter())
	cfg := DefaultConfig()
	cfg.RequiredFrames = 1
	cfg.AlertAll = true

	src := &scriptedSource{frames: [][]Detection{
		{det("cup", 0.3, 100, 100), det("chair", 0.8, 300, 300)},
	}}

	p := NewProducer(src, nil, queue, cfg, quietLogger())
	runFrames(t, p, 1)

	events := queue.Drain()
	if len(events) != 1 || events[0].Text != "chair" {
		t.Errorf("events = %v, want only the confident chair", events)
	}
}

func TestCurrencyModeAnnouncesNotes(t *testing.T) {
	queue := alert.NewQueue(alert.NewCooldownFilter())
	cfg := DefaultConfig()
	cfg.RequiredFrames = 1

	objects := &scriptedSource{}
	currency := &scriptedSource{frames: [][]Detection{
		{det("ten rupees", 0.95, 100, 100)},
	}}

	p := NewProducer(objects, currency, queue, cfg, quietLogger())
	if !p.EnableCurrencyMode() {
		t.Fatal("EnableCurrencyMode refused with a currency source configured")
	}
	runFrames(t, p, 1)

	events := queue.Drain()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 currency announcement", len(events))
	}
	if events[0].Category != alert.CategoryCurrency {
		t.Errorf("category = %s, want currency", events[0].Category)
	}
	if !strings.Contains(events[0].Text, "ten rupees") {
		t.Errorf("text = %q, want the note label", events[0].Text)
	}
}

func TestCurrencyModeRefusedWithoutModel(t *testing.T) {
	queue := alert.NewQueue(alert.NewCooldownFilter())
	p := NewProducer(&scriptedSource{}, nil, queue, DefaultConfig(), quietLogger())

	if p.EnableCurrencyMode() {
		t.Error("EnableCurrencyMode succeeded with no currency source")
	}
	if p.CurrencyActive() {
		t.Error("currency mode active with no currency source")
	}
}

func TestCurrencyModeExpires(t *testing.T) {
	queue := alert.NewQueue(alert.NewCooldownFilter())
	cfg := DefaultConfig()
	cfg.CurrencyWindow = 20 * time.Millisecond

	p := NewProducer(&scriptedSource{}, &scriptedSource{}, queue, cfg, quietLogger())
	p.EnableCurrencyMode()

	if !p.CurrencyActive() {
		t.Fatal("currency mode should be active immediately after enabling")
	}
	time.Sleep(40 * time.Millisecond)
	if p.CurrencyActive() {
		t.Error("currency mode still active past its window")
	}
}

func TestProcessCurrencyNMSCollapsesOverlaps(t *testing.T) {
	dets := []Detection{
		{Label: "ten", Confidence: 0.95, Box: [4]float64{100, 100, 200, 200}},
		{Label: "ten", Confidence: 0.90, Box: [4]float64{105, 105, 205, 205}}, // overlaps
		{Label: "ten", Confidence: 0.92, Box: [4]float64{400, 400, 500, 500}}, // distinct
		{Label: "ten", Confidence: 0.50, Box: [4]float64{600, 600, 700, 700}}, // below floor
	}

	got := ProcessCurrency(dets, 0.85)
	if len(got) != 2 {
		t.Fatalf("got %d notes after NMS, want 2: %v", len(got), got)
	}
	if got[0].Confidence != 0.95 {
		t.Errorf("highest-confidence note should come first, got %v", got[0])
	}
}

func TestLastSeenTracksCurrentFrame(t *testing.T) {
	queue := alert.NewQueue(alert.NewCooldownFilter())
	cfg := DefaultConfig()
	cfg.RequiredFrames = 1
	cfg.AlertAll = true

	src := &scriptedSource{frames: [][]Detection{
		{det("cup", 0.9, 100, 100)},
	}}

	p := NewProducer(src, nil, queue, cfg, quietLogger())
	runFrames(t, p, 1)

	seen := p.LastSeen()
	if len(seen) != 1 || seen[0] != "cup" {
		t.Errorf("LastSeen = %v, want [cup]", seen)
	}
}
