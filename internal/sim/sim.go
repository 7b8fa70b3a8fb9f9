// Package sim provides simulated collaborators so the pipeline can run on a
// development machine without camera, ultrasonic sensor, or speech
// recognizer hardware. Transcripts come from stdin, speech goes to the log.
package sim

import (
	"bufio"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/Rajvardhan-Desai/vision-aid/internal/vision"
)

// Speaker writes utterances to the logger instead of a TTS engine.
type Speaker struct {
	Logger *slog.Logger
}

func (s *Speaker) Speak(text string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("SPEAK", "text", text)
	return nil
}

// Transcripts returns a channel fed by lines read from r, one utterance per
// line. The channel closes when r reaches EOF.
func Transcripts(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}()
	return out
}

// Ranger simulates an ultrasonic sensor with a bounded random walk, so the
// distance bands all get exercised over time.
type Ranger struct {
	mu sync.Mutex
	cm float64
	rn *rand.Rand
}

// NewRanger creates a simulated ranger starting at 120cm.
func NewRanger() *Ranger {
	return &Ranger{
		cm: 120,
		rn: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Ranger) Distance() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cm += (r.rn.Float64() - 0.5) * 10
	if r.cm < 10 {
		r.cm = 10
	}
	if r.cm > 200 {
		r.cm = 200
	}
	return r.cm, nil
}

// Scene is a scripted detection source that loops through frames with a
// fixed delay, standing in for the object detector.
type Scene struct {
	Frames [][]vision.Detection
	Delay  time.Duration

	mu sync.Mutex
	i  int
}

func (s *Scene) Next() ([]vision.Detection, error) {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Frames) == 0 {
		return nil, nil
	}
	frame := s.Frames[s.i%len(s.Frames)]
	s.i++
	return frame, nil
}

// DemoScene returns a scene with a person walking through and a knife
// appearing briefly, enough to exercise the stability filter.
func DemoScene() *Scene {
	person := vision.Detection{Label: "person", Confidence: 0.9, Box: [4]float64{100, 100, 200, 300}}
	knife := vision.Detection{Label: "knife", Confidence: 0.8, Box: [4]float64{300, 200, 360, 260}}
	return &Scene{
		Delay: 300 * time.Millisecond,
		Frames: [][]vision.Detection{
			{person},
			{person},
			{person},
			{person, knife},
			{person, knife},
			{person, knife},
			{},
			{},
		},
	}
}
