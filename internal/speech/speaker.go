// Package speech owns the rendering side of the announcement pipeline: the
// Speaker collaborator boundary and the single-consumer dispatcher that is
// the only component allowed to call it.
package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Speaker renders one utterance and blocks until playback finishes. Spoken
// output must not be interleaved, so callers serialize through the
// dispatcher.
type Speaker interface {
	Speak(text string) error
}

// Espeak renders speech by shelling out to the espeak binary shipped on the
// device image. A watchdog timeout kills a hung process so one bad utterance
// cannot stall the pipeline.
type Espeak struct {
	Volume  int // 0..100
	Rate    int // words per minute
	Timeout time.Duration
}

// NewEspeak creates an Espeak renderer with the given amplitude.
func NewEspeak(volume int) *Espeak {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	return &Espeak{
		Volume:  volume,
		Rate:    150,
		Timeout: 10 * time.Second,
	}
}

// Speak runs espeak and waits for it to finish.
func (e *Espeak) Speak(text string) error {
	if text == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "espeak",
		"-a", strconv.Itoa(e.Volume),
		"-s", strconv.Itoa(e.Rate),
		text,
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("espeak failed: %w", err)
	}
	return nil
}
