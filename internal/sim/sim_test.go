package sim

import (
	"strings"
	"testing"
)

func TestTranscriptsReadsLines(t *testing.T) {
	ch := Transcripts(strings.NewReader("assistant\nmute\n"))

	if got := <-ch; got != "assistant" {
		t.Errorf("first line = %q", got)
	}
	if got := <-ch; got != "mute" {
		t.Errorf("second line = %q", got)
	}
	if _, ok := <-ch; ok {
		t.Error("channel not closed at EOF")
	}
}

func TestRangerStaysInBounds(t *testing.T) {
	r := NewRanger()
	for i := 0; i < 1000; i++ {
		cm, err := r.Distance()
		if err != nil {
			t.Fatalf("Distance: %v", err)
		}
		if cm < 10 || cm > 200 {
			t.Fatalf("distance %v out of bounds", cm)
		}
	}
}

func TestSceneLoops(t *testing.T) {
	s := DemoScene()
	s.Delay = 0
	n := len(s.Frames)
	for i := 0; i < n*2; i++ {
		if _, err := s.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
}
