package alert

import (
	"sync"
	"time"
)

// Default cooldown durations per category. A key with no recorded speech is
// always admitted. Unknown categories fall into the System bucket.
const (
	defaultCooldown = 3 * time.Second
	faceCooldown    = 10 * time.Second
	systemCooldown  = 1 * time.Second
)

// CooldownFilter suppresses repeated announcements that share a cooldown key.
// Admit is read-only; RecordSpoken mutates and is called only by the
// dispatcher after an utterance actually completed. Recording at speak time
// rather than enqueue time means an event that was queued during a flood but
// never reached the speaker does not suppress its successor.
type CooldownFilter struct {
	mu         sync.RWMutex
	durations  map[Category]time.Duration
	lastSpoken map[string]time.Time
}

// NewCooldownFilter creates a filter with the default per-category durations.
func NewCooldownFilter() *CooldownFilter {
	return &CooldownFilter{
		durations: map[Category]time.Duration{
			CategoryObstacle: defaultCooldown,
			CategoryObject:   defaultCooldown,
			CategoryCurrency: defaultCooldown,
			CategoryFace:     faceCooldown,
			CategorySystem:   systemCooldown,
			// Confirmation prompts and emergencies must never be
			// suppressed by an earlier announcement.
			CategoryVoiceFeedback: 0,
			CategoryEmergency:     0,
		},
		lastSpoken: make(map[string]time.Time),
	}
}

// SetDuration overrides the cooldown for a category.
func (f *CooldownFilter) SetDuration(category Category, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[category] = d
}

// Admit reports whether the event may be spoken at the given time. It does
// not mutate state and is safe to call from any producer goroutine.
func (f *CooldownFilter) Admit(ev Event, now time.Time) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	last, ok := f.lastSpoken[ev.CooldownKey]
	if !ok {
		return true
	}
	return now.Sub(last) >= f.durationLocked(ev.Category)
}

// RecordSpoken marks the event's key as spoken at the given time. Called by
// the dispatcher after the speech call returned successfully.
func (f *CooldownFilter) RecordSpoken(ev Event, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSpoken[ev.CooldownKey] = now
}

func (f *CooldownFilter) durationLocked(category Category) time.Duration {
	if d, ok := f.durations[category]; ok {
		return d
	}
	return f.durations[CategorySystem]
}
