package alert

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies what an announcement is about. The category decides
// which cooldown bucket applies and how remote clients group the feed.
type Category string

const (
	CategoryObstacle      Category = "obstacle"
	CategoryObject        Category = "object"
	CategoryCurrency      Category = "currency"
	CategoryFace          Category = "face"
	CategorySystem        Category = "system"
	CategoryVoiceFeedback Category = "voice_feedback"
	CategoryEmergency     Category = "emergency"
)

// Priority levels. Lower value dequeues first.
const (
	PriorityEmergency = 0
	PriorityUrgent    = 1
	PriorityWarning   = 2
	PriorityGentle    = 3
	PriorityRoutine   = 4
)

// Event is a unit of information destined to be spoken. Immutable once
// constructed; producers build one and push it, nobody mutates it after.
type Event struct {
	ID          string    `json:"id"`
	Category    Category  `json:"category"`
	Priority    int       `json:"priority"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
	CooldownKey string    `json:"cooldown_key"`
}

// New creates an event whose cooldown key is the category itself.
func New(category Category, priority int, text string) Event {
	return NewKeyed(category, priority, text, string(category))
}

// NewKeyed creates an event with an explicit cooldown key, so distinct
// subjects (a recognized person, an object class) are not mutually
// suppressed.
func NewKeyed(category Category, priority int, text, cooldownKey string) Event {
	return Event{
		ID:          uuid.New().String(),
		Category:    category,
		Priority:    priority,
		Text:        text,
		CreatedAt:   time.Now(),
		CooldownKey: cooldownKey,
	}
}
