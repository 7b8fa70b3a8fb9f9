package voice

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Rajvardhan-Desai/vision-aid/internal/alert"
)

// State of the interpreter's command capture cycle.
type State string

const (
	// StateIdle listens passively for the wake word.
	StateIdle State = "idle"
	// StateListening parses the next utterance as a command.
	StateListening State = "listening"
	// StateAwaitingConfirmation holds a destructive command until the user
	// answers yes or no.
	StateAwaitingConfirmation State = "awaiting_confirmation"
)

// DefaultWakeWord triggers the transition from passive listening.
const DefaultWakeWord = "assistant"

// DefaultConfirmWindow bounds how long an unanswered confirmation prompt
// stays pending before it auto-cancels.
const DefaultConfirmWindow = 10 * time.Second

var affirmatives = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "confirm": true,
}

// Interpreter is a state machine over recognized text segments. It never
// blocks its caller: feedback goes out as queued voice events, and resolved
// commands are handed to the execute callback, which must itself not block.
// The confirmation timeout is resolved during normal processing (next input
// or a supervisor tick), not by a timer interrupt.
type Interpreter struct {
	queue         *alert.Queue
	execute       func(Command)
	logger        *slog.Logger
	wakeWord      string
	confirmWindow time.Duration
	now           func() time.Time

	mu           sync.Mutex
	state        State
	pending      Command
	pendingSince time.Time
}

// InterpreterOption configures the Interpreter.
type InterpreterOption func(*Interpreter)

// WithWakeWord overrides the wake word.
func WithWakeWord(word string) InterpreterOption {
	return func(i *Interpreter) { i.wakeWord = strings.ToLower(word) }
}

// WithConfirmWindow overrides the confirmation auto-cancel window.
func WithConfirmWindow(d time.Duration) InterpreterOption {
	return func(i *Interpreter) { i.confirmWindow = d }
}

// WithInterpreterLogger sets the logger.
func WithInterpreterLogger(logger *slog.Logger) InterpreterOption {
	return func(i *Interpreter) { i.logger = logger }
}

// withClock injects a fake clock for tests.
func withClock(now func() time.Time) InterpreterOption {
	return func(i *Interpreter) { i.now = now }
}

// NewInterpreter creates an interpreter that enqueues spoken feedback into
// queue and hands resolved commands to execute.
func NewInterpreter(queue *alert.Queue, execute func(Command), opts ...InterpreterOption) *Interpreter {
	i := &Interpreter{
		queue:         queue,
		execute:       execute,
		logger:        slog.Default(),
		wakeWord:      DefaultWakeWord,
		confirmWindow: DefaultConfirmWindow,
		now:           time.Now,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// State returns the current state.
func (i *Interpreter) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Feed processes one recognized text segment.
func (i *Interpreter) Feed(text string) {
	now := i.now()
	msg := strings.ToLower(strings.TrimSpace(text))

	i.mu.Lock()
	i.expireLocked(now)

	// Empty segments come out of the recognizer between words; they carry
	// no answer and must not mutate state.
	if msg == "" {
		i.mu.Unlock()
		return
	}

	var toExecute *Command

	switch i.state {
	case StateIdle:
		if strings.Contains(msg, i.wakeWord) {
			i.state = StateListening
			i.feedback("Yes?")
		}

	case StateListening:
		cmd, ok := Parse(msg)
		if !ok {
			i.logger.Debug("command not understood", "text", text)
			i.feedback("Command not understood")
			i.state = StateIdle
			break
		}
		if cmd.RequiresConfirmation {
			i.state = StateAwaitingConfirmation
			i.pending = cmd
			i.pendingSince = now
			i.feedback(fmt.Sprintf("Confirm %s?", cmd.Kind.Description()))
			break
		}
		toExecute = &cmd
		i.state = StateIdle

	case StateAwaitingConfirmation:
		if isAffirmative(msg) {
			cmd := i.pending
			toExecute = &cmd
		} else {
			i.logger.Info("command canceled", "kind", i.pending.Kind)
			i.feedback("Canceled")
		}
		i.pending = Command{}
		i.state = StateIdle
	}
	i.mu.Unlock()

	// Execute outside the lock so a command handler may call back into the
	// interpreter without deadlocking.
	if toExecute != nil {
		i.logger.Info("voice command", "kind", toExecute.Kind)
		i.execute(*toExecute)
	}
}

// Tick resolves a stale confirmation when no further input arrives. Called
// periodically by the supervisor's voice worker.
func (i *Interpreter) Tick() {
	now := i.now()
	i.mu.Lock()
	defer i.mu.Unlock()
	i.expireLocked(now)
}

// expireLocked auto-cancels a confirmation left unanswered past the window,
// so a stuck state machine cannot block future commands.
func (i *Interpreter) expireLocked(now time.Time) {
	if i.state != StateAwaitingConfirmation {
		return
	}
	if now.Sub(i.pendingSince) < i.confirmWindow {
		return
	}
	i.logger.Info("confirmation timed out", "kind", i.pending.Kind)
	i.feedback("Canceled")
	i.pending = Command{}
	i.state = StateIdle
}

// feedback enqueues a high-priority spoken response. Push never blocks.
func (i *Interpreter) feedback(text string) {
	i.queue.Push(alert.New(alert.CategoryVoiceFeedback, alert.PriorityUrgent, text))
}

func isAffirmative(msg string) bool {
	for _, w := range strings.Fields(msg) {
		if affirmatives[w] {
			return true
		}
	}
	return false
}
