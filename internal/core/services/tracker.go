package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/ReylordDev/psycluster/internal/core/domain"
)

// ProgressTracker is the state machine over the ordered pipeline steps.
// It is derived purely from worker events and is the authoritative
// answer to "is a run executing, and at which step".
//
// It also owns the single-run mutual exclusion: Begin acquires the
// in-flight flag atomically and Finish releases it, only ever at a
// terminal outcome.
type ProgressTracker struct {
	mu        sync.Mutex
	active    bool
	statuses  map[domain.Step]domain.Status
	completed map[domain.Step]time.Time
	last      domain.Step
	hasLast   bool
	failed    bool
}

// NewProgressTracker creates an idle tracker with every step at todo.
func NewProgressTracker() *ProgressTracker {
	t := &ProgressTracker{}
	t.reset()
	return t
}

// reset puts every step back to todo. Caller holds mu or has exclusive
// access.
func (t *ProgressTracker) reset() {
	t.statuses = make(map[domain.Step]domain.Status, len(domain.Steps()))
	for _, step := range domain.Steps() {
		t.statuses[step] = domain.StatusTodo
	}
	t.completed = make(map[domain.Step]time.Time)
	t.hasLast = false
	t.failed = false
}

// Begin atomically acquires the in-flight flag and resets the step
// machine. Returns domain.ErrAlreadyRunning if a run is in flight.
func (t *ProgressTracker) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return domain.ErrAlreadyRunning
	}
	t.active = true
	t.reset()
	return nil
}

// Finish releases the in-flight flag. Called exactly once per Begin,
// after the run reached a terminal outcome and its result (if any) was
// persisted.
func (t *ProgressTracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
}

// Active reports whether a run currently holds the in-flight flag.
func (t *ProgressTracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Apply validates one progress event against the step ordering rules
// and records it. The only legal per-step sequence is
// todo -> start -> complete or todo -> start -> error, and a step may
// only start once its predecessor completed. Violations return
// domain.ErrProtocol: they indicate a broken worker, not a pipeline
// failure, and the caller must abort the run.
func (t *ProgressTracker) Apply(ev domain.ProgressEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !ev.Step.IsValid() {
		return fmt.Errorf("%w: unknown step %q", domain.ErrProtocol, ev.Step)
	}
	if t.failed {
		return fmt.Errorf("%w: event for step %s after pipeline error", domain.ErrProtocol, ev.Step)
	}

	current := t.statuses[ev.Step]
	switch ev.Status {
	case domain.StatusStart:
		if current != domain.StatusTodo {
			return fmt.Errorf("%w: step %s started twice", domain.ErrProtocol, ev.Step)
		}
		if idx := domain.StepIndex(ev.Step); idx > 0 {
			prev := domain.Steps()[idx-1]
			if t.statuses[prev] != domain.StatusComplete {
				return fmt.Errorf("%w: step %s started before %s completed",
					domain.ErrProtocol, ev.Step, prev)
			}
		}
		t.statuses[ev.Step] = domain.StatusStart
		t.last = ev.Step
		t.hasLast = true

	case domain.StatusComplete:
		if current != domain.StatusStart {
			return fmt.Errorf("%w: step %s completed without starting", domain.ErrProtocol, ev.Step)
		}
		t.statuses[ev.Step] = domain.StatusComplete
		t.completed[ev.Step] = ev.Timestamp

	case domain.StatusError:
		if current != domain.StatusStart {
			return fmt.Errorf("%w: step %s errored without starting", domain.ErrProtocol, ev.Step)
		}
		t.statuses[ev.Step] = domain.StatusError
		t.failed = true

	default:
		return fmt.Errorf("%w: illegal status %q for step %s", domain.ErrProtocol, ev.Status, ev.Step)
	}

	return nil
}

// Terminal reports whether the run reached a terminal state: the save
// step completed or any step errored.
func (t *ProgressTracker) Terminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed || t.statuses[domain.StepSave] == domain.StatusComplete
}

// Succeeded reports whether the run completed its save step.
func (t *ProgressTracker) Succeeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.failed && t.statuses[domain.StepSave] == domain.StatusComplete
}

// Failed reports whether a step reported an error status.
func (t *ProgressTracker) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// LastStarted returns the most recently started step. Used to
// attribute an abnormal worker termination to a step.
func (t *ProgressTracker) LastStarted() (domain.Step, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.hasLast
}

// Status returns the current status of one step.
func (t *ProgressTracker) Status(step domain.Step) domain.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statuses[step]
}

// Timesteps derives the per-step completion record accumulated so far.
func (t *ProgressTracker) Timesteps() domain.Timesteps {
	t.mu.Lock()
	defer t.mu.Unlock()
	steps := make(map[domain.Step]time.Time, len(t.completed))
	for step, ts := range t.completed {
		steps[step] = ts
	}
	return domain.Timesteps{Steps: steps}
}
