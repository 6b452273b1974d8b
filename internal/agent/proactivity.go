package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nidhogg/openclaw/internal/todostore"
)

// actionableKeywords hint that a task can be completed with the agent's
// own tools rather than by the user.
var actionableKeywords = []string{"find", "search", "check", "look up", "get", "fetch"}

// PendingLister is the slice of the to-do store the proactivity engine
// reads from.
type PendingLister interface {
	GetPending(ctx context.Context) ([]todostore.Item, error)
}

// ProactivityEngine generates unprompted suggestions from agent state.
// The startup check is a one-time state transition per engine instance;
// the after-update check fires at most once per recorded task mutation.
type ProactivityEngine struct {
	store PendingLister

	mu        sync.Mutex
	startup   startupState
	taskDirty bool
}

type startupState int

const (
	startupPending startupState = iota
	startupDone
)

func NewProactivityEngine(store PendingLister) *ProactivityEngine {
	return &ProactivityEngine{store: store}
}

// CheckOnStartup reports pending tasks once per engine lifetime. Every
// call after the first returns "", whatever the first returned.
func (e *ProactivityEngine) CheckOnStartup(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.startup == startupDone {
		e.mu.Unlock()
		return "", nil
	}
	e.startup = startupDone
	e.mu.Unlock()

	pending, err := e.store.GetPending(ctx)
	if err != nil {
		return "", fmt.Errorf("proactivity startup check: %w", err)
	}
	if len(pending) == 0 {
		return "", nil
	}
	if len(pending) == 1 {
		return fmt.Sprintf("I see you have an unfinished task: %q. Want me to work on it?",
			pending[0].Text), nil
	}
	return fmt.Sprintf("I see you have %d unfinished tasks. Want me to help with one of them?",
		len(pending)), nil
}

// NoteTaskMutation records that a task was added, deleted, or toggled.
// The next CheckAfterTaskUpdate call consumes it.
func (e *ProactivityEngine) NoteTaskMutation() {
	e.mu.Lock()
	e.taskDirty = true
	e.mu.Unlock()
}

// CheckAfterTaskUpdate suggests acting on the first pending task whose
// text contains an actionable keyword. It returns "" until a task
// mutation has been recorded since the previous check.
func (e *ProactivityEngine) CheckAfterTaskUpdate(ctx context.Context) (string, error) {
	e.mu.Lock()
	if !e.taskDirty {
		e.mu.Unlock()
		return "", nil
	}
	e.taskDirty = false
	e.mu.Unlock()

	pending, err := e.store.GetPending(ctx)
	if err != nil {
		return "", fmt.Errorf("proactivity task-update check: %w", err)
	}
	for _, task := range pending {
		lower := strings.ToLower(task.Text)
		for _, kw := range actionableKeywords {
			if strings.Contains(lower, kw) {
				return fmt.Sprintf("I notice the task %q looks like something I can help with. Shall I do it now?",
					task.Text), nil
			}
		}
	}
	return "", nil
}
