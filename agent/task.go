// Package agent implements the bounded reason/act execution loop that one
// agent role runs per investigation task.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"inquest/events"
	"inquest/llm"
)

// State is a task's lifecycle phase. Transitions are monotonic: a state is
// never revisited.
type State string

const (
	StateSubmitted State = "submitted"
	StateWorking   State = "working"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Task identifies one user request to one agent role. Its events flow on
// Bus; the task itself is discarded once terminal.
type Task struct {
	ID        string
	ContextID string
	Bus       *events.Bus
	CreatedAt time.Time

	mu      sync.Mutex
	state   State
	history []llm.Message
	cancel  context.CancelFunc
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// History returns a copy of the task's message history.
func (t *Task) History() []llm.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]llm.Message, len(t.history))
	copy(out, t.history)
	return out
}

func (t *Task) appendMessage(m llm.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, m)
}

// advance moves the task forward. Backward or lateral transitions are
// silently ignored, which keeps terminal states final.
func (t *Task) advance(next State) bool {
	rank := map[State]int{StateSubmitted: 0, StateWorking: 1, StateCompleted: 2, StateFailed: 2}

	t.mu.Lock()
	defer t.mu.Unlock()

	if rank[next] <= rank[t.state] {
		return false
	}
	t.state = next
	return true
}

func (t *Task) terminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateCompleted || t.state == StateFailed
}

func (t *Task) bindCancel(cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel = cancel
}

// Registry tracks in-flight tasks for one agent process.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Create registers a new task in the Submitted state. An empty contextID
// starts a fresh context; a delegated sub-task shares its parent's.
func (r *Registry) Create(contextID string) *Task {
	if contextID == "" {
		contextID = uuid.New().String()
	}
	task := &Task{
		ID:        uuid.New().String(),
		ContextID: contextID,
		Bus:       events.NewBus(),
		CreatedAt: time.Now(),
		state:     StateSubmitted,
	}

	r.mu.Lock()
	r.tasks[task.ID] = task
	r.mu.Unlock()
	return task
}

// Get returns the task, or nil if unknown.
func (r *Registry) Get(id string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[id]
}

// Cancel requests cancellation of an in-flight task. It is idempotent and
// silently ignores unknown or already-terminal task ids.
func (r *Registry) Cancel(id string) {
	r.mu.Lock()
	task := r.tasks[id]
	r.mu.Unlock()

	if task == nil || task.terminal() {
		return
	}

	task.mu.Lock()
	cancel := task.cancel
	task.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Remove forgets a task. Called after the terminal state has been reached
// and any archival has happened.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}
