// Package store archives completed investigations and their relayed event
// streams. Nothing in-flight is persisted; a process restart loses running
// tasks by design.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("store: not found")

// Bundle holds all stores for one backend.
type Bundle struct {
	Investigations InvestigationStore
	Events         EventStore
	closer         func() error
}

// Close cleans up the bundle resources.
func (b *Bundle) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}

// Investigation is one archived user request.
type Investigation struct {
	ID         string     `json:"id"`
	ContextID  string     `json:"contextId,omitempty"`
	Request    string     `json:"request"`
	Result     string     `json:"result,omitempty"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// InvestigationStore tracks investigation requests and their outcomes.
type InvestigationStore interface {
	CreateInvestigation(id, contextID, request string) error
	CompleteInvestigation(id, state, result string) error
	GetInvestigation(id string) (*Investigation, error)
	ListInvestigations(limit, offset int) ([]Investigation, error)
}

// TaskEvent is one relayed event archived against its task.
type TaskEvent struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Kind      string    `json:"kind"`
	DataJSON  string    `json:"dataJson"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventStore archives the relayed event stream per task.
type EventStore interface {
	StoreEvent(ev TaskEvent) error
	GetEventsByTask(taskID string, limit, offset int) ([]TaskEvent, error)
}
