package store

import (
	"sort"
	"sync"
	"time"
)

// NewMemoryBundle creates a Bundle backed entirely by in-memory stores.
func NewMemoryBundle() *Bundle {
	return &Bundle{
		Investigations: &MemoryInvestigationStore{investigations: make(map[string]*Investigation)},
		Events:         &MemoryEventStore{byTask: make(map[string][]TaskEvent)},
	}
}

type MemoryInvestigationStore struct {
	mu             sync.Mutex
	investigations map[string]*Investigation
}

func (s *MemoryInvestigationStore) CreateInvestigation(id, contextID, request string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.investigations[id] = &Investigation{
		ID:        id,
		ContextID: contextID,
		Request:   request,
		State:     "working",
		CreatedAt: time.Now(),
	}
	return nil
}

func (s *MemoryInvestigationStore) CompleteInvestigation(id, state, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.investigations[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	inv.State = state
	inv.Result = result
	inv.FinishedAt = &now
	return nil
}

func (s *MemoryInvestigationStore) GetInvestigation(id string) (*Investigation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.investigations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (s *MemoryInvestigationStore) ListInvestigations(limit, offset int) ([]Investigation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Investigation, 0, len(s.investigations))
	for _, inv := range s.investigations {
		all = append(all, *inv)
	}
	// Newest first, matching the SQL backends.
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []Investigation{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

type MemoryEventStore struct {
	mu     sync.Mutex
	byTask map[string][]TaskEvent
}

func (s *MemoryEventStore) StoreEvent(ev TaskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byTask[ev.TaskID] = append(s.byTask[ev.TaskID], ev)
	return nil
}

func (s *MemoryEventStore) GetEventsByTask(taskID string, limit, offset int) ([]TaskEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evs := s.byTask[taskID]
	if offset >= len(evs) {
		return []TaskEvent{}, nil
	}
	evs = evs[offset:]
	if limit > 0 && limit < len(evs) {
		evs = evs[:limit]
	}
	out := make([]TaskEvent, len(evs))
	copy(out, evs)
	return out, nil
}
