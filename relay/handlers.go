package relay

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"inquest/agent"
	"inquest/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "inquest",
		"version": s.version,
	})
}

type investigationRequest struct {
	Request   string `json:"request"`
	ContextID string `json:"context_id"`
}

type investigationResponse struct {
	TaskID string `json:"task_id"`
}

func (s *Server) handleStartInvestigation(w http.ResponseWriter, r *http.Request) {
	var req investigationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Request) == "" {
		writeError(w, http.StatusBadRequest, "request is required")
		return
	}

	task := s.registry.Create(req.ContextID)
	if err := s.stores.Investigations.CreateInvestigation(task.ID, task.ContextID, req.Request); err != nil {
		s.registry.Remove(task.ID)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("archive investigation: %v", err))
		return
	}

	// Materialize the channel before the executor starts so no event can
	// be published into the void.
	s.broker.GetOrCreateChannel(task.ID)

	go s.runInvestigation(task, req.Request)

	writeJSON(w, http.StatusCreated, investigationResponse{TaskID: task.ID})
}

// runInvestigation drives one task to completion, fanning its bus into the
// SSE broker and the event archive, then records the outcome.
func (s *Server) runInvestigation(task *agent.Task, request string) {
	sub := task.Bus.Subscribe()

	type outcome struct {
		answer string
		err    error
	}
	result := make(chan outcome, 1)
	go func() {
		answer, err := s.executor.Execute(context.Background(), task, request)
		result <- outcome{answer, err}
	}()

	for ev := range sub {
		s.broker.Publish(task.ID, ev)

		data, err := ev.WireJSON()
		if err != nil {
			s.logger.Error("marshal event for archive", "task", task.ID, "error", err)
			continue
		}
		archived := store.TaskEvent{
			ID:       uuid.New().String(),
			TaskID:   task.ID,
			Kind:     string(ev.Kind),
			DataJSON: string(data),
		}
		if err := s.stores.Events.StoreEvent(archived); err != nil {
			s.logger.Error("archive event", "task", task.ID, "error", err)
		}
	}

	out := <-result
	state := "completed"
	final := out.answer
	if out.err != nil {
		state = "failed"
		final = out.err.Error()
	}
	if err := s.stores.Investigations.CompleteInvestigation(task.ID, state, final); err != nil {
		s.logger.Error("finalize investigation", "task", task.ID, "error", err)
	}

	// Removal strictly precedes closing the channel: a client that still
	// finds the task in the registry is guaranteed the live channel, and
	// one that does not is guaranteed a complete archive.
	s.registry.Remove(task.ID)
	s.broker.CloseChannel(task.ID)
	s.logger.Info("investigation finished", "task", task.ID, "state", state)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := s.broker.Subscribe(id)

	fmt.Fprintf(w, "event: connected\ndata: {\"task_id\":%q}\n\n", id)
	flusher.Flush()

	if s.registry.Get(id) == nil {
		// The task already finished; replay its archived stream instead.
		s.broker.CloseChannel(id)
		s.replayArchive(w, flusher, id)
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			data, err := ev.WireJSON()
			if err != nil {
				s.logger.Error("marshal event", "task", id, "error", err)
				continue
			}
			// One frame per event; a write failure ends the relay, no
			// buffering or retry.
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				s.logger.Warn("client write failed, stopping relay", "task", id, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// replayArchive streams a finished task's archived events as SSE frames.
func (s *Server) replayArchive(w http.ResponseWriter, flusher http.Flusher, id string) {
	evs, err := s.stores.Events.GetEventsByTask(id, 0, 0)
	if err != nil {
		s.logger.Error("load archived events", "task", id, "error", err)
		return
	}
	for _, ev := range evs {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, ev.DataJSON); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// Idempotent and silent for unknown or terminal tasks.
	s.registry.Cancel(id)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "task_id": id})
}

func (s *Server) handleListInvestigations(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	invs, err := s.stores.Investigations.ListInvestigations(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"investigations": invs})
}

func (s *Server) handleGetInvestigation(w http.ResponseWriter, r *http.Request) {
	inv, err := s.stores.Investigations.GetInvestigation(r.PathValue("id"))
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "no such investigation")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	evs, err := s.stores.Events.GetEventsByTask(r.PathValue("id"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
