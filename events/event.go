// Package events defines the structured progress events produced during an
// investigation and the per-task bus they travel on.
package events

import (
	"encoding/json"
	"time"
)

// Kind discriminates the event variants. It travels in the envelope of the
// delegation protocol and on the SSE "event:" line; the data payload itself
// stays in the legacy field-presence shape for client compatibility.
type Kind string

const (
	KindAgentActive Kind = "agent_active"
	KindToolCall    Kind = "tool_call"
	KindDelegation  Kind = "delegation"
	KindThinking    Kind = "thinking"
	KindText        Kind = "text"
	KindDone        Kind = "done"
	KindError       Kind = "error"
)

// Agent activity statuses.
const (
	StatusWorking   = "working"
	StatusCompleted = "completed"
	StatusIdle      = "idle"
)

// Tool call phases.
const (
	PhaseStart = "start"
	PhaseEnd   = "end"
)

// Event is one unit of structured progress information. Exactly one variant
// applies per Kind; unrelated fields stay zero.
type Event struct {
	Kind Kind `json:"kind"`

	// agent_active / thinking / tool_call
	Agent  string `json:"agent,omitempty"`
	Vendor string `json:"vendor,omitempty"`
	Status string `json:"status,omitempty"`

	// tool_call
	Tool       string `json:"tool,omitempty"`
	Phase      string `json:"phase,omitempty"`
	CallID     string `json:"callId,omitempty"`
	DurationMs int64  `json:"duration,omitempty"`
	Success    *bool  `json:"success,omitempty"`

	// delegation
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// thinking / text
	Text string `json:"text,omitempty"`

	// done
	TaskID string `json:"taskId,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// AgentActive reports an agent role changing activity status.
func AgentActive(agent, vendor, status string) Event {
	return Event{Kind: KindAgentActive, Agent: agent, Vendor: vendor, Status: status}
}

// ToolCallStart marks the beginning of one tool execution. The callID ties
// the start to its end frame even when the same tool runs concurrently for
// the same agent.
func ToolCallStart(agent, tool, callID string) Event {
	return Event{Kind: KindToolCall, Agent: agent, Tool: tool, Phase: PhaseStart, CallID: callID}
}

// ToolCallEnd marks the completion of one tool execution.
func ToolCallEnd(agent, tool, callID string, duration time.Duration, success bool) Event {
	return Event{
		Kind:       KindToolCall,
		Agent:      agent,
		Tool:       tool,
		Phase:      PhaseEnd,
		CallID:     callID,
		DurationMs: duration.Milliseconds(),
		Success:    &success,
	}
}

// Delegation records a handoff from one agent role to another.
func Delegation(from, to string) Event {
	return Event{Kind: KindDelegation, From: from, To: to}
}

// Thinking carries intermediate reasoning surfaced before the agent acts.
func Thinking(agent, text string) Event {
	return Event{Kind: KindThinking, Agent: agent, Text: text}
}

// Text carries a fragment of the final answer narrative.
func Text(text string) Event {
	return Event{Kind: KindText, Text: text}
}

// Done terminates a task's event stream.
func Done(taskID string) Event {
	return Event{Kind: KindDone, TaskID: taskID}
}

// Error surfaces a task-fatal failure.
func Error(message string) Event {
	return Event{Kind: KindError, Message: message}
}

// wireEvent is the legacy client-visible payload. It carries no kind field;
// clients classify it by field presence (or by the SSE event name when
// available). ToolCall reuses "status" for the start/end phase.
type wireEvent struct {
	Agent    string `json:"agent,omitempty"`
	Vendor   string `json:"vendor,omitempty"`
	Status   string `json:"status,omitempty"`
	Tool     string `json:"tool,omitempty"`
	CallID   string `json:"callId,omitempty"`
	Duration *int64 `json:"duration,omitempty"`
	Success  *bool  `json:"success,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Text     *string `json:"text,omitempty"`
	TaskID   string `json:"taskId,omitempty"`
	Message  string `json:"message,omitempty"`
}

// WireJSON marshals the event into its legacy client payload shape.
func (e Event) WireJSON() ([]byte, error) {
	var w wireEvent
	switch e.Kind {
	case KindAgentActive:
		w = wireEvent{Agent: e.Agent, Vendor: e.Vendor, Status: e.Status}
	case KindToolCall:
		w = wireEvent{Agent: e.Agent, Tool: e.Tool, Status: e.Phase, CallID: e.CallID, Success: e.Success}
		if e.Phase == PhaseEnd {
			d := e.DurationMs
			w.Duration = &d
		}
	case KindDelegation:
		w = wireEvent{From: e.From, To: e.To}
	case KindThinking:
		t := e.Text
		w = wireEvent{Agent: e.Agent, Text: &t}
	case KindText:
		t := e.Text
		w = wireEvent{Text: &t}
	case KindDone:
		w = wireEvent{TaskID: e.TaskID}
	case KindError:
		w = wireEvent{Message: e.Message}
	}
	return json.Marshal(w)
}
