// Package viewer reconstructs investigation state on the client from the
// relayed SSE byte stream.
package viewer

import (
	"strings"
	"time"
)

// Tool call statuses as shown to the user.
const (
	ToolRunning = "running"
	ToolSuccess = "success"
	ToolError   = "error"
)

// AgentInfo is the current activity of one agent role.
type AgentInfo struct {
	Vendor string
	Status string
}

// ToolCallRecord is the client-visible projection of one tool execution.
type ToolCallRecord struct {
	ID         string
	Name       string
	Agent      string
	Status     string
	StartedAt  time.Time
	DurationMs int64
}

// DelegationRecord captures one handoff; immutable once created.
type DelegationRecord struct {
	From string
	To   string
	At   time.Time
}

// Thought is one fragment of surfaced reasoning.
type Thought struct {
	Agent string
	Text  string
}

// View is the reconstructed state. It is owned by the decoder's caller and
// must not be shared across goroutines while frames are still being fed.
type View struct {
	Agents      map[string]AgentInfo
	ToolCalls   []ToolCallRecord
	Thinking    []Thought
	Delegations []DelegationRecord
	Messages    []string
	Errors      []string

	delegationSeen bool
	pending        strings.Builder
}

func newView() *View {
	return &View{Agents: make(map[string]AgentInfo)}
}

// PendingText returns the answer text accumulated so far for the current
// turn, before Done has flushed it into Messages.
func (v *View) PendingText() string {
	return v.pending.String()
}

// FinalText returns the most recently finalized message, if any.
func (v *View) FinalText() string {
	if len(v.Messages) == 0 {
		return ""
	}
	return v.Messages[len(v.Messages)-1]
}

// DelegationActive reports whether a delegation has been observed this turn
// and either role is still working.
func (v *View) DelegationActive() bool {
	if !v.delegationSeen {
		return false
	}
	for _, info := range v.Agents {
		if info.Status == "working" {
			return true
		}
	}
	return false
}

// finishTurn flushes the text buffer into one finalized message and clears
// the transient per-turn state. Agent statuses are left alone.
func (v *View) finishTurn() {
	if v.pending.Len() > 0 {
		v.Messages = append(v.Messages, v.pending.String())
		v.pending.Reset()
	}
	v.ToolCalls = nil
	v.Thinking = nil
	v.delegationSeen = false
}
