package wsbridge

import "inquest/events"

// Update statuses reported by the peer over an open delegation stream.
const (
	StatusWorking   = "working"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Request opens a delegation: one message carrying the sub-investigation.
type Request struct {
	Request   string `json:"request"`
	ContextID string `json:"contextId,omitempty"`
}

// Update is one frame streamed back by the peer. Non-final updates carry a
// forwarded progress event; the final update carries the authoritative
// result text (or the failure reason).
type Update struct {
	Status string        `json:"status"`
	Final  bool          `json:"final"`
	Event  *events.Event `json:"event,omitempty"`
	Result string        `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}
