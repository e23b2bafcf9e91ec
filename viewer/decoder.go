package viewer

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"inquest/events"
)

// Decoder turns the relayed byte stream back into a View. Bytes may arrive
// split at arbitrary boundaries; the decoder buffers until a full line is
// available and ignores anything it cannot parse.
type Decoder struct {
	view   *View
	buf    bytes.Buffer
	kind   string // SSE event name of the frame being assembled
	logger hclog.Logger
}

func NewDecoder(logger hclog.Logger) *Decoder {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Decoder{
		view:   newView(),
		logger: logger.Named("viewer"),
	}
}

// View returns the reconstructed state. The decoder keeps mutating it as
// more bytes are fed.
func (d *Decoder) View() *View {
	return d.view
}

// Reset marks every known agent idle. Called once the overall request has
// completed so the next investigation starts from a clean slate.
func (d *Decoder) Reset() {
	for role, info := range d.view.Agents {
		info.Status = "idle"
		d.view.Agents[role] = info
	}
}

// Feed consumes the next chunk of stream bytes. Trailing partial lines stay
// buffered until more bytes arrive.
func (d *Decoder) Feed(p []byte) {
	d.buf.Write(p)

	for {
		raw, err := d.buf.ReadString('\n')
		if err != nil {
			// Incomplete line; put it back and wait for more bytes.
			d.buf.WriteString(raw)
			return
		}
		d.handleLine(strings.TrimRight(raw, "\r\n"))
	}
}

func (d *Decoder) handleLine(line string) {
	switch {
	case line == "":
		d.kind = ""
	case strings.HasPrefix(line, "event: "):
		d.kind = strings.TrimPrefix(line, "event: ")
	case strings.HasPrefix(line, "data: "):
		d.handlePayload(d.kind, []byte(strings.TrimPrefix(line, "data: ")))
	case strings.HasPrefix(line, "{"):
		// Bare JSON line from a legacy producer, no SSE framing.
		d.handlePayload("", []byte(line))
	}
}

// handlePayload classifies one frame. A known SSE event name decides the
// variant directly; otherwise the legacy field-presence rules apply, in
// priority order, first match wins.
func (d *Decoder) handlePayload(kind string, data []byte) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		d.logger.Debug("unparseable frame ignored", "error", err)
		return
	}

	if kind == "" {
		kind = classify(fields)
	}

	switch events.Kind(kind) {
	case events.KindAgentActive:
		d.applyAgentActive(fields)
	case events.KindToolCall:
		d.applyToolCall(fields)
	case events.KindDelegation:
		d.applyDelegation(fields)
	case events.KindThinking:
		d.view.Thinking = append(d.view.Thinking, Thought{
			Agent: str(fields, "agent"),
			Text:  str(fields, "text"),
		})
	case events.KindText:
		d.view.pending.WriteString(str(fields, "text"))
	case events.KindDone:
		d.view.finishTurn()
	case events.KindError:
		d.view.Errors = append(d.view.Errors, str(fields, "message"))
	default:
		d.logger.Debug("unclassifiable frame ignored")
	}
}

// classify applies the legacy duck-typing rules for payloads that arrived
// without a usable event name.
func classify(fields map[string]any) string {
	_, hasAgent := fields["agent"]
	_, hasTool := fields["tool"]
	_, hasText := fields["text"]

	switch {
	case hasAgent && has(fields, "vendor") && has(fields, "status") && !hasTool:
		return string(events.KindAgentActive)
	case hasTool && has(fields, "status"):
		return string(events.KindToolCall)
	case has(fields, "from") && has(fields, "to"):
		return string(events.KindDelegation)
	case hasAgent && hasText && !hasTool:
		return string(events.KindThinking)
	case hasText && !hasAgent:
		return string(events.KindText)
	case has(fields, "taskId") || len(fields) == 0:
		return string(events.KindDone)
	case has(fields, "message"):
		return string(events.KindError)
	default:
		return ""
	}
}

func (d *Decoder) applyAgentActive(fields map[string]any) {
	agent := str(fields, "agent")
	if agent == "" {
		return
	}
	d.view.Agents[agent] = AgentInfo{
		Vendor: str(fields, "vendor"),
		Status: str(fields, "status"),
	}
}

func (d *Decoder) applyToolCall(fields map[string]any) {
	name := str(fields, "tool")
	agent := str(fields, "agent")
	phase := str(fields, "status")
	callID := str(fields, "callId")

	if phase == "start" {
		if callID == "" {
			callID = uuid.New().String()
		}
		d.view.ToolCalls = append(d.view.ToolCalls, ToolCallRecord{
			ID:        callID,
			Name:      name,
			Agent:     agent,
			Status:    ToolRunning,
			StartedAt: time.Now(),
		})
		return
	}

	rec := d.matchStart(callID, name, agent)
	if rec == nil {
		return
	}
	rec.Status = ToolError
	if success, ok := fields["success"].(bool); ok && success {
		rec.Status = ToolSuccess
	}
	if duration, ok := fields["duration"].(float64); ok {
		rec.DurationMs = int64(duration)
	}
}

// matchStart finds the running record an end frame belongs to: by call id
// when the producer sent one, otherwise the oldest running (name, agent)
// match, which is ambiguous for concurrent duplicates but the best the
// legacy wire shape allows.
func (d *Decoder) matchStart(callID, name, agent string) *ToolCallRecord {
	if callID != "" {
		for i := range d.view.ToolCalls {
			if d.view.ToolCalls[i].ID == callID {
				return &d.view.ToolCalls[i]
			}
		}
		return nil
	}
	for i := range d.view.ToolCalls {
		rec := &d.view.ToolCalls[i]
		if rec.Status == ToolRunning && rec.Name == name && rec.Agent == agent {
			return rec
		}
	}
	return nil
}

func (d *Decoder) applyDelegation(fields map[string]any) {
	from, to := str(fields, "from"), str(fields, "to")
	d.view.Delegations = append(d.view.Delegations, DelegationRecord{
		From: from,
		To:   to,
		At:   time.Now(),
	})
	d.view.delegationSeen = true

	// The delegate is working the moment it was handed the task, even if
	// its own activity frame has not arrived yet.
	if info, ok := d.view.Agents[to]; !ok || info.Status != "working" {
		info.Status = "working"
		d.view.Agents[to] = info
	}
}

func has(fields map[string]any, key string) bool {
	_, ok := fields[key]
	return ok
}

func str(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
