package wsbridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"inquest/events"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

const delegationErrorPrefix = "Error delegating to Investigation Agent: "

// DelegationClient hands a sub-investigation to the peer agent over its
// WebSocket endpoint and forwards the peer's progress events onto the
// delegating task's bus while the exchange runs.
type DelegationClient struct {
	peerURL     string
	role        string // the delegating role
	peerRole    string
	peerVendor  string
	dialer      *websocket.Dialer
	idleTimeout time.Duration
	logger      hclog.Logger
}

// ClientOptions configures a DelegationClient.
type ClientOptions struct {
	// PeerURL is the peer's delegation endpoint, e.g. ws://host:port/ws/delegate.
	PeerURL    string
	Role       string
	PeerRole   string
	PeerVendor string
	Logger     hclog.Logger
}

func NewDelegationClient(opts ClientOptions) *DelegationClient {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &DelegationClient{
		peerURL:     opts.PeerURL,
		role:        opts.Role,
		peerRole:    opts.PeerRole,
		peerVendor:  opts.PeerVendor,
		dialer:      websocket.DefaultDialer,
		idleTimeout: pongWait,
		logger:      logger.Named("wsbridge"),
	}
}

// Delegate sends the request to the peer and blocks until its stream ends.
// The peer's ToolCall, Delegation, AgentActive and Thinking events are
// forwarded live; plain narrative text before the final update is dropped.
// A transport or peer failure never surfaces as an error: the returned
// string is the delegation result either way, with ok reporting whether the
// peer actually answered.
func (c *DelegationClient) Delegate(ctx context.Context, request string, bus *events.Bus) (string, bool) {
	bus.Publish(events.Delegation(c.role, c.peerRole))
	bus.Publish(events.AgentActive(c.peerRole, c.peerVendor, events.StatusWorking))

	// Whatever happens below, the peer must not be left showing "working".
	defer bus.Publish(events.AgentActive(c.peerRole, c.peerVendor, events.StatusCompleted))

	ws, _, err := c.dialer.DialContext(ctx, c.peerURL, nil)
	if err != nil {
		c.logger.Error("peer unreachable", "url", c.peerURL, "error", err)
		return delegationErrorPrefix + err.Error(), false
	}
	defer ws.Close()

	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(&Request{Request: request}); err != nil {
		c.logger.Error("send delegation request", "error", err)
		return delegationErrorPrefix + err.Error(), false
	}

	// Release the read loop if the delegating task is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-done:
		}
	}()

	// The peer pings while a long Reasoner round trip produces no updates;
	// each ping extends the deadline so a quiet-but-healthy peer is not
	// mistaken for a dead transport.
	ws.SetReadDeadline(time.Now().Add(c.idleTimeout))
	ws.SetPingHandler(func(appData string) error {
		ws.SetReadDeadline(time.Now().Add(c.idleTimeout))
		err := ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return delegationErrorPrefix + ctx.Err().Error(), false
			}
			c.logger.Error("peer stream aborted", "error", err)
			return delegationErrorPrefix + err.Error(), false
		}
		ws.SetReadDeadline(time.Now().Add(c.idleTimeout))

		var update Update
		if err := json.Unmarshal(message, &update); err != nil {
			c.logger.Warn("malformed peer update, skipping", "error", err)
			continue
		}

		if update.Final {
			if update.Status == StatusFailed {
				reason := update.Error
				if reason == "" {
					reason = "peer reported failure"
				}
				return delegationErrorPrefix + reason, false
			}
			return update.Result, true
		}

		if update.Event != nil {
			c.forward(bus, update.Event)
		}
	}
}

// forward relays a peer progress event onto the delegating task's bus.
// Tool calls are re-attributed to the peer role so a client never sees the
// peer's work credited to the delegating agent; terminal and plain-text
// events stay peer-local.
func (c *DelegationClient) forward(bus *events.Bus, ev *events.Event) {
	switch ev.Kind {
	case events.KindToolCall:
		fwd := *ev
		fwd.Agent = c.peerRole
		bus.Publish(fwd)
	case events.KindDelegation, events.KindAgentActive, events.KindThinking:
		bus.Publish(*ev)
	}
}
