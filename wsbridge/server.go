package wsbridge

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"inquest/agent"
)

const pingPeriod = (pongWait * 9) / 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server hosts the delegate agent's WebSocket endpoint. Each connection
// carries exactly one delegated investigation: one Request in, a stream of
// Updates out, terminated by one final update.
type Server struct {
	executor *agent.Executor
	registry *agent.Registry
	logger   hclog.Logger
}

func NewServer(executor *agent.Executor, registry *agent.Registry, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{
		executor: executor,
		registry: registry,
		logger:   logger.Named("wsbridge"),
	}
}

// Handler returns the HTTP handler for the delegation endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveDelegation)
}

// peerConn serializes writes; the update stream and the keepalive ticker
// write from different goroutines.
type peerConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (p *peerConn) writeJSON(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return p.ws.WriteJSON(v)
}

func (p *peerConn) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return p.ws.WriteMessage(websocket.PingMessage, nil)
}

func (p *peerConn) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (s *Server) serveDelegation(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	var req Request
	if err := ws.ReadJSON(&req); err != nil {
		s.logger.Warn("bad delegation request", "error", err)
		return
	}

	task := s.registry.Create(req.ContextID)
	defer s.registry.Remove(task.ID)
	stream := task.Bus.Subscribe()

	s.logger.Info("delegation accepted", "task", task.ID)

	conn := &peerConn{ws: ws}

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			case <-stopPing:
				return
			}
		}
	}()

	type outcome struct {
		answer string
		err    error
	}
	result := make(chan outcome, 1)
	go func() {
		answer, err := s.executor.Execute(r.Context(), task, req.Request)
		result <- outcome{answer, err}
	}()

	// The bus is closed when Execute returns, so draining it to exhaustion
	// guarantees every progress event is relayed before the final update.
	for ev := range stream {
		update := Update{Status: StatusWorking, Event: &ev}
		if err := conn.writeJSON(&update); err != nil {
			s.logger.Warn("peer stream write failed, cancelling", "task", task.ID, "error", err)
			s.registry.Cancel(task.ID)
			for range stream {
			}
			<-result
			return
		}
	}

	out := <-result
	final := &Update{Final: true}
	if out.err != nil {
		final.Status = StatusFailed
		final.Error = out.err.Error()
	} else {
		final.Status = StatusCompleted
		final.Result = out.answer
	}
	if err := conn.writeJSON(final); err != nil {
		s.logger.Warn("final update write failed", "task", task.ID, "error", err)
		return
	}

	conn.close()
	s.logger.Info("delegation finished", "task", task.ID, "failed", out.err != nil)
}
