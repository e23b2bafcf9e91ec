package config

// ServerConfig defines the process's network surface. The detection role
// serves the HTTP/SSE API and dials the peer; the investigation role serves
// the delegation WebSocket endpoint.
type ServerConfig struct {
	Listen  string `hcl:"listen,optional"`
	PeerURL string `hcl:"peer_url,optional"`
	Dataset string `hcl:"dataset,optional"` // transaction dataset path (JSON)
}

// Defaults fills in default values for unset fields
func (s *ServerConfig) Defaults() {
	if s.Listen == "" {
		s.Listen = ":8320"
	}
	if s.PeerURL == "" {
		s.PeerURL = "ws://localhost:8321/ws/delegate"
	}
}
