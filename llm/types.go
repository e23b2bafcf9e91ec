package llm

import "context"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ToolDef describes one callable tool advertised to the backend.
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]any // JSON Schema object
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is the outcome of one tool call, fed back to the model.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Message represents a single conversation message. An assistant message may
// carry requested tool calls; a user message may carry tool results instead
// of plain text.
type Message struct {
	Role        Role
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// NewTextMessage creates a simple text-only message
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: text}
}

type ChatRequest struct {
	Model     string
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

type ChatResponse struct {
	ID         string
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}

// HasToolCalls reports whether the model requested at least one tool call.
func (r *ChatResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
