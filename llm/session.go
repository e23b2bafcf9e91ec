package llm

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Session holds the running transcript for one task. The provider is shared
// and stateless; all conversation state lives here. Sessions are not safe
// for concurrent use; one task owns its session.
type Session struct {
	provider      Provider
	model         string
	systemPrompts []string
	tools         []ToolDef
	messages      []Message
	debugFile     *os.File
}

func NewSession(provider Provider, model string, tools []ToolDef, systemPrompts ...string) *Session {
	return &Session{
		provider:      provider,
		model:         model,
		systemPrompts: systemPrompts,
		tools:         tools,
		messages:      []Message{},
	}
}

// EnableDebug opens a debug file for logging all messages
func (s *Session) EnableDebug(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	s.debugFile = f

	for i, prompt := range s.systemPrompts {
		s.logMessage(fmt.Sprintf("System Prompt %d", i+1), prompt)
	}
	return nil
}

// Close closes any open resources
func (s *Session) Close() {
	if s.debugFile != nil {
		s.debugFile.Close()
	}
}

func (s *Session) logMessage(label string, content string) {
	if s.debugFile == nil {
		return
	}
	timestamp := time.Now().Format(time.RFC3339)
	s.debugFile.WriteString(fmt.Sprintf("[%s] === %s ===\n", timestamp, label))
	s.debugFile.WriteString(content)
	s.debugFile.WriteString("\n\n")
}

// History returns the transcript accumulated so far. The returned slice
// shares the underlying array, do not modify.
func (s *Session) History() []Message {
	return s.messages
}

func (s *Session) buildRequest(next Message) *ChatRequest {
	var msgs []Message
	for _, sp := range s.systemPrompts {
		msgs = append(msgs, Message{Role: RoleSystem, Content: sp})
	}
	msgs = append(msgs, s.messages...)
	msgs = append(msgs, next)

	return &ChatRequest{
		Model:    s.model,
		Messages: msgs,
		Tools:    s.tools,
	}
}

func (s *Session) roundTrip(ctx context.Context, next Message) (*ChatResponse, error) {
	resp, err := s.provider.Chat(ctx, s.buildRequest(next))
	if err != nil {
		return nil, err
	}

	s.logMessage("Model Response", resp.Content)

	s.messages = append(s.messages, next)
	s.messages = append(s.messages, Message{
		Role:      RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})
	return resp, nil
}

// Send submits a user message and returns the model's reply, which may
// include requested tool calls.
func (s *Session) Send(ctx context.Context, userMessage string) (*ChatResponse, error) {
	s.logMessage("User Message", userMessage)
	return s.roundTrip(ctx, NewTextMessage(RoleUser, userMessage))
}

// SendToolResults feeds one batch of tool results back to the model and
// returns its next reply.
func (s *Session) SendToolResults(ctx context.Context, results []ToolResult) (*ChatResponse, error) {
	for _, r := range results {
		s.logMessage(fmt.Sprintf("Tool Result (%s)", r.Name), r.Content)
	}
	return s.roundTrip(ctx, Message{Role: RoleUser, ToolResults: results})
}
