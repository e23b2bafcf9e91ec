package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := p.client.GenerativeModel(req.Model)

	systemContent := p.extractSystemPrompts(req.Messages)
	if systemContent != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemContent))
	}

	if len(req.Tools) > 0 {
		tool := &genai.Tool{}
		for _, t := range req.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGeminiSchema(t.InputSchema),
			})
		}
		model.Tools = []*genai.Tool{tool}
	}

	chat := model.StartChat()
	chat.History = p.convertHistory(req.Messages)

	lastParts := p.lastMessageParts(req.Messages)

	resp, err := chat.SendMessage(ctx, lastParts...)
	if err != nil {
		return nil, err
	}

	content, toolCalls := p.extractReply(resp)

	var finishReason string
	if len(resp.Candidates) > 0 {
		finishReason = resp.Candidates[0].FinishReason.String()
	}

	out := &ChatResponse{
		ID:         uuid.New().String(),
		Content:    content,
		ToolCalls:  toolCalls,
		StopReason: finishReason,
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func (p *GeminiProvider) extractSystemPrompts(messages []Message) string {
	var system string
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		}
	}
	return system
}

// messageParts converts one conversation message to Gemini parts.
func (p *GeminiProvider) messageParts(m Message) []genai.Part {
	if len(m.ToolResults) > 0 {
		var parts []genai.Part
		for _, r := range m.ToolResults {
			parts = append(parts, genai.FunctionResponse{
				Name:     r.Name,
				Response: map[string]any{"result": r.Content, "is_error": r.IsError},
			})
		}
		return parts
	}

	var parts []genai.Part
	if m.Content != "" {
		parts = append(parts, genai.Text(m.Content))
	}
	for _, tc := range m.ToolCalls {
		parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: tc.Args})
	}
	if len(parts) == 0 {
		parts = append(parts, genai.Text(""))
	}
	return parts
}

func (p *GeminiProvider) convertHistory(messages []Message) []*genai.Content {
	nonSystem := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != RoleSystem {
			nonSystem = append(nonSystem, m)
		}
	}

	// Exclude the last message, it is sent separately.
	if len(nonSystem) > 0 {
		nonSystem = nonSystem[:len(nonSystem)-1]
	}

	var history []*genai.Content
	for _, m := range nonSystem {
		var role string
		switch m.Role {
		case RoleUser:
			role = "user"
		case RoleAssistant:
			role = "model"
		default:
			continue
		}

		history = append(history, &genai.Content{
			Role:  role,
			Parts: p.messageParts(m),
		})
	}

	return history
}

func (p *GeminiProvider) lastMessageParts(messages []Message) []genai.Part {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != RoleSystem {
			return p.messageParts(messages[i])
		}
	}
	return []genai.Part{genai.Text("")}
}

// extractReply pulls narrative text and requested function calls out of the
// response. Gemini carries no call IDs, so one is synthesized per call; the
// tool result round trip matches on function name instead.
func (p *GeminiProvider) extractReply(resp *genai.GenerateContentResponse) (string, []ToolCall) {
	var content string
	var toolCalls []ToolCall

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				content += string(v)
			case genai.FunctionCall:
				toolCalls = append(toolCalls, ToolCall{
					ID:   "call-" + uuid.New().String(),
					Name: v.Name,
					Args: v.Args,
				})
			default:
				content += fmt.Sprintf("%v", part)
			}
		}
	}

	return content, toolCalls
}

// toGeminiSchema converts a JSON Schema object into the genai schema type.
func toGeminiSchema(schema map[string]any) *genai.Schema {
	out := &genai.Schema{Type: genai.TypeObject}

	props, _ := schema["properties"].(map[string]any)
	if len(props) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			prop, _ := raw.(map[string]any)
			out.Properties[name] = toGeminiProperty(prop)
		}
	}

	if required, ok := schema["required"].([]string); ok {
		out.Required = required
	} else if rawReq, ok := schema["required"].([]any); ok {
		for _, r := range rawReq {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}

	return out
}

func toGeminiProperty(prop map[string]any) *genai.Schema {
	s := &genai.Schema{}
	if desc, ok := prop["description"].(string); ok {
		s.Description = desc
	}
	switch prop["type"] {
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		if items, ok := prop["items"].(map[string]any); ok {
			s.Items = toGeminiProperty(items)
		}
	case "object":
		nested, _ := prop["properties"].(map[string]any)
		inner := toGeminiSchema(map[string]any{"properties": nested})
		s.Type = genai.TypeObject
		s.Properties = inner.Properties
	default:
		s.Type = genai.TypeString
	}
	return s
}
