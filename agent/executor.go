package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"inquest/events"
	"inquest/llm"
	"inquest/tools"
)

// MaxIterations bounds the reason/act rounds per task, guaranteeing
// termination even against a model that always asks for another tool.
const MaxIterations = 10

// DefaultTaskTimeout is the wall-clock deadline applied to one task.
const DefaultTaskTimeout = 10 * time.Minute

// partialPrefix tags a final answer cut short by the iteration bound.
const partialPrefix = "[partial: iteration limit reached] "

// fallbackAnswer is used when the model produced no final narrative.
const fallbackAnswer = "Analysis complete."

// Reasoner is the stateful conversation backend for one task.
type Reasoner interface {
	Send(ctx context.Context, userMessage string) (*llm.ChatResponse, error)
	SendToolResults(ctx context.Context, results []llm.ToolResult) (*llm.ChatResponse, error)
}

// ToolInvoker executes a named tool. Failures come back as structured
// results, never as Go errors.
type ToolInvoker interface {
	Call(ctx context.Context, name string, args map[string]any) tools.Result
}

// Delegator hands a sub-investigation to the peer agent, streaming the
// peer's events onto bus. It returns the peer's final answer text and
// whether the exchange succeeded; a failed exchange returns a synthesized
// error string as the answer so delegation failure stays non-fatal.
type Delegator interface {
	Delegate(ctx context.Context, request string, bus *events.Bus) (string, bool)
}

// Options configures an Executor.
type Options struct {
	// Role is this agent's identity in events ("detection", "investigation").
	Role string
	// Vendor names the reasoning backend ("anthropic", "openai", "gemini").
	Vendor string
	// NewReasoner creates a fresh conversation per task.
	NewReasoner func() Reasoner
	// Invoker executes ordinary tools.
	Invoker ToolInvoker
	// Delegator handles the delegation tool. Nil for the delegate role.
	Delegator Delegator
	// DelegationTool is the tool name routed to the Delegator.
	DelegationTool string
	// TaskTimeout bounds one task's wall-clock time. Zero means default.
	TaskTimeout time.Duration
	Logger      hclog.Logger
}

// Executor owns the bounded agentic loop for one agent role.
type Executor struct {
	role           string
	vendor         string
	newReasoner    func() Reasoner
	invoker        ToolInvoker
	delegator      Delegator
	delegationTool string
	taskTimeout    time.Duration
	logger         hclog.Logger
}

func NewExecutor(opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	timeout := opts.TaskTimeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Executor{
		role:           opts.Role,
		vendor:         opts.Vendor,
		newReasoner:    opts.NewReasoner,
		invoker:        opts.Invoker,
		delegator:      opts.Delegator,
		delegationTool: opts.DelegationTool,
		taskTimeout:    timeout,
		logger:         logger.Named("agent"),
	}
}

// Execute runs the task to a terminal state, emitting events on the task's
// bus throughout. Exactly one terminal signal (Done or Error) is emitted,
// after the final AgentActive{completed}; the bus is closed on return.
func (e *Executor) Execute(ctx context.Context, task *Task, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.taskTimeout)
	defer cancel()
	task.bindCancel(cancel)

	bus := task.Bus
	defer bus.Close()

	task.advance(StateWorking)
	task.appendMessage(llm.NewTextMessage(llm.RoleUser, userMessage))
	bus.Publish(events.AgentActive(e.role, e.vendor, events.StatusWorking))

	session := e.newReasoner()

	resp, err := session.Send(ctx, userMessage)
	if err != nil {
		return "", e.fail(task, "", err)
	}

	iterations := 0
	for resp.HasToolCalls() && iterations < MaxIterations {
		// Narrative text alongside tool calls is reasoning, surfaced
		// before acting.
		if strings.TrimSpace(resp.Content) != "" {
			bus.Publish(events.Thinking(e.role, resp.Content))
		}

		results := e.runToolCalls(ctx, bus, resp.ToolCalls)

		partial := resp.Content
		resp, err = session.SendToolResults(ctx, results)
		if err != nil {
			return "", e.fail(task, partial, err)
		}
		iterations++
	}

	finalText := resp.Content
	if resp.HasToolCalls() {
		// Iteration bound reached; the current reply stands as a partial
		// result, visibly tagged.
		e.logger.Warn("iteration limit reached", "task", task.ID, "iterations", iterations)
		finalText = partialPrefix + finalText
	}
	if strings.TrimSpace(finalText) == "" {
		finalText = fallbackAnswer
	}

	task.appendMessage(llm.NewTextMessage(llm.RoleAssistant, finalText))
	task.advance(StateCompleted)

	bus.Publish(events.AgentActive(e.role, e.vendor, events.StatusCompleted))
	bus.Publish(events.Text(finalText))
	bus.Publish(events.Done(task.ID))

	return finalText, nil
}

// fail drives the task into Failed with its single terminal Error event.
// The completed activity event still fires so no client is left watching a
// working agent.
func (e *Executor) fail(task *Task, partial string, err error) error {
	e.logger.Error("task failed", "task", task.ID, "error", err)
	task.advance(StateFailed)

	task.Bus.Publish(events.AgentActive(e.role, e.vendor, events.StatusCompleted))
	if strings.TrimSpace(partial) != "" {
		task.Bus.Publish(events.Text(partial))
	}
	task.Bus.Publish(events.Error(err.Error()))
	return err
}

// runToolCalls fans the requested calls out concurrently and joins them,
// preserving the request order in the returned batch. Each call's start
// event precedes its own end event; calls are otherwise unordered relative
// to each other.
func (e *Executor) runToolCalls(ctx context.Context, bus *events.Bus, calls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = e.runOne(ctx, bus, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

func (e *Executor) runOne(ctx context.Context, bus *events.Bus, call llm.ToolCall) llm.ToolResult {
	callID := call.ID
	if callID == "" {
		callID = uuid.New().String()
	}

	bus.Publish(events.ToolCallStart(e.role, call.Name, callID))
	start := time.Now()

	var content string
	var success, isError bool

	if e.delegator != nil && call.Name == e.delegationTool {
		request, _ := call.Args["request"].(string)
		content, success = e.delegator.Delegate(ctx, request, bus)
		// A failed delegation already synthesized its answer text; the
		// delegating task carries on regardless.
		isError = false
	} else {
		res := e.invoker.Call(ctx, call.Name, call.Args)
		success = res.Success
		if res.Success {
			content = marshalToolData(res.Data)
		} else {
			content = marshalToolError(res.Error)
			isError = true
		}
	}

	bus.Publish(events.ToolCallEnd(e.role, call.Name, callID, time.Since(start), success))

	return llm.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: content,
		IsError: isError,
	}
}

func marshalToolData(data any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return `{"error":"unencodable tool result"}`
	}
	return string(b)
}

func marshalToolError(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
