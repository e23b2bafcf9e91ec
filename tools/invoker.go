package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"inquest/llm"
)

// Invoker owns the registered tools and executes them by name. A panicking
// or failing tool is captured as a structured error result, never as a Go
// error; every invocation is recorded in the shared audit log.
type Invoker struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	audit  *AuditLog
	logger hclog.Logger
}

// NewInvoker creates an invoker writing to the given audit log.
func NewInvoker(audit *AuditLog, logger hclog.Logger) *Invoker {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Invoker{
		tools:  make(map[string]Tool),
		audit:  audit,
		logger: logger.Named("tools"),
	}
}

// Register adds a tool. A later registration with the same name wins.
func (inv *Invoker) Register(t Tool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.tools[t.ToolName()] = t
}

// List returns the registered tools sorted by name.
func (inv *Invoker) List() []Info {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	infos := make([]Info, 0, len(inv.tools))
	for _, t := range inv.tools {
		infos = append(infos, Info{Name: t.ToolName(), Description: t.ToolDescription()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Defs returns the tool definitions in the shape the model backends expect.
func (inv *Invoker) Defs() []llm.ToolDef {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	defs := make([]llm.ToolDef, 0, len(inv.tools))
	for _, t := range inv.tools {
		defs = append(defs, llm.ToolDef{
			Name:        t.ToolName(),
			Description: t.ToolDescription(),
			InputSchema: t.ToolPayloadSchema().ToMap(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Call executes the named tool with the given arguments. Cancellation of
// ctx abandons the call and returns an error result.
func (inv *Invoker) Call(ctx context.Context, name string, args map[string]any) Result {
	inv.mu.RLock()
	tool, ok := inv.tools[name]
	inv.mu.RUnlock()

	if !ok {
		return Fail(fmt.Sprintf("tool %q not found", name))
	}

	params, err := json.Marshal(args)
	if err != nil {
		return Fail("invalid arguments: " + err.Error())
	}

	start := time.Now()
	result := inv.run(ctx, tool, string(params))

	inv.audit.Record(AuditEntry{
		Time:       start,
		Tool:       name,
		Params:     string(params),
		Success:    result.Success,
		DurationMs: time.Since(start).Milliseconds(),
	})

	if !result.Success {
		inv.logger.Warn("tool call failed", "tool", name, "error", result.Error)
	}
	return result
}

// run executes the tool in its own goroutine so a cancelled context can
// abandon a slow call. Panics become error results.
func (inv *Invoker) run(ctx context.Context, tool Tool, params string) Result {
	done := make(chan Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Fail(fmt.Sprintf("tool panicked: %v", r))
			}
		}()
		done <- tool.Call(params)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Fail("tool call cancelled: " + ctx.Err().Error())
	}
}
