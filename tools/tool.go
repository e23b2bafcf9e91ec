// Package tools implements the fraud-analytics tools available to the
// agents and the invoker that executes them.
package tools

// Tool defines the interface for agent tools
type Tool interface {
	// ToolName returns the name of the tool
	ToolName() string

	// ToolDescription returns a description of what the tool does
	ToolDescription() string

	// ToolPayloadSchema returns the JSON schema for the tool's input parameters
	ToolPayloadSchema() Schema

	// Call executes the tool with the given JSON-encoded parameters
	Call(params string) Result
}

// Result is the structured outcome of one tool execution. A failed call
// carries Error and Success=false; it is never surfaced as a Go error.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok wraps a successful payload.
func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail wraps an error message.
func Fail(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Info describes a tool for listing purposes.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
