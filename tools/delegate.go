package tools

// DelegationToolName is the tool the detection agent calls to hand a
// sub-investigation to the investigation agent. The agent loop intercepts
// it before the invoker; Call only runs if something bypasses that.
const DelegationToolName = "delegate_investigation"

// DelegateTool exposes delegation to the model as an ordinary tool so it
// shows up in the tool definitions and the system prompt.
type DelegateTool struct{}

func (t *DelegateTool) ToolName() string {
	return DelegationToolName
}

func (t *DelegateTool) ToolDescription() string {
	return "Delegates a focused sub-investigation to the specialist investigation agent and returns its findings."
}

func (t *DelegateTool) ToolPayloadSchema() Schema {
	return Schema{
		Type: TypeObject,
		Properties: PropertyMap{
			"request": {
				Type:        TypeString,
				Description: "The sub-investigation to run, phrased as a self-contained request",
			},
		},
		Required: []string{"request"},
	}
}

func (t *DelegateTool) Call(params string) Result {
	return Fail("delegation is handled by the agent loop, not the tool invoker")
}
