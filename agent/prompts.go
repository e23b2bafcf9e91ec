package agent

import (
	"fmt"
	"strings"

	"inquest/tools"
)

// SystemPrompt builds the role prompt for one agent, listing its tools.
func SystemPrompt(role string, infos []tools.Info, canDelegate bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the %s agent in a fraud investigation system. ", role)
	sb.WriteString("Analyze the user's request, call tools to gather evidence, and finish with a concise findings report.\n\nAvailable tools:\n")
	for _, info := range infos {
		fmt.Fprintf(&sb, "- %s: %s\n", info.Name, info.Description)
	}
	if canDelegate {
		sb.WriteString("\nFor deep-dive investigations that need the specialist investigation agent, use the delegation tool and incorporate its findings into your report.")
	}
	return sb.String()
}
