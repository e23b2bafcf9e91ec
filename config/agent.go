package config

import "fmt"

// Agent roles. Exactly two exist: the detection agent receives user
// requests, the investigation agent handles delegated sub-investigations.
const (
	RoleDetection     = "detection"
	RoleInvestigation = "investigation"
)

// Agent represents one agent role's configuration
type Agent struct {
	Name        string `hcl:"name,label"`
	Role        string `hcl:"role"`
	Model       string `hcl:"model"`
	Personality string `hcl:"personality,optional"`
}

// Validate checks that the agent configuration is valid
func (a *Agent) Validate() error {
	if a.Role != RoleDetection && a.Role != RoleInvestigation {
		return fmt.Errorf("agent '%s': role must be '%s' or '%s', got '%s'", a.Name, RoleDetection, RoleInvestigation, a.Role)
	}
	return nil
}

// ResolveModel finds the Model config that matches this agent's model key
// and returns it alongside the provider's actual model name.
func (a *Agent) ResolveModel(models []Model) (*Model, string, error) {
	// a.Model is the model key (e.g., "claude_sonnet_4")
	for i := range models {
		m := &models[i]
		supportedModels, ok := SupportedModels[m.Provider]
		if !ok {
			continue
		}

		for _, allowedKey := range m.AllowedModels {
			if allowedKey == a.Model {
				actualModel, ok := supportedModels[a.Model]
				if !ok {
					return nil, "", fmt.Errorf("model key '%s' not found in supported models for provider '%s'", a.Model, m.Provider)
				}
				return m, actualModel, nil
			}
		}
	}

	return nil, "", fmt.Errorf("no model config found for model '%s'", a.Model)
}
