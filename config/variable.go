package config

import "fmt"

// Variable declares a config input resolved from ~/.inquest/vars.txt,
// falling back to its default. Secrets must come from the vars file so
// they never live in a checked-in config.
type Variable struct {
	Name    string `hcl:"name,label"`
	Default string `hcl:"default,optional"`
	Secret  bool   `hcl:"secret,optional"`
}

func (v *Variable) Validate() error {
	if v.Secret && v.Default != "" {
		return fmt.Errorf("secret variable '%s' cannot carry a default in config", v.Name)
	}
	return nil
}
