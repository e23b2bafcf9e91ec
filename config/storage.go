package config

import "fmt"

// StorageConfig defines where investigations and their event archives
// are persisted
type StorageConfig struct {
	Backend string `hcl:"backend,optional"`
	Path    string `hcl:"path,optional"`
	DSN     string `hcl:"dsn,optional"`
}

// Defaults fills in default values for unset fields
func (s *StorageConfig) Defaults() {
	if s.Backend == "" {
		s.Backend = "memory"
	}
	if s.Backend == "sqlite" && s.Path == "" {
		s.Path = "inquest.db"
	}
}

// Validate checks that the backend is supported and has what it needs
func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case "", "memory", "sqlite":
	case "postgres":
		if s.DSN == "" {
			return fmt.Errorf("storage backend %q requires a dsn", s.Backend)
		}
	default:
		return fmt.Errorf("unsupported storage backend %q (expected memory, sqlite, or postgres)", s.Backend)
	}
	return nil
}
