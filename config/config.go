package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Config holds all configuration
type Config struct {
	Variables []Variable `hcl:"variable,block"`
	Models    []Model    `hcl:"model,block"`
	Agents    []Agent    `hcl:"agent,block"`

	Server  *ServerConfig  `hcl:"server,block"`
	Storage *StorageConfig `hcl:"storage,block"`

	// ResolvedVars holds the resolved variable values for runtime use
	ResolvedVars map[string]cty.Value `hcl:"-"`
}

func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadAndValidate loads the config and validates all components
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all config components are valid
func (c *Config) Validate() error {
	for _, m := range c.Models {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("model '%s': %w", m.Name, err)
		}
	}

	for _, v := range c.Variables {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variable '%s': %w", v.Name, err)
		}
	}

	seenRoles := make(map[string]string)
	for _, a := range c.Agents {
		if err := a.Validate(); err != nil {
			return err
		}
		if prev, ok := seenRoles[a.Role]; ok {
			return fmt.Errorf("agents '%s' and '%s' both declare role '%s'", prev, a.Name, a.Role)
		}
		seenRoles[a.Role] = a.Name

		if _, _, err := a.ResolveModel(c.Models); err != nil {
			return fmt.Errorf("agent '%s': %w", a.Name, err)
		}
	}

	if c.Storage != nil {
		if err := c.Storage.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// AgentByRole returns the agent configured for the given role, or nil
func (c *Config) AgentByRole(role string) *Agent {
	for i := range c.Agents {
		if c.Agents[i].Role == role {
			return &c.Agents[i]
		}
	}
	return nil
}

func LoadFile(filename string) (*Config, error) {
	return loadFromFiles([]string{filename})
}

func LoadDir(dir string) (*Config, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, err
	}
	return loadFromFiles(files)
}

// parsedBlocks holds all blocks extracted from a file in one pass
type parsedBlocks struct {
	Variables []*hcl.Block
	Models    []*hcl.Block
	Agents    []*hcl.Block
	Servers   []*hcl.Block
	Storages  []*hcl.Block
}

// loadFromFiles implements staged loading: variables → models → agents.
// Each stage's results become HCL context for the next, so agent blocks
// can reference models.{name}.{model_key} and every block can use vars.*
func loadFromFiles(files []string) (*Config, error) {
	parser := hclparse.NewParser()
	var allParsedBlocks []parsedBlocks

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("[1] parse %s: %w", file, diags)
		}

		// Extract all known block types in one PartialContent call
		content, _, diags := hclFile.Body.PartialContent(&hcl.BodySchema{
			Blocks: []hcl.BlockHeaderSchema{
				{Type: "variable", LabelNames: []string{"name"}},
				{Type: "model", LabelNames: []string{"name"}},
				{Type: "agent", LabelNames: []string{"name"}},
				{Type: "server"},
				{Type: "storage"},
			},
		})
		if diags.HasErrors() {
			return nil, fmt.Errorf("[2] partial content %s: %w", file, diags)
		}

		var pb parsedBlocks
		for _, block := range content.Blocks {
			switch block.Type {
			case "variable":
				pb.Variables = append(pb.Variables, block)
			case "model":
				pb.Models = append(pb.Models, block)
			case "agent":
				pb.Agents = append(pb.Agents, block)
			case "server":
				pb.Servers = append(pb.Servers, block)
			case "storage":
				pb.Storages = append(pb.Storages, block)
			}
		}
		allParsedBlocks = append(allParsedBlocks, pb)
	}

	// Stage 1: Load variables (no context needed)
	var allVars []Variable
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Variables {
			var v Variable
			v.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, nil, &v)
			if diags.HasErrors() {
				return nil, fmt.Errorf("[3] decode variable %s: %w", v.Name, diags)
			}
			allVars = append(allVars, v)
		}
	}

	varsCtx, resolvedVars := buildVarsContext(allVars)

	// Stage 2: Load models (with vars context)
	var allModels []Model
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Models {
			var m Model
			m.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, varsCtx, &m)
			if diags.HasErrors() {
				return nil, diags
			}
			allModels = append(allModels, m)
		}
	}

	// Build models context (add to vars context)
	modelsCtx := buildModelsContext(varsCtx, allModels)

	// Stage 3: Load agents (with vars + models context)
	var allAgents []Agent
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Agents {
			var a Agent
			a.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, modelsCtx, &a)
			if diags.HasErrors() {
				return nil, diags
			}
			allAgents = append(allAgents, a)
		}
	}

	// Server and storage blocks are plain settings, decoded with vars context
	var server *ServerConfig
	var storage *StorageConfig
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Servers {
			if server != nil {
				return nil, fmt.Errorf("duplicate server block at %s", block.DefRange)
			}
			var s ServerConfig
			diags := gohcl.DecodeBody(block.Body, varsCtx, &s)
			if diags.HasErrors() {
				return nil, diags
			}
			server = &s
		}
		for _, block := range pb.Storages {
			if storage != nil {
				return nil, fmt.Errorf("duplicate storage block at %s", block.DefRange)
			}
			var s StorageConfig
			diags := gohcl.DecodeBody(block.Body, varsCtx, &s)
			if diags.HasErrors() {
				return nil, diags
			}
			storage = &s
		}
	}
	if server == nil {
		server = &ServerConfig{}
	}
	server.Defaults()
	if storage == nil {
		storage = &StorageConfig{}
	}
	storage.Defaults()

	return &Config{
		Variables:    allVars,
		Models:       allModels,
		Agents:       allAgents,
		Server:       server,
		Storage:      storage,
		ResolvedVars: resolvedVars,
	}, nil
}

// buildVarsContext creates context with just vars
func buildVarsContext(vars []Variable) (*hcl.EvalContext, map[string]cty.Value) {
	varsMap := make(map[string]cty.Value)
	fileVars, _ := LoadVarsFromFile()
	for _, v := range vars {
		if val, ok := fileVars[v.Name]; ok {
			varsMap[v.Name] = cty.StringVal(val)
		} else if v.Default != "" {
			varsMap[v.Name] = cty.StringVal(v.Default)
		} else {
			varsMap[v.Name] = cty.StringVal("")
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"vars": cty.ObjectVal(varsMap),
		},
	}, varsMap
}

// buildModelsContext adds models to existing context
func buildModelsContext(ctx *hcl.EvalContext, models []Model) *hcl.EvalContext {
	modelsMap := make(map[string]cty.Value)
	for _, m := range models {
		providerModels := make(map[string]cty.Value)
		for _, modelKey := range m.AllowedModels {
			providerModels[modelKey] = cty.StringVal(modelKey)
		}
		modelsMap[m.Name] = cty.ObjectVal(providerModels)
	}

	newVars := make(map[string]cty.Value)
	for k, v := range ctx.Variables {
		newVars[k] = v
	}
	newVars["models"] = cty.ObjectVal(modelsMap)

	return &hcl.EvalContext{
		Variables: newVars,
	}
}
