package cmd

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"inquest/agent"
	"inquest/config"
	"inquest/llm"
	"inquest/tools"
)

// agentRuntime bundles everything one role needs to execute tasks.
type agentRuntime struct {
	Executor *agent.Executor
	Registry *agent.Registry
	Vendor   string
	close    func()
}

func (r *agentRuntime) Close() {
	if r.close != nil {
		r.close()
	}
}

func newLogger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: hclog.Info,
	})
}

func buildProvider(ctx context.Context, m *config.Model) (llm.Provider, func(), error) {
	key, err := resolveAPIKey(m)
	if err != nil {
		return nil, nil, err
	}

	switch m.Provider {
	case config.ProviderAnthropic:
		return llm.NewAnthropicProvider(key), nil, nil
	case config.ProviderOpenAI:
		return llm.NewOpenAIProvider(key), nil, nil
	case config.ProviderGemini:
		p, err := llm.NewGeminiProvider(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported provider '%s'", m.Provider)
	}
}

func resolveAPIKey(m *config.Model) (string, error) {
	if m.APIKey == "" {
		return "", fmt.Errorf("model '%s' has no api_key (set it via vars)", m.Name)
	}
	return m.APIKey, nil
}

// registerDatasetTools wires the analysis tools over the loaded dataset.
func registerDatasetTools(inv *tools.Invoker, data *tools.Dataset, cache *tools.BenchmarkCache) {
	inv.Register(&tools.AccountActivityTool{Data: data})
	inv.Register(&tools.FindAnomaliesTool{Data: data, Cache: cache})
	inv.Register(&tools.RiskScoreTool{Data: data, Cache: cache})
	inv.Register(&tools.DetectRingsTool{Data: data})
}

// buildRuntime assembles the executor for one role from config. The
// delegator is nil for the investigation role.
func buildRuntime(ctx context.Context, cfg *config.Config, role string, delegator agent.Delegator, logger hclog.Logger) (*agentRuntime, error) {
	agentCfg := cfg.AgentByRole(role)
	if agentCfg == nil {
		return nil, fmt.Errorf("no agent with role '%s' in config", role)
	}

	modelCfg, modelName, err := agentCfg.ResolveModel(cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("agent '%s': %w", agentCfg.Name, err)
	}

	provider, closeProvider, err := buildProvider(ctx, modelCfg)
	if err != nil {
		return nil, err
	}

	data, err := loadDataset(cfg, logger)
	if err != nil {
		if closeProvider != nil {
			closeProvider()
		}
		return nil, err
	}

	audit := tools.NewAuditLog(1000)
	invoker := tools.NewInvoker(audit, logger)
	cache := tools.NewBenchmarkCache(0)
	registerDatasetTools(invoker, data, cache)

	canDelegate := delegator != nil
	if canDelegate {
		invoker.Register(&tools.DelegateTool{})
	}

	systemPrompt := agent.SystemPrompt(role, invoker.List(), canDelegate)
	if agentCfg.Personality != "" {
		systemPrompt += "\n\n" + agentCfg.Personality
	}
	defs := invoker.Defs()

	executor := agent.NewExecutor(agent.Options{
		Role:   role,
		Vendor: string(modelCfg.Provider),
		NewReasoner: func() agent.Reasoner {
			return llm.NewSession(provider, modelName, defs, systemPrompt)
		},
		Invoker:        invoker,
		Delegator:      delegator,
		DelegationTool: tools.DelegationToolName,
		Logger:         logger,
	})

	return &agentRuntime{
		Executor: executor,
		Registry: agent.NewRegistry(),
		Vendor:   string(modelCfg.Provider),
		close:    closeProvider,
	}, nil
}

func loadDataset(cfg *config.Config, logger hclog.Logger) (*tools.Dataset, error) {
	if cfg.Server.Dataset == "" {
		logger.Warn("no dataset configured, analysis tools will see no transactions")
		return tools.NewDataset(nil), nil
	}
	data, err := tools.LoadDataset(cfg.Server.Dataset)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", cfg.Server.Dataset, err)
	}
	logger.Info("dataset loaded", "path", cfg.Server.Dataset, "transactions", data.Len())
	return data, nil
}
