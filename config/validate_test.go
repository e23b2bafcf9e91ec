package config_test

import (
	"inquest/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config Validation", func() {

	Describe("Model.Validate", func() {
		It("accepts a supported provider and model keys", func() {
			m := config.Model{
				Name:          "main",
				Provider:      config.ProviderAnthropic,
				AllowedModels: []string{"claude_sonnet_4", "claude_3_5_haiku"},
				APIKey:        "k",
			}
			Expect(m.Validate()).To(Succeed())
		})

		It("rejects an unsupported provider", func() {
			m := config.Model{Name: "m", Provider: "cohere", AllowedModels: []string{"x"}}
			err := m.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not supported"))
		})

		It("rejects a model key the provider does not offer", func() {
			m := config.Model{
				Name:          "m",
				Provider:      config.ProviderOpenAI,
				AllowedModels: []string{"claude_sonnet_4"},
			}
			err := m.Validate()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Agent.Validate", func() {
		It("accepts the detection and investigation roles", func() {
			for _, role := range []string{config.RoleDetection, config.RoleInvestigation} {
				a := config.Agent{Name: "a", Role: role, Model: "claude_sonnet_4"}
				Expect(a.Validate()).To(Succeed())
			}
		})

		It("rejects any other role", func() {
			a := config.Agent{Name: "a", Role: "supervisor", Model: "claude_sonnet_4"}
			err := a.Validate()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Agent.ResolveModel", func() {
		models := []config.Model{
			{Name: "anthropic", Provider: config.ProviderAnthropic, AllowedModels: []string{"claude_sonnet_4"}, APIKey: "k1"},
			{Name: "openai", Provider: config.ProviderOpenAI, AllowedModels: []string{"gpt_4o_mini"}, APIKey: "k2"},
		}

		It("returns the matching model config and the provider's model name", func() {
			a := config.Agent{Name: "a", Role: config.RoleDetection, Model: "gpt_4o_mini"}
			m, actual, err := a.ResolveModel(models)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Name).To(Equal("openai"))
			Expect(actual).To(Equal("gpt-4o-mini"))
		})

		It("errors when no model block allows the agent's model key", func() {
			a := config.Agent{Name: "a", Role: config.RoleDetection, Model: "o1"}
			_, _, err := a.ResolveModel(models)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Variable.Validate", func() {
		It("rejects secrets with defaults", func() {
			v := config.Variable{Name: "s", Default: "x", Secret: true}
			Expect(v.Validate()).To(HaveOccurred())
		})
	})

	Describe("Config.Validate", func() {
		It("passes for a full valid config", func() {
			_, f := writeFixture("config.hcl", fullBaseHCL())
			_, err := config.LoadAndValidate(f)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects two agents with the same role", func() {
			hcl := fullBaseHCL() + `
agent "second_detector" {
  role  = "detection"
  model = models.anthropic.claude_sonnet_4
}
`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("role 'detection'"))
		})

		It("rejects an agent whose model is not resolvable", func() {
			hcl := minimalVarsHCL() + minimalModelHCL() + `
agent "a" {
  role  = "detection"
  model = "gpt_4o"
}
`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("agent 'a'"))
		})

		It("rejects an unsupported storage backend", func() {
			hcl := fullBaseHCL() + `storage { backend = "dynamo" }`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("storage backend"))
		})

		It("requires a dsn for postgres storage", func() {
			hcl := fullBaseHCL() + `storage { backend = "postgres" }`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("dsn"))
		})
	})

	Describe("AgentByRole", func() {
		It("finds the agent for a role and returns nil otherwise", func() {
			_, f := writeFixture("config.hcl", fullBaseHCL())
			cfg, err := config.LoadAndValidate(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.AgentByRole(config.RoleDetection)).NotTo(BeNil())
			Expect(cfg.AgentByRole(config.RoleInvestigation)).To(BeNil())
		})
	})
})
