package config_test

import (
	"os"
	"path/filepath"

	"inquest/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config Loading", func() {

	Describe("Load", func() {
		It("routes to LoadFile for a file path", func() {
			_, f := writeFixture("vars.hcl", `variable "x" { default = "val" }`)
			cfg, err := config.Load(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Variables).To(HaveLen(1))
			Expect(cfg.Variables[0].Name).To(Equal("x"))
		})

		It("routes to LoadDir for a directory path", func() {
			dir := writeFixtures(map[string]string{
				"variables.hcl": `variable "a" { default = "1" }`,
				"models.hcl": minimalVarsHCL() + `
model "test" {
  provider       = "openai"
  allowed_models = ["gpt_4o"]
  api_key        = vars.test_api_key
}
`,
			})
			cfg, err := config.Load(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(cfg.Variables)).To(BeNumerically(">=", 1))
			Expect(cfg.Models).To(HaveLen(1))
		})

		It("returns error for nonexistent path", func() {
			_, err := config.Load("/nonexistent/path/config.hcl")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("LoadFile", func() {
		It("parses a single HCL file with multiple block types", func() {
			_, f := writeFixture("config.hcl", fullBaseHCL())
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Variables).To(HaveLen(1))
			Expect(cfg.Models).To(HaveLen(1))
			Expect(cfg.Agents).To(HaveLen(1))
		})

		It("returns parse error for invalid HCL syntax", func() {
			_, f := writeFixture("bad.hcl", `model { missing label and brace`)
			_, err := config.LoadFile(f)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("LoadDir", func() {
		It("loads all .hcl files from the directory", func() {
			dir := writeFixtures(map[string]string{
				"variables.hcl": `variable "v1" { default = "a" }`,
				"models.hcl": `
variable "k" { default = "key" }
model "m1" {
  provider       = "openai"
  allowed_models = ["gpt_4o"]
  api_key        = vars.k
}
`,
			})
			cfg, err := config.LoadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Models).To(HaveLen(1))
		})

		It("ignores non-.hcl files", func() {
			dir := writeFixtures(map[string]string{
				"config.hcl": `variable "x" { default = "y" }`,
				"readme.txt": `This is not HCL`,
				"data.json":  `{"key": "value"}`,
			})
			cfg, err := config.LoadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Variables).To(HaveLen(1))
		})

		It("returns empty config for directory with no .hcl files", func() {
			dir := GinkgoT().TempDir()
			err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0644)
			Expect(err).NotTo(HaveOccurred())
			cfg, err := config.LoadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Variables).To(BeEmpty())
			Expect(cfg.Models).To(BeEmpty())
			Expect(cfg.Agents).To(BeEmpty())
		})
	})

	Describe("Staged evaluation order", func() {
		It("resolves variable references in model blocks", func() {
			hcl := `
variable "my_key" { default = "resolved-api-key" }
model "test" {
  provider       = "anthropic"
  allowed_models = ["claude_sonnet_4"]
  api_key        = vars.my_key
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Models[0].APIKey).To(Equal("resolved-api-key"))
		})

		It("resolves model references in agent blocks", func() {
			hcl := minimalVarsHCL() + minimalModelHCL() + `
agent "a" {
  role  = "investigation"
  model = models.anthropic.claude_sonnet_4
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Agents[0].Model).To(Equal("claude_sonnet_4"))
		})

		It("resolves variable references in server blocks", func() {
			hcl := `
variable "peer" { default = "ws://peer.internal:8321/ws/delegate" }
server {
  listen   = ":9000"
  peer_url = vars.peer
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.Listen).To(Equal(":9000"))
			Expect(cfg.Server.PeerURL).To(Equal("ws://peer.internal:8321/ws/delegate"))
		})
	})

	Describe("Server and storage blocks", func() {
		It("applies defaults when blocks are absent", func() {
			_, f := writeFixture("config.hcl", `variable "x" { default = "y" }`)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server).NotTo(BeNil())
			Expect(cfg.Server.Listen).To(Equal(":8320"))
			Expect(cfg.Storage).NotTo(BeNil())
			Expect(cfg.Storage.Backend).To(Equal("memory"))
		})

		It("fills the default sqlite path when backend is sqlite", func() {
			_, f := writeFixture("config.hcl", `storage { backend = "sqlite" }`)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Path).To(Equal("inquest.db"))
		})

		It("rejects duplicate server blocks", func() {
			hcl := `
server { listen = ":1" }
server { listen = ":2" }
`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadFile(f)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("duplicate server block"))
		})
	})

	Describe("ResolvedVars", func() {
		It("populates ResolvedVars map from variable defaults", func() {
			hcl := `variable "app_name" { default = "myapp" }`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.ResolvedVars).To(HaveKey("app_name"))
			Expect(cfg.ResolvedVars["app_name"].AsString()).To(Equal("myapp"))
		})
	})
})
