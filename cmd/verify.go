package cmd

import (
	"fmt"
	"os"

	"inquest/config"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify that the configuration is valid",
	Long:  `Verify parses and validates the HCL configuration files. Path can be a file or directory.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath := args[0]
		cfg, err := config.LoadAndValidate(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Found %d model(s)\n", len(cfg.Models))
		for _, m := range cfg.Models {
			fmt.Printf("  - %s (provider: %s, models: %v)\n", m.Name, m.Provider, m.AllowedModels)
		}
		fmt.Printf("Found %d variable(s)\n", len(cfg.Variables))
		for _, v := range cfg.Variables {
			resolved, _ := config.ResolveVariableValue(&v)
			if v.Secret {
				if resolved != "" {
					fmt.Printf("  - %s (secret, set)\n", v.Name)
				} else {
					fmt.Printf("  - %s (secret, not set)\n", v.Name)
				}
			} else {
				fmt.Printf("  - %s = %q\n", v.Name, resolved)
			}
		}
		fmt.Printf("Found %d agent(s)\n", len(cfg.Agents))
		for _, a := range cfg.Agents {
			fmt.Printf("  - %s (role: %s, model: %s)\n", a.Name, a.Role, a.Model)
		}
		fmt.Printf("Server listens on %s\n", cfg.Server.Listen)
		fmt.Printf("Storage backend: %s\n", cfg.Storage.Backend)

		for _, v := range cfg.Variables {
			resolved, _ := config.ResolveVariableValue(&v)
			if resolved == "" && v.Default == "" {
				fmt.Printf("Warning: variable '%s' has no default and no value set\n", v.Name)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
