package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Long = fmt.Sprintf(`Inquest %s

Dual-agent fraud investigation service. A detection agent takes user
requests, calls analysis tools over a transaction dataset, and can hand
deep-dive sub-investigations to a separately hosted investigation agent,
streaming every step to the client in real time.

Get started:
  inquest verify <path>       Validate your configuration
  inquest serve               Run the detection agent (HTTP/SSE API)
  inquest peer                Run the investigation agent (delegation endpoint)
  inquest investigate <text>  Submit a request and watch it unfold`, Version)
}
