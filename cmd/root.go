package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "inquest",
	Short: "Dual-agent fraud investigation service",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Welcome to Inquest! Use --help to see available commands.")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
