// Package cmd wires the ravel CLI. Following the pattern used by kubectl,
// hugo and other standard Go CLI tools, all application logic lives here and
// main.go stays a minimal entry point.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ravel",
	Short: "ravel - streaming conversation engine for local models",
	Long: `ravel serves a streaming conversation API on top of a local Ollama
instance: sessions and code artifacts persist in Redis, responses stream
to clients as Server-Sent Events, and truncated answers can be continued
seamlessly in place.

Run "ravel serve" to start the HTTP API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
