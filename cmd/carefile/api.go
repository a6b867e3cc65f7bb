package main

import (
	"github.com/spf13/cobra"

	"github.com/carefile/carefile/internal/api"
	"github.com/carefile/carefile/internal/server/endpoints"
)

var serverURL string

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

// buildGroup assembles the CLI twins of a set of endpoints into one command.
func buildGroup(eps []api.Endpoint, use, short string) *cobra.Command {
	reg := api.NewRegistry()
	for _, ep := range eps {
		reg.Register(ep)
	}
	return reg.BuildCommands(use, short, getServerURL)
}

func init() {
	apiCmd := buildGroup(endpoints.HealthCommands(), "api", "Commands that call the running server")
	apiCmd.Long = `API commands call the running carefile server via HTTP.

These commands require a running server (carefile serve).
Use --server to specify a custom server URL.

Examples:
  carefile api health                       # Check server health
  carefile api departments list             # List departments
  carefile api documents upload <dept> <f>  # Upload a document
  carefile api documents extract <id>       # Run extraction`
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8370", "Server URL",
	)

	apiCmd.AddCommand(buildGroup(endpoints.DepartmentCommands(),
		"departments", "Department directory commands"))
	apiCmd.AddCommand(buildGroup(endpoints.DocumentCommands(),
		"documents", "Document and extraction commands"))
	rootCmd.AddCommand(apiCmd)
}
