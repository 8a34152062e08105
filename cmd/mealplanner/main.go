// Meal planner recipe service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mealplanner",
	Short: "Meal planner recipe service.",
	Long: `mealplanner serves a small recipe CRUD API over HTTP.
Recipes are stored in DynamoDB (default), PostgreSQL or SQLite. PostgreSQL
credentials are resolved at startup from a secret store, the environment
and built-in defaults, in that order.`,
	RunE:          runServe, // Default to serve mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, credentialsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
