// Package cli implements the dbx-copilot command-line interface: asking
// questions against a running engine, linting domain context files, and
// minting development tokens.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var host, token string

	rootCmd := &cobra.Command{
		Use:           "dbx-copilot",
		Short:         "Natural-language questions over governed warehouse data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Precedence: flag > environment > default.
			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("DBX_COPILOT_HOST"); v != "" {
					host = v
				}
			}
			if !cmd.Flags().Changed("token") {
				if v := os.Getenv("DBX_COPILOT_TOKEN"); v != "" {
					token = v
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "Engine base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token forwarded to the warehouse")

	rootCmd.AddCommand(newAskCmd(&host, &token))
	rootCmd.AddCommand(newDomainsCmd(&host))
	rootCmd.AddCommand(newContextsCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
