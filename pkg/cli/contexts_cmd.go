package cli

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/james-tn/dbx-mcp-copilot/internal/contextstore"
)

func newContextsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contexts",
		Short: "Work with domain context files",
	}
	cmd.AddCommand(newContextsLintCmd())
	return cmd
}

func newContextsLintCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate every domain context file in a directory",
		Long: "Runs the same validation the engine applies at load time: envelope " +
			"checks, strict field parsing, metric expressions over declared " +
			"columns. Exits non-zero when any file fails.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := contextstore.NewLoader(dir, slog.New(slog.DiscardHandler))
			result, err := loader.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, dc := range result.Contexts {
				fmt.Fprintf(out, "ok   %s (version %s, %d tables, %d metrics)\n",
					dc.DomainID, dc.Version, len(dc.Tables), len(dc.Metrics))
			}

			if len(result.Failed) == 0 {
				fmt.Fprintf(out, "%d context(s) valid\n", len(result.Contexts))
				return nil
			}

			names := make([]string, 0, len(result.Failed))
			for name := range result.Failed {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "FAIL %s: %v\n", name, result.Failed[name])
			}
			return fmt.Errorf("%d context file(s) failed validation", len(result.Failed))
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "contexts", "Directory of domain context YAML files")
	return cmd
}
