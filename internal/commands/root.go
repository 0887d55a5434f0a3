package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/auditfile-dev/auditfile/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "auditfile",
		Short:   "Regulatory audit-file exports",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newInitCommand())

	return rootCmd
}
