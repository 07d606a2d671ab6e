package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xelth-com/pdbsync/internal/client"
)

// NewDropTablesCommand creates the drop-tables command.
func NewDropTablesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop-tables",
		Short: "Drop all database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *rootOpts.Config
			cfg.ORM.Migrate = false
			c, err := client.New(&cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer c.Close()

			if err := c.DropTables(cmd.Context()); err != nil {
				return WrapExitError(ExitCommandError, "failed to drop tables", err)
			}
			if rootOpts.Quiet == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Dropped all tables")
			}
			return nil
		},
	}
}
