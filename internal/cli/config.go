package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xelth-com/pdbsync/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and write the configuration",
	}
	cmd.AddCommand(newConfigDumpCommand(rootOpts))
	cmd.AddCommand(newConfigWriteCommand(rootOpts))
	return cmd
}

func newConfigDumpCommand(rootOpts *RootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "yaml":
				data, err := config.Marshal(rootOpts.Config)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to render config", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			case "json":
				return dump(cmd.OutOrStdout(), "json", rootOpts.Config)
			}
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid output format %q", format))
		},
	}
	cmd.Flags().StringVarP(&format, "output-format", "O", "yaml", "output data format (yaml|json)")
	return cmd
}

func newConfigWriteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "write",
		Short: "Write the effective configuration to the config directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Write(rootOpts.Config, rootOpts.Config.Dir)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to write config", err)
			}
			if rootOpts.Quiet == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
			}
			return nil
		},
	}
}
