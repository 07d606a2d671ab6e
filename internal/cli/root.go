// Package cli implements the pdbsync command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/xelth-com/pdbsync/internal/buildinfo"
	"github.com/xelth-com/pdbsync/internal/config"
	"github.com/xelth-com/pdbsync/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigDir string
	Verbose   int
	Quiet     int

	// Config is loaded before any subcommand runs.
	Config *config.Config
}

// NewRootCommand creates the root command for the pdbsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "pdbsync",
		Short:   "PeeringDB mirror and client",
		Long:    "Keep a local copy of the PeeringDB database in sync and query it.",
		Version: buildinfo.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigDir, "config", "C", "", "config directory (default $PEERINGDB_HOME or ~/.peeringdb)")
	cmd.PersistentFlags().CountVarP(&opts.Verbose, "verbose", "v", "be more verbose")
	cmd.PersistentFlags().CountVarP(&opts.Quiet, "quiet", "q", "be more quiet")

	// Add subcommands
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewWhoisCommand(opts))
	cmd.AddCommand(NewDropTablesCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	cfg, err := config.Load(o.ConfigDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.Config = cfg

	level := cfg.Log.Level
	if o.Verbose > 0 || o.Quiet > 0 {
		level = logging.VerbosityLevel(o.Verbose, o.Quiet)
	}
	logging.Init(logging.Config{
		Level:      level,
		Format:     cfg.Log.Format,
		File:       config.ExpandPath(cfg.Log.File),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	return nil
}
