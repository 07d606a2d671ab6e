package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xelth-com/pdbsync/internal/client"
	"github.com/xelth-com/pdbsync/internal/sync"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	FetchPrivate bool
	DryRun       bool
	Init         bool
	Since        int64
	Only         []string
	Skip         []string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize local tables to PeeringDB",
		Long: `Synchronize the local database with PeeringDB.

An empty table is filled from the cache snapshot or the API; afterwards only
objects changed since the newest local "updated" timestamp are fetched.

Example:
  pdbsync sync
  pdbsync sync --only org,net --dry-run
  PDB_SYNC_API_KEY=... pdbsync sync --fetch-private`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.FetchPrivate, "fetch-private", false, "fetch private data (needs API key set)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "do not actually perform updates")
	cmd.Flags().BoolVar(&opts.Init, "init", false, "only initialize the database; do not sync")
	cmd.Flags().Int64Var(&opts.Since, "since", -1, "only fetch updates since this unix time (<0 for since last sync)")
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "only process these resource tags")
	cmd.Flags().StringSliceVar(&opts.Skip, "skip", nil, "skip these resource tags")

	return cmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	cfg := opts.Config
	if len(opts.Only) > 0 {
		cfg.Sync.Only = opts.Only
	}

	c, err := client.New(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer c.Close()

	if opts.Init {
		return nil
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if opts.Quiet == 0 {
		fmt.Fprintln(out, "Syncing to", cfg.Sync.URL)
	}

	if opts.FetchPrivate && !cfg.Sync.HasAPIKey() {
		fmt.Fprintln(errOut)
		fmt.Fprintln(errOut, "Warning: api key not set, private data will not be fetched. Set it either directly in the config or provide via the PDB_SYNC_API_KEY environment variable.")
		fmt.Fprintln(errOut)
		opts.FetchPrivate = false
	}

	updateOpts := sync.UpdateOptions{
		Skip:         opts.Skip,
		FetchPrivate: opts.FetchPrivate,
		DryRun:       opts.DryRun,
	}
	if opts.Since >= 0 {
		since := opts.Since
		updateOpts.Since = &since
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	result, err := c.UpdateAll(ctx, updateOpts)
	if result != nil && opts.Quiet == 0 {
		printResult(cmd, result)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "sync failed", err)
	}
	if n := result.Failed(); n > 0 {
		path := c.FailedLog().Path()
		return NewExitError(ExitFailure, fmt.Sprintf("%d objects failed to sync, see %s", n, path))
	}
	return nil
}

func printResult(cmd *cobra.Command, result *sync.Result) {
	out := cmd.OutOrStdout()
	for _, rr := range result.Resources {
		if rr.Skipped {
			fmt.Fprintf(out, "%-10s skipped\n", rr.Tag)
			continue
		}
		fmt.Fprintf(out, "%-10s %-11s %6d synced %4d failed  %s\n", rr.Tag, rr.Mode, rr.Synced, rr.Failed, rr.Duration.Round(time.Millisecond))
	}
	if result.DryRun {
		fmt.Fprintln(out, "Dry run, no changes were kept")
	}
}
