package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/xelth-com/pdbsync/internal/client"
	"github.com/xelth-com/pdbsync/internal/handlers"
	"github.com/xelth-com/pdbsync/internal/logging"
	"github.com/xelth-com/pdbsync/internal/sync"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen       string
	SyncInterval time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local database over HTTP",
		Long: `Serve the local database in the PeeringDB API format.

The server answers /api/<tag>, /api/<tag>/<id> and /<tag>-0.json so that
another pdbsync can use it as its sync.url or sync.cache_url. Prometheus
metrics are exported on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Listen, "listen", "l", "", "listen address (default serve.listen)")
	cmd.Flags().DurationVar(&opts.SyncInterval, "sync-interval", 0, "run an incremental sync at this interval (0 disables)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	c, err := client.New(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer c.Close()

	listen := opts.Listen
	if listen == "" {
		listen = opts.Config.Serve.Listen
	}

	router := handlers.NewRouter(c.Backend())
	server := &http.Server{
		Addr:              listen,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if opts.SyncInterval > 0 {
		go syncWorker(ctx, c, opts.SyncInterval)
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info().Str("listen", listen).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start server", err)
		}
		return nil
	case <-ctx.Done():
	}
	logging.Info().Msg("Shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Err(err).Msg("HTTP server shutdown error")
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}

// syncWorker runs incremental syncs until ctx is cancelled.
func syncWorker(ctx context.Context, c *client.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		result, err := c.UpdateAll(ctx, sync.UpdateOptions{})
		if err != nil {
			logging.Err(err).Msg("Scheduled sync failed")
			continue
		}
		logging.Info().
			Str("run_id", result.RunID).
			Int("failed", result.Failed()).
			Dur("duration", result.Duration).
			Msg("Scheduled sync finished")
	}
}
