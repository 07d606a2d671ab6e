package cli

import (
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xelth-com/pdbsync/internal/client"
	"github.com/xelth-com/pdbsync/internal/resource"
	"github.com/xelth-com/pdbsync/internal/utils"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Depth        int
	OutputFormat string
	Remote       bool
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <tag><id>...",
		Short: "Get objects from the local database",
		Long: `Print objects from the local database.

Example:
  pdbsync get net20
  pdbsync get org-1 ix-3 -D 1 -O json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, opts, args)
		},
	}

	cmd.Flags().IntVarP(&opts.Depth, "depth", "D", 0, "how many levels of nested objects to fetch")
	cmd.Flags().StringVarP(&opts.OutputFormat, "output-format", "O", "yaml", "output data format (yaml|json)")
	cmd.Flags().BoolVarP(&opts.Remote, "remote", "R", false, "fall back to API request if object is not found")

	return cmd
}

func runGet(cmd *cobra.Command, opts *GetOptions, refs []string) error {
	if opts.OutputFormat != "yaml" && opts.OutputFormat != "json" {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid output format %q", opts.OutputFormat))
	}

	c, err := client.New(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer c.Close()

	ctx := cmd.Context()
	for _, ref := range refs {
		tag, pk, err := utils.SplitRef(ref)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid object id", err)
		}
		res, err := resource.Get(tag)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid object id", err)
		}

		var row resource.Row
		obj, err := c.Get(ctx, res, pk)
		switch {
		case err == nil:
			if row, err = c.AsRow(ctx, obj, opts.Depth); err != nil {
				return WrapExitError(ExitCommandError, "failed to render object", err)
			}
		case errors.Is(err, errors.NotFound) && opts.Remote:
			if row, err = c.Fetcher().Get(ctx, tag, pk, opts.Depth, false); err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("Not found: %s-%d", tag, pk), err)
			}
		case errors.Is(err, errors.NotFound):
			return NewExitError(ExitFailure, fmt.Sprintf("Not found: %s-%d", tag, pk))
		default:
			return WrapExitError(ExitCommandError, "lookup failed", err)
		}

		if err := dump(cmd.OutOrStdout(), opts.OutputFormat, row); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}
	return nil
}

// dump writes v as YAML or indented JSON.
func dump(w io.Writer, format string, v any) error {
	if format == "json" {
		data, err := gojson.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
