package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xelth-com/pdbsync/internal/client"
	"github.com/xelth-com/pdbsync/internal/resource"
	"github.com/xelth-com/pdbsync/internal/utils"
	"github.com/xelth-com/pdbsync/internal/whois"
)

// NewWhoisCommand creates the whois command.
func NewWhoisCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whois <ref>...",
		Short: "Simulate a whois lookup",
		Long: `Look objects up on the PeeringDB API and print them whois style.

Supported references:
  as<ASN>         network by AS number
  ixnets<ix ID>   networks present on an exchange
  <tag><id>       any object, e.g. net20 or ix-3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhois(cmd, rootOpts, args)
		},
	}
}

// whoisQuery maps a reference onto a list query and the display type.
func whoisQuery(tag string, key int64) (string, url.Values, string, error) {
	params := url.Values{}
	params.Set("depth", "2")
	id := strconv.FormatInt(key, 10)

	switch tag {
	case "as":
		params.Set("asn", id)
		return "net", params, "net", nil
	case "ixnets":
		params.Set("ix_id__in", id)
		return "net", params, "net", nil
	}
	if !resource.IsTag(tag) {
		return "", nil, "", fmt.Errorf("unknown resource tag %q", tag)
	}
	params.Set("id", id)
	return tag, params, tag, nil
}

func runWhois(cmd *cobra.Command, opts *RootOptions, refs []string) error {
	api := client.NewAPI(opts.Config, "")
	f := whois.New(cmd.OutOrStdout())

	for _, ref := range refs {
		tag, key, err := utils.SplitRef(ref)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid reference", err)
		}
		resTag, params, typ, err := whoisQuery(tag, key)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid reference", err)
		}

		rows, err := api.List(cmd.Context(), resTag, params)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("Not found: %s=%d", tag, key), err)
		}
		if len(rows) == 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("Not found: %s=%d", tag, key))
		}
		f.Display(typ, rows[0])
	}
	return nil
}
