// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/gamerunner/internal/objstore"
)

func lsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the game files under the configured prefix",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			all, err := c.Flags().GetBool("all")
			if err != nil {
				return fmt.Errorf("failed to get all flag: %w", err)
			}
			long, err := c.Flags().GetBool("long")
			if err != nil {
				return fmt.Errorf("failed to get long flag: %w", err)
			}

			return withTelemetry("gamerunner-ls", func(ctx context.Context) error {
				store, err := objstore.New(ctx, cfg.Storage)
				if err != nil {
					return err
				}
				return runLS(ctx, store, cfg.Storage.Bucket, cfg.Storage.Prefix, all, long, c.OutOrStdout())
			})
		},
	}

	addStorageFlags(cmd.Flags())
	cmd.Flags().Bool("all", false, "Include objects that are not game files")
	cmd.Flags().BoolP("long", "l", false, "Show object sizes and a total")

	return cmd
}

func runLS(ctx context.Context, store objstore.Store, bucket, prefix string, all, long bool, out io.Writer) error {
	var keep func(objstore.Object) bool
	if !all {
		keep = func(o objstore.Object) bool { return objstore.IsDataKey(o.Key) }
	}
	objects, err := objstore.ListObjects(ctx, store, bucket, prefix, keep)
	if err != nil {
		return err
	}

	if !long {
		for _, obj := range objects {
			fmt.Fprintln(out, obj.Key)
		}
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	var total uint64
	for _, obj := range objects {
		fmt.Fprintf(tw, "%s\t %s\n", humanize.IBytes(uint64(obj.Size)), obj.Key)
		total += uint64(obj.Size)
	}
	fmt.Fprintf(tw, "%s\t total (%s objects)\n", humanize.IBytes(total), humanize.Comma(int64(len(objects))))
	return tw.Flush()
}
