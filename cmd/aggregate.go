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
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/gamerunner/config"
	"github.com/cardinalhq/gamerunner/internal/ingest"
	"github.com/cardinalhq/gamerunner/internal/objstore"
	"github.com/cardinalhq/gamerunner/internal/progress"
)

func aggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Download every game file under the prefix and print aggregated statistics",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.Flags().Changed("concurrency") {
				if cfg.Ingest.Concurrency, err = c.Flags().GetInt("concurrency"); err != nil {
					return fmt.Errorf("failed to get concurrency flag: %w", err)
				}
			}
			noProgress, err := c.Flags().GetBool("no-progress")
			if err != nil {
				return fmt.Errorf("failed to get no-progress flag: %w", err)
			}
			if noProgress {
				cfg.Ingest.Progress = false
			}

			return withTelemetry("gamerunner-aggregate", func(ctx context.Context) error {
				store, err := objstore.New(ctx, cfg.Storage)
				if err != nil {
					return err
				}
				reporter := progress.Nop()
				if cfg.Ingest.Progress {
					reporter = progress.ForFile(os.Stderr)
				}
				return runAggregate(ctx, cfg, store, reporter, c.OutOrStdout())
			})
		},
	}

	addStorageFlags(cmd.Flags())
	cmd.Flags().Int("concurrency", 1, "Number of game files processed at once")
	cmd.Flags().Bool("no-progress", false, "Disable the download progress display")

	return cmd
}

// runAggregate runs one ingest pass and writes the report to out. Files that
// fail are logged and left out of the totals; they do not fail the command.
// An interrupted run still writes the report for what was processed.
func runAggregate(ctx context.Context, cfg *config.Config, store objstore.Store, reporter progress.Reporter, out io.Writer) error {
	res, err := ingest.Run(ctx, ingest.Options{
		Store:  store,
		Bucket: cfg.Storage.Bucket,
		Prefix: cfg.Storage.Prefix,
		Fetch: objstore.FetchOptions{
			ScratchDir:     cfg.Fetch.ScratchDir,
			ChunkSize:      cfg.Fetch.ChunkSize,
			RequestTimeout: cfg.Fetch.RequestTimeout,
			MaxAttempts:    cfg.Fetch.MaxAttempts,
			RetryBackoff:   cfg.Fetch.RetryBackoff,
			Progress:       reporter,
		},
		Concurrency: cfg.Ingest.Concurrency,
		RunTimeout:  cfg.Ingest.RunTimeout,
	})
	if res == nil {
		return err
	}

	if werr := res.Stats.WriteReport(out); werr != nil {
		return fmt.Errorf("failed to write report: %w", werr)
	}
	if res.Failed > 0 {
		slog.Warn("Some game files were skipped",
			slog.Int("failed", res.Failed),
			slog.Int("processed", res.Processed),
			slog.Any("error", res.Failures),
		)
	}
	return err
}
