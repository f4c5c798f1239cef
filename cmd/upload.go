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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/gamerunner/internal/objstore"
)

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a local file or directory to the configured bucket",
		Long: `Uploads --path, taken relative to --root-dir, to the bucket. Each file's
key is its path relative to --root-dir, so data/game-data/2023-01.parquet
is stored as game-data/2023-01.parquet.`,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			rootDir, err := c.Flags().GetString("root-dir")
			if err != nil {
				return fmt.Errorf("failed to get root-dir flag: %w", err)
			}
			relPath, err := c.Flags().GetString("path")
			if err != nil {
				return fmt.Errorf("failed to get path flag: %w", err)
			}
			dryRun, err := c.Flags().GetBool("dry-run")
			if err != nil {
				return fmt.Errorf("failed to get dry-run flag: %w", err)
			}

			return withTelemetry("gamerunner-upload", func(ctx context.Context) error {
				var up objstore.Uploader
				if !dryRun {
					backend, err := objstore.New(ctx, cfg.Storage)
					if err != nil {
						return err
					}
					up = backend
				}
				_, err := runUpload(ctx, up, cfg.Storage.Bucket, rootDir, relPath, c.OutOrStdout())
				return err
			})
		},
	}

	addStorageFlags(cmd.Flags())
	cmd.Flags().String("root-dir", "data/", "Root directory containing the data")
	cmd.Flags().String("path", "", "Path to upload, relative to the root directory")
	if err := cmd.MarkFlagRequired("path"); err != nil {
		panic(fmt.Errorf("failed to mark path flag as required: %w", err))
	}
	cmd.Flags().Bool("dry-run", false, "Print what would be uploaded without uploading")

	return cmd
}

// runUpload uploads rootDir/relPath, a file or a directory tree. A nil
// uploader performs a dry run that only prints the planned keys. It returns
// the number of files uploaded (or planned); failures of individual files
// are collected and do not stop the remaining uploads.
func runUpload(ctx context.Context, up objstore.Uploader, bucket, rootDir, relPath string, out io.Writer) (int, error) {
	full := filepath.Join(rootDir, relPath)
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("path not found: %s", full)
		}
		return 0, err
	}

	var files []string
	if info.IsDir() {
		err = filepath.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("failed to walk %s: %w", full, err)
		}
	} else {
		files = []string{full}
	}

	var (
		errs  *multierror.Error
		count int
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		rel, err := filepath.Rel(rootDir, f)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		key := path.Clean(filepath.ToSlash(rel))

		if up == nil {
			fmt.Fprintf(out, "would upload %s to %s/%s\n", f, bucket, key)
			count++
			continue
		}

		if err := up.Upload(ctx, bucket, key, f); err != nil {
			slog.Error("Failed to upload file", slog.String("file", f), slog.String("key", key), slog.Any("error", err))
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		fmt.Fprintf(out, "uploaded %s to %s/%s\n", f, bucket, key)
		count++
	}
	return count, errs.ErrorOrNil()
}
