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
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/gamerunner/internal/gamefile"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the columns of a local game file and check the required ones",
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}
			return runSchema(filename, c.OutOrStdout())
		},
	}

	cmd.Flags().String("file", "", "Parquet file (.parquet or .parquet.zst) to inspect")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}

	return cmd
}

func runSchema(filename string, out io.Writer) error {
	r, err := gamefile.Open(filename)
	var se *gamefile.SchemaError
	if errors.As(err, &se) {
		fmt.Fprintf(out, "%s: missing required columns: %v\n", filename, se.Missing)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer func() {
		_ = r.Close()
	}()

	for _, col := range r.Columns() {
		fmt.Fprintln(out, col)
	}
	fmt.Fprintln(out, "all required columns present")
	return nil
}
