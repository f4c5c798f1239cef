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

package gamestats

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
)

// WriteReport renders the snapshot as the plain-text run report. Group keys
// are sorted so output is stable, but callers should not depend on order.
func (s Snapshot) WriteReport(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "===== Aggregated Statistics =====")
	fmt.Fprintf(bw, "Total number of rows: %d\n", s.TotalRows)

	fmt.Fprintln(bw, "\nNumber of rows per month:")
	writeGroups(bw, s.RowsPerMonth)

	fmt.Fprintln(bw, "\nNumber of rows per time control:")
	writeGroups(bw, s.RowsPerTimeControl)

	fmt.Fprintf(bw, "\nApproximate distinct players: %d\n", s.DistinctPlayers)
	fmt.Fprintln(bw, "==================================")

	return bw.Flush()
}

func writeGroups(w io.Writer, counts map[string]uint64) {
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
}
