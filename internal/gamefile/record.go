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

// Package gamefile reads game records from Parquet files. Columns are
// resolved by name once per file; individual fields that cannot be decoded
// as their expected type fall back to zero values rather than failing the
// row.
package gamefile

import (
	"fmt"
	"strings"
)

// Record is one game row.
type Record struct {
	Player1     string
	Player2     string
	Outcome     float32
	Month       string
	TimeControl string
}

const (
	ColumnPlayer1     = "player1"
	ColumnPlayer2     = "player2"
	ColumnOutcome     = "outcome"
	ColumnMonth       = "month"
	ColumnTimeControl = "time_control"
)

// RequiredColumns must all be present in a file's schema.
var RequiredColumns = []string{
	ColumnPlayer1,
	ColumnPlayer2,
	ColumnOutcome,
	ColumnMonth,
	ColumnTimeControl,
}

// SchemaError reports required columns absent from a file.
type SchemaError struct {
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required column(s): %s", e.Path, strings.Join(e.Missing, ", "))
}
