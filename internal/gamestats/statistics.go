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

// Package gamestats accumulates row counts across a corpus of game files.
package gamestats

import (
	"fmt"
	"maps"
	"sync"

	"github.com/axiomhq/hyperloglog"

	"github.com/cardinalhq/gamerunner/internal/gamefile"
)

// Accumulator folds one record at a time into running totals. Implementations
// must be safe for concurrent use and apply each record atomically.
type Accumulator interface {
	Observe(rec gamefile.Record)
}

// Statistics is the in-memory Accumulator. A single mutex guards all
// counters, held only for the duration of one record's update.
type Statistics struct {
	mu                 sync.Mutex
	totalRows          uint64
	rowsPerMonth       map[string]uint64
	rowsPerTimeControl map[string]uint64
	players            *hyperloglog.Sketch
}

var _ Accumulator = (*Statistics)(nil)

// New returns empty Statistics.
func New() *Statistics {
	return &Statistics{
		rowsPerMonth:       make(map[string]uint64),
		rowsPerTimeControl: make(map[string]uint64),
		players:            hyperloglog.New14(),
	}
}

// Observe counts rec once in the total, once under its month and once
// under its time control.
func (s *Statistics) Observe(rec gamefile.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRows++
	s.rowsPerMonth[rec.Month]++
	s.rowsPerTimeControl[rec.TimeControl]++

	if rec.Player1 != "" {
		s.players.Insert([]byte(rec.Player1))
	}
	if rec.Player2 != "" {
		s.players.Insert([]byte(rec.Player2))
	}
}

// Snapshot is a point-in-time copy of Statistics.
type Snapshot struct {
	TotalRows          uint64
	RowsPerMonth       map[string]uint64
	RowsPerTimeControl map[string]uint64
	// DistinctPlayers is a HyperLogLog estimate, not an exact count.
	DistinctPlayers uint64
}

// Snapshot copies the current counters.
func (s *Statistics) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		TotalRows:          s.totalRows,
		RowsPerMonth:       maps.Clone(s.rowsPerMonth),
		RowsPerTimeControl: maps.Clone(s.rowsPerTimeControl),
		DistinctPlayers:    s.players.Estimate(),
	}
}

// Merge folds all of other's counts into s as one atomic update. other
// must not be s.
func (s *Statistics) Merge(other *Statistics) error {
	other.mu.Lock()
	total := other.totalRows
	months := maps.Clone(other.rowsPerMonth)
	controls := maps.Clone(other.rowsPerTimeControl)
	players := other.players.Clone()
	other.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.players.Merge(players); err != nil {
		return fmt.Errorf("merging player sketch: %w", err)
	}
	s.totalRows += total
	for k, v := range months {
		s.rowsPerMonth[k] += v
	}
	for k, v := range controls {
		s.rowsPerTimeControl[k] += v
	}
	return nil
}
