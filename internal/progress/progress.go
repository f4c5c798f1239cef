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

// Package progress reports byte-level transfer progress. The fetcher is
// handed a Reporter explicitly so tests and non-interactive runs can pass
// Nop() and stay free of terminal output.
package progress

import (
	"os"

	"golang.org/x/term"
)

// Reporter starts tracking a single transfer. A total <= 0 means the size
// is unknown and the tracker should render in indeterminate mode.
type Reporter interface {
	Begin(name string, total int64) Tracker
}

// Tracker observes one transfer. Add is called once per chunk written,
// Done exactly once when the transfer ends, successfully or not.
type Tracker interface {
	Add(n int64)
	Done()
}

type nopReporter struct{}

type nopTracker struct{}

// Nop returns a Reporter that discards all progress.
func Nop() Reporter { return nopReporter{} }

func (nopReporter) Begin(string, int64) Tracker { return nopTracker{} }

func (nopTracker) Add(int64) {}
func (nopTracker) Done()     {}

// ForFile returns a terminal reporter when f is a TTY and Nop otherwise.
func ForFile(f *os.File) Reporter {
	if f != nil && term.IsTerminal(int(f.Fd())) {
		return NewTerminal(f, defaultInterval)
	}
	return Nop()
}
