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

package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	defaultInterval = 200 * time.Millisecond
	barWidth        = 40
)

var spinnerFrames = []rune{'|', '/', '-', '\\'}

// Terminal renders one status line per transfer, redrawn in place with a
// carriage return. Lines from concurrent transfers are serialized.
type Terminal struct {
	out      io.Writer
	interval time.Duration
	now      func() time.Time

	mu sync.Mutex
}

// NewTerminal returns a Terminal that redraws at most once per interval.
func NewTerminal(out io.Writer, interval time.Duration) *Terminal {
	return &Terminal{
		out:      out,
		interval: interval,
		now:      time.Now,
	}
}

func (t *Terminal) Begin(name string, total int64) Tracker {
	start := t.now()
	return &terminalTracker{
		term:  t,
		name:  name,
		total: total,
		start: start,
	}
}

func (t *Terminal) write(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.out, line)
}

type terminalTracker struct {
	term   *Terminal
	name   string
	total  int64
	start  time.Time
	last   time.Time
	done   int64
	frames int
}

func (tr *terminalTracker) Add(n int64) {
	tr.done += n
	now := tr.term.now()
	if !tr.last.IsZero() && now.Sub(tr.last) < tr.term.interval {
		return
	}
	tr.last = now
	tr.term.write("\r" + tr.render(now))
}

func (tr *terminalTracker) Done() {
	tr.term.write("\r" + tr.render(tr.term.now()) + "\n")
}

func (tr *terminalTracker) render(now time.Time) string {
	elapsed := now.Sub(tr.start).Truncate(time.Second)
	if tr.total <= 0 {
		frame := spinnerFrames[tr.frames%len(spinnerFrames)]
		tr.frames++
		return fmt.Sprintf("%c [%s] %s %s", frame, elapsed, tr.name, humanize.IBytes(uint64(tr.done)))
	}

	filled := int(float64(tr.done) / float64(tr.total) * barWidth)
	filled = min(max(filled, 0), barWidth)
	bar := strings.Repeat("#", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat("-", barWidth-filled-1)
	}

	return fmt.Sprintf("[%s] %s [%s] %s/%s (%s)",
		elapsed,
		tr.name,
		bar,
		humanize.IBytes(uint64(tr.done)),
		humanize.IBytes(uint64(tr.total)),
		eta(elapsed, tr.done, tr.total),
	)
}

func eta(elapsed time.Duration, done, total int64) string {
	if done <= 0 || done >= total || elapsed <= 0 {
		return "eta -"
	}
	remaining := time.Duration(float64(elapsed) * float64(total-done) / float64(done))
	return "eta " + remaining.Truncate(time.Second).String()
}
