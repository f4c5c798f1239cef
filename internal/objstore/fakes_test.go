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

package objstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/cardinalhq/gamerunner/internal/progress"
)

var errNotFound = errors.New("not found")

// fakeStore serves fixed listing pages keyed by cursor and in-memory objects.
type fakeStore struct {
	mu sync.Mutex

	pages   map[string]Page
	listErr map[string]error
	cursors []string

	objects map[string][]byte
	// openErrs is consumed one entry per Open call; nil entries succeed.
	openErrs []error
	// readErr, when set, is returned after readErrAfter bytes of the body.
	readErr      error
	readErrAfter int
	unknownSize  bool
	claimSize    int64
	block        bool
	opens        int
}

func (s *fakeStore) ListPage(ctx context.Context, bucket, prefix, cursor string) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors = append(s.cursors, cursor)
	if err := s.listErr[cursor]; err != nil {
		return Page{}, err
	}
	return s.pages[cursor], nil
}

func (s *fakeStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	attempt := s.opens
	s.opens++
	var openErr error
	if attempt < len(s.openErrs) {
		openErr = s.openErrs[attempt]
	}
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return nil, 0, ctx.Err()
	}
	if openErr != nil {
		return nil, 0, openErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, 0, errNotFound
	}

	size := int64(len(data))
	switch {
	case s.unknownSize:
		size = -1
	case s.claimSize > 0:
		size = s.claimSize
	}

	var body io.Reader = bytes.NewReader(data)
	if s.readErr != nil {
		body = io.MultiReader(bytes.NewReader(data[:s.readErrAfter]), errReader{s.readErr})
	}
	return io.NopCloser(body), size, nil
}

func (s *fakeStore) IsPermanent(err error) bool {
	return errors.Is(err, errNotFound)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

type recordingReporter struct {
	mu     sync.Mutex
	names  []string
	totals []int64
	added  int64
	chunks int
	done   int
}

func (r *recordingReporter) Begin(name string, total int64) progress.Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.totals = append(r.totals, total)
	return recordingTracker{r}
}

type recordingTracker struct{ r *recordingReporter }

func (t recordingTracker) Add(n int64) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.added += n
	t.r.chunks++
}

func (t recordingTracker) Done() {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.done++
}
