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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scratchEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFetch_StreamsInChunks(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 35)
	store := &fakeStore{objects: map[string][]byte{"games/a.parquet": data}}
	rep := &recordingReporter{}
	dir := t.TempDir()

	f := NewFetcher(store, "bucket", FetchOptions{ScratchDir: dir, ChunkSize: 100, Progress: rep})
	res, err := f.Fetch(context.Background(), "games/a.parquet")
	require.NoError(t, err)

	assert.Equal(t, int64(len(data)), res.Bytes)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, dir, filepath.Dir(res.Path))
	assert.True(t, strings.HasSuffix(res.Path, "-a.parquet"))

	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	assert.Equal(t, []string{"a.parquet"}, rep.names)
	assert.Equal(t, []int64{int64(len(data))}, rep.totals)
	assert.Equal(t, int64(len(data)), rep.added)
	assert.Equal(t, 4, rep.chunks)
	assert.Equal(t, 1, rep.done)
}

func TestFetch_UnknownSizeIsIndeterminate(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{"a.parquet": []byte("abc")}, unknownSize: true}
	rep := &recordingReporter{}

	f := NewFetcher(store, "bucket", FetchOptions{ScratchDir: t.TempDir(), Progress: rep})
	res, err := f.Fetch(context.Background(), "a.parquet")
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Bytes)
	assert.Equal(t, []int64{-1}, rep.totals)
}

func TestFetch_SameBaseNameDoesNotCollide(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"2023/games.parquet": []byte("first"),
		"2024/games.parquet": []byte("second"),
	}}
	f := NewFetcher(store, "bucket", FetchOptions{ScratchDir: t.TempDir()})

	a, err := f.Fetch(context.Background(), "2023/games.parquet")
	require.NoError(t, err)
	b, err := f.Fetch(context.Background(), "2024/games.parquet")
	require.NoError(t, err)

	assert.NotEqual(t, a.Path, b.Path)
	got, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestFetch_OpenFailureNoRetryByDefault(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	store := &fakeStore{
		objects:  map[string][]byte{"a.parquet": []byte("abc")},
		openErrs: []error{cause},
	}
	dir := t.TempDir()
	rep := &recordingReporter{}

	f := NewFetcher(store, "bucket", FetchOptions{ScratchDir: dir, Progress: rep})
	res, err := f.Fetch(context.Background(), "a.parquet")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, OpGet, te.Op)
	assert.Equal(t, "a.parquet", te.Key)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, store.opens)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, scratchEntries(t, dir))
	assert.Empty(t, rep.names, "progress starts only once a body is available")
}

func TestFetch_MidStreamFailure(t *testing.T) {
	cause := errors.New("unexpected EOF from peer")
	store := &fakeStore{
		objects:      map[string][]byte{"a.parquet": bytes.Repeat([]byte("x"), 64)},
		readErr:      cause,
		readErrAfter: 10,
	}
	dir := t.TempDir()
	rep := &recordingReporter{}

	f := NewFetcher(store, "bucket", FetchOptions{ScratchDir: dir, ChunkSize: 4, Progress: rep})
	_, err := f.Fetch(context.Background(), "a.parquet")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, OpRead, te.Op)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, scratchEntries(t, dir), "partial file is removed")
	assert.Equal(t, int64(10), rep.added)
	assert.Equal(t, 1, rep.done)
}

func TestFetch_ShortBodyIsTransportError(t *testing.T) {
	store := &fakeStore{
		objects:   map[string][]byte{"a.parquet": []byte("abcde")},
		claimSize: 10,
	}

	f := NewFetcher(store, "bucket", FetchOptions{ScratchDir: t.TempDir()})
	_, err := f.Fetch(context.Background(), "a.parquet")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, OpRead, te.Op)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFetch_RetriesTransportErrors(t *testing.T) {
	data := []byte("payload")
	store := &fakeStore{
		objects:  map[string][]byte{"a.parquet": data},
		openErrs: []error{errors.New("503"), errors.New("503")},
	}
	dir := t.TempDir()

	f := NewFetcher(store, "bucket", FetchOptions{
		ScratchDir:   dir,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
	})
	res, err := f.Fetch(context.Background(), "a.parquet")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, store.opens)
	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Len(t, scratchEntries(t, dir), 1)
}

func TestFetch_RetriesExhausted(t *testing.T) {
	store := &fakeStore{
		objects:  map[string][]byte{"a.parquet": []byte("x")},
		openErrs: []error{errors.New("503"), errors.New("503"), errors.New("503")},
	}

	f := NewFetcher(store, "bucket", FetchOptions{
		ScratchDir:   t.TempDir(),
		MaxAttempts:  2,
		RetryBackoff: time.Millisecond,
	})
	res, err := f.Fetch(context.Background(), "a.parquet")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, store.opens)
	assert.Equal(t, 2, res.Attempts)
}

func TestFetch_PermanentErrorNotRetried(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{}}

	f := NewFetcher(store, "bucket", FetchOptions{
		ScratchDir:   t.TempDir(),
		MaxAttempts:  5,
		RetryBackoff: time.Millisecond,
	})
	_, err := f.Fetch(context.Background(), "missing.parquet")

	require.ErrorIs(t, err, errNotFound)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, store.opens)
}

func TestFetch_RequestTimeout(t *testing.T) {
	store := &fakeStore{block: true}

	f := NewFetcher(store, "bucket", FetchOptions{
		ScratchDir:     t.TempDir(),
		RequestTimeout: 10 * time.Millisecond,
	})

	start := time.Now()
	_, err := f.Fetch(context.Background(), "slow.parquet")
	assert.Less(t, time.Since(start), 5*time.Second)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetch_CanceledContextNotRetried(t *testing.T) {
	store := &fakeStore{block: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(store, "bucket", FetchOptions{
		ScratchDir:   t.TempDir(),
		MaxAttempts:  4,
		RetryBackoff: time.Millisecond,
	})
	_, err := f.Fetch(ctx, "a.parquet")

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.opens)
}

func TestFetch_NotEnoughScratchSpace(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{"a.parquet": bytes.Repeat([]byte("x"), 64)}}
	dir := t.TempDir()

	f := NewFetcher(store, "bucket", FetchOptions{ScratchDir: dir, MaxAttempts: 3, RetryBackoff: time.Millisecond})
	f.freeBytes = func(string) (uint64, error) { return 10, nil }

	_, err := f.Fetch(context.Background(), "a.parquet")
	require.ErrorIs(t, err, ErrScratchFull)
	var te *TransportError
	assert.False(t, errors.As(err, &te))
	assert.Equal(t, 1, store.opens)
	assert.Empty(t, scratchEntries(t, dir))
}

func TestFetch_ScratchCheckFailureIsIgnored(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{"a.parquet": []byte("abc")}}

	f := NewFetcher(store, "bucket", FetchOptions{ScratchDir: t.TempDir()})
	f.freeBytes = func(string) (uint64, error) { return 0, errors.New("statfs unsupported") }

	res, err := f.Fetch(context.Background(), "a.parquet")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Bytes)
}
