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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/gamerunner/internal/helpers"
	"github.com/cardinalhq/gamerunner/internal/logctx"
	"github.com/cardinalhq/gamerunner/internal/progress"
)

const defaultChunkSize = 1 << 20

// FetchOptions controls scratch placement, chunking and the retry policy.
type FetchOptions struct {
	// ScratchDir receives downloaded files. Defaults to os.TempDir().
	ScratchDir string

	// ChunkSize is the read buffer size for the response body.
	ChunkSize int

	// RequestTimeout bounds one attempt, including reading the body.
	// Zero means no timeout.
	RequestTimeout time.Duration

	// MaxAttempts is the total number of attempts per object. Values below
	// one are treated as one, which disables retries.
	MaxAttempts int

	// RetryBackoff is the initial delay of the exponential retry backoff.
	RetryBackoff time.Duration

	// Progress receives per-object byte progress. Defaults to progress.Nop().
	Progress progress.Reporter
}

// FetchResult describes a completed download.
type FetchResult struct {
	Path     string
	Bytes    int64
	Attempts int
}

// permanentClassifier is implemented by stores that can tell a transport
// error will not succeed on retry, such as a missing key.
type permanentClassifier interface {
	IsPermanent(err error) bool
}

// Fetcher streams objects from one bucket into local scratch files.
type Fetcher struct {
	store     Store
	bucket    string
	opts      FetchOptions
	freeBytes func(dir string) (uint64, error)
}

// ErrScratchFull is returned when the object's reported size exceeds the
// free space in the scratch directory. It is not retried.
var ErrScratchFull = errors.New("not enough scratch space")

func NewFetcher(store Store, bucket string, opts FetchOptions) *Fetcher {
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.Progress == nil {
		opts.Progress = progress.Nop()
	}
	return &Fetcher{store: store, bucket: bucket, opts: opts, freeBytes: helpers.FreeBytes}
}

// Fetch downloads key to a new file under the scratch directory and returns
// its path. The file is named after the key's base name with a random
// prefix, so concurrent fetches of keys sharing a base name do not collide.
// The caller owns the returned file.
//
// Only *TransportError failures are retried, and only while attempts remain
// and the store does not classify the error as permanent.
func (f *Fetcher) Fetch(ctx context.Context, key string) (FetchResult, error) {
	ctx, span := tracer.Start(ctx, "objstore.Fetch",
		trace.WithAttributes(
			attribute.String("bucket", f.bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	if err := os.MkdirAll(f.opts.ScratchDir, 0o755); err != nil {
		return FetchResult{}, fmt.Errorf("create scratch dir: %w", err)
	}

	attempts := 0
	op := func() (FetchResult, error) {
		attempts++
		res, err := f.fetchOnce(ctx, key)
		if err == nil {
			return res, nil
		}
		if !f.retryable(ctx, err) {
			return res, backoff.Permanent(err)
		}
		if attempts < f.opts.MaxAttempts {
			downloadRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", f.bucket)))
			logctx.FromContext(ctx).Warn("Download attempt failed, retrying",
				slog.String("key", key),
				slog.Int("attempt", attempts),
				slog.Int("maxAttempts", f.opts.MaxAttempts),
				slog.Any("error", err),
			)
		}
		return res, err
	}

	var (
		res FetchResult
		err error
	)
	if f.opts.MaxAttempts == 1 {
		res, err = f.fetchOnce(ctx, key)
		attempts = 1
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = f.opts.RetryBackoff
		res, err = backoff.Retry(ctx, op,
			backoff.WithBackOff(eb),
			backoff.WithMaxTries(uint(f.opts.MaxAttempts)),
		)
	}
	res.Attempts = attempts
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return res, err
	}
	return res, nil
}

func (f *Fetcher) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	if errors.Is(te.Err, context.Canceled) {
		return false
	}
	if pc, ok := f.store.(permanentClassifier); ok && pc.IsPermanent(te.Err) {
		return false
	}
	return true
}

func (f *Fetcher) fetchOnce(ctx context.Context, key string) (res FetchResult, err error) {
	if f.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.RequestTimeout)
		defer cancel()
	}
	logger := logctx.FromContext(ctx)

	body, size, err := f.store.Open(ctx, f.bucket, key)
	if err != nil {
		f.countError(ctx, OpGet)
		logger.Error("Object retrieval request failed", slog.String("key", key), slog.Any("error", err))
		return FetchResult{}, &TransportError{Op: OpGet, Bucket: f.bucket, Key: key, Err: err}
	}
	defer func() { _ = body.Close() }()

	logger.Info("Downloading", slog.String("key", key), slog.Int64("size", size))

	if size > 0 {
		if free, ferr := f.freeBytes(f.opts.ScratchDir); ferr != nil {
			logger.Warn("Unable to check scratch space", slog.String("dir", f.opts.ScratchDir), slog.Any("error", ferr))
		} else if uint64(size) > free {
			f.countError(ctx, "scratch")
			return FetchResult{}, fmt.Errorf("%w: %s needs %d bytes, %d free in %s", ErrScratchFull, key, size, free, f.opts.ScratchDir)
		}
	}

	out, err := os.CreateTemp(f.opts.ScratchDir, "*-"+path.Base(key))
	if err != nil {
		return FetchResult{}, fmt.Errorf("create scratch file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(out.Name())
		}
	}()

	tracker := f.opts.Progress.Begin(path.Base(key), size)
	defer tracker.Done()

	buf := make([]byte, f.opts.ChunkSize)
	var written int64
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return FetchResult{}, fmt.Errorf("write scratch file %s: %w", out.Name(), werr)
			}
			written += int64(n)
			tracker.Add(int64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.countError(ctx, OpRead)
			logger.Error("Error reading object stream", slog.String("key", key), slog.Int64("bytesRead", written), slog.Any("error", rerr))
			return FetchResult{}, &TransportError{Op: OpRead, Bucket: f.bucket, Key: key, Err: rerr}
		}
	}

	if size >= 0 && written != size {
		f.countError(ctx, OpRead)
		return FetchResult{}, &TransportError{
			Op: OpRead, Bucket: f.bucket, Key: key,
			Err: fmt.Errorf("%w: got %d of %d bytes", io.ErrUnexpectedEOF, written, size),
		}
	}

	if err = out.Close(); err != nil {
		return FetchResult{}, fmt.Errorf("close scratch file: %w", err)
	}

	downloadCount.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", f.bucket)))
	downloadBytes.Add(ctx, written, metric.WithAttributes(attribute.String("bucket", f.bucket)))
	logger.Info("Download complete", slog.String("key", key), slog.Int64("bytes", written))

	return FetchResult{Path: out.Name(), Bytes: written}, nil
}

func (f *Fetcher) countError(ctx context.Context, reason string) {
	downloadErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("bucket", f.bucket),
		attribute.String("reason", reason),
	))
}
