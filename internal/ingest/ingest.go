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

// Package ingest runs the list, fetch, parse and aggregate pipeline over a
// storage prefix.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/gamerunner/internal/gamefile"
	"github.com/cardinalhq/gamerunner/internal/gamestats"
	"github.com/cardinalhq/gamerunner/internal/logctx"
	"github.com/cardinalhq/gamerunner/internal/objstore"
)

// RecordReader is a pull-based record sequence over one local file.
type RecordReader interface {
	Next() (gamefile.Record, error)
	Close() error
}

// OpenFunc opens a downloaded file for reading.
type OpenFunc func(path string) (RecordReader, error)

func openGameFile(path string) (RecordReader, error) {
	r, err := gamefile.Open(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Options configures one run.
type Options struct {
	Store  objstore.Store
	Bucket string
	Prefix string
	Fetch  objstore.FetchOptions

	// Concurrency is the number of keys processed at once. One processes
	// keys strictly in listing order.
	Concurrency int

	// RunTimeout bounds the whole run. Zero means no deadline.
	RunTimeout time.Duration

	// Stats receives the run's counts; a fresh Statistics is used when nil.
	Stats *gamestats.Statistics

	// Open defaults to gamefile.Open.
	Open OpenFunc
}

// Result summarizes a completed run. Per-file failures are not part of the
// statistics; they are listed in Failures.
type Result struct {
	RunID     string
	Keys      int
	Processed int
	Failed    int
	Stats     gamestats.Snapshot
	Failures  error
}

// Run lists the prefix once and processes each game file. A listing failure
// aborts the run. A failure while fetching or reading one file is logged,
// recorded in Result.Failures, and the run moves on to the next key.
//
// Each file's rows are counted into a private Statistics and merged into
// the run totals only once the file has been read to the end, so a file
// that fails part way through contributes nothing.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Store == nil {
		return nil, errors.New("ingest: no store configured")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Open == nil {
		opts.Open = openGameFile
	}
	stats := opts.Stats
	if stats == nil {
		stats = gamestats.New()
	}

	res := &Result{RunID: uuid.NewString()}
	ctx = logctx.With(ctx, slog.String("runID", res.RunID))
	if opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.RunTimeout)
		defer cancel()
	}
	logger := logctx.FromContext(ctx)

	logger.Info("Listing game files", slog.String("bucket", opts.Bucket), slog.String("prefix", opts.Prefix))
	keys, err := objstore.ListDataKeys(ctx, opts.Store, opts.Bucket, opts.Prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %s/%s: %w", opts.Bucket, opts.Prefix, err)
	}
	res.Keys = len(keys)

	if len(keys) == 0 {
		logger.Info("No game files found", slog.String("bucket", opts.Bucket), slog.String("prefix", opts.Prefix))
		res.Stats = stats.Snapshot()
		return res, nil
	}
	logger.Info("Found game files to process", slog.Int("count", len(keys)))

	p := &processor{
		fetcher: objstore.NewFetcher(opts.Store, opts.Bucket, opts.Fetch),
		open:    opts.Open,
		stats:   stats,
		bucket:  opts.Bucket,
	}

	var (
		mu       sync.Mutex
		failures *multierror.Error
	)
	record := func(key string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			res.Failed++
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", key, err))
			return
		}
		res.Processed++
	}

	if opts.Concurrency == 1 {
		for _, key := range keys {
			if ctx.Err() != nil {
				break
			}
			record(key, p.process(ctx, key))
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for _, key := range keys {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				record(key, p.process(gctx, key))
				return nil
			})
		}
		_ = g.Wait()
	}

	res.Stats = stats.Snapshot()
	res.Failures = failures.ErrorOrNil()

	logger.Info("Run complete",
		slog.Int("keys", res.Keys),
		slog.Int("processed", res.Processed),
		slog.Int("failed", res.Failed),
		slog.Uint64("rows", res.Stats.TotalRows),
	)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("run stopped after %d of %d files: %w", res.Processed+res.Failed, res.Keys, err)
	}
	return res, nil
}

type processor struct {
	fetcher *objstore.Fetcher
	open    OpenFunc
	stats   *gamestats.Statistics
	bucket  string
}

func (p *processor) process(ctx context.Context, key string) error {
	ctx = logctx.With(ctx, slog.String("key", key))
	logger := logctx.FromContext(ctx)
	start := time.Now()

	logger.Info("Processing file")
	err := p.processFile(ctx, key)
	attrs := metric.WithAttributes(
		attribute.String("bucket", p.bucket),
		attribute.String("outcome", failureKind(err)),
	)
	filesProcessed.Add(ctx, 1, attrs)
	fileDuration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		logger.Error("Failed to process file", slog.String("kind", failureKind(err)), slog.Any("error", err))
		return err
	}
	logger.Info("Successfully processed file", slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *processor) processFile(ctx context.Context, key string) error {
	fr, err := p.fetcher.Fetch(ctx, key)
	if err != nil {
		return err
	}

	rr, err := p.open(fr.Path)
	if err != nil {
		return err
	}
	defer func() { _ = rr.Close() }()

	staged := gamestats.New()
	var rows int64
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("after %d rows: %w", rows, err)
		}
		staged.Observe(rec)
		rows++
	}

	if err := p.stats.Merge(staged); err != nil {
		return err
	}
	rowsObserved.Add(ctx, rows, metric.WithAttributes(attribute.String("bucket", p.bucket)))
	logctx.FromContext(ctx).Info("Parsed game file", slog.Int64("rows", rows), slog.Int64("bytes", fr.Bytes))
	return nil
}

// failureKind classifies a per-file error for logs and metrics.
func failureKind(err error) string {
	var (
		te *objstore.TransportError
		se *gamefile.SchemaError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &se):
		return "schema"
	case errors.Is(err, objstore.ErrScratchFull):
		return "scratch"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "read"
	}
}
