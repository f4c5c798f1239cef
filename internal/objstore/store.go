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

// Package objstore lists and fetches game files from object storage.
//
// A Store exposes the two primitive requests the pipeline needs: one page of
// a prefix listing, and a streaming read of one object. The Lister and
// Fetcher build pagination, filtering, progress and retry policy on top, so
// each backend (S3, Azure Blob, local directory) stays small.
package objstore

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Object is one listing entry.
type Object struct {
	Key  string
	Size int64
}

// Page is one page of a listing. When Truncated is set, NextCursor fetches
// the following page.
type Page struct {
	Objects    []Object
	NextCursor string
	Truncated  bool
}

// Store is the minimal storage surface used by the pipeline.
type Store interface {
	// ListPage returns the page of keys under prefix that starts at cursor.
	// An empty cursor starts at the beginning.
	ListPage(ctx context.Context, bucket, prefix, cursor string) (Page, error)

	// Open starts reading an object. size is -1 when the backend does not
	// report a length.
	Open(ctx context.Context, bucket, key string) (body io.ReadCloser, size int64, err error)
}

// Uploader writes a local file to storage.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, sourceFilename string) error
}

// Recognized data-file suffixes.
const (
	SuffixParquet     = ".parquet"
	SuffixParquetZstd = ".parquet.zst"
)

// IsDataKey reports whether key names a game file.
func IsDataKey(key string) bool {
	return strings.HasSuffix(key, SuffixParquet) || strings.HasSuffix(key, SuffixParquetZstd)
}

// Transport operations.
const (
	OpList = "list"
	OpGet  = "get"
	OpRead = "read"
)

// TransportError is a failed request to the storage service or a failure
// reading a response body.
type TransportError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
