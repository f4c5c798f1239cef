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
	"log/slog"

	"github.com/cardinalhq/gamerunner/internal/logctx"
)

// ListDataKeys returns every game-file key under prefix in listing order,
// following continuation cursors until the store reports no more pages.
// Any page failure aborts the listing with a *TransportError.
func ListDataKeys(ctx context.Context, store Store, bucket, prefix string) ([]string, error) {
	objects, err := ListObjects(ctx, store, bucket, prefix, func(o Object) bool { return IsDataKey(o.Key) })
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.Key
	}
	return keys, nil
}

// ListObjects walks every page under prefix and returns the objects keep
// accepts. A nil keep accepts everything.
func ListObjects(ctx context.Context, store Store, bucket, prefix string, keep func(Object) bool) ([]Object, error) {
	var (
		objects []Object
		cursor  string
		pages   int
	)
	for {
		page, err := store.ListPage(ctx, bucket, prefix, cursor)
		if err != nil {
			logctx.FromContext(ctx).Error("Failed to list objects",
				slog.String("bucket", bucket),
				slog.String("prefix", prefix),
				slog.Int("page", pages),
				slog.Any("error", err),
			)
			return nil, &TransportError{Op: OpList, Bucket: bucket, Err: err}
		}
		pages++

		for _, obj := range page.Objects {
			if keep == nil || keep(obj) {
				objects = append(objects, obj)
			}
		}

		// A truncated page without a cursor would repeat the first page forever.
		if !page.Truncated || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	logctx.FromContext(ctx).Debug("Listed objects",
		slog.String("bucket", bucket),
		slog.String("prefix", prefix),
		slog.Int("pages", pages),
		slog.Int("objects", len(objects)),
	)
	return objects, nil
}
