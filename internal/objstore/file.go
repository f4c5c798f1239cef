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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const defaultFilePageSize = 1000

// FileStore serves objects from a local directory. Buckets are
// subdirectories of the root and keys are slash-separated relative paths.
// Listings are lexically ordered; the cursor is the last key returned.
type FileStore struct {
	root     string
	pageSize int
}

var _ Backend = (*FileStore)(nil)

// NewFileStore returns a store rooted at root. pageSize <= 0 uses the default.
func NewFileStore(root string, pageSize int) *FileStore {
	if pageSize <= 0 {
		pageSize = defaultFilePageSize
	}
	return &FileStore{root: root, pageSize: pageSize}
}

func (s *FileStore) path(bucket, key string) string {
	return filepath.Join(s.root, bucket, filepath.FromSlash(key))
}

func (s *FileStore) ListPage(ctx context.Context, bucket, prefix, cursor string) (Page, error) {
	base := filepath.Join(s.root, bucket)
	if _, err := os.Stat(base); err != nil {
		return Page{}, err
	}

	var objects []Object
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) || key <= cursor {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return Page{}, err
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	page := Page{Objects: objects}
	if len(objects) > s.pageSize {
		page.Objects = objects[:s.pageSize]
		page.Truncated = true
		page.NextCursor = page.Objects[len(page.Objects)-1].Key
	}
	return page, nil
}

func (s *FileStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	f, err := os.Open(s.path(bucket, key))
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

func (s *FileStore) IsPermanent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

// Upload copies sourceFilename into the bucket directory.
func (s *FileStore) Upload(ctx context.Context, bucket, key, sourceFilename string) error {
	dst := s.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(sourceFilename)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", sourceFilename, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
