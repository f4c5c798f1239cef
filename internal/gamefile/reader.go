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

package gamefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
)

const defaultBatchSize = 1024

// field slots, in RequiredColumns order
const (
	fieldPlayer1 = iota
	fieldPlayer2
	fieldOutcome
	fieldMonth
	fieldTimeControl
	numFields
)

// Reader is a single-pass sequence of Records from one file.
// Next returns io.EOF once the file is exhausted; any other error ends the
// sequence and is returned again by every later call.
type Reader struct {
	path    string
	file    *os.File
	tmpPath string

	rows    *parquet.Reader
	columns []string
	// colField maps a leaf column index to a field slot, or -1.
	colField []int

	buf   []parquet.Row
	batch []Record
	pos   int

	pending  error
	err      error
	rowsRead int64
}

// Open opens a Parquet game file. Paths ending in ".zst" are treated as
// zstd-compressed Parquet and are decompressed next to the source first.
// A file lacking any required column fails with *SchemaError.
func Open(path string) (*Reader, error) {
	r := &Reader{path: path}

	src := path
	if strings.HasSuffix(path, ".zst") {
		tmp, err := decompressZstd(path)
		if err != nil {
			return nil, err
		}
		r.tmpPath = tmp
		src = tmp
	}

	if err := r.open(src); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) open(src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}
	r.file = f

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", r.path, err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return fmt.Errorf("failed to open parquet file %s: %w", r.path, err)
	}

	index := make(map[string]int)
	for i, path := range pf.Schema().Columns() {
		name := strings.Join(path, ".")
		r.columns = append(r.columns, name)
		index[name] = i
	}

	r.colField = make([]int, len(r.columns))
	for i := range r.colField {
		r.colField[i] = -1
	}
	var missing []string
	for slot, name := range RequiredColumns {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		r.colField[i] = slot
	}
	if len(missing) > 0 {
		return &SchemaError{Path: r.path, Missing: missing}
	}

	r.rows = parquet.NewReader(pf)
	r.buf = make([]parquet.Row, defaultBatchSize)
	return nil
}

// Columns returns the leaf column names of the file in schema order.
func (r *Reader) Columns() []string {
	return append([]string(nil), r.columns...)
}

// RowsRead returns the number of records returned by Next so far.
func (r *Reader) RowsRead() int64 {
	return r.rowsRead
}

// Next returns the next record.
func (r *Reader) Next() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	if r.rows == nil {
		r.err = errors.New("reader is closed")
		return Record{}, r.err
	}

	for r.pos >= len(r.batch) {
		if r.pending != nil {
			r.err = r.pending
			return Record{}, r.err
		}
		if err := r.fill(); err != nil {
			r.err = err
			return Record{}, r.err
		}
	}

	rec := r.batch[r.pos]
	r.pos++
	r.rowsRead++
	return rec, nil
}

// fill decodes the next batch of rows. Row values may alias reader buffers
// that are reused by the following ReadRows call, so strings are copied here.
func (r *Reader) fill() error {
	n, err := r.rows.ReadRows(r.buf)

	r.batch = r.batch[:0]
	r.pos = 0
	for i := range n {
		r.batch = append(r.batch, r.decode(r.buf[i]))
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		if n > 0 {
			r.pending = io.EOF
			return nil
		}
		return io.EOF
	default:
		wrapped := fmt.Errorf("reading rows from %s: %w", r.path, err)
		if n > 0 {
			r.pending = wrapped
			return nil
		}
		return wrapped
	}
}

func (r *Reader) decode(row parquet.Row) Record {
	var (
		rec  Record
		seen [numFields]bool
	)
	for _, v := range row {
		c := v.Column()
		if c < 0 || c >= len(r.colField) {
			continue
		}
		slot := r.colField[c]
		if slot < 0 || seen[slot] {
			continue
		}
		seen[slot] = true

		switch slot {
		case fieldPlayer1:
			rec.Player1 = textValue(v)
		case fieldPlayer2:
			rec.Player2 = textValue(v)
		case fieldOutcome:
			rec.Outcome = floatValue(v)
		case fieldMonth:
			rec.Month = textValue(v)
		case fieldTimeControl:
			rec.TimeControl = textValue(v)
		}
	}
	return rec
}

func textValue(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return ""
	}
}

func floatValue(v parquet.Value) float32 {
	if v.IsNull() {
		return 0
	}
	switch v.Kind() {
	case parquet.Float:
		return v.Float()
	case parquet.Double:
		return float32(v.Double())
	case parquet.Int32:
		return float32(v.Int32())
	case parquet.Int64:
		return float32(v.Int64())
	default:
		return 0
	}
}

// Close releases the file and removes any decompressed temp copy.
func (r *Reader) Close() error {
	var errs []error
	if r.rows != nil {
		if err := r.rows.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close parquet reader: %w", err))
		}
		r.rows = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			errs = append(errs, err)
		}
		r.file = nil
	}
	if r.tmpPath != "" {
		if err := os.Remove(r.tmpPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
		r.tmpPath = ""
	}
	return errors.Join(errs...)
}

func decompressZstd(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = in.Close() }()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("zstd reader for %s: %w", path, err)
	}
	defer dec.Close()

	base := strings.TrimSuffix(filepath.Base(path), ".zst")
	out, err := os.CreateTemp(filepath.Dir(path), "*-"+base)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(out, dec); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("decompressing %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}
