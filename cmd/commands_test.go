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

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/gamerunner/config"
	"github.com/cardinalhq/gamerunner/internal/objstore"
	"github.com/cardinalhq/gamerunner/internal/progress"
)

type gameRow struct {
	Player1     string  `parquet:"player1"`
	Player2     string  `parquet:"player2"`
	Outcome     float32 `parquet:"outcome"`
	Month       string  `parquet:"month"`
	TimeControl string  `parquet:"time_control"`
}

func writeGames(t *testing.T, path string, rows []gameRow) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, parquet.WriteFile(path, rows))
}

func fileConfig(t *testing.T, root string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Provider = "file"
	cfg.Storage.Root = root
	cfg.Storage.Bucket = "games"
	cfg.Fetch.ScratchDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunAggregate_WritesReport(t *testing.T) {
	root := t.TempDir()
	writeGames(t, filepath.Join(root, "games", "game-data", "a.parquet"), []gameRow{
		{Player1: "alice", Player2: "bob", Outcome: 1, Month: "2023-01", TimeControl: "blitz"},
		{Player1: "bob", Player2: "carol", Outcome: 0.5, Month: "2023-01", TimeControl: "rapid"},
	})
	writeGames(t, filepath.Join(root, "games", "game-data", "b.parquet"), []gameRow{
		{Player1: "carol", Player2: "alice", Outcome: 0, Month: "2023-02", TimeControl: "blitz"},
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "games", "game-data", "c.parquet"), []byte("garbage"), 0o644))

	cfg := fileConfig(t, root)
	store, err := objstore.New(context.Background(), cfg.Storage)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runAggregate(context.Background(), cfg, store, progress.Nop(), &out))

	report := out.String()
	assert.Contains(t, report, "===== Aggregated Statistics =====")
	assert.Contains(t, report, "Total number of rows: 3\n")
	assert.Contains(t, report, "  2023-01: 2\n")
	assert.Contains(t, report, "  2023-02: 1\n")
	assert.Contains(t, report, "  blitz: 2\n")
	assert.Contains(t, report, "  rapid: 1\n")
	assert.Contains(t, report, "Approximate distinct players: 3\n")
}

func TestRunAggregate_EmptyPrefix(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "games"), 0o755))

	cfg := fileConfig(t, root)
	store, err := objstore.New(context.Background(), cfg.Storage)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runAggregate(context.Background(), cfg, store, progress.Nop(), &out))
	assert.Contains(t, out.String(), "Total number of rows: 0\n")
}

func TestRunAggregate_ListingFailure(t *testing.T) {
	cfg := fileConfig(t, t.TempDir())
	store, err := objstore.New(context.Background(), cfg.Storage)
	require.NoError(t, err)

	var out bytes.Buffer
	err = runAggregate(context.Background(), cfg, store, progress.Nop(), &out)
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRunLS(t *testing.T) {
	root := t.TempDir()
	writeGames(t, filepath.Join(root, "games", "game-data", "a.parquet"), []gameRow{{Player1: "a"}})
	require.NoError(t, os.WriteFile(filepath.Join(root, "games", "game-data", "notes.txt"), []byte("hello"), 0o644))
	store := objstore.NewFileStore(root, 1)

	var out bytes.Buffer
	require.NoError(t, runLS(context.Background(), store, "games", "game-data/", false, false, &out))
	assert.Equal(t, "game-data/a.parquet\n", out.String())

	out.Reset()
	require.NoError(t, runLS(context.Background(), store, "games", "game-data/", true, false, &out))
	assert.Equal(t, "game-data/a.parquet\ngame-data/notes.txt\n", out.String())

	out.Reset()
	require.NoError(t, runLS(context.Background(), store, "games", "game-data/", true, true, &out))
	assert.Contains(t, out.String(), "5 B")
	assert.Contains(t, out.String(), "total (2 objects)")
}

func TestRunUpload(t *testing.T) {
	local := t.TempDir()
	writeGames(t, filepath.Join(local, "game-data", "a.parquet"), []gameRow{{Player1: "a"}})
	writeGames(t, filepath.Join(local, "game-data", "nested", "b.parquet"), []gameRow{{Player1: "b"}})

	store := objstore.NewFileStore(t.TempDir(), 0)

	var out bytes.Buffer
	n, err := runUpload(context.Background(), nil, "games", local, "game-data", &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, out.String(), "would upload")
	keys, err := objstore.ListDataKeys(context.Background(), store, "games", "")
	require.Error(t, err, "dry run must not create the bucket")
	assert.Empty(t, keys)

	out.Reset()
	n, err = runUpload(context.Background(), store, "games", local, "game-data", &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err = objstore.ListDataKeys(context.Background(), store, "games", "game-data/")
	require.NoError(t, err)
	assert.Equal(t, []string{"game-data/a.parquet", "game-data/nested/b.parquet"}, keys)
}

func TestRunUpload_SingleFileAndMissingPath(t *testing.T) {
	local := t.TempDir()
	writeGames(t, filepath.Join(local, "game-data", "a.parquet"), []gameRow{{Player1: "a"}})
	store := objstore.NewFileStore(t.TempDir(), 0)

	var out bytes.Buffer
	n, err := runUpload(context.Background(), store, "games", local, "game-data/a.parquet", &out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, out.String(), "games/game-data/a.parquet")

	_, err = runUpload(context.Background(), store, "games", local, "missing", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path not found")
}

func TestRunSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.parquet")
	writeGames(t, path, []gameRow{{Player1: "a"}})

	var out bytes.Buffer
	require.NoError(t, runSchema(path, &out))
	assert.Equal(t, "player1\nplayer2\noutcome\nmonth\ntime_control\nall required columns present\n", out.String())
}

func TestRunSchema_MissingColumns(t *testing.T) {
	type partial struct {
		Player1 string `parquet:"player1"`
		Month   string `parquet:"month"`
	}
	path := filepath.Join(t.TempDir(), "p.parquet")
	require.NoError(t, parquet.WriteFile(path, []partial{{Player1: "a", Month: "2023-01"}}))

	var out bytes.Buffer
	require.Error(t, runSchema(path, &out))
	assert.Contains(t, out.String(), "missing required columns: [player2 outcome time_control]")
}
