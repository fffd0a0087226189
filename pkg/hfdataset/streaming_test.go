package hfdataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRowStream_LazyPull checks that a 3-file listing with row counts
// [7, 4, 9] and batch_size=5 yields batches [5, 2, 4, 5, 4], then terminal.
func TestRowStream_LazyPull(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", 7)
	writeCSV(t, dir, "b.csv", 4)
	writeCSV(t, dir, "c.csv", 9)

	cfg := testConfig(t)
	result, err := Load(context.Background(), cfg, NewLocal(dir), LoadOptions{Streaming: true, BatchSize: 5})
	require.NoError(t, err)
	require.NotNil(t, result.Stream)

	var counts []int
	for {
		batch, hasMore, err := result.Stream.Next(context.Background())
		require.NoError(t, err)
		if len(batch) > 0 {
			counts = append(counts, len(batch))
		}
		if !hasMore {
			break
		}
	}
	assert.Equal(t, []int{5, 2, 4, 5, 4}, counts)
}

// TestRowStream_Totality checks that fully consuming the stream yields
// exactly the total row count, in file-and-index order.
func TestRowStream_Totality(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", 3)
	writeCSV(t, dir, "b.csv", 2)

	cfg := testConfig(t)
	result, err := Load(context.Background(), cfg, NewLocal(dir), LoadOptions{Streaming: true, BatchSize: 2})
	require.NoError(t, err)

	total := 0
	for {
		batch, hasMore, err := result.Stream.Next(context.Background())
		require.NoError(t, err)
		total += len(batch)
		if !hasMore {
			break
		}
	}
	assert.Equal(t, 5, total)
}

func TestRowStream_Reset(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", 3)

	cfg := testConfig(t)
	result, err := Load(context.Background(), cfg, NewLocal(dir), LoadOptions{Streaming: true, BatchSize: 2})
	require.NoError(t, err)

	first, _, err := result.Stream.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)

	result.Stream.Reset()
	again, _, err := result.Stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

// TestRowStream_SkipsUnopenableFile checks the skip-and-continue behavior:
// a file that fails to open is skipped, not surfaced as an error.
func TestRowStream_SkipsUnopenableFile(t *testing.T) {
	dir := t.TempDir()
	// A .parquet file containing garbage bytes fails to open as Parquet.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.parquet"), []byte("not parquet"), 0o644))
	writeCSV(t, dir, "good.csv", 3)

	cfg := testConfig(t)
	result, err := Load(context.Background(), cfg, NewLocal(dir), LoadOptions{Streaming: true, BatchSize: 10})
	require.NoError(t, err)

	var total int
	for {
		batch, hasMore, err := result.Stream.Next(context.Background())
		require.NoError(t, err)
		total += len(batch)
		if !hasMore {
			break
		}
	}
	assert.Equal(t, 3, total)
}
