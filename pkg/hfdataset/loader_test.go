package hfdataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name string, rows int) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString("a,b\n")
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		_, err := f.WriteString("1,2\n")
		require.NoError(t, err)
	}
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := NewConfig(WithCacheDir(t.TempDir()))
	require.NoError(t, err)
	return cfg
}

// TestLoad_Local checks that a local directory with train.csv
// (10 rows) and test.csv (5 rows) loads as two tables with those row
// counts.
func TestLoad_Local(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "train.csv", 10)
	writeCSV(t, dir, "test.csv", 5)

	result, err := Load(context.Background(), testConfig(t), NewLocal(dir), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, result.Tables, 2)
	assert.Len(t, result.Tables["train.csv"].Rows(), 10)
	assert.Len(t, result.Tables["test.csv"].Rows(), 5)
}

// TestLoad_SplitFiltering checks that a split filter narrows the loaded set.
func TestLoad_SplitFiltering(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "train.csv", 10)
	writeCSV(t, dir, "test.csv", 5)

	result, err := Load(context.Background(), testConfig(t), NewLocal(dir), LoadOptions{Split: "train"})
	require.NoError(t, err)
	require.Len(t, result.Tables, 1)
	assert.Len(t, result.Tables["train.csv"].Rows(), 10)
}

func TestLoad_DropsUnsupportedExtensions(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "train.csv", 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0o644))

	result, err := Load(context.Background(), testConfig(t), NewLocal(dir), LoadOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Tables, 1)
	_, ok := result.Tables["README.md"]
	assert.False(t, ok)
}

// TestLoad_NumProcEquivalence checks that num_proc=1 and num_proc=4 agree
// on row counts per file.
func TestLoad_NumProcEquivalence(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		writeCSV(t, dir, filepathName(i), i+1)
	}

	serial, err := Load(context.Background(), testConfig(t), NewLocal(dir), LoadOptions{NumProc: 1})
	require.NoError(t, err)
	parallel, err := Load(context.Background(), testConfig(t), NewLocal(dir), LoadOptions{NumProc: 4})
	require.NoError(t, err)

	require.Equal(t, len(serial.Tables), len(parallel.Tables))
	for name, table := range serial.Tables {
		assert.Len(t, parallel.Tables[name].Rows(), len(table.Rows()))
	}
}

func filepathName(i int) string {
	return "train-" + string(rune('a'+i)) + ".csv"
}

func TestLoad_ArgumentErrorOnBadHandle(t *testing.T) {
	_, err := Load(context.Background(), testConfig(t), NewRemote("", RemoteOptions{}), LoadOptions{})
	require.Error(t, err)
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(context.Background(), testConfig(t), NewRemote("", RemoteOptions{}), LoadOptions{})
	})
}
