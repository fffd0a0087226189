package hfdataset

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Local(t *testing.T) {
	h, err := Normalize(NewLocal("/tmp/fixtures"))
	require.NoError(t, err)
	assert.Equal(t, localHandle{Path: "/tmp/fixtures"}, h)
}

func TestNormalize_LocalRejectsEmptyPath(t *testing.T) {
	_, err := Normalize(NewLocal(""))
	require.Error(t, err)
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestNormalize_RemoteDefaultsRevision(t *testing.T) {
	h, err := Normalize(NewRemote("owner/name", RemoteOptions{}))
	require.NoError(t, err)
	assert.Equal(t, DefaultRevision, h.(remoteHandle).Options.Revision)
}

func TestNormalize_RemoteRejectsMissingSlash(t *testing.T) {
	_, err := Normalize(NewRemote("ownername", RemoteOptions{}))
	require.Error(t, err)
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestRepository_ListLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.csv"), []byte("a,b\n1,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.csv"), []byte("a,b\n1,2\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	repo := NewRepository(newTestCache(), "")
	listing, err := repo.List(context.Background(), NewLocal(dir))
	require.NoError(t, err)
	assert.Len(t, listing, 2)
	assert.Equal(t, "", listing["train.csv"])
}

func TestRepository_DownloadLocal(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(fp, []byte("a,b\n1,2\n"), 0o644))

	repo := NewRepository(newTestCache(), "")
	path, err := repo.Download(context.Background(), NewLocal(dir), "train.csv", "")
	require.NoError(t, err)
	assert.Equal(t, fp, path)
}

func TestRepository_DownloadLocal_MissingFile(t *testing.T) {
	repo := NewRepository(newTestCache(), "")
	_, err := repo.Download(context.Background(), NewLocal(t.TempDir()), "missing.csv", "")
	require.Error(t, err)
	var notFound *EntryNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

type treeEntryFixture struct {
	Path string      `json:"path"`
	Type string      `json:"type"`
	OID  string      `json:"oid"`
	LFS  interface{} `json:"lfs,omitempty"`
}

func TestRepository_ListRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.Header().Set("ETag", `"listing-etag"`)
			w.WriteHeader(http.StatusOK)
		default:
			entries := []treeEntryFixture{
				{Path: "train.csv", Type: "file", OID: "abc"},
				{Path: "README.md", Type: "file", OID: "def"},
				{Path: "nested", Type: "directory", OID: "ghi"},
			}
			w.Header().Set("ETag", `"listing-etag"`)
			data, _ := json.Marshal(entries)
			w.Write(data)
		}
	}))
	defer server.Close()

	repo := NewRepository(newTestCache(), server.URL)
	h := NewRemote("owner/name", RemoteOptions{CacheDir: t.TempDir()})
	listing, err := repo.List(context.Background(), h)
	require.NoError(t, err)
	assert.Len(t, listing, 2)
	assert.Equal(t, `"abc"`, listing["train.csv"])
}

func TestRepository_ListRemote_SubdirStripsPrefix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"e"`)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		entries := []treeEntryFixture{{Path: "data/train.csv", Type: "file", OID: "abc"}}
		data, _ := json.Marshal(entries)
		w.Write(data)
	}))
	defer server.Close()

	repo := NewRepository(newTestCache(), server.URL)
	h := NewRemote("owner/name", RemoteOptions{CacheDir: t.TempDir(), Subdir: "data"})
	listing, err := repo.List(context.Background(), h)
	require.NoError(t, err)
	_, ok := listing["train.csv"]
	assert.True(t, ok, "subdir prefix must be stripped from the listed filename")
}

func TestRepository_ResolveURL(t *testing.T) {
	repo := NewRepository(newTestCache(), "https://huggingface.co")
	h := NewRemote("owner/name", RemoteOptions{Subdir: "data"}).(remoteHandle)
	url := repo.resolveURL(h, "train.csv")
	assert.Equal(t, "https://huggingface.co/datasets/owner/name/resolve/main/data/train.csv", url)
}
