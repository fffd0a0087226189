package hfdataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Repository presents a single API for listing and fetching files over
// both local directories and remote hub repositories.
type Repository struct {
	cache         *Cache
	endpoint      string
	maxRetries    int
	retryInterval time.Duration
	defaultToken  string
}

// NewRepository constructs a Repository backed by the given Cache. The
// endpoint defaults to DefaultEndpoint when empty.
func NewRepository(cache *Cache, endpoint string) *Repository {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Repository{cache: cache, endpoint: endpoint, maxRetries: DefaultMaxRetries, retryInterval: DefaultRetryInterval}
}

// NewRepositoryWithRetry is NewRepository plus an explicit retry budget for
// every CachedDownload it issues, matching Config.MaxRetries/RetryInterval,
// and a default auth token used whenever a handle's own RemoteOptions
// leaves AuthToken empty.
func NewRepositoryWithRetry(cache *Cache, endpoint string, maxRetries int, retryInterval time.Duration, defaultToken string) *Repository {
	r := NewRepository(cache, endpoint)
	if maxRetries > 0 {
		r.maxRetries = maxRetries
	}
	if retryInterval > 0 {
		r.retryInterval = retryInterval
	}
	r.defaultToken = defaultToken
	return r
}

// effectiveToken prefers the handle's own token, falling back to the
// Repository's default (typically Config.Token) when the handle leaves it
// empty.
func (r *Repository) effectiveToken(opts RemoteOptions) string {
	if opts.AuthToken != "" {
		return opts.AuthToken
	}
	return r.defaultToken
}

// Normalize validates a Handle's option keys and fills in defaults,
// failing fast with an *ArgumentError on a malformed handle.
func Normalize(h Handle) (Handle, error) {
	switch v := h.(type) {
	case localHandle:
		if v.Path == "" {
			return nil, NewArgumentError("path", "local handle path cannot be empty")
		}
		return v, nil
	case remoteHandle:
		if v.RepositoryID == "" {
			return nil, NewArgumentError("repository_id", "remote handle repository id cannot be empty")
		}
		if !strings.Contains(v.RepositoryID, "/") {
			return nil, NewArgumentError("repository_id", fmt.Sprintf("repository id %q must be of the form owner/name", v.RepositoryID))
		}
		if v.Options.Revision == "" {
			v.Options.Revision = DefaultRevision
		}
		return v, nil
	default:
		return nil, NewArgumentError("handle", "unrecognized repository handle")
	}
}

// treeEntry mirrors one element of the hub's tree-listing JSON response.
type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	OID  string `json:"oid"`
	LFS  *struct {
		OID string `json:"oid"`
	} `json:"lfs,omitempty"`
}

// List returns the filename→etag mapping for the handle.
func (r *Repository) List(ctx context.Context, h Handle) (RepoListing, error) {
	switch v := h.(type) {
	case localHandle:
		return r.listLocal(v)
	case remoteHandle:
		return r.listRemote(ctx, v)
	default:
		return nil, NewArgumentError("handle", "unrecognized repository handle")
	}
}

func (r *Repository) listLocal(h localHandle) (RepoListing, error) {
	entries, err := os.ReadDir(h.Path)
	if err != nil {
		return nil, fmt.Errorf("reading local directory %q: %w", h.Path, err)
	}
	listing := RepoListing{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		listing[e.Name()] = ""
	}
	return listing, nil
}

func (r *Repository) treeURL(v remoteHandle) string {
	u := fmt.Sprintf("%s/api/datasets/%s/tree/%s", r.endpoint, v.RepositoryID, v.Options.Revision)
	if v.Options.Subdir != "" {
		u += "/" + v.Options.Subdir
	}
	return u
}

func (r *Repository) listRemote(ctx context.Context, v remoteHandle) (RepoListing, error) {
	scope := CacheScope(v.RepositoryID)
	path, err := r.cache.CachedDownload(ctx, r.treeURL(v), CacheOptions{
		CacheDir:         effectiveCacheDir(v.Options),
		CacheScope:       scope,
		AuthToken:        r.effectiveToken(v.Options),
		Offline:          v.Options.Offline,
		DownloadMode:     v.Options.DownloadMode,
		VerificationMode: v.Options.VerificationMode,
		MaxRetries:       r.maxRetries,
		RetryInterval:    int64(r.retryInterval),
		RepositoryID:     v.RepositoryID,
		Revision:         v.Options.Revision,
	})
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading listing payload: %w", err)
	}

	var entries []treeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, NewBadConfigError("repository listing", err)
	}

	listing := RepoListing{}
	prefix := ""
	if v.Options.Subdir != "" {
		prefix = v.Options.Subdir + "/"
	}
	for _, e := range entries {
		if e.Type != "file" {
			continue
		}
		filename := strings.TrimPrefix(e.Path, prefix)

		oid := e.OID
		if e.LFS != nil && e.LFS.OID != "" {
			oid = e.LFS.OID
		}
		listing[filename] = `"` + oid + `"`
	}
	return listing, nil
}

func effectiveCacheDir(opts RemoteOptions) string {
	if opts.CacheDir != "" {
		return opts.CacheDir
	}
	return GetCacheDir()
}

// resolveURL computes the hub's file-resolve URL, re-adding the
// subdir prefix that List stripped.
func (r *Repository) resolveURL(v remoteHandle, filename string) string {
	path := filename
	if v.Options.Subdir != "" {
		path = v.Options.Subdir + "/" + filename
	}
	return fmt.Sprintf("%s/datasets/%s/resolve/%s/%s", r.endpoint, v.RepositoryID, v.Options.Revision, path)
}

// Download fetches filename (with an optional etag hint) and returns its
// local path.
func (r *Repository) Download(ctx context.Context, h Handle, filename, etag string) (string, error) {
	switch v := h.(type) {
	case localHandle:
		return r.downloadLocal(v, filename)
	case remoteHandle:
		return r.downloadRemote(ctx, v, filename, etag)
	default:
		return "", NewArgumentError("handle", "unrecognized repository handle")
	}
}

func (r *Repository) downloadLocal(h localHandle, filename string) (string, error) {
	full := filepath.Join(h.Path, filename)
	if _, err := os.Stat(full); err != nil {
		return "", NewEntryNotFoundError(h.Path, filename)
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return full, nil
	}
	return abs, nil
}

func (r *Repository) downloadRemote(ctx context.Context, v remoteHandle, filename, etag string) (string, error) {
	return r.cache.CachedDownload(ctx, r.resolveURL(v, filename), CacheOptions{
		CacheDir:         effectiveCacheDir(v.Options),
		CacheScope:       CacheScope(v.RepositoryID),
		AuthToken:        r.effectiveToken(v.Options),
		Etag:             etag,
		Offline:          v.Options.Offline,
		DownloadMode:     v.Options.DownloadMode,
		VerificationMode: v.Options.VerificationMode,
		MaxRetries:       r.maxRetries,
		RetryInterval:    int64(r.retryInterval),
		RepositoryID:     v.RepositoryID,
		Revision:         v.Options.Revision,
		Path:             filename,
	})
}
