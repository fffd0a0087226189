package hfdataset

import (
	"context"
	"crypto/md5"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// CacheOptions is the option bag recognized by CachedDownload.
type CacheOptions struct {
	CacheDir         string
	CacheScope       string
	AuthToken        string
	Etag             string
	Offline          bool
	DownloadMode     DownloadMode
	VerificationMode VerificationMode
	MaxRetries       int
	RetryInterval    int64 // nanoseconds, avoids importing time in callers that zero-value this

	// RepositoryID, Revision, and Path identify what's being fetched, for
	// error messages only — CachedDownload never uses them to build URLs.
	RepositoryID string
	Revision     string
	Path         string
}

// Cache is the content-addressed HTTP cache. It owns every file under
// its directory exclusively; Repository and Loader only ever borrow the
// paths it returns.
type Cache struct {
	transport *Transport
}

// NewCache constructs a Cache over the given transport.
func NewCache(transport *Transport) *Cache {
	return &Cache{transport: transport}
}

var nonScopeChars = regexp.MustCompile(`[^\w-]`)

// CacheScope derives the per-repo directory namespace from a repository id
//: slashes become "--", everything else non-word/non-dash is dropped.
func CacheScope(repositoryID string) string {
	s := strings.ReplaceAll(repositoryID, "/", "--")
	return nonScopeChars.ReplaceAllString(s, "")
}

func encURL(u string) string {
	sum := md5.Sum([]byte(u))
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:]))
}

func encEtag(etag string) string {
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(etag)))
}

type cacheMetadata struct {
	Etag string `json:"etag"`
	URL  string `json:"url"`
}

func (c *Cache) cacheDir(opts CacheOptions) string {
	if opts.CacheScope == "" {
		return filepath.Join(opts.CacheDir, "huggingface")
	}
	return filepath.Join(opts.CacheDir, "huggingface", opts.CacheScope)
}

func (c *Cache) metadataPath(dir, u string) string {
	return filepath.Join(dir, encURL(u)+".json")
}

func (c *Cache) contentPath(dir, u, etag string) string {
	return filepath.Join(dir, encURL(u)+"."+encEtag(etag))
}

func readMetadata(path string) (*cacheMetadata, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var m cacheMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		// A half-written or corrupt metadata file is treated as absent
		//: the entry is re-fetched rather than surfaced as an error.
		return nil, false
	}
	return &m, true
}

func writeMetadataAtomic(path string, m cacheMetadata) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".hfdataset-meta-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// CachedDownload fetches a URL through the content-addressed cache, reusing
// a prior download whenever the etag still matches.
func (c *Cache) CachedDownload(ctx context.Context, rawURL string, opts CacheOptions) (string, error) {
	dir := c.cacheDir(opts)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	metaPath := c.metadataPath(dir, rawURL)

	if opts.DownloadMode == ForceRedownload {
		os.Remove(metaPath) // ignore "not found"
	}

	if opts.Offline {
		meta, ok := readMetadata(metaPath)
		if !ok {
			return "", NewOfflineMissError(rawURL)
		}
		contentPath := c.contentPath(dir, rawURL, meta.Etag)
		if opts.VerificationMode == NoChecks {
			return contentPath, nil
		}
		if _, err := os.Stat(contentPath); err != nil {
			return "", NewOfflineMissError(rawURL)
		}
		return contentPath, nil
	}

	if opts.Etag != "" {
		if meta, ok := readMetadata(metaPath); ok && meta.Etag == opts.Etag {
			contentPath := c.contentPath(dir, rawURL, meta.Etag)
			if _, err := os.Stat(contentPath); err == nil {
				return contentPath, nil
			}
		}
	}

	headers := buildHeaders(opts.AuthToken)
	maxRetries, retryInterval := retryParams(opts)

	var probe *headProbeResult
	retryErr := withRetry(ctx, maxRetries, retryInterval, func(int) (bool, time.Duration, error) {
		p, err := c.headProbe(ctx, rawURL, headers, opts.RepositoryID, opts.Revision, opts.Path)
		if err != nil {
			return retryableErr(err), 0, err
		}
		probe = p
		return false, 0, nil
	})
	if retryErr != nil {
		return "", retryErr
	}
	if probe.etag == "" {
		return "", NewNoEtagError(rawURL)
	}

	if meta, ok := readMetadata(metaPath); ok && meta.Etag == probe.etag {
		contentPath := c.contentPath(dir, rawURL, meta.Etag)
		if _, err := os.Stat(contentPath); err == nil {
			return contentPath, nil
		}
	}

	downloadHeaders := headers
	if probe.crossOrigin {
		downloadHeaders = stripAuthorization(headers)
	}

	contentPath := c.contentPath(dir, rawURL, probe.etag)
	downloadErr := withRetry(ctx, maxRetries, retryInterval, func(int) (bool, time.Duration, error) {
		err := c.transport.DownloadToFile(ctx, probe.finalURL, contentPath, downloadHeaders)
		return retryableErr(err), 0, err
	})
	if downloadErr != nil {
		// Roll back to "absent" state.
		os.Remove(contentPath)
		os.Remove(metaPath)
		return "", downloadErr
	}

	if err := writeMetadataAtomic(metaPath, cacheMetadata{Etag: probe.etag, URL: rawURL}); err != nil {
		os.Remove(contentPath)
		os.Remove(metaPath)
		return "", fmt.Errorf("writing cache metadata: %w", err)
	}

	return contentPath, nil
}

type headProbeResult struct {
	etag          string
	finalURL      string
	wasRedirected bool
	crossOrigin   bool
}

// headProbe issues a HEAD with redirects disabled, following at most one
// hop by hand, stripping Authorization on cross-origin hops. repositoryID,
// revision, and path identify the fetch for any error it returns.
func (c *Cache) headProbe(ctx context.Context, rawURL string, headers map[string]string, repositoryID, revision, path string) (*headProbeResult, error) {
	resp, err := c.transport.Head(ctx, rawURL, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	finalURL := rawURL
	wasRedirected := false

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, NewHTTPOtherError(resp.StatusCode)
		}

		base, err := url.Parse(rawURL)
		if err != nil {
			return nil, NewBadConfigError("redirect base URL", err)
		}
		loc, err := url.Parse(location)
		if err != nil {
			return nil, NewBadConfigError("redirect Location header", err)
		}
		resolved := base.ResolveReference(loc)

		crossOrigin := loc.IsAbs() && loc.Host != "" && loc.Host != base.Host
		nextHeaders := headers
		if crossOrigin {
			// Cross-origin: strip credentials before following.
			nextHeaders = stripAuthorization(headers)
		}

		resp2, err := c.transport.Head(ctx, resolved.String(), nextHeaders)
		if err != nil {
			return nil, err
		}
		defer resp2.Body.Close()

		if resp2.StatusCode >= 400 {
			return nil, statusToError(resp2, repositoryID, revision, path)
		}
		return &headProbeResult{
			etag:          extractEtag(resp2),
			finalURL:      resolved.String(),
			wasRedirected: true,
			crossOrigin:   crossOrigin,
		}, nil
	}

	if resp.StatusCode >= 400 {
		return nil, statusToError(resp, repositoryID, revision, path)
	}

	return &headProbeResult{etag: extractEtag(resp), finalURL: finalURL, wasRedirected: wasRedirected}, nil
}

// HeadDownload exposes the HEAD-and-follow logic for callers that manage
// their own storage.
func (c *Cache) HeadDownload(ctx context.Context, rawURL string, headers map[string]string) (etag, finalURL string, wasRedirected bool, err error) {
	probe, err := c.headProbe(ctx, rawURL, headers, "", "", "")
	if err != nil {
		return "", "", false, err
	}
	return probe.etag, probe.finalURL, probe.wasRedirected, nil
}

func extractEtag(resp *http.Response) string {
	if v := resp.Header.Get(LinkedEtagHeader); v != "" {
		return v
	}
	return resp.Header.Get("Etag")
}

func buildHeaders(token string) map[string]string {
	h := map[string]string{UserAgentHeader: UserAgent}
	if token != "" {
		h[AuthorizationHeader] = "Bearer " + token
	}
	return h
}

func stripAuthorization(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if strings.EqualFold(k, AuthorizationHeader) {
			continue
		}
		out[k] = v
	}
	return out
}

func statusToError(resp *http.Response, repositoryID, revision, path string) error {
	code := resp.Header.Get(ErrorCodeHeader)
	return errorCodeToError(code, repositoryID, revision, path, resp.StatusCode)
}

// retryParams resolves the retry budget for a cache operation, falling
// back to the package defaults when the caller's CacheOptions leaves them
// zero-valued.
func retryParams(opts CacheOptions) (int, time.Duration) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	interval := time.Duration(opts.RetryInterval)
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	return maxRetries, interval
}

// retryableErr reports whether err warrants another attempt: a network
// error (DNS/TCP/TLS/timeout) or an HTTPError carrying a retryable status
//.
func retryableErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	if sc, ok := err.(statusCoded); ok {
		return retryableStatus(sc.httpStatusCode())
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
