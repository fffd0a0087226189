package hfdataset

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

// Transport is the HTTP adapter: HEAD, GET and download-to-file over an
// *http.Client, used by the Cache and the streaming HTTP fallback.
type Transport struct {
	client *http.Client
}

var (
	sharedClient     *http.Client
	sharedClientOnce sync.Once
)

// defaultHTTPClient returns the process-wide pooled client, tuned the same
// way as the upstream GetHTTPClient, with one required change: redirects
// are never followed automatically. The Cache owns redirect handling
// so it can strip Authorization on cross-origin hops.
func defaultHTTPClient() *http.Client {
	sharedClientOnce.Do(func() {
		transport := &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		}

		sharedClient = &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	})
	return sharedClient
}

// NewTransport returns a Transport backed by the shared pooled client.
func NewTransport() *Transport {
	return &Transport{client: defaultHTTPClient()}
}

// NewTransportWithClient allows callers (and tests) to inject their own
// *http.Client instead of relying on process-wide client supervision.
func NewTransportWithClient(c *http.Client) *Transport {
	return &Transport{client: c}
}

func (t *Transport) do(req *http.Request) (*http.Response, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	return resp, nil
}

// Head issues a HEAD request with the given headers and redirects disabled,
// whatever redirect policy the underlying client has.
func (t *Transport) Head(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building HEAD request: %w", err)
	}
	applyHeaders(req, headers)
	noRedirect := *t.client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := noRedirect.Do(req)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	return resp, nil
}

// Get issues a GET request with the given headers.
func (t *Transport) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building GET request: %w", err)
	}
	applyHeaders(req, headers)
	return t.do(req)
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

// DownloadToFile streams the body of a GET to destPath, writing through a
// temp file in the same directory and renaming atomically so destPath is
// never visible in a partial state.
func (t *Transport) DownloadToFile(ctx context.Context, url, destPath string, headers map[string]string) error {
	resp, err := t.Get(ctx, url, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewHTTPOtherError(resp.StatusCode)
	}

	tmp, err := os.CreateTemp(parentDir(destPath), ".hfdataset-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := copyWithContext(ctx, tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing response body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
		return cr.r.Read(p)
	}
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	return io.CopyBuffer(dst, &contextReader{ctx: ctx, r: src}, buf)
}

// retryableStatus reports whether a status code warrants another attempt,
// matching retryableHTTPError upstream.
func retryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout
}

var jitterRand = rand.New(rand.NewSource(1))
var jitterRandMu sync.Mutex

// backoffWithJitter mirrors exponentialBackoffWithJitter upstream: an
// exponential delay capped at maxDelay, perturbed by up to ±50%.
func backoffWithJitter(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := time.Duration(math.Min(float64(base)*math.Pow(2, float64(attempt-1)), float64(maxDelay)))

	jitterRandMu.Lock()
	jitter := time.Duration(jitterRand.Float64() * 0.5 * float64(delay))
	flip := jitterRand.Intn(2)
	jitterRandMu.Unlock()

	if flip == 0 {
		delay -= jitter
	} else {
		delay += jitter
	}
	return delay
}

// parseRetryAfter reads the Retry-After header (seconds or HTTP date),
// returning zero when absent or unparsable.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, v); err == nil {
		return time.Until(t)
	}
	return 0
}

// withRetry runs fn, retrying up to maxRetries times with jittered
// exponential backoff when fn returns a retryable error (a network error,
// or one reporting a retryable HTTP status via retryableErr).
func withRetry(ctx context.Context, maxRetries int, interval time.Duration, fn func(attempt int) (retry bool, retryAfter time.Duration, err error)) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		retry, retryAfter, err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == maxRetries {
			return lastErr
		}

		delay := retryAfter
		if delay == 0 {
			delay = backoffWithJitter(attempt+1, interval, 5*time.Minute)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
