package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/wippyai/mfe-bridge/errors"
)

// DefaultMaxBytes caps a single manifest or artifact download (16 MB).
const DefaultMaxBytes = 16 << 20

// DefaultTimeout bounds a single download.
const DefaultTimeout = 30 * time.Second

// Fetcher downloads manifests and module artifacts.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, rawURL string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f(ctx, rawURL)
}

// HTTPFetcher fetches http(s) URLs with net/http and file URLs from disk.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher creates a fetcher. Zero values select DefaultTimeout and
// DefaultMaxBytes.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindInvalidInput, err, "parse url")
	}

	switch u.Scheme {
	case "http", "https":
	case "file":
		return f.readFile(u.Path)
	default:
		return nil, errors.Unsupported(errors.PhaseFetch, fmt.Sprintf("url scheme %q", u.Scheme))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindInvalidInput, err, "build request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindRemoteLoad, err, "GET "+rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(errors.PhaseFetch, errors.KindRemoteLoad).
			Detail("GET %s: unexpected status %s", rawURL, resp.Status).
			Value(resp.StatusCode).
			Build()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindRemoteLoad, err, "read body of "+rawURL)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, errors.InvalidData(errors.PhaseFetch, fmt.Sprintf("%s exceeds %d bytes", rawURL, f.maxBytes))
	}
	return data, nil
}

func (f *HTTPFetcher) readFile(path string) ([]byte, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindNotFound, err, "stat "+path)
	}
	if st.Size() > f.maxBytes {
		return nil, errors.InvalidData(errors.PhaseFetch, fmt.Sprintf("%s exceeds %d bytes", path, f.maxBytes))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindRemoteLoad, err, "read "+path)
	}
	return data, nil
}

// ResolveRef resolves an artifact path against the origin URL.
func ResolveRef(origin, ref string) (string, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return "", errors.Wrap(errors.PhaseFetch, errors.KindInvalidInput, err, "parse origin")
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrap(errors.PhaseFetch, errors.KindInvalidInput, err, "parse artifact path")
	}
	return base.ResolveReference(r).String(), nil
}
