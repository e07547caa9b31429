package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultAttempts = 3
	defaultDelay    = 2 * time.Second
	defaultTimeout  = 30 * time.Second
)

var (
	// ErrEmptyLocation is returned for a source without a location.
	ErrEmptyLocation = errors.New("fetch: empty location")
	// ErrSourceNotFound is returned when a local source does not exist.
	ErrSourceNotFound = errors.New("fetch: source not found")
)

// Fetcher resolves a source location into a readable local file.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (string, error)
}

// LocalFetcher resolves locations relative to a base directory.
type LocalFetcher struct {
	baseDir string
}

// NewLocalFetcher constructs a LocalFetcher.
func NewLocalFetcher(baseDir string) *LocalFetcher {
	return &LocalFetcher{baseDir: baseDir}
}

// Fetch returns the path of an existing local file.
func (f *LocalFetcher) Fetch(ctx context.Context, location string) (string, error) {
	_ = ctx
	if strings.TrimSpace(location) == "" {
		return "", ErrEmptyLocation
	}
	p := location
	if !filepath.IsAbs(p) && f.baseDir != "" {
		p = filepath.Join(f.baseDir, p)
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, p)
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("fetch: %s is a directory", p)
	}
	return p, nil
}

// HTTPFetcher downloads remote sources into a cache directory.
type HTTPFetcher struct {
	baseURL  string
	token    string
	cacheDir string
	attempts int
	delay    time.Duration
	client   *http.Client
	logger   *log.Logger
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithToken sends a bearer token with every request.
func WithToken(token string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.token = token
	}
}

// WithRetry sets the number of attempts and the fixed delay between them.
func WithRetry(attempts int, delay time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if attempts > 0 {
			f.attempts = attempts
		}
		if delay >= 0 {
			f.delay = delay
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithLogger enables event logging.
func WithLogger(logger *log.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher constructs an HTTPFetcher. Relative locations are resolved against baseURL.
func NewHTTPFetcher(baseURL, cacheDir string, opts ...HTTPOption) (*HTTPFetcher, error) {
	if cacheDir == "" {
		return nil, errors.New("fetch: empty cache dir")
	}
	f := &HTTPFetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		cacheDir: cacheDir,
		attempts: defaultAttempts,
		delay:    defaultDelay,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch downloads location and returns the cached file path. A failed download leaves any
// previously cached copy untouched.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", ErrEmptyLocation
	}
	target, err := f.resolve(location)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(f.cacheDir, cacheName(target))

	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		lastErr = f.download(ctx, target, dest)
		if lastErr == nil {
			f.logf("event=source_fetched url=%s path=%s attempt=%d", target, dest, attempt)
			return dest, nil
		}
		f.logf("event=source_fetch_failed url=%s attempt=%d err=%v", target, attempt, lastErr)
		if attempt == f.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return "", fmt.Errorf("fetch: %s after %d attempts: %w", target, f.attempts, lastErr)
}

func (f *HTTPFetcher) resolve(location string) (string, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return location, nil
	}
	if f.baseURL == "" {
		return "", fmt.Errorf("fetch: relative location %q without base url", location)
	}
	return f.baseURL + "/" + strings.TrimLeft(location, "/"), nil
}

func (f *HTTPFetcher) download(ctx context.Context, target, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.cacheDir, ".download-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (f *HTTPFetcher) logf(format string, args ...any) {
	if f.logger == nil {
		return
	}
	f.logger.Printf(format, args...)
}

// cacheName keeps the remote file name, which carries the extension the readers dispatch on.
func cacheName(target string) string {
	if u, err := url.Parse(target); err == nil {
		if name := path.Base(u.Path); name != "" && name != "/" && name != "." {
			return name
		}
	}
	return "download"
}

// New returns an HTTPFetcher when baseURL is set and a LocalFetcher otherwise.
func New(baseDir, baseURL, cacheDir string, opts ...HTTPOption) (Fetcher, error) {
	if baseURL == "" {
		return NewLocalFetcher(baseDir), nil
	}
	return NewHTTPFetcher(baseURL, cacheDir, opts...)
}
