package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalFetcher(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chiller.csv"), []byte("a;b\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := NewLocalFetcher(dir)
	got, err := f.Fetch(context.Background(), "chiller.csv")
	if err != nil || got != filepath.Join(dir, "chiller.csv") {
		t.Fatalf("unexpected result %q %v", got, err)
	}
	if _, err := f.Fetch(context.Background(), "missing.csv"); !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), " "); !errors.Is(err, ErrEmptyLocation) {
		t.Fatalf("expected empty location, got %v", err)
	}
}

func TestHTTPFetcherRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		_, _ = w.Write([]byte("Ano;Valor\n2024;0,85\n"))
	}))
	defer srv.Close()

	cache := t.TempDir()
	f, err := NewHTTPFetcher(srv.URL, cache, WithToken("secret"), WithRetry(3, time.Millisecond))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := f.Fetch(context.Background(), "/data/prices.csv")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != filepath.Join(cache, "prices.csv") {
		t.Fatalf("unexpected path %q", got)
	}
	data, err := os.ReadFile(got)
	if err != nil || string(data) != "Ano;Valor\n2024;0,85\n" {
		t.Fatalf("unexpected content %q %v", data, err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestHTTPFetcherKeepsCachedCopyOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cache := t.TempDir()
	cached := filepath.Join(cache, "temps.csv")
	if err := os.WriteFile(cached, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, _ := NewHTTPFetcher(srv.URL, cache, WithRetry(2, 0))
	if _, err := f.Fetch(context.Background(), "temps.csv"); err == nil {
		t.Fatalf("expected error")
	}
	data, err := os.ReadFile(cached)
	if err != nil || string(data) != "old" {
		t.Fatalf("cached copy must survive: %q %v", data, err)
	}
}

func TestNewSelectsFetcher(t *testing.T) {
	f, err := New("data", "", "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := f.(*LocalFetcher); !ok {
		t.Fatalf("expected local fetcher, got %T", f)
	}
	if _, err := New("data", "http://example.invalid", ""); err == nil {
		t.Fatalf("expected error for empty cache dir")
	}
}
