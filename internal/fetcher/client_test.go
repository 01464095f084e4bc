package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jihyekim/newsharvest/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, mutate func(cfg *config.Config)) *Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Collection.MaxRetries = 0
	cfg.Collection.RetryDelay = 0
	cfg.Collection.RequestTimeout = 5 * time.Second
	if mutate != nil {
		mutate(cfg)
	}
	client, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func gzipBytes(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestGetDecodesGzipBody(t *testing.T) {
	const page = "<html><body>식품 안전 공지</body></html>"
	compressed := gzipBytes(t, []byte(page))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(compressed)
	}))
	defer srv.Close()

	client := testClient(t, nil)
	resp, err := client.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(resp.Body) != page {
		t.Errorf("body not decoded: %q", resp.Body)
	}
}

func TestMaxBodySizeCapsDecompressedBytes(t *testing.T) {
	// A megabyte of repeated text compresses to about a kilobyte. The cap
	// must bound what comes out of the decoder, not the wire bytes.
	large := []byte(strings.Repeat("a", 1<<20))
	compressed := gzipBytes(t, large)
	if int64(len(compressed)) >= 4096 {
		t.Fatalf("fixture not compressible enough: %d bytes", len(compressed))
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(compressed)
	}))
	defer srv.Close()

	client := testClient(t, func(cfg *config.Config) {
		cfg.Fetcher.MaxBodySize = 4096
	})
	resp, err := client.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if int64(len(resp.Body)) != 4096 {
		t.Errorf("expected body capped at 4096 decompressed bytes, got %d", len(resp.Body))
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := testClient(t, func(cfg *config.Config) {
		cfg.Collection.MaxRetries = 1
	})
	resp, err := client.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("unexpected body: %q", resp.Body)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", hits.Load())
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := testClient(t, func(cfg *config.Config) {
		cfg.Collection.MaxRetries = 3
	})
	_, err := client.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 FetchError, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("4xx must not be retried, saw %d requests", hits.Load())
	}
}
