// Package fetcher provides the plain HTTP client shared by every
// request/parse collector. Rendering lives in internal/resolver; everything
// here is a single request-response exchange.
package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/jihyekim/newsharvest/internal/config"
)

// Response is the body and metadata of a completed fetch.
type Response struct {
	StatusCode int
	Body       []byte
	FinalURL   string
	Duration   time.Duration
}

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches pages with User-Agent rotation, transparent decompression,
// and bounded retries on transient failures.
type Client struct {
	http       *http.Client
	cfg        *config.FetcherConfig
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
	userAgents []string
	uaIndex    atomic.Int64
}

// New creates a Client from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Fetcher.MaxIdleConns / 2,
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Fetcher.TLSInsecure,
		},
		DisableCompression: true, // We handle decompression ourselves (including brotli)
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.Fetcher.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.Fetcher.MaxRedirects {
			return fmt.Errorf("max redirects (%d) reached", cfg.Fetcher.MaxRedirects)
		}
		return nil
	}

	return &Client{
		http: &http.Client{
			Transport:     transport,
			Jar:           jar,
			Timeout:       cfg.Collection.RequestTimeout,
			CheckRedirect: redirectPolicy,
		},
		cfg:        &cfg.Fetcher,
		maxRetries: cfg.Collection.MaxRetries,
		retryDelay: cfg.Collection.RetryDelay,
		logger:     logger.With("component", "fetcher"),
		userAgents: cfg.Fetcher.UserAgents,
	}, nil
}

// Get fetches a URL, retrying transient failures up to the configured limit.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &FetchError{URL: rawURL, Err: ctx.Err()}
			case <-time.After(c.retryDelay):
			}
		}
		resp, err := c.fetch(ctx, rawURL, nil)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		var fe *FetchError
		if !errors.As(err, &fe) || !fe.Retryable {
			return nil, err
		}
		c.logger.Debug("retrying fetch", "url", rawURL, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// GetWithHeaders fetches a URL once with extra headers and no retries.
// Used for credentialed API calls where the caller handles failures.
func (c *Client) GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return c.fetch(ctx, rawURL, headers)
}

func (c *Client) fetch(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err, Retryable: false}
	}

	httpReq.Header.Set("User-Agent", c.nextUserAgent())
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	httpReq.Header.Set("Connection", "keep-alive")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err, Retryable: isRetryableError(err)}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, body),
			Retryable:  true,
		}
	}
	if httpResp.StatusCode >= 400 {
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", httpResp.StatusCode),
			Retryable:  false,
		}
	}

	reader, err := decompressReader(httpResp, httpResp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err, Retryable: false}
	}
	// The size cap counts decompressed bytes.
	if c.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, c.cfg.MaxBodySize)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	finalURL := rawURL
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}

	c.logger.Debug("fetch complete",
		"url", rawURL,
		"status", httpResp.StatusCode,
		"size", len(body),
		"duration", duration,
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		FinalURL:   finalURL,
		Duration:   duration,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// nextUserAgent returns the next User-Agent in rotation.
func (c *Client) nextUserAgent() string {
	if len(c.userAgents) == 0 {
		return "newsharvest/" + config.Version
	}
	idx := c.uaIndex.Add(1) % int64(len(c.userAgents))
	return c.userAgents[idx]
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}
