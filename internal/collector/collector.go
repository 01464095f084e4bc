// Package collector implements the per-kind collection strategies. Every
// collector honors the same contract: it never panics on malformed source
// data, records item-level failures on the result, and reserves the result's
// structural error for failures that invalidate the whole source.
package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/jihyekim/newsharvest/internal/config"
	"github.com/jihyekim/newsharvest/internal/fetcher"
	"github.com/jihyekim/newsharvest/internal/normalize"
	"github.com/jihyekim/newsharvest/internal/resolver"
	"github.com/jihyekim/newsharvest/internal/types"
)

// Collector produces one source's articles for a run.
type Collector interface {
	Collect(ctx context.Context, src types.Descriptor, req *types.CollectionRequest) *types.CollectionResult
}

// ProviderFactory opens a rendered browser provider for document mode.
// Injected so tests run without a browser.
type ProviderFactory func(cfg config.BrowserConfig, logger *slog.Logger) (resolver.Provider, error)

// Deps bundles the shared collaborators every collector draws from.
type Deps struct {
	Config     *config.Config
	Client     *fetcher.Client
	Normalizer *normalize.Normalizer
	Logger     *slog.Logger

	// NewProvider defaults to the Chromium-backed provider when nil.
	NewProvider ProviderFactory
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Deps) providerFactory() ProviderFactory {
	if d.NewProvider != nil {
		return d.NewProvider
	}
	return func(cfg config.BrowserConfig, logger *slog.Logger) (resolver.Provider, error) {
		return resolver.NewRodProvider(cfg, logger)
	}
}

// For returns the collector implementing the given source kind.
func For(kind types.SourceKind, deps Deps) (Collector, error) {
	switch kind {
	case types.KindHTML:
		return NewHTML(deps), nil
	case types.KindFeed:
		return NewFeed(deps), nil
	case types.KindDocument:
		return NewDocument(deps), nil
	case types.KindKeyword:
		return NewKeyword(deps), nil
	}
	return nil, fmt.Errorf("no collector for source kind %q", kind)
}

// pageURL expands the "{page}" placeholder in a listing endpoint. Endpoints
// without a placeholder are single-page listings: pages past the first
// resolve to "".
func pageURL(endpoint string, page int) string {
	if strings.Contains(endpoint, "{page}") {
		return strings.ReplaceAll(endpoint, "{page}", strconv.Itoa(page))
	}
	if page > 1 {
		return ""
	}
	return endpoint
}

// decodeBody converts a response body to UTF-8. Korean government sites
// still serve EUC-KR.
func decodeBody(body []byte, encoding string) ([]byte, error) {
	if encoding == "" || strings.EqualFold(encoding, "utf-8") {
		return body, nil
	}
	r, err := charset.NewReaderLabel(encoding, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", encoding, err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", encoding, err)
	}
	return decoded, nil
}

var dateFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006.01.02",
	"2006/01/02",
	"20060102",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
}

// parseDate tries the date formats the covered sites actually emit. Returns
// nil when nothing matches; a missing date is not an error.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "[]"))
	if s == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// sleep pauses between requests without outliving the context.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// extraStrings reads a string slice out of a descriptor's extension bag,
// tolerating both []string and []any (the YAML decoder produces the latter).
func extraStrings(src *types.Descriptor, key string) []string {
	if src.Extra == nil {
		return nil
	}
	switch v := src.Extra[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
