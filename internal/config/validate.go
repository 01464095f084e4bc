package config

import (
	"fmt"
	"net/url"

	"github.com/jihyekim/newsharvest/internal/types"
)

// Validate checks the configuration for invalid values. A failure here is a
// ConfigError: the run never starts.
func Validate(cfg *Config) error {
	if cfg.Collection.RequestTimeout <= 0 {
		return &types.ConfigError{Field: "collection.request_timeout", Err: fmt.Errorf("must be > 0")}
	}
	if cfg.Collection.RequestDelay < 0 {
		return &types.ConfigError{Field: "collection.request_delay", Err: fmt.Errorf("must be >= 0")}
	}
	if cfg.Collection.MaxRetries < 0 {
		return &types.ConfigError{Field: "collection.max_retries", Err: fmt.Errorf("must be >= 0, got %d", cfg.Collection.MaxRetries)}
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return &types.ConfigError{Field: "fetcher.max_body_size", Err: fmt.Errorf("must be > 0")}
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return &types.ConfigError{Field: "fetcher.max_redirects", Err: fmt.Errorf("must be >= 0")}
	}

	if cfg.Browser.RenderTimeout <= 0 {
		return &types.ConfigError{Field: "browser.render_timeout", Err: fmt.Errorf("must be > 0")}
	}
	if s := cfg.Browser.SessionScope; s != "run" && s != "document" {
		return &types.ConfigError{Field: "browser.session_scope", Err: fmt.Errorf("must be 'run' or 'document', got %q", s)}
	}

	switch cfg.Storage.Backend {
	case "", "none", "sqlite", "mongodb":
	default:
		return &types.ConfigError{Field: "storage.backend", Err: fmt.Errorf("%q is not supported (valid: none, sqlite, mongodb)", cfg.Storage.Backend)}
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.SQLitePath == "" {
		return &types.ConfigError{Field: "storage.sqlite_path", Err: fmt.Errorf("required for the sqlite backend")}
	}
	if cfg.Storage.Backend == "mongodb" && cfg.Storage.MongoURI == "" {
		return &types.ConfigError{Field: "storage.mongo_uri", Err: fmt.Errorf("required for the mongodb backend")}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return &types.ConfigError{Field: "logging.level", Err: fmt.Errorf("must be debug/info/warn/error, got %q", cfg.Logging.Level)}
	}

	for _, family := range []struct {
		name    string
		entries []SourceEntry
	}{
		{"sources.html", cfg.Sources.HTML},
		{"sources.feed", cfg.Sources.Feed},
		{"sources.document", cfg.Sources.Document},
	} {
		for i, entry := range family.entries {
			field := fmt.Sprintf("%s[%d]", family.name, i)
			if entry.Key == "" && entry.Name == "" {
				return &types.ConfigError{Field: field, Err: fmt.Errorf("key or name is required")}
			}
			if err := validateURL(entry.URL); err != nil {
				return &types.ConfigError{Field: field + ".url", Err: err}
			}
			if entry.PageCount < 0 {
				return &types.ConfigError{Field: field + ".page_count", Err: fmt.Errorf("must be >= 0")}
			}
		}
	}

	for i, cat := range cfg.Keyword.Categories {
		if cat.Key == "" {
			return &types.ConfigError{Field: fmt.Sprintf("keyword.categories[%d]", i), Err: fmt.Errorf("key is required")}
		}
	}

	return nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
