package config

import (
	"time"

	"github.com/jihyekim/newsharvest/internal/types"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for newsharvest.
type Config struct {
	Sources    SourcesConfig    `mapstructure:"sources"    yaml:"sources"`
	Keyword    KeywordConfig    `mapstructure:"keyword"    yaml:"keyword"`
	Collection CollectionConfig `mapstructure:"collection" yaml:"collection"`
	Normalizer NormalizerConfig `mapstructure:"normalizer" yaml:"normalizer"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Browser    BrowserConfig    `mapstructure:"browser"    yaml:"browser"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// SourcesConfig holds the three descriptor families.
type SourcesConfig struct {
	HTML     []SourceEntry `mapstructure:"html"     yaml:"html"`
	Feed     []SourceEntry `mapstructure:"feed"     yaml:"feed"`
	Document []SourceEntry `mapstructure:"document" yaml:"document"`
}

// SourceEntry is one configured source of any kind.
type SourceEntry struct {
	Key       string         `mapstructure:"key"        yaml:"key"`
	Name      string         `mapstructure:"name"       yaml:"name"`
	URL       string         `mapstructure:"url"        yaml:"url"`
	Enabled   bool           `mapstructure:"enabled"    yaml:"enabled"`
	PageCount int            `mapstructure:"page_count" yaml:"page_count"`
	Encoding  string         `mapstructure:"encoding"   yaml:"encoding"`
	Selectors SelectorSet    `mapstructure:"selectors"  yaml:"selectors"`
	Extra     map[string]any `mapstructure:"extra"      yaml:"extra"`
}

// SelectorSet defines the per-site extraction selectors for html and
// document sources. Type selects the selector language ("css" default,
// "xpath" for sites whose markup is easier to address that way).
type SelectorSet struct {
	Type    string `mapstructure:"type"    yaml:"type"`
	List    string `mapstructure:"list"    yaml:"list"`
	Item    string `mapstructure:"item"    yaml:"item"`
	Title   string `mapstructure:"title"   yaml:"title"`
	Link    string `mapstructure:"link"    yaml:"link"`
	Summary string `mapstructure:"summary" yaml:"summary"`
	Byline  string `mapstructure:"byline"  yaml:"byline"`
	Date    string `mapstructure:"date"    yaml:"date"`
	Body    string `mapstructure:"body"    yaml:"body"`
	Preview string `mapstructure:"preview" yaml:"preview"`
}

// KeywordConfig configures the keyword-search API mode.
type KeywordConfig struct {
	BaseURL         string          `mapstructure:"base_url"          yaml:"base_url"`
	ClientIDEnv     string          `mapstructure:"client_id_env"     yaml:"client_id_env"`
	ClientSecretEnv string          `mapstructure:"client_secret_env" yaml:"client_secret_env"`
	ClientID        string          `mapstructure:"client_id"         yaml:"client_id"`
	ClientSecret    string          `mapstructure:"client_secret"     yaml:"client_secret"`
	Sort            string          `mapstructure:"sort"              yaml:"sort"`
	PageSize        int             `mapstructure:"page_size"         yaml:"page_size"`
	MaxPerKeyword   int             `mapstructure:"max_per_keyword"   yaml:"max_per_keyword"`
	DaysFilter      int             `mapstructure:"days_filter"       yaml:"days_filter"`
	Categories      []CategoryEntry `mapstructure:"categories"        yaml:"categories"`
}

// CategoryEntry groups search keywords under a category slug.
type CategoryEntry struct {
	Key      string   `mapstructure:"key"      yaml:"key"`
	Name     string   `mapstructure:"name"     yaml:"name"`
	Keywords []string `mapstructure:"keywords" yaml:"keywords"`
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
}

// CollectionConfig controls run pacing and bounds.
type CollectionConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RequestDelay   time.Duration `mapstructure:"request_delay"   yaml:"request_delay"`
	APIDelay       time.Duration `mapstructure:"api_delay"       yaml:"api_delay"`
	MaxRetries     int           `mapstructure:"max_retries"     yaml:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"     yaml:"retry_delay"`
}

// NormalizerConfig carries the canonical-link policy.
type NormalizerConfig struct {
	// TrackingParams are query parameters stripped from canonical links.
	// A trailing "*" matches by prefix (e.g. "utm_*").
	TrackingParams []string `mapstructure:"tracking_params" yaml:"tracking_params"`
}

// FetcherConfig controls the plain HTTP client.
type FetcherConfig struct {
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// BrowserConfig controls the rendered session used in document mode.
type BrowserConfig struct {
	Headless      bool          `mapstructure:"headless"       yaml:"headless"`
	Stealth       bool          `mapstructure:"stealth"        yaml:"stealth"`
	RenderTimeout time.Duration `mapstructure:"render_timeout" yaml:"render_timeout"`

	// SessionScope is "run" (one browser for the whole source) or
	// "document" (fresh session per document).
	SessionScope string `mapstructure:"session_scope" yaml:"session_scope"`
}

// StorageConfig controls persistence and file output.
type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // none, sqlite, mongodb

	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`

	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Keyword: KeywordConfig{
			Sort:          "date",
			PageSize:      10,
			MaxPerKeyword: 10,
			DaysFilter:    7,
		},
		Collection: CollectionConfig{
			RequestTimeout: 30 * time.Second,
			RequestDelay:   500 * time.Millisecond,
			APIDelay:       500 * time.Millisecond,
			MaxRetries:     3,
			RetryDelay:     2 * time.Second,
		},
		Normalizer: NormalizerConfig{
			TrackingParams: []string{"utm_*", "fbclid", "gclid", "igshid", "spm"},
		},
		Fetcher: FetcherConfig{
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			},
			MaxBodySize:     10 * 1024 * 1024,
			FollowRedirects: true,
			MaxRedirects:    10,
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Browser: BrowserConfig{
			Headless:      true,
			RenderTimeout: 20 * time.Second,
			SessionScope:  "run",
		},
		Storage: StorageConfig{
			Backend:    "none",
			SQLitePath: "./newsharvest.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Descriptor converts a configured source entry into a registry descriptor.
func (s SourceEntry) Descriptor(kind types.SourceKind) types.Descriptor {
	extra := make(map[string]any, len(s.Extra)+11)
	for k, v := range s.Extra {
		extra[k] = v
	}
	if s.Encoding != "" {
		extra["encoding"] = s.Encoding
	}
	putSelector(extra, "selectorType", s.Selectors.Type)
	putSelector(extra, "list", s.Selectors.List)
	putSelector(extra, "item", s.Selectors.Item)
	putSelector(extra, "title", s.Selectors.Title)
	putSelector(extra, "link", s.Selectors.Link)
	putSelector(extra, "summary", s.Selectors.Summary)
	putSelector(extra, "byline", s.Selectors.Byline)
	putSelector(extra, "date", s.Selectors.Date)
	putSelector(extra, "body", s.Selectors.Body)
	putSelector(extra, "preview", s.Selectors.Preview)

	key := s.Key
	if key == "" {
		key = s.Name
	}
	return types.Descriptor{
		Key:         key,
		DisplayName: s.Name,
		Kind:        kind,
		Endpoint:    s.URL,
		Enabled:     s.Enabled,
		PageCount:   s.PageCount,
		Extra:       extra,
	}
}

func putSelector(extra map[string]any, key, value string) {
	if value != "" {
		extra[key] = value
	}
}
