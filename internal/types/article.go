package types

import (
	"time"
)

// SourceKind identifies the collection mechanism a source uses.
type SourceKind string

const (
	KindHTML     SourceKind = "html"
	KindFeed     SourceKind = "feed"
	KindDocument SourceKind = "document"
	KindKeyword  SourceKind = "keyword"
)

func (k SourceKind) Valid() bool {
	switch k {
	case KindHTML, KindFeed, KindDocument, KindKeyword:
		return true
	}
	return false
}

// Descriptor describes a single registered source. Immutable after load;
// identity is Key, DisplayName is only a lookup alias.
type Descriptor struct {
	// Key is the stable slug used on the command line and in config.
	Key string `json:"key"`

	// DisplayName is the human-readable source name.
	DisplayName string `json:"name"`

	// Kind selects the collector implementation.
	Kind SourceKind `json:"kind"`

	// Endpoint is the listing URL template, feed URL, or API base.
	// HTML and document endpoints may contain a "{page}" placeholder.
	Endpoint string `json:"endpoint"`

	// Enabled sources are the only ones the "all" token expands to.
	Enabled bool `json:"enabled"`

	// PageCount is the default number of listing pages to visit when the
	// request carries no explicit page range.
	PageCount int `json:"pageCount,omitempty"`

	// Extra is the kind-specific extension bag (selectors, viewer patterns,
	// encodings). Core logic never depends on its contents.
	Extra map[string]any `json:"extra,omitempty"`
}

// ExtraString reads a string value from the extension bag.
func (d *Descriptor) ExtraString(key string) string {
	if d.Extra == nil {
		return ""
	}
	s, _ := d.Extra[key].(string)
	return s
}

// Article is the common record every collector normalizes into.
type Article struct {
	Title string `json:"title"`

	// Link is the canonical (normalized, absolute) URL and the dedup key.
	Link string `json:"link"`

	// OriginalLink is the aggregator copy's URL when the canonical link
	// already points at the publisher (keyword mode keeps both).
	OriginalLink string `json:"originalLink,omitempty"`

	Summary  string `json:"summary,omitempty"`
	BodyText string `json:"bodyText,omitempty"`
	Byline   string `json:"byline,omitempty"`
	Category string `json:"category,omitempty"`
	Keyword  string `json:"keyword,omitempty"`

	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CollectedAt time.Time  `json:"collectedAt"`

	SourceKey string `json:"sourceKey"`

	// Raw preserves the untransformed source payload for audit.
	Raw map[string]any `json:"raw,omitempty"`
}

// SetRaw stores an audit value, allocating the map on first use.
func (a *Article) SetRaw(key string, value any) {
	if a.Raw == nil {
		a.Raw = make(map[string]any)
	}
	a.Raw[key] = value
}
