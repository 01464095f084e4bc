package types

import (
	"fmt"
	"strings"
)

// Mode selects which source family a run collects from.
type Mode string

const (
	ModeScrape   Mode = "scrape"
	ModeFeed     Mode = "rss"
	ModeDocument Mode = "hwpx"
	ModeKeyword  Mode = "keyword"
)

// ParseMode converts a CLI mode string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeScrape:
		return ModeScrape, nil
	case ModeFeed:
		return ModeFeed, nil
	case ModeDocument:
		return ModeDocument, nil
	case ModeKeyword:
		return ModeKeyword, nil
	}
	return "", fmt.Errorf("unsupported mode %q (valid: scrape, rss, hwpx, keyword)", s)
}

// Kind returns the source kind a mode dispatches to.
func (m Mode) Kind() SourceKind {
	switch m {
	case ModeScrape:
		return KindHTML
	case ModeFeed:
		return KindFeed
	case ModeDocument:
		return KindDocument
	case ModeKeyword:
		return KindKeyword
	}
	return ""
}

// PageRange bounds listing pagination. End == 0 means unbounded.
type PageRange struct {
	Start int
	End   int
}

// CollectionRequest captures everything a single run needs. Constructed once
// per run and read-only thereafter.
type CollectionRequest struct {
	Mode Mode

	// SelectedKeys are the raw source tokens in command-line order. The
	// special token "all" expands to every enabled source of the mode's kind.
	SelectedKeys []string

	// Pages bounds listing pagination for html and document modes.
	Pages PageRange

	// Limit is mode-dependent: max pages for scrape/hwpx, max entries for
	// rss, max results per keyword for keyword mode. Zero means unset.
	Limit int

	// IncludeContent controls body-text fetching. When false the document
	// resolver stops at the preview stage and the keyword collector skips
	// the secondary extraction step.
	IncludeContent bool

	// Headless controls the rendered browser session in document mode.
	Headless bool
}

// StartPage returns the effective first page (default 1).
func (r *CollectionRequest) StartPage() int {
	if r.Pages.Start < 1 {
		return 1
	}
	return r.Pages.Start
}

// LastPage returns the inclusive final page for a source, combining the
// request's explicit range, the page limit, and the source default. Zero
// means no bound beyond the empty-page guard.
func (r *CollectionRequest) LastPage(sourceDefault int) int {
	start := r.StartPage()
	end := r.Pages.End
	if end == 0 && sourceDefault > 0 {
		end = start + sourceDefault - 1
	}
	if r.Limit > 0 {
		limitEnd := start + r.Limit - 1
		if end == 0 || limitEnd < end {
			end = limitEnd
		}
	}
	if end != 0 && end < start {
		end = start
	}
	return end
}
