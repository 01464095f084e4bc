// Package normalize converts raw extracted fragments into clean Article
// fields and applies the canonical-link policy used as the dedup key.
package normalize

import (
	"html"
	"net/url"
	"strings"
)

// Normalizer applies the configured cleanup and canonical-link policy.
// Deterministic: the same input always yields the same output.
type Normalizer struct {
	trackingExact  map[string]bool
	trackingPrefix []string
}

// New creates a Normalizer with the given tracking-parameter patterns.
// A trailing "*" matches by prefix ("utm_*" strips utm_source, utm_medium...).
func New(trackingParams []string) *Normalizer {
	n := &Normalizer{trackingExact: make(map[string]bool)}
	for _, p := range trackingParams {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "*") {
			n.trackingPrefix = append(n.trackingPrefix, strings.TrimSuffix(p, "*"))
		} else {
			n.trackingExact[p] = true
		}
	}
	return n
}

// CleanText decodes HTML entities and collapses runs of whitespace.
func (n *Normalizer) CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// StripTags removes a fragment's markup, keeping only its text. API result
// titles arrive with <b> highlighting around the matched keyword.
func (n *Normalizer) StripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return n.CleanText(s)
	}
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return n.CleanText(b.String())
}

// ResolveURL resolves href against base, returning an absolute URL.
// Anchors, javascript:, mailto: and other non-HTTP links resolve to "".
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// CanonicalLink normalizes a URL into the dedup key form: lower-cased host,
// default ports and fragment removed, tracking query parameters stripped,
// trailing slash trimmed. The path and remaining query keep their case.
func (n *Normalizer) CanonicalLink(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	if u.RawQuery != "" {
		query := u.Query()
		for param := range query {
			if n.isTracking(param) {
				query.Del(param)
			}
		}
		u.RawQuery = query.Encode()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), nil
}

func (n *Normalizer) isTracking(param string) bool {
	param = strings.ToLower(param)
	if n.trackingExact[param] {
		return true
	}
	for _, prefix := range n.trackingPrefix {
		if strings.HasPrefix(param, prefix) {
			return true
		}
	}
	return false
}
