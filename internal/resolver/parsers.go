package resolver

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jihyekim/newsharvest/internal/normalize"
)

// Korean government boards embed document previews in three shapes: a viewer
// iframe injected into the post body, an anchor whose onclick converts the
// attachment for the doc viewer, and a legacy window.open call against the
// synap viewer servlet.
const viewerPathKey = "docviewer/skin/doc.html"

var (
	onclickViewerRe = regexp.MustCompile(`fnConvertDocViewer\(\s*['"]([^'"]+)['"]`)
	windowOpenRe    = regexp.MustCompile(`window\.open\(\s*['"]([^'"]*synapviewer\.do[^'"]*)['"]`)
)

// PreviewLinks extracts preview viewer URLs from a rendered post page,
// resolved against baseURL, in document order with duplicates removed.
// A non-empty selector is a source-specific CSS override tried first;
// elements it matches contribute their href or src attribute. The built-in
// viewer patterns only run when the override matches nothing.
func PreviewLinks(doc *goquery.Document, baseURL, selector string) []string {
	var found []string
	seen := make(map[string]struct{})
	add := func(raw string) {
		u := normalize.ResolveURL(baseURL, raw)
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		found = append(found, u)
	}

	if selector != "" {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok {
				add(href)
				return
			}
			if src, ok := sel.Attr("src"); ok {
				add(src)
			}
		})
		if len(found) > 0 {
			return found
		}
	}

	doc.Find("iframe").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || !strings.Contains(src, viewerPathKey) {
			return
		}
		add(src)
	})

	doc.Find("a[onclick], button[onclick]").Each(func(_ int, sel *goquery.Selection) {
		onclick, _ := sel.Attr("onclick")
		if m := onclickViewerRe.FindStringSubmatch(onclick); m != nil {
			add(m[1])
			return
		}
		if m := windowOpenRe.FindStringSubmatch(onclick); m != nil {
			add(m[1])
		}
	})

	return found
}

// ParsePreviewLinks is PreviewLinks over raw HTML.
func ParsePreviewLinks(html, baseURL, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return PreviewLinks(doc, baseURL, selector), nil
}

// isViewerFrame reports whether a frame src points at a document viewer.
func isViewerFrame(src string) bool {
	return strings.Contains(src, viewerPathKey) ||
		strings.Contains(src, "synapviewer.do") ||
		strings.Contains(src, "doc.synap")
}
