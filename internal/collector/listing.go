package collector

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/jihyekim/newsharvest/internal/normalize"
	"github.com/jihyekim/newsharvest/internal/types"
)

// listItem is one row extracted from a listing page, fields still raw.
type listItem struct {
	Title   string
	Link    string
	Summary string
	Byline  string
	Date    string
}

// parseListing extracts listing rows using the source's selector set. The
// selector type is "css" unless the source opts into "xpath"; some boards
// have markup that is only addressable positionally.
func parseListing(body []byte, src *types.Descriptor, baseURL string) ([]listItem, error) {
	itemSel := src.ExtraString("item")
	if itemSel == "" {
		return nil, fmt.Errorf("source %s has no item selector", src.Key)
	}
	if src.ExtraString("selectorType") == "xpath" {
		return parseListingXPath(body, src, baseURL)
	}
	return parseListingCSS(body, src, baseURL)
}

func parseListingCSS(body []byte, src *types.Descriptor, baseURL string) ([]listItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	scope := doc.Selection
	if list := src.ExtraString("list"); list != "" {
		scope = doc.Find(list)
	}

	var items []listItem
	scope.Find(src.ExtraString("item")).Each(func(_ int, row *goquery.Selection) {
		item := listItem{
			Title:   selText(row, src.ExtraString("title")),
			Summary: selText(row, src.ExtraString("summary")),
			Byline:  selText(row, src.ExtraString("byline")),
			Date:    selText(row, src.ExtraString("date")),
		}

		linkEl := row
		if linkSel := src.ExtraString("link"); linkSel != "" {
			linkEl = row.Find(linkSel).First()
		} else if !row.Is("a") {
			linkEl = row.Find("a").First()
		}
		if href, ok := linkEl.Attr("href"); ok {
			item.Link = normalize.ResolveURL(baseURL, href)
		}
		if item.Title == "" {
			item.Title = strings.TrimSpace(linkEl.Text())
		}
		items = append(items, item)
	})
	return items, nil
}

func selText(row *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(row.Find(selector).First().Text())
}

func parseListingXPath(body []byte, src *types.Descriptor, baseURL string) ([]listItem, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	rows, err := htmlquery.QueryAll(doc, src.ExtraString("item"))
	if err != nil {
		return nil, fmt.Errorf("item xpath: %w", err)
	}

	var items []listItem
	for _, row := range rows {
		item := listItem{
			Title:   xpathText(row, src.ExtraString("title")),
			Summary: xpathText(row, src.ExtraString("summary")),
			Byline:  xpathText(row, src.ExtraString("byline")),
			Date:    xpathText(row, src.ExtraString("date")),
		}

		linkExpr := src.ExtraString("link")
		if linkExpr == "" {
			linkExpr = ".//a"
		}
		if linkNode, err := htmlquery.Query(row, linkExpr); err == nil && linkNode != nil {
			item.Link = normalize.ResolveURL(baseURL, htmlquery.SelectAttr(linkNode, "href"))
			if item.Title == "" {
				item.Title = strings.TrimSpace(htmlquery.InnerText(linkNode))
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func xpathText(row *html.Node, expr string) string {
	if expr == "" {
		return ""
	}
	node, err := htmlquery.Query(row, expr)
	if err != nil || node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(node))
}

// extractBody pulls an article page's body text with the source's body
// selector, falling back to common content containers.
func extractBody(body []byte, src *types.Descriptor) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}
	selectors := []string{src.ExtraString("body"), "article", ".view_con", "#article-view-content-div", ".article_body"}
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		if found := doc.Find(sel).First(); found.Length() > 0 {
			return strings.TrimSpace(found.Text()), nil
		}
	}
	return "", fmt.Errorf("no body content matched: %w", types.ErrExtraction)
}
