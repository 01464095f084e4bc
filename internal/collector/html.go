package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jihyekim/newsharvest/internal/types"
)

// maxEmptyPages stops unbounded pagination after this many consecutive
// listing pages with no rows.
const maxEmptyPages = 2

// HTMLCollector walks a source's paginated listing and extracts one article
// per row.
type HTMLCollector struct {
	deps   Deps
	logger *slog.Logger
}

func NewHTML(deps Deps) *HTMLCollector {
	return &HTMLCollector{deps: deps, logger: deps.logger().With("component", "collector.html")}
}

func (c *HTMLCollector) Collect(ctx context.Context, src types.Descriptor, req *types.CollectionRequest) *types.CollectionResult {
	result := &types.CollectionResult{SourceKey: src.Key, DisplayName: src.DisplayName}

	start := req.StartPage()
	last := req.LastPage(src.PageCount)
	emptyStreak := 0

	for page := start; last == 0 || page <= last; page++ {
		if page > start {
			if err := sleep(ctx, c.deps.Config.Collection.RequestDelay); err != nil {
				result.AddError(fmt.Sprintf("page %d", page), err)
				break
			}
		}

		url := pageURL(src.Endpoint, page)
		if url == "" {
			break
		}

		items, err := c.fetchListing(ctx, &src, url)
		if err != nil {
			if page == start {
				result.Structural = &types.SourceError{Source: src.Key, Err: err}
				return result
			}
			result.AddError(fmt.Sprintf("page %d", page), err)
			break
		}
		result.PagesVisited++

		if len(items) == 0 {
			emptyStreak++
			if emptyStreak >= maxEmptyPages {
				c.logger.Debug("pagination exhausted", "source", src.Key, "page", page)
				break
			}
			continue
		}
		emptyStreak = 0

		for _, item := range items {
			article, err := c.buildArticle(ctx, &src, req, item, result)
			if err != nil {
				result.AddError(item.Link, err)
				continue
			}
			result.Articles = append(result.Articles, *article)
		}
	}

	c.logger.Info("source collected",
		"source", src.Key, "articles", len(result.Articles),
		"pages", result.PagesVisited, "item_errors", len(result.Errors))
	return result
}

func (c *HTMLCollector) fetchListing(ctx context.Context, src *types.Descriptor, url string) ([]listItem, error) {
	resp, err := c.deps.Client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	body, err := decodeBody(resp.Body, src.ExtraString("encoding"))
	if err != nil {
		return nil, err
	}
	return parseListing(body, src, resp.FinalURL)
}

func (c *HTMLCollector) buildArticle(ctx context.Context, src *types.Descriptor, req *types.CollectionRequest, item listItem, result *types.CollectionResult) (*types.Article, error) {
	if item.Link == "" {
		return nil, fmt.Errorf("listing row %q: %w", item.Title, types.ErrLinkNotFound)
	}
	link, err := c.deps.Normalizer.CanonicalLink(item.Link)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", item.Link, err)
	}

	article := &types.Article{
		Title:       c.deps.Normalizer.CleanText(item.Title),
		Link:        link,
		Summary:     c.deps.Normalizer.CleanText(item.Summary),
		Byline:      c.deps.Normalizer.CleanText(item.Byline),
		PublishedAt: parseDate(item.Date),
		CollectedAt: time.Now(),
		SourceKey:   src.Key,
	}
	article.SetRaw("listingLink", item.Link)

	// Body fetch is best effort: a broken article page keeps its listing row.
	if req.IncludeContent {
		if text, err := c.fetchBody(ctx, src, item.Link); err != nil {
			c.logger.Warn("body fetch failed", "source", src.Key, "url", item.Link, "error", err)
			result.AddError(item.Link, err)
		} else {
			article.BodyText = c.deps.Normalizer.CleanText(text)
		}
	}
	return article, nil
}

func (c *HTMLCollector) fetchBody(ctx context.Context, src *types.Descriptor, url string) (string, error) {
	if err := sleep(ctx, c.deps.Config.Collection.RequestDelay); err != nil {
		return "", err
	}
	resp, err := c.deps.Client.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	body, err := decodeBody(resp.Body, src.ExtraString("encoding"))
	if err != nil {
		return "", err
	}
	return extractBody(body, src)
}
