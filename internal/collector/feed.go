package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jihyekim/newsharvest/internal/types"
)

// FeedCollector pulls a syndication feed and maps its entries onto articles.
// Entries arrive newest-first after sorting, and the request limit caps the
// entry count rather than a page count.
type FeedCollector struct {
	deps   Deps
	parser *gofeed.Parser
	logger *slog.Logger
}

func NewFeed(deps Deps) *FeedCollector {
	return &FeedCollector{
		deps:   deps,
		parser: gofeed.NewParser(),
		logger: deps.logger().With("component", "collector.feed"),
	}
}

func (c *FeedCollector) Collect(ctx context.Context, src types.Descriptor, req *types.CollectionRequest) *types.CollectionResult {
	result := &types.CollectionResult{SourceKey: src.Key, DisplayName: src.DisplayName}

	resp, err := c.deps.Client.Get(ctx, src.Endpoint)
	if err != nil {
		result.Structural = &types.SourceError{Source: src.Key, Err: fmt.Errorf("fetch feed: %w", err)}
		return result
	}
	result.PagesVisited = 1

	feed, err := c.parser.ParseString(string(resp.Body))
	if err != nil {
		result.Structural = &types.SourceError{Source: src.Key, Err: fmt.Errorf("parse feed: %w", err)}
		return result
	}
	if len(feed.Items) == 0 {
		result.Structural = &types.SourceError{Source: src.Key, Err: types.ErrEmptyFeed}
		return result
	}

	entries := make([]*gofeed.Item, len(feed.Items))
	copy(entries, feed.Items)
	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entryTime(entries[i]), entryTime(entries[j])
		return ti.After(tj)
	})

	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	for _, entry := range entries {
		article, err := c.buildArticle(&src, entry)
		if err != nil {
			result.AddError(entry.Link, err)
			continue
		}
		result.Articles = append(result.Articles, *article)
	}

	c.logger.Info("feed collected",
		"source", src.Key, "entries", len(feed.Items),
		"articles", len(result.Articles), "item_errors", len(result.Errors))
	return result
}

func (c *FeedCollector) buildArticle(src *types.Descriptor, entry *gofeed.Item) (*types.Article, error) {
	raw := entry.Link
	if raw == "" {
		return nil, fmt.Errorf("feed entry %q: %w", entry.Title, types.ErrLinkNotFound)
	}
	link, err := c.deps.Normalizer.CanonicalLink(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", raw, err)
	}

	article := &types.Article{
		Title:       c.deps.Normalizer.CleanText(entry.Title),
		Link:        link,
		Summary:     c.deps.Normalizer.StripTags(entry.Description),
		PublishedAt: entry.PublishedParsed,
		CollectedAt: time.Now(),
		SourceKey:   src.Key,
	}
	if article.PublishedAt == nil {
		article.PublishedAt = entry.UpdatedParsed
	}
	if entry.Author != nil {
		article.Byline = c.deps.Normalizer.CleanText(entry.Author.Name)
	}
	if len(entry.Categories) > 0 {
		article.Category = entry.Categories[0]
	}
	article.SetRaw("guid", entry.GUID)
	article.SetRaw("feedLink", raw)
	return article, nil
}

func entryTime(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return time.Time{}
}
