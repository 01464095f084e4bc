package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/jihyekim/newsharvest/internal/fetcher"
	"github.com/jihyekim/newsharvest/internal/types"
)

// apiStartCeiling is the highest pagination offset the search API accepts.
const apiStartCeiling = 1000

// KeywordCollector queries the news search API once per configured keyword.
// Credentials are checked before the first request so a misconfigured run
// fails without touching the network.
type KeywordCollector struct {
	deps   Deps
	logger *slog.Logger
}

func NewKeyword(deps Deps) *KeywordCollector {
	return &KeywordCollector{deps: deps, logger: deps.logger().With("component", "collector.keyword")}
}

type searchResponse struct {
	Total   int          `json:"total"`
	Start   int          `json:"start"`
	Display int          `json:"display"`
	Items   []searchItem `json:"items"`
}

type searchItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

func (c *KeywordCollector) Collect(ctx context.Context, src types.Descriptor, req *types.CollectionRequest) *types.CollectionResult {
	result := &types.CollectionResult{SourceKey: src.Key, DisplayName: src.DisplayName}

	kw := c.deps.Config.Keyword
	if kw.ClientID == "" || kw.ClientSecret == "" {
		result.Structural = &types.CredentialError{Hint: "set the search API client id and secret (config keyword.client_id_env / client_secret_env)"}
		return result
	}

	keywords := extraStrings(&src, "keywords")
	if len(keywords) == 0 {
		result.Structural = &types.SourceError{Source: src.Key, Err: errors.New("category has no keywords")}
		return result
	}

	limit := req.Limit
	if limit <= 0 {
		limit = kw.MaxPerKeyword
	}

	var cutoff time.Time
	if kw.DaysFilter > 0 {
		cutoff = time.Now().AddDate(0, 0, -kw.DaysFilter)
	}

	for i, keyword := range keywords {
		if i > 0 {
			if err := sleep(ctx, c.deps.Config.Collection.APIDelay); err != nil {
				break
			}
		}
		if err := c.collectKeyword(ctx, &src, result, keyword, limit, cutoff); err != nil {
			if types.IsFatal(err) {
				result.Structural = err
				return result
			}
			result.AddError(keyword, err)
		}
	}

	if req.IncludeContent {
		c.fetchBodies(ctx, result)
	}

	c.logger.Info("keyword search collected",
		"category", src.Key, "keywords", len(keywords),
		"articles", len(result.Articles), "item_errors", len(result.Errors))
	return result
}

func (c *KeywordCollector) collectKeyword(ctx context.Context, src *types.Descriptor, result *types.CollectionResult, keyword string, limit int, cutoff time.Time) error {
	kw := c.deps.Config.Keyword
	collected := 0

	for start := 1; collected < limit && start <= apiStartCeiling; {
		display := kw.PageSize
		if remaining := limit - collected; remaining < display {
			display = remaining
		}

		page, err := c.search(ctx, keyword, start, display)
		if err != nil {
			return err
		}
		if len(page.Items) == 0 {
			break
		}
		result.PagesVisited++

		for _, item := range page.Items {
			published := parseDate(item.PubDate)
			if !cutoff.IsZero() && published != nil && published.Before(cutoff) {
				// Results arrive newest-first, nothing younger follows.
				return nil
			}
			article, err := c.buildArticle(src, keyword, item, published)
			if err != nil {
				result.AddError(keyword, err)
				continue
			}
			result.Articles = append(result.Articles, *article)
			collected++
			if collected >= limit {
				return nil
			}
		}

		start += len(page.Items)
		if start > page.Total {
			break
		}
		if err := sleep(ctx, c.deps.Config.Collection.APIDelay); err != nil {
			return err
		}
	}
	return nil
}

func (c *KeywordCollector) search(ctx context.Context, keyword string, start, display int) (*searchResponse, error) {
	kw := c.deps.Config.Keyword

	q := url.Values{}
	q.Set("query", keyword)
	q.Set("start", strconv.Itoa(start))
	q.Set("display", strconv.Itoa(display))
	q.Set("sort", kw.Sort)

	resp, err := c.deps.Client.GetWithHeaders(ctx, kw.BaseURL+"?"+q.Encode(), map[string]string{
		"X-Naver-Client-Id":     kw.ClientID,
		"X-Naver-Client-Secret": kw.ClientSecret,
	})
	if err != nil {
		var fetchErr *fetcher.FetchError
		if errors.As(err, &fetchErr) && (fetchErr.StatusCode == 401 || fetchErr.StatusCode == 403) {
			return nil, &types.CredentialError{Hint: fmt.Sprintf("search API rejected credentials (status %d)", fetchErr.StatusCode)}
		}
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}

	var page searchResponse
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, fmt.Errorf("decode search response for %q: %w", keyword, err)
	}
	return &page, nil
}

func (c *KeywordCollector) buildArticle(src *types.Descriptor, keyword string, item searchItem, published *time.Time) (*types.Article, error) {
	// Prefer the publisher URL over the aggregator copy.
	raw := item.OriginalLink
	if raw == "" {
		raw = item.Link
	}
	if raw == "" {
		return nil, fmt.Errorf("result %q: %w", item.Title, types.ErrLinkNotFound)
	}
	link, err := c.deps.Normalizer.CanonicalLink(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", raw, err)
	}

	article := &types.Article{
		Title:       c.deps.Normalizer.StripTags(item.Title),
		Link:        link,
		Summary:     c.deps.Normalizer.StripTags(item.Description),
		Category:    src.DisplayName,
		Keyword:     keyword,
		PublishedAt: published,
		CollectedAt: time.Now(),
		SourceKey:   src.Key,
	}
	if item.OriginalLink != "" && item.Link != "" && item.OriginalLink != item.Link {
		if agg, err := c.deps.Normalizer.CanonicalLink(item.Link); err == nil {
			article.OriginalLink = agg
		}
	}
	article.SetRaw("pubDate", item.PubDate)
	return article, nil
}

// fetchBodies runs the secondary extraction step over collected results.
// Extraction failures keep the article; the search metadata is still worth
// persisting.
func (c *KeywordCollector) fetchBodies(ctx context.Context, result *types.CollectionResult) {
	timeout := c.deps.Config.Collection.RequestTimeout
	for i := range result.Articles {
		if err := ctx.Err(); err != nil {
			return
		}
		article, err := readability.FromURL(result.Articles[i].Link, timeout)
		if err != nil {
			result.AddError(result.Articles[i].Link, fmt.Errorf("%w: %v", types.ErrExtraction, err))
			continue
		}
		result.Articles[i].BodyText = c.deps.Normalizer.CleanText(article.TextContent)
		if err := sleep(ctx, c.deps.Config.Collection.RequestDelay); err != nil {
			return
		}
	}
}
