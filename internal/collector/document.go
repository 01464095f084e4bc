package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jihyekim/newsharvest/internal/resolver"
	"github.com/jihyekim/newsharvest/internal/types"
)

// DocumentCollector handles sources whose articles live inside attached
// documents behind a preview viewer. Listing pages are fetched statically;
// each candidate post is then resolved in a rendered session.
type DocumentCollector struct {
	deps   Deps
	logger *slog.Logger
}

func NewDocument(deps Deps) *DocumentCollector {
	return &DocumentCollector{deps: deps, logger: deps.logger().With("component", "collector.document")}
}

func (c *DocumentCollector) Collect(ctx context.Context, src types.Descriptor, req *types.CollectionRequest) *types.CollectionResult {
	result := &types.CollectionResult{SourceKey: src.Key, DisplayName: src.DisplayName}

	browserCfg := c.deps.Config.Browser
	browserCfg.Headless = req.Headless

	items, err := c.enumerate(ctx, &src, req, result)
	if err != nil {
		result.Structural = &types.SourceError{Source: src.Key, Err: err}
		return result
	}
	if len(items) == 0 {
		return result
	}

	provider, err := c.deps.providerFactory()(browserCfg, c.deps.Logger)
	if err != nil {
		result.Structural = &types.SourceError{Source: src.Key, Err: fmt.Errorf("start browser: %w", err)}
		return result
	}
	defer provider.Close()

	res := resolver.New(browserCfg.RenderTimeout, c.deps.Logger).
		WithPreviewSelector(src.ExtraString("preview"))
	perDocument := browserCfg.SessionScope == "document"

	var sess resolver.Session
	if !perDocument {
		sess, err = provider.NewSession(ctx)
		if err != nil {
			result.Structural = &types.SourceError{Source: src.Key, Err: fmt.Errorf("open session: %w", err)}
			return result
		}
		defer sess.Close()
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			result.AddError(item.Link, err)
			break
		}
		docSess := sess
		if perDocument {
			docSess, err = provider.NewSession(ctx)
			if err != nil {
				result.AddError(item.Link, fmt.Errorf("open session: %w", err))
				continue
			}
		}

		article, err := c.resolveDocument(ctx, res, docSess, &src, req, item)
		if perDocument {
			docSess.Close()
		}
		if err != nil {
			result.AddError(item.Link, err)
			if article == nil {
				continue
			}
			// Extraction-stage failure: the resolved chain is still worth
			// keeping, only the body text is missing.
		}
		result.Articles = append(result.Articles, *article)

		if err := sleep(ctx, c.deps.Config.Collection.RequestDelay); err != nil {
			break
		}
	}

	c.logger.Info("documents collected",
		"source", src.Key, "articles", len(result.Articles),
		"pages", result.PagesVisited, "item_errors", len(result.Errors))
	return result
}

// enumerate walks the listing pages and returns the candidate posts. A
// failure on the first page is structural; later pages stop pagination.
func (c *DocumentCollector) enumerate(ctx context.Context, src *types.Descriptor, req *types.CollectionRequest, result *types.CollectionResult) ([]listItem, error) {
	start := req.StartPage()
	last := req.LastPage(src.PageCount)
	emptyStreak := 0

	var all []listItem
	for page := start; last == 0 || page <= last; page++ {
		if page > start {
			if err := sleep(ctx, c.deps.Config.Collection.RequestDelay); err != nil {
				break
			}
		}
		url := pageURL(src.Endpoint, page)
		if url == "" {
			break
		}

		resp, err := c.deps.Client.Get(ctx, url)
		if err != nil {
			if page == start {
				return nil, fmt.Errorf("fetch listing: %w", err)
			}
			result.AddError(fmt.Sprintf("page %d", page), err)
			break
		}
		body, err := decodeBody(resp.Body, src.ExtraString("encoding"))
		if err != nil {
			if page == start {
				return nil, err
			}
			result.AddError(fmt.Sprintf("page %d", page), err)
			break
		}
		items, err := parseListing(body, src, resp.FinalURL)
		if err != nil {
			if page == start {
				return nil, err
			}
			result.AddError(fmt.Sprintf("page %d", page), err)
			break
		}
		result.PagesVisited++

		if len(items) == 0 {
			emptyStreak++
			if emptyStreak >= maxEmptyPages {
				break
			}
			continue
		}
		emptyStreak = 0
		all = append(all, items...)
	}
	return all, nil
}

func (c *DocumentCollector) resolveDocument(ctx context.Context, res *resolver.Resolver, sess resolver.Session, src *types.Descriptor, req *types.CollectionRequest, item listItem) (*types.Article, error) {
	if item.Link == "" {
		return nil, fmt.Errorf("listing row %q: %w", item.Title, types.ErrLinkNotFound)
	}
	link, err := c.deps.Normalizer.CanonicalLink(item.Link)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", item.Link, err)
	}

	chain, text, err := res.Resolve(ctx, sess, item.Link, req.IncludeContent)
	if err != nil && chain.ExtractableURL == "" {
		// Failed before the text endpoint was reached: nothing to keep.
		return nil, err
	}

	article := &types.Article{
		Title:       c.deps.Normalizer.CleanText(item.Title),
		Link:        link,
		BodyText:    c.deps.Normalizer.CleanText(text),
		PublishedAt: parseDate(item.Date),
		CollectedAt: time.Now(),
		SourceKey:   src.Key,
	}
	article.SetRaw("previewUrl", chain.PreviewURL)
	if chain.ViewerFrameURL != "" {
		article.SetRaw("viewerFrameUrl", chain.ViewerFrameURL)
	}
	if chain.ExtractableURL != "" {
		article.SetRaw("extractableUrl", chain.ExtractableURL)
	}
	return article, err
}
