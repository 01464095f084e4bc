package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jihyekim/newsharvest/internal/types"
)

// Resolver walks a document's link chain inside a rendered session.
type Resolver struct {
	renderTimeout   time.Duration
	previewSelector string
	logger          *slog.Logger
}

func New(renderTimeout time.Duration, logger *slog.Logger) *Resolver {
	if renderTimeout <= 0 {
		renderTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		renderTimeout: renderTimeout,
		logger:        logger.With("component", "resolver"),
	}
}

// WithPreviewSelector sets a source-specific CSS selector that locates the
// preview link on post pages ahead of the built-in viewer patterns.
func (r *Resolver) WithPreviewSelector(selector string) *Resolver {
	r.previewSelector = selector
	return r
}

// Resolve drives sess from a post's listing page to extracted document text.
// When includeContent is false resolution stops as soon as the preview link
// is located; the viewer frame is never opened. On failure the returned
// chain's Err carries the cause and the same error is returned.
func (r *Resolver) Resolve(ctx context.Context, sess Session, pageURL string, includeContent bool) (*Chain, string, error) {
	chain := NewChain(pageURL)

	if err := sess.Open(ctx, pageURL); err != nil {
		err = fmt.Errorf("open listing %s: %w", pageURL, err)
		chain.Fail(err)
		return chain, "", err
	}

	html, err := sess.HTML()
	if err != nil {
		err = fmt.Errorf("read listing %s: %w", pageURL, err)
		chain.Fail(err)
		return chain, "", err
	}

	previews, err := ParsePreviewLinks(html, pageURL, r.previewSelector)
	if err != nil {
		err = fmt.Errorf("parse listing %s: %w", pageURL, err)
		chain.Fail(err)
		return chain, "", err
	}
	if len(previews) == 0 {
		err = fmt.Errorf("%s: %w", pageURL, types.ErrLinkNotFound)
		chain.Fail(err)
		return chain, "", err
	}
	if err := chain.ToPreview(previews[0]); err != nil {
		chain.Fail(err)
		return chain, "", err
	}
	r.logger.Debug("preview located", "page", pageURL, "preview", chain.PreviewURL)

	if !includeContent {
		return chain, "", nil
	}

	if err := sess.Open(ctx, chain.PreviewURL); err != nil {
		err = fmt.Errorf("open preview %s: %w", chain.PreviewURL, err)
		chain.Fail(err)
		return chain, "", err
	}

	frameURL, ok, err := sess.FindFrame(isViewerFrame)
	if err != nil {
		err = fmt.Errorf("inspect frames of %s: %w", chain.PreviewURL, err)
		chain.Fail(err)
		return chain, "", err
	}
	if !ok {
		// The preview page is the viewer itself.
		frameURL = chain.PreviewURL
	}
	if err := chain.ToViewerFrame(frameURL); err != nil {
		chain.Fail(err)
		return chain, "", err
	}

	if frameURL != chain.PreviewURL {
		if err := sess.Open(ctx, frameURL); err != nil {
			err = fmt.Errorf("open viewer frame %s: %w", frameURL, err)
			chain.Fail(err)
			return chain, "", err
		}
	}

	if err := sess.WaitReady(ctx, r.renderTimeout); err != nil {
		err = fmt.Errorf("render %s: %w", frameURL, err)
		chain.Fail(err)
		return chain, "", err
	}
	if err := chain.ToExtractable(frameURL); err != nil {
		chain.Fail(err)
		return chain, "", err
	}

	text, err := sess.ExtractText(ctx)
	if err != nil {
		err = fmt.Errorf("extract %s: %w", frameURL, err)
		chain.Fail(err)
		return chain, "", err
	}
	if strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%s: empty document body: %w", frameURL, types.ErrExtraction)
		chain.Fail(err)
		return chain, "", err
	}

	if err := chain.Complete(); err != nil {
		chain.Fail(err)
		return chain, "", err
	}
	r.logger.Debug("document resolved", "page", pageURL, "chars", len(text))
	return chain, text, nil
}
