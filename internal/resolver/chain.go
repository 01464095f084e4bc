// Package resolver drives a rendered browser session from a document's
// board page through its preview link and embedded viewer frame to the
// endpoint whose text can be extracted. This is the only place in the
// system where rendering is unavoidable: viewer iframes are injected by
// client-side script and are not discoverable from static HTML.
package resolver

import (
	"fmt"

	"github.com/jihyekim/newsharvest/internal/types"
)

// Stage is a position in the document link resolution state machine.
type Stage int

const (
	StageListing Stage = iota
	StagePreview
	StageViewerFrame
	StageExtractable
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageListing:
		return "listing"
	case StagePreview:
		return "preview"
	case StageViewerFrame:
		return "viewer_frame"
	case StageExtractable:
		return "extractable"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Chain tracks one document's resolution. Transient: it exists only while a
// single document is being resolved and is discarded afterwards. Stages are
// never skipped; each URL field is populated exactly when its stage is
// entered.
type Chain struct {
	ListingURL     string
	PreviewURL     string
	ViewerFrameURL string
	ExtractableURL string

	stage   Stage
	failure error
}

// NewChain starts a chain at the listing stage.
func NewChain(listingURL string) *Chain {
	return &Chain{ListingURL: listingURL, stage: StageListing}
}

// Stage returns the chain's current stage.
func (c *Chain) Stage() Stage { return c.stage }

// Err returns the failure that terminated the chain, if any.
func (c *Chain) Err() error { return c.failure }

// ToPreview records the located preview anchor.
func (c *Chain) ToPreview(url string) error {
	if err := c.expect(StageListing); err != nil {
		return err
	}
	c.PreviewURL = url
	c.stage = StagePreview
	return nil
}

// ToViewerFrame records the embedded viewer frame URL. When the preview page
// is itself the viewer the caller passes the preview URL unchanged.
func (c *Chain) ToViewerFrame(url string) error {
	if err := c.expect(StagePreview); err != nil {
		return err
	}
	c.ViewerFrameURL = url
	c.stage = StageViewerFrame
	return nil
}

// ToExtractable records the endpoint whose plain text can be fetched.
func (c *Chain) ToExtractable(url string) error {
	if err := c.expect(StageViewerFrame); err != nil {
		return err
	}
	c.ExtractableURL = url
	c.stage = StageExtractable
	return nil
}

// Complete marks the chain done after text was extracted.
func (c *Chain) Complete() error {
	if err := c.expect(StageExtractable); err != nil {
		return err
	}
	c.stage = StageDone
	return nil
}

// Fail terminates the chain from any stage.
func (c *Chain) Fail(err error) {
	if err == nil {
		err = types.ErrExtraction
	}
	c.failure = err
	c.stage = StageFailed
}

func (c *Chain) expect(stage Stage) error {
	if c.stage != stage {
		return fmt.Errorf("invalid chain transition from %s (expected %s)", c.stage, stage)
	}
	return nil
}
