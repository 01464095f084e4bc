package resolver

import (
	"context"
	"time"
)

// Session is one rendered browser page. Implementations must tolerate Close
// being called more than once.
type Session interface {
	// Open navigates the session to url and waits for the initial load.
	Open(ctx context.Context, url string) error

	// HTML returns the current document's outer HTML after script execution.
	HTML() (string, error)

	// FindFrame returns the absolute URL of the first child frame whose src
	// matches. The second return is false when no frame matches.
	FindFrame(match func(src string) bool) (string, bool, error)

	// WaitReady blocks until the page has rendered visible text, or returns
	// types.ErrRenderTimeout once timeout elapses.
	WaitReady(ctx context.Context, timeout time.Duration) error

	// ExtractText returns the page's visible text content.
	ExtractText(ctx context.Context) (string, error)

	Close() error
}

// Provider hands out sessions. Scope is decided by the caller: a provider may
// be opened once per run or once per document.
type Provider interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}
