package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for resolver and lookup failure modes.
var (
	ErrLinkNotFound   = errors.New("preview link not found on listing page")
	ErrRenderTimeout  = errors.New("viewer rendering timed out")
	ErrExtraction     = errors.New("text extraction failed")
	ErrUnknownSource  = errors.New("unknown source token")
	ErrSourceDisabled = errors.New("source is disabled")
	ErrEmptyFeed      = errors.New("feed contains no entries")
)

// ConfigError reports a bad or missing configuration value. Fatal: the run
// fails before any collection starts.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ResolutionError reports an unknown or ambiguous source token. Fatal.
type ResolutionError struct {
	Token string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve source %q: %v", e.Token, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// CredentialError reports a missing or invalid API credential. Fatal, and
// raised before the first request is attempted.
type CredentialError struct {
	Hint string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error: %s", e.Hint)
}

// SourceError marks a structural failure: the whole source is unreachable or
// misconfigured. Recorded in the report; the run continues with other sources.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s failed: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ItemError records a single failed page, entry, or document. Never fatal.
type ItemError struct {
	Source  string
	Context string
	Err     error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Context, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// IsFatal reports whether an error class aborts the whole run.
func IsFatal(err error) bool {
	var cfgErr *ConfigError
	var resErr *ResolutionError
	var credErr *CredentialError
	return errors.As(err, &cfgErr) || errors.As(err, &resErr) || errors.As(err, &credErr)
}
