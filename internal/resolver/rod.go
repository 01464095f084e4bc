package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/jihyekim/newsharvest/internal/config"
	"github.com/jihyekim/newsharvest/internal/types"
)

// RodProvider launches one Chromium instance and hands out pages as sessions.
type RodProvider struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
	logger  *slog.Logger
}

// NewRodProvider launches Chromium with the configured headless mode.
func NewRodProvider(cfg config.BrowserConfig, logger *slog.Logger) (*RodProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	logger.Debug("browser launched", "headless", cfg.Headless, "stealth", cfg.Stealth)
	return &RodProvider{
		browser: browser,
		cfg:     cfg,
		logger:  logger.With("component", "browser"),
	}, nil
}

// NewSession opens a fresh blank page.
func (p *RodProvider) NewSession(ctx context.Context) (Session, error) {
	var (
		page *rod.Page
		err  error
	)
	if p.cfg.Stealth {
		page, err = stealth.Page(p.browser)
	} else {
		page, err = p.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &rodSession{page: page.Context(ctx), logger: p.logger}, nil
}

func (p *RodProvider) Close() error {
	return p.browser.Close()
}

type rodSession struct {
	page   *rod.Page
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *rodSession) Open(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		s.logger.Warn("page load wait failed, continuing", "url", url, "error", err)
	}
	// Let injected viewer markup settle.
	if err := page.Timeout(3 * time.Second).WaitStable(300 * time.Millisecond); err != nil {
		s.logger.Debug("page stability timeout, continuing", "url", url)
	}
	return nil
}

func (s *rodSession) HTML() (string, error) {
	return s.page.HTML()
}

func (s *rodSession) FindFrame(match func(src string) bool) (string, bool, error) {
	elements, err := s.page.Elements("iframe, frame")
	if err != nil {
		return "", false, fmt.Errorf("list frames: %w", err)
	}
	for _, el := range elements {
		src, err := el.Attribute("src")
		if err != nil || src == nil || *src == "" {
			continue
		}
		if !match(*src) {
			continue
		}
		// Resolve relative srcs against the page location.
		abs, err := el.Eval(`() => this.src`)
		if err == nil && abs != nil {
			if u := abs.Value.Str(); u != "" {
				return u, true, nil
			}
		}
		return *src, true, nil
	}
	return "", false, nil
}

func (s *rodSession) WaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	page := s.page.Context(ctx)
	for {
		res, err := page.Eval(`() => document.body ? document.body.innerText.trim().length : 0`)
		if err == nil && res.Value.Int() > 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return types.ErrRenderTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (s *rodSession) ExtractText(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", fmt.Errorf("%w: %s", types.ErrExtraction, evalErrString(err))
	}
	return strings.TrimSpace(res.Value.Str()), nil
}

func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.page.Close()
	})
	return s.closeErr
}

func evalErrString(err error) string {
	var evalErr *rod.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Error()
	}
	return err.Error()
}
