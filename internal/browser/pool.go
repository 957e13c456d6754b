// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser renders client-side pages with a shared headless Chrome.
// Pool implements httputil.Fetcher so site connectors can use it in place
// of a plain HTTP client.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/legal-ingest/internal/httputil"
)

var _ httputil.Fetcher = (*Pool)(nil)

// ErrClosed is returned by Fetch after Close.
var ErrClosed = errors.New("browser pool is closed")

// Config configures a Pool.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local headless Chrome on first use.
	RemoteURL string

	// Tabs bounds concurrently open pages. Default: 2.
	Tabs int

	// NavigateTimeout bounds navigation and page load. Default: 30s.
	NavigateTimeout time.Duration

	// RenderTimeout bounds the wait for a content marker. When it expires
	// the page is read as-is. Default: 10s.
	RenderTimeout time.Duration

	// Stealth applies go-rod/stealth evasions to every page.
	Stealth bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Tabs <= 0 {
		c.Tabs = 2
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Pool shares one Chrome process between concurrent fetches.
type Pool struct {
	cfg  Config
	sem  *semaphore.Weighted
	mu   sync.Mutex
	b    *rod.Browser
	lnch *launcher.Launcher
	done bool
}

// New returns a Pool. Chrome is not started until the first Fetch.
func New(cfg Config) *Pool {
	cfg.defaults()
	return &Pool{cfg: cfg, sem: semaphore.NewWeighted(int64(cfg.Tabs))}
}

func (p *Pool) browser() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return nil, ErrClosed
	}
	if p.b != nil {
		return p.b, nil
	}

	wsURL := p.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching chrome: %w", err)
		}
		wsURL = u
		p.lnch = l
		p.cfg.Logger.Info("launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to chrome: %w", err)
	}
	p.b = b
	return b, nil
}

func (p *Pool) page(b *rod.Browser) (*rod.Page, error) {
	if p.cfg.Stealth {
		return stealth.Page(b)
	}
	return b.Page(proto.TargetCreateTarget{})
}

// Fetch navigates to url and returns the rendered DOM. When waitFor is set
// it waits up to RenderTimeout for an element matching that CSS selector;
// on timeout it logs and returns whatever is present.
func (p *Pool) Fetch(ctx context.Context, url, waitFor string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	b, err := p.browser()
	if err != nil {
		return "", err
	}
	page, err := p.page(b)
	if err != nil {
		return "", fmt.Errorf("opening tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, p.cfg.NavigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(url); err != nil {
		return "", fmt.Errorf("navigating to %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		p.cfg.Logger.Warn("page load did not finish", "url", url, "error", err)
	}

	if waitFor != "" {
		waitCtx, cancelWait := context.WithTimeout(ctx, p.cfg.RenderTimeout)
		_, err := page.Context(waitCtx).Element(waitFor)
		cancelWait()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			p.cfg.Logger.Warn("content marker not found, reading page as-is",
				"url", url, "selector", waitFor, "timeout", p.cfg.RenderTimeout)
		}
	}

	html, err := page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("reading DOM of %s: %w", url, err)
	}
	return html, nil
}

// Close shuts Chrome down. It is safe to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	var err error
	if p.b != nil {
		err = p.b.Close()
		p.b = nil
	}
	if p.lnch != nil {
		p.lnch.Cleanup()
		p.lnch = nil
	}
	return err
}
