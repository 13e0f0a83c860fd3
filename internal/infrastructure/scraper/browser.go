package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultNavigationTimeout = 30 * time.Second

// Browser is the subset of browser automation the session controller needs.
// Every call blocks until the page settles or the call times out.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, value string) error
	// ClickAndWait clicks the element and waits for the navigation it triggers
	ClickAndWait(ctx context.Context, selector string) error
	// Click clicks the element without waiting for a new document
	Click(ctx context.Context, selector string) error
	CurrentURL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}

// ChromeConfig configures the headless Chrome instance
type ChromeConfig struct {
	Headless  bool
	NoSandbox bool
	// RemoteURL is the DevTools websocket URL of an already running browser.
	// If empty, a local Chrome is launched.
	RemoteURL string
	UserAgent string
	// Timeout bounds each individual browser call
	Timeout time.Duration
	Logger  *zap.Logger
}

// ChromeBrowser drives Chrome through the DevTools protocol
type ChromeBrowser struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	closeOnce   sync.Once
}

// NewChromeBrowser starts (or attaches to) a browser. The browser lives until
// Close is called or parent is cancelled.
func NewChromeBrowser(parent context.Context, cfg ChromeConfig) (*ChromeBrowser, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultNavigationTimeout
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-first-run", true),
			chromedp.Flag("disable-default-apps", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-sync", true),
			chromedp.Flag("disable-translate", true),
			chromedp.WindowSize(1366, 900),
		)
		if cfg.NoSandbox {
			opts = append(opts, chromedp.Flag("no-sandbox", true))
		}
		if cfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, opts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			log.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}),
	)

	b := &ChromeBrowser{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		timeout:     cfg.Timeout,
	}

	// The first Run allocates the browser and must use the long-lived tab
	// context, not a per-call timeout.
	if err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-ZA,en;q=0.9"}),
	); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return b, nil
}

// run executes actions on the tab, bounded by the per-call timeout and by
// the caller's context.
func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

func (b *ChromeBrowser) WaitVisible(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (b *ChromeBrowser) SendKeys(ctx context.Context, selector, value string) error {
	return b.run(ctx,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (b *ChromeBrowser) ClickAndWait(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	_, err := chromedp.RunResponse(runCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
	return err
}

func (b *ChromeBrowser) Click(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (b *ChromeBrowser) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	err := b.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (b *ChromeBrowser) HTML(ctx context.Context) (string, error) {
	var html string
	err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Close shuts the tab and the browser process. It is safe to call twice.
func (b *ChromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.tabCancel()
		b.allocCancel()
	})
	return nil
}

var _ Browser = (*ChromeBrowser)(nil)
