package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/domain/scrape"
	"github.com/feedsync/backend/internal/infrastructure/config"
	"github.com/feedsync/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const settlePollInterval = 250 * time.Millisecond

// Config drives one storefront session
type Config struct {
	LoginURL string
	// ListingURL is opened after login; empty keeps the post-login page
	ListingURL string
	Selectors  Selectors
	MaxPages   int
	PageDelay  time.Duration
	// SettleTimeout bounds the wait for a scripted next control to replace
	// the listing markup
	SettleTimeout time.Duration
	// LoggedIn decides from the post-submit URL whether login succeeded
	LoggedIn func(currentURL string) bool
}

// ConfigFromSettings maps the scrape section of the application config
func ConfigFromSettings(c config.ScrapeConfig) Config {
	return Config{
		LoginURL:   c.LoginURL,
		ListingURL: c.ListingURL,
		Selectors: Selectors{
			Username:     c.UsernameSelector,
			Password:     c.PasswordSelector,
			Submit:       c.SubmitSelector,
			Product:      c.ProductSelector,
			Name:         c.NameSelector,
			Price:        c.PriceSelector,
			Link:         c.LinkSelector,
			Image:        c.ImageSelector,
			SKU:          c.SKUSelector,
			SKUAttribute: c.SKUAttribute,
			Stock:        c.StockSelector,
			Next:         c.NextSelector,
		},
		MaxPages:      c.MaxPages,
		PageDelay:     c.PageDelay,
		SettleTimeout: c.NavigationTimeout,
	}
}

// DefaultLoggedIn treats any URL that is not a login or sign-in page as a
// successful login.
func DefaultLoggedIn(currentURL string) bool {
	u := strings.ToLower(currentURL)
	return !strings.Contains(u, "login") && !strings.Contains(u, "sign-in")
}

// Outcome is what a session produced. Listings are only set when the
// session completed.
type Outcome struct {
	Session  *scrape.Session
	Listings []Listing
	Skipped  int
}

// Controller runs the login and pagination state machine over a Browser
type Controller struct {
	browser Browser
	cfg     Config
}

// NewController creates a controller that owns browser and closes it when
// Run returns.
func NewController(browser Browser, cfg Config) *Controller {
	if cfg.LoggedIn == nil {
		cfg.LoggedIn = DefaultLoggedIn
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = defaultNavigationTimeout
	}
	return &Controller{browser: browser, cfg: cfg}
}

// Run logs in and walks the listing pages. A failed login yields an empty
// outcome in the Failed state and a LoginError.
func (c *Controller) Run(ctx context.Context, req scrape.Request) (out *Outcome, err error) {
	log := logger.L(ctx)
	out = &Outcome{Session: scrape.NewSession()}

	defer func() {
		if cerr := c.browser.Close(); cerr != nil {
			log.Warn("Failed to close browser", zap.Error(cerr))
		}
	}()

	defer func() {
		if err == nil {
			return
		}
		out.Listings = nil
		if !out.Session.State.IsTerminal() {
			_ = c.advance(ctx, out.Session, scrape.StateFailed)
		}
		log.Error("Scrape session failed",
			zap.String("stage", ingestion.Stage(err)),
			zap.Int("pages", out.Session.Pages),
			logger.MaskedError(err),
		)
	}()

	if err := c.login(ctx, out.Session, req); err != nil {
		return out, err
	}

	listings, skipped, err := c.paginate(ctx, out.Session, req.TestMode)
	if err != nil {
		return out, err
	}
	out.Listings = listings
	out.Skipped = skipped

	if err := c.advance(ctx, out.Session, scrape.StateCompleted); err != nil {
		return out, err
	}
	log.Info("Scrape session completed",
		zap.Int("pages", out.Session.Pages),
		zap.Int("listings", len(listings)),
		zap.Int("skipped", skipped),
	)
	return out, nil
}

func (c *Controller) advance(ctx context.Context, s *scrape.Session, to scrape.State) error {
	from := s.State
	if err := s.Advance(to); err != nil {
		return err
	}
	logger.L(ctx).Info("Scrape session transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}

func (c *Controller) login(ctx context.Context, s *scrape.Session, req scrape.Request) error {
	if err := c.advance(ctx, s, scrape.StateAuthenticating); err != nil {
		return err
	}

	loginURL := logger.MaskURL(c.cfg.LoginURL)
	fail := func(reason string, err error) error {
		return &ingestion.LoginError{URL: loginURL, Reason: reason, Err: err}
	}

	if req.Username == "" || req.Password == "" {
		return fail("credentials not provided", nil)
	}

	sel := c.cfg.Selectors
	if err := c.browser.Navigate(ctx, c.cfg.LoginURL); err != nil {
		return fail("login page unreachable", err)
	}
	if err := c.browser.WaitVisible(ctx, sel.Username); err != nil {
		return fail("username field not found", err)
	}
	// The values are never part of the returned errors
	if err := c.browser.SendKeys(ctx, sel.Username, req.Username); err != nil {
		return fail("could not fill username", err)
	}
	if err := c.browser.SendKeys(ctx, sel.Password, req.Password); err != nil {
		return fail("could not fill password", err)
	}
	if err := c.browser.ClickAndWait(ctx, sel.Submit); err != nil {
		return fail("submit did not navigate", err)
	}

	current, err := c.browser.CurrentURL(ctx)
	if err != nil {
		return fail("could not read post-login URL", err)
	}
	if !c.cfg.LoggedIn(current) {
		return fail("still on login page after submit", nil)
	}

	return c.advance(ctx, s, scrape.StateAuthenticated)
}

func (c *Controller) paginate(ctx context.Context, s *scrape.Session, testMode bool) ([]Listing, int, error) {
	log := logger.L(ctx)
	if err := c.advance(ctx, s, scrape.StatePaginating); err != nil {
		return nil, 0, err
	}

	sel := c.cfg.Selectors
	maxPages := c.cfg.MaxPages
	if testMode {
		maxPages = 1
	}

	if c.cfg.ListingURL != "" {
		if err := c.browser.Navigate(ctx, c.cfg.ListingURL); err != nil {
			return nil, 0, fmt.Errorf("open listing page %s: %w", logger.MaskURL(c.cfg.ListingURL), err)
		}
	}

	var (
		listings []Listing
		skipped  int
	)
	for page := 1; ; page++ {
		s.Pages = page

		if err := c.browser.WaitVisible(ctx, sel.Product); err != nil {
			if page == 1 || ctx.Err() != nil {
				return nil, 0, fmt.Errorf("page %d: product list not found: %w", page, err)
			}
			log.Warn("Product list missing, ending pagination", zap.Int("page", page), zap.Error(err))
			s.Pages = page - 1
			break
		}

		html, err := c.browser.HTML(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("page %d: read html: %w", page, err)
		}
		pageURL, err := c.browser.CurrentURL(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("page %d: read url: %w", page, err)
		}

		found, bad, err := ExtractListings(html, pageURL, sel, page)
		if err != nil {
			return nil, 0, fmt.Errorf("page %d: parse html: %w", page, err)
		}
		for _, e := range bad {
			log.Warn("Skipping malformed listing", zap.Int("page", e.Page), zap.Int("index", e.Index), zap.String("reason", e.Reason))
		}
		listings = append(listings, found...)
		skipped += len(bad)
		log.Info("Listing page extracted",
			zap.Int("page", page),
			zap.Int("listings", len(found)),
			zap.Int("skipped", len(bad)),
		)

		if page >= maxPages {
			break
		}

		next, ok, err := NextPage(html, pageURL, sel.Next)
		if err != nil {
			return nil, 0, fmt.Errorf("page %d: find next page: %w", page, err)
		}
		if !ok {
			break
		}

		if err := sleepCtx(ctx, c.cfg.PageDelay); err != nil {
			return nil, 0, err
		}

		changed := true
		if next != "" {
			err = c.browser.Navigate(ctx, next)
		} else {
			changed, err = c.clickNext(ctx, sel.Next, html)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("page %d: go to next page: %w", page+1, err)
		}
		if !changed {
			log.Warn("Next control left the page unchanged, ending pagination", zap.Int("page", page))
			break
		}
	}

	return listings, skipped, nil
}

// clickNext clicks a script-driven next control and polls until the page
// markup differs from before. It reports false if nothing changed within the
// settle timeout.
func (c *Controller) clickNext(ctx context.Context, selector, before string) (bool, error) {
	if err := c.browser.Click(ctx, selector); err != nil {
		return false, err
	}

	deadline := time.Now().Add(c.cfg.SettleTimeout)
	var lastErr error
	for {
		html, err := c.browser.HTML(ctx)
		switch {
		case err == nil && html != before:
			return true, nil
		case err != nil:
			// the script may be swapping the document
			lastErr = err
		}
		if !time.Now().Before(deadline) {
			return false, lastErr
		}
		if err := sleepCtx(ctx, min(settlePollInterval, c.cfg.SettleTimeout)); err != nil {
			return false, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsLoginFailure reports whether err came from the authentication step
func IsLoginFailure(err error) bool {
	var loginErr *ingestion.LoginError
	return errors.As(err, &loginErr)
}
