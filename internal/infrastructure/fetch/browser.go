package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/macrolens/shelfprice/internal/logger"
	"golang.org/x/time/rate"
)

// networkIdleWindow is how long the page must stay quiet to count as idle
const networkIdleWindow = 500 * time.Millisecond

// blockedResources are skipped when FetchOptions.BlockResources is set
var blockedResources = []proto.NetworkResourceType{
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeMedia,
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeStylesheet,
}

// BrowserConfig controls the Chromium instance behind BrowserFetcher
type BrowserConfig struct {
	Headless  bool
	NoSandbox bool
	BinPath   string
	UserAgent string
	Limits    Limits
}

// BrowserFetcher renders search pages in a headless Chromium so that
// script-built product grids are present in the returned markup.
type BrowserFetcher struct {
	browser     *rod.Browser
	userAgent   string
	rateLimiter *rate.Limiter
}

// NewBrowserFetcher launches Chromium and connects to it
func NewBrowserFetcher(cfg BrowserConfig) (*BrowserFetcher, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox).
		Leakless(false)
	if cfg.BinPath != "" {
		l = l.Bin(cfg.BinPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	logger.Info().Str("control_url", controlURL).Bool("headless", cfg.Headless).Msg("browser started")

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &BrowserFetcher{
		browser:     browser,
		userAgent:   userAgent,
		rateLimiter: cfg.Limits.limiter(),
	}, nil
}

// Close shuts the browser down
func (f *BrowserFetcher) Close() error {
	return f.browser.Close()
}

// Fetch opens url in a fresh tab, waits for opts.WaitSelector, the
// opts.NoResultsSelector marker or the load event, and returns the rendered
// HTML. Headless mode is fixed by BrowserConfig at launch.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string, opts domain.FetchOptions) ([]byte, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, classify(ctx, fmt.Errorf("rate limiter: %w", err))
	}

	page, err := f.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("open tab: %w", err))
	}
	// teardown must still reach Chromium after ctx has expired
	detached := page.Context(context.Background())
	defer func() {
		if err := detached.Close(); err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("failed to close tab")
		}
	}()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      f.userAgent,
		AcceptLanguage: "nl-NL,nl;q=0.9",
	}); err != nil {
		return nil, classify(ctx, fmt.Errorf("set user agent: %w", err))
	}

	if opts.BlockResources {
		router := detached.HijackRequests()
		for _, t := range blockedResources {
			if err := router.Add("*", t, func(h *rod.Hijack) {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			}); err != nil {
				return nil, fmt.Errorf("%w: block resources: %v", domain.ErrFetchFailed, err)
			}
		}
		go router.Run()
		defer func() {
			if err := router.Stop(); err != nil {
				logger.Warn().Err(err).Str("url", url).Msg("failed to stop request router")
			}
		}()
	}

	waitIdle := func() {}
	if opts.NetworkIdle {
		waitIdle = page.WaitRequestIdle(networkIdleWindow, nil, nil, nil)
	}

	start := time.Now()
	if err := page.Navigate(url); err != nil {
		return nil, classify(ctx, fmt.Errorf("navigate: %w", err))
	}
	waitIdle()

	if err := waitRendered(page, opts); err != nil {
		return nil, classify(ctx, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("read html: %w", err))
	}

	logger.Debug().Str("url", url).Int("bytes", len(html)).Dur("elapsed", time.Since(start)).Msg("rendered page")
	return []byte(html), nil
}

// waitRendered blocks until the product grid or the empty-result marker is
// in the DOM. Without a wait selector it falls back to the load event.
func waitRendered(page *rod.Page, opts domain.FetchOptions) error {
	if opts.WaitSelector == "" {
		if err := page.WaitLoad(); err != nil {
			return fmt.Errorf("wait load: %w", err)
		}
		return nil
	}
	if opts.NoResultsSelector == "" {
		if _, err := page.Element(opts.WaitSelector); err != nil {
			return fmt.Errorf("wait for %q: %w", opts.WaitSelector, err)
		}
		return nil
	}

	empty := false
	_, err := page.Race().
		Element(opts.WaitSelector).
		Element(opts.NoResultsSelector).
		Handle(func(*rod.Element) error {
			empty = true
			return nil
		}).
		Do()
	if err != nil {
		return fmt.Errorf("wait for %q or %q: %w", opts.WaitSelector, opts.NoResultsSelector, err)
	}
	if empty {
		logger.Debug().Str("selector", opts.NoResultsSelector).Msg("search page reports no results")
	}
	return nil
}
