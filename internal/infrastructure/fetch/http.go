package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/macrolens/shelfprice/internal/logger"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps how much of a search page is read into memory
const maxBodyBytes = 10 << 20

// DefaultUserAgent mimics a desktop browser; retailers reject unknown agents
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Limits throttles requests across every source sharing a fetcher
type Limits struct {
	RatePerSecond float64
	Burst         int
}

func (l Limits) limiter() *rate.Limiter {
	if l.RatePerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := l.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(l.RatePerSecond), burst)
}

// HTTPFetcher loads server-rendered markup with plain GET requests.
// It cannot run scripts, so wait selectors are not honoured.
type HTTPFetcher struct {
	httpClient  *http.Client
	userAgent   string
	rateLimiter *rate.Limiter
}

// NewHTTPFetcher creates a fetcher sharing one rate limiter between sources
func NewHTTPFetcher(userAgent string, limits Limits) *HTTPFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPFetcher{
		httpClient:  &http.Client{},
		userAgent:   userAgent,
		rateLimiter: limits.limiter(),
	}
}

// Fetch executes a single GET; retries are left to the caller
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, opts domain.FetchOptions) ([]byte, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, classify(ctx, fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", domain.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "nl-NL,nl;q=0.9,en;q=0.8")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("fetch request failed")
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		logger.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("unexpected fetch status")
		return nil, fmt.Errorf("%w: status %d from %s", domain.ErrFetchFailed, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("reading body: %w", err))
	}

	logger.Debug().Str("url", url).Int("bytes", len(body)).Dur("elapsed", time.Since(start)).Msg("fetched page")
	return body, nil
}

// classify maps transport errors onto ErrFetchTimeout or ErrFetchFailed
func classify(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
}
