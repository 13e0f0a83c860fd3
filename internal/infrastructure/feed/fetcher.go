package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/infrastructure/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultFetchTimeout = 60 * time.Second
	defaultRetryDelay   = 2 * time.Second
	defaultMaxBodyBytes = 64 << 20
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptHeader        = "application/xml,text/xml,text/csv,application/octet-stream;q=0.9,*/*;q=0.8"
)

// ErrBodyTooLarge is wrapped in a FetchError when a feed exceeds the limit
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// Fetcher downloads supplier feeds. A failed attempt is retried once.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	retryDelay time.Duration
	maxBody    int64
	tracer     trace.Tracer
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithRetryDelay sets the pause before the second attempt
func WithRetryDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.retryDelay = d
	}
}

// WithMaxBodyBytes caps the accepted response size
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// NewFetcher creates a fetcher with a 60s timeout and a browser User-Agent
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:     &http.Client{Timeout: defaultFetchTimeout},
		userAgent:  defaultUserAgent,
		retryDelay: defaultRetryDelay,
		maxBody:    defaultMaxBodyBytes,
		tracer:     otel.Tracer("feedsync/feed"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsFetchable reports whether raw is an absolute http(s) URL
func IsFetchable(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch downloads rawURL. Inputs that are not http(s) URLs return an empty
// payload without error. Every log line and error carries the masked URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)
	masked := logger.MaskURL(rawURL)
	log := logger.L(ctx)

	if !IsFetchable(rawURL) {
		log.Warn("Feed location is not an http(s) URL, nothing fetched", zap.String("url", masked))
		return nil, nil
	}

	ctx, span := f.tracer.Start(ctx, "feed.fetch", trace.WithAttributes(attribute.String("url.masked", masked)))
	defer span.End()

	start := time.Now()
	body, err := f.get(ctx, rawURL, masked)

	var fetchErr *ingestion.FetchError
	if err != nil && errors.As(err, &fetchErr) && fetchErr.Retryable() && ctx.Err() == nil {
		log.Warn("Feed fetch failed, retrying once",
			zap.String("url", masked),
			zap.Duration("delay", f.retryDelay),
			logger.MaskedError(err),
		)
		if waitErr := sleepCtx(ctx, f.retryDelay); waitErr != nil {
			span.SetStatus(codes.Error, "cancelled")
			return nil, f.contextError(ctx, masked, waitErr)
		}
		span.AddEvent("retry")
		body, err = f.get(ctx, rawURL, masked)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ingestion.Stage(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int("feed.bytes", len(body)))
	log.Info("Feed fetched",
		zap.String("url", masked),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL, masked string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ingestion.FetchError{Kind: ingestion.FetchNetwork, URL: masked, Err: errors.New(logger.MaskString(err.Error()))}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, masked)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &ingestion.FetchError{Kind: ingestion.FetchStatus, StatusCode: resp.StatusCode, URL: masked}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, classifyTransportError(err, masked)
	}
	if int64(len(body)) > f.maxBody {
		return nil, &ingestion.FetchError{
			Kind: ingestion.FetchNetwork,
			URL:  masked,
			Err:  fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.maxBody),
		}
	}
	return body, nil
}

// classifyTransportError drops the *url.Error wrapper, which quotes the
// unmasked URL, and keeps its cause.
func classifyTransportError(err error, masked string) error {
	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		cause = urlErr.Err
	}

	kind := ingestion.FetchNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ingestion.FetchTimeout
	}
	return &ingestion.FetchError{Kind: kind, URL: masked, Err: cause}
}

func (f *Fetcher) contextError(ctx context.Context, masked string, err error) error {
	kind := ingestion.FetchNetwork
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = ingestion.FetchTimeout
	}
	return &ingestion.FetchError{Kind: kind, URL: masked, Err: err}
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
