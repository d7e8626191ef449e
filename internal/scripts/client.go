package scripts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// DefaultMaxBytes is the largest script body accepted (1 MiB).
const DefaultMaxBytes int64 = 1 << 20

// DefaultBaseURL serves raw paste bodies by hash.
const DefaultBaseURL = "https://pastebin.com/raw"

// ClientConfig configures a Client. Zero values take defaults.
type ClientConfig struct {
	BaseURL  string
	MaxBytes int64
	Timeout  time.Duration
	Retries  int
	RPS      float64
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
}

// Client downloads script bodies over HTTP.
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	baseURL  string
	maxBytes int64
	log      *zap.Logger
	metrics  *monitoring.Metrics
}

// NewClient creates a fetch client with bounded retries, a circuit breaker
// and an optional request rate.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	log := logging.OrNop(cfg.Logger)

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "modbridge/1.0").
		SetHeader("Accept", "text/plain, */*")

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	breaker := resilience.New("script-fetch", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Client{
		resty:    restyClient,
		limiter:  limiter,
		breaker:  breaker,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes: cfg.MaxBytes,
		log:      log,
		metrics:  cfg.Metrics,
	}
}

// countsAsHealthy keeps caller-side problems from tripping the breaker.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code < 500 && status.Code != 429
	}
	return errors.Is(err, ErrTooLarge) ||
		errors.Is(err, ErrEmpty) ||
		errors.Is(err, ErrNotText) ||
		errors.Is(err, context.Canceled)
}

// MaxBytes returns the size ceiling in bytes.
func (c *Client) MaxBytes() int64 {
	return c.maxBytes
}

// Breaker exposes the circuit breaker guarding the upstream.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// URL returns the address a hash is fetched from.
func (c *Client) URL(hash string) string {
	return c.baseURL + "/" + url.PathEscape(hash)
}

// Fetch downloads the script body for hash. Every failure wraps
// types.ErrFetch.
func (c *Client) Fetch(ctx context.Context, hash string) (string, error) {
	if strings.TrimSpace(hash) == "" {
		return "", fmt.Errorf("%w: empty hash", types.ErrFetch)
	}

	timer := monitoring.NewTimer(c.metrics)
	src, err := resilience.Do(c.breaker, func() (string, error) {
		return c.fetch(ctx, hash)
	})
	switch {
	case err == nil:
		timer.StopFetch("ok")
		return src, nil
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		timer.StopFetch("rejected")
		return "", fmt.Errorf("%w: %s: %w", types.ErrFetch, hash, err)
	default:
		timer.StopFetch(fetchResult(err))
		return "", err
	}
}

func (c *Client) fetch(ctx context.Context, hash string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit: %w", types.ErrFetch, err)
	}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(c.URL(hash))
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %w", types.ErrFetch, hash, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return "", &StatusError{Hash: hash, Code: code}
	}
	if resp.RawResponse != nil && resp.RawResponse.ContentLength > c.maxBytes {
		return "", fmt.Errorf("%s: %w (%d bytes)", hash, ErrTooLarge, resp.RawResponse.ContentLength)
	}

	raw, err := io.ReadAll(io.LimitReader(body, c.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", types.ErrFetch, hash, err)
	}
	if int64(len(raw)) > c.maxBytes {
		return "", fmt.Errorf("%s: %w", hash, ErrTooLarge)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", fmt.Errorf("%s: %w", hash, ErrEmpty)
	}

	src, err := decodeText(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", hash, err)
	}
	c.log.Debug("script fetched", zap.String("hash", hash), zap.Int("bytes", len(raw)))
	return src, nil
}

// decodeText rejects binary payloads and transcodes legacy charsets to UTF-8.
func decodeText(raw []byte) (string, error) {
	if !isText(raw) {
		return "", ErrNotText
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	best, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotText, err)
	}
	r, err := charset.NewReaderLabel(best.Charset, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: charset %s: %v", ErrNotText, best.Charset, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: transcode %s: %v", ErrNotText, best.Charset, err)
	}
	return string(out), nil
}

func isText(raw []byte) bool {
	for m := mimetype.Detect(raw); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func fetchResult(err error) string {
	switch {
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrEmpty):
		return "empty"
	case errors.Is(err, ErrNotText):
		return "not_text"
	default:
		return "error"
	}
}
