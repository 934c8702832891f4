package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/retail-scraper/internal/monitoring"
)

var (
	// ErrNotFound signals a 404; the URL is never retried.
	ErrNotFound = errors.New("url not found")
	// ErrUnavailable signals that every retry attempt was consumed.
	ErrUnavailable = errors.New("content unavailable")
)

// DefaultRetryDelays is the backoff table; its length bounds the number of
// attempts per URL.
var DefaultRetryDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// Fetcher retrieves URL content while tolerating anti-bot defenses. Every
// failure mode is consumed internally: callers get either a body or a
// sentinel error, never a transport panic.
type Fetcher struct {
	clients     *ClientSet
	limiter     *Limiter
	retryDelays []time.Duration
	signatures  [][]string
	metrics     *monitoring.Metrics
	logger      *zap.Logger
}

func New(clients *ClientSet, limiter *Limiter, m *monitoring.Metrics, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		clients:     clients,
		limiter:     limiter,
		retryDelays: DefaultRetryDelays,
		signatures: [][]string{
			{"Cloudflare", "Attention Required"},
			{"Just a moment", "cf-"},
		},
		metrics: m,
		logger:  logger,
	}
}

// SetRetryDelays replaces the backoff table.
func (f *Fetcher) SetRetryDelays(delays []time.Duration) {
	if len(delays) > 0 {
		f.retryDelays = delays
	}
}

// AddBlockSignature registers a set of markers that must all appear in a
// body for it to count as a block page.
func (f *Fetcher) AddBlockSignature(markers ...string) {
	if len(markers) > 0 {
		f.signatures = append(f.signatures, markers)
	}
}

// Requests reports how many requests have been paced through the limiter.
func (f *Fetcher) Requests() int { return f.limiter.Requests() }

// Get fetches a URL, honoring the site's crawl-delay hint when non-zero.
func (f *Fetcher) Get(ctx context.Context, url string, hint time.Duration) (string, error) {
	return f.do(ctx, http.MethodGet, url, nil, hint)
}

// Post sends a JSON payload through the same retry machinery.
func (f *Fetcher) Post(ctx context.Context, url string, payload []byte, hint time.Duration) (string, error) {
	return f.do(ctx, http.MethodPost, url, payload, hint)
}

// GetJSON fetches a URL and unmarshals the body.
func (f *Fetcher) GetJSON(ctx context.Context, url string, hint time.Duration, v any) error {
	body, err := f.Get(ctx, url, hint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("parse json from %s: %w", url, err)
	}
	return nil
}

func (f *Fetcher) do(ctx context.Context, method, url string, payload []byte, hint time.Duration) (string, error) {
	for attempt := 0; attempt < len(f.retryDelays); attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		f.limiter.Wait(hint)
		client := f.clients.ForAttempt(attempt)

		status, body, err := client.Do(ctx, method, url, payload)
		f.metrics.IncRequest(client.Name(), status)

		switch {
		case err != nil:
			f.logger.Warn("request error",
				zap.String("url", url),
				zap.String("client", client.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			f.sleep(ctx, f.retryDelays[attempt], 0)

		case status == http.StatusOK && body != "" && !f.blocked(body):
			return body, nil

		case status == http.StatusNotFound:
			f.logger.Info("url not found", zap.String("url", url))
			return "", ErrNotFound

		case status == http.StatusForbidden ||
			status == http.StatusTooManyRequests ||
			status == http.StatusServiceUnavailable:
			f.logger.Warn("blocked or rate limited",
				zap.String("url", url),
				zap.Int("status", status),
				zap.Int("attempt", attempt),
				zap.Duration("delay", f.retryDelays[attempt]))
			f.sleep(ctx, f.retryDelays[attempt], time.Second)

		default:
			// Covers unexpected statuses plus 200s that are empty or carry
			// a block-page body. Both are treated as retryable: an
			// ambiguous empty response may be a challenge page, and
			// discarding it as "no product" silently drops inventory.
			f.logger.Warn("unusable response",
				zap.String("url", url),
				zap.Int("status", status),
				zap.Int("attempt", attempt))
			f.sleep(ctx, f.retryDelays[attempt], 0)
		}
	}

	f.logger.Warn("retries exhausted", zap.String("url", url))
	return "", ErrUnavailable
}

func (f *Fetcher) blocked(body string) bool {
	for _, markers := range f.signatures {
		hit := true
		for _, m := range markers {
			if !strings.Contains(body, m) {
				hit = false
				break
			}
		}
		if hit {
			return true
		}
	}
	return false
}

func (f *Fetcher) sleep(ctx context.Context, d, jitterMax time.Duration) {
	if jitterMax > 0 {
		d += time.Duration(rand.Float64() * float64(jitterMax))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
