package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Transport fetches pages through a headless browser. It stands in for the
// secondary HTTP client on sites whose challenge pages only settle after
// executing JavaScript.
type Transport struct {
	timeout time.Duration
	logger  *zap.Logger
	ctxPool sync.Pool
}

// Challenge markers that indicate the interstitial has not settled yet.
var challengeMarkers = []string{
	"Just a moment",
	"Attention Required",
	"Checking your browser",
	"cf-challenge",
}

func New(timeout time.Duration, logger *zap.Logger) *Transport {
	t := &Transport{timeout: timeout, logger: logger}
	t.ctxPool.New = func() interface{} {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", ""),
			chromedp.Flag("disable-dev-shm-usage", ""),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
		allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
		return allocCtx
	}
	return t
}

func (t *Transport) Name() string { return "browser" }

// Do navigates to the URL, waits for the challenge to settle, and returns
// the rendered document.
func (t *Transport) Do(ctx context.Context, method, url string, body []byte) (int, string, error) {
	if method != http.MethodGet {
		return 0, "", fmt.Errorf("browser transport supports GET only, got %s", method)
	}

	allocCtx := t.ctxPool.Get().(context.Context)
	defer t.ctxPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, t.timeout)
	defer cancelTimeout()

	var htmlContent string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		return 0, "", err
	}

	// The interstitial usually clears within a few seconds once the
	// browser has run its checks; poll the DOM until it does.
	for challenged(htmlContent) {
		select {
		case <-taskCtx.Done():
			return 0, "", fmt.Errorf("challenge did not settle for %s: %w", url, taskCtx.Err())
		case <-time.After(2 * time.Second):
		}
		if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &htmlContent)); err != nil {
			return 0, "", err
		}
	}

	t.logger.Debug("browser fetch complete", zap.String("url", url), zap.Int("bytes", len(htmlContent)))
	return http.StatusOK, htmlContent, nil
}

func challenged(html string) bool {
	for _, m := range challengeMarkers {
		if strings.Contains(html, m) {
			return true
		}
	}
	return false
}
