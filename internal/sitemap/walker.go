package sitemap

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/user/retail-scraper/internal/fetch"
)

// Walker discovers product URLs by walking sitemap documents breadth-first.
// A failed or malformed sitemap is logged and skipped; it never aborts the
// walk.
type Walker struct {
	fetcher       *fetch.Fetcher
	filter        func(string) bool
	maxPerSitemap int
	logger        *zap.Logger

	mu   sync.Mutex
	docs map[string]Doc
}

// NewWalker builds a walker. filter decides which leaf URLs count as
// product pages; maxPerSitemap caps how many URLs each sitemap may
// contribute (0 = unlimited).
func NewWalker(f *fetch.Fetcher, filter func(string) bool, maxPerSitemap int, logger *zap.Logger) *Walker {
	return &Walker{
		fetcher:       f,
		filter:        filter,
		maxPerSitemap: maxPerSitemap,
		logger:        logger,
		docs:          map[string]Doc{},
	}
}

// load fetches and parses a sitemap document, remembering the result so a
// URL classified by Roots is not fetched again by Discover.
func (w *Walker) load(ctx context.Context, url string, hint time.Duration) (Doc, bool) {
	w.mu.Lock()
	doc, ok := w.docs[url]
	w.mu.Unlock()
	if ok {
		return doc, true
	}

	body, err := w.fetcher.Get(ctx, url, hint)
	if err != nil {
		w.logger.Warn("sitemap unavailable", zap.String("url", url), zap.Error(err))
		return Doc{}, false
	}
	doc = Parse([]byte(body))

	w.mu.Lock()
	w.docs[url] = doc
	w.mu.Unlock()
	return doc, true
}

// Roots expands the given sitemap URLs one level: index documents are
// replaced by their children, leaf sitemaps kept as-is. The offset/limit
// pair selects a chunk of the expanded list for sharded runs (limit 0 =
// no cap).
func (w *Walker) Roots(ctx context.Context, rootURLs []string, offset, limit int, hint time.Duration) []string {
	var expanded []string
	seen := map[string]bool{}

	add := func(u string) {
		u = strings.TrimSpace(u)
		if u != "" && !seen[u] {
			seen[u] = true
			expanded = append(expanded, u)
		}
	}

	for _, root := range rootURLs {
		doc, ok := w.load(ctx, root, hint)
		if !ok {
			continue
		}
		switch doc.Kind {
		case KindIndex:
			for _, loc := range doc.Locs {
				add(loc)
			}
		case KindURLSet:
			add(root)
		default:
			w.logger.Warn("unparseable sitemap root", zap.String("url", root))
		}
	}

	if offset >= len(expanded) {
		return nil
	}
	expanded = expanded[offset:]
	if limit > 0 && limit < len(expanded) {
		expanded = expanded[:limit]
	}
	return expanded
}

// Discover walks the given sitemaps breadth-first and returns the unique
// product URLs they reference. Nested sitemaps are followed; each document
// is fetched once.
func (w *Walker) Discover(ctx context.Context, roots []string, hint time.Duration) []string {
	queue := append([]string(nil), roots...)
	visited := map[string]bool{}
	seenProducts := map[string]bool{}
	var products []string

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return products
		}

		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		doc, ok := w.load(ctx, current, hint)
		if !ok {
			continue
		}
		if doc.Kind == KindInvalid {
			w.logger.Warn("unparseable sitemap", zap.String("url", current))
			continue
		}

		collected := 0
		for _, loc := range doc.Locs {
			// Nested sitemaps are enqueued even once the product cap is
			// reached; the cap only limits what this document contributes.
			if doc.Kind == KindIndex || LooksLikeSitemap(loc) {
				queue = append(queue, loc)
				continue
			}
			if w.filter != nil && !w.filter(loc) {
				continue
			}
			if seenProducts[loc] {
				continue
			}
			if w.maxPerSitemap > 0 && collected >= w.maxPerSitemap {
				continue
			}
			seenProducts[loc] = true
			products = append(products, loc)
			collected++
		}

		w.logger.Info("sitemap processed",
			zap.String("url", current),
			zap.Int("locs", len(doc.Locs)),
			zap.Int("collected", collected))
	}

	return products
}

// CategoryLinks scans category pages for product links, used as a fallback
// when the sitemaps yield nothing.
func (w *Walker) CategoryLinks(ctx context.Context, categoryURLs []string, hint time.Duration) []string {
	seen := map[string]bool{}
	var products []string

	for _, catURL := range categoryURLs {
		body, err := w.fetcher.Get(ctx, catURL, hint)
		if err != nil {
			w.logger.Warn("category page unavailable", zap.String("url", catURL), zap.Error(err))
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			w.logger.Warn("category page unparseable", zap.String("url", catURL), zap.Error(err))
			continue
		}
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			abs := resolveRef(catURL, href)
			if abs == "" || seen[abs] {
				return
			}
			if w.filter != nil && !w.filter(abs) {
				return
			}
			seen[abs] = true
			products = append(products, abs)
		})
	}

	return products
}

func resolveRef(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	b := strings.TrimRight(base, "/")
	if i := strings.Index(b, "://"); i >= 0 {
		if j := strings.Index(b[i+3:], "/"); j >= 0 {
			b = b[:i+3+j]
		}
	}
	if strings.HasPrefix(href, "/") {
		return b + href
	}
	return b + "/" + href
}
