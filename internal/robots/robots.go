package robots

import (
	"context"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/user/retail-scraper/internal/fetch"
)

// Info carries the two things a scrape run needs from robots.txt: the
// advertised crawl-delay and any sitemap locations.
type Info struct {
	CrawlDelay time.Duration
	Sitemaps   []string
}

var (
	sitemapRe = regexp.MustCompile(`(?i)sitemap:\s*([^\r\n]+)`)
	urlRe     = regexp.MustCompile(`(?i)https?://\S+`)
	xmlRe     = regexp.MustCompile(`(?i)^(.+?\.xml(?:\.gz)?)`)
)

// Fetch retrieves and parses {base}/robots.txt. Failures are non-fatal:
// a missing or blocked robots file yields a zero Info and the caller falls
// back to {base}/sitemap.xml.
func Fetch(ctx context.Context, f *fetch.Fetcher, baseURL, agent string) Info {
	body, err := f.Get(ctx, strings.TrimRight(baseURL, "/")+"/robots.txt", 0)
	if err != nil {
		return Info{}
	}
	return Parse(body, agent)
}

// Parse extracts the crawl-delay for the given agent and all Sitemap
// entries. Sitemap lines are matched by regex so HTML-wrapped robots
// responses still yield usable URLs.
func Parse(body, agent string) Info {
	var info Info

	if data, err := robotstxt.FromString(body); err == nil {
		if g := data.FindGroup(agent); g != nil {
			info.CrawlDelay = g.CrawlDelay
		}
	}

	for _, m := range sitemapRe.FindAllStringSubmatch(body, -1) {
		if u := cleanSitemapURL(m[1]); u != "" {
			info.Sitemaps = append(info.Sitemaps, u)
		}
	}
	return info
}

// cleanSitemapURL recovers a usable URL from a Sitemap line that may carry
// HTML entities or trailing markup.
func cleanSitemapURL(raw string) string {
	decoded := html.UnescapeString(strings.TrimSpace(raw))

	found := urlRe.FindString(decoded)
	if found == "" {
		return ""
	}

	clean, _, _ := strings.Cut(found, "<")
	clean = strings.TrimRight(strings.TrimSpace(clean), ".,;")
	if m := xmlRe.FindStringSubmatch(clean); m != nil {
		clean = m[1]
	}
	return clean
}
