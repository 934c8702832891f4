package sitemap

import (
	"bytes"
	"compress/gzip"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Kind classifies a sitemap document.
type Kind int

const (
	KindInvalid Kind = iota
	KindIndex        // <sitemapindex>, locs point to child sitemaps
	KindURLSet       // <urlset>, locs point to pages
)

// Doc is a parsed sitemap document.
type Doc struct {
	Kind Kind
	Locs []string
}

var (
	locRe = regexp.MustCompile(`(?is)<loc>\s*(.*?)\s*</loc>`)
	preRe = regexp.MustCompile(`(?is)<pre[^>]*>(.*?)</pre>`)

	// Chromium's XML viewer and some CDN error pages wrap the real XML in
	// HTML; these pull the document back out.
	wrappedXMLRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)(<\?xml[^>]*\?>\s*<sitemapindex[\s\S]*?</sitemapindex>)`),
		regexp.MustCompile(`(?is)(<\?xml[^>]*\?>\s*<urlset[\s\S]*?</urlset>)`),
		regexp.MustCompile(`(?is)(<sitemapindex[\s\S]*?</sitemapindex>)`),
		regexp.MustCompile(`(?is)(<urlset[\s\S]*?</urlset>)`),
	}
)

// Parse classifies a sitemap payload and extracts its <loc> entries.
// Gzipped payloads are decompressed, HTML-wrapped XML is unwrapped, and a
// regex scan covers documents too malformed for the XML parser.
func Parse(body []byte) Doc {
	body = maybeGunzip(body)
	body = unwrap(body)

	if doc, err := xmlquery.Parse(bytes.NewReader(body)); err == nil {
		if root := xmlquery.FindOne(doc, "//sitemapindex"); root != nil {
			return Doc{Kind: KindIndex, Locs: innerTexts(root, "//sitemap/loc")}
		}
		if root := xmlquery.FindOne(doc, "//urlset"); root != nil {
			return Doc{Kind: KindURLSet, Locs: innerTexts(root, "//url/loc")}
		}
	}

	// Regex fallback for payloads the parser rejects.
	var locs []string
	for _, m := range locRe.FindAllSubmatch(body, -1) {
		if loc := strings.TrimSpace(html.UnescapeString(string(m[1]))); loc != "" {
			locs = append(locs, loc)
		}
	}
	if len(locs) == 0 {
		return Doc{Kind: KindInvalid}
	}
	kind := KindURLSet
	if bytes.Contains(body, []byte("<sitemapindex")) {
		kind = KindIndex
	}
	return Doc{Kind: kind, Locs: locs}
}

// LooksLikeSitemap reports whether a loc entry points at another sitemap
// document rather than a page.
func LooksLikeSitemap(u string) bool {
	l := strings.ToLower(u)
	return strings.Contains(l, "sitemap") && strings.Contains(l, ".xml")
}

func innerTexts(root *xmlquery.Node, path string) []string {
	nodes := xmlquery.Find(root, path)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if text := strings.TrimSpace(n.InnerText()); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func maybeGunzip(body []byte) []byte {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body
	}
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return body
	}
	defer gz.Close()
	plain, err := io.ReadAll(gz)
	if err != nil {
		return body
	}
	return plain
}

func unwrap(body []byte) []byte {
	trimmed := bytes.TrimPrefix(bytes.TrimSpace(body), []byte("\xEF\xBB\xBF"))
	lower := bytes.ToLower(trimmed)
	if !bytes.Contains(lower, []byte("<html")) {
		return trimmed
	}

	if m := preRe.FindSubmatch(trimmed); m != nil {
		if inner := strings.TrimSpace(html.UnescapeString(string(m[1]))); inner != "" {
			return []byte(inner)
		}
	}
	for _, re := range wrappedXMLRes {
		if m := re.FindSubmatch(trimmed); m != nil {
			return m[1]
		}
	}
	return trimmed
}
