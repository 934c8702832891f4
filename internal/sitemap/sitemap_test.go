package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/retail-scraper/internal/fetch"
)

const urlsetXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://www.example.com/desk-123456.htm</loc></url>
  <url><loc>https://www.example.com/chair-234567.htm</loc></url>
</urlset>`

const indexXML = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://www.example.com/sitemap_products_1.xml</loc></sitemap>
  <sitemap><loc>https://www.example.com/sitemap_products_2.xml</loc></sitemap>
</sitemapindex>`

func TestParseURLSet(t *testing.T) {
	doc := Parse([]byte(urlsetXML))
	require.Equal(t, KindURLSet, doc.Kind)
	require.Equal(t, []string{
		"https://www.example.com/desk-123456.htm",
		"https://www.example.com/chair-234567.htm",
	}, doc.Locs)
}

func TestParseIndex(t *testing.T) {
	doc := Parse([]byte(indexXML))
	require.Equal(t, KindIndex, doc.Kind)
	require.Len(t, doc.Locs, 2)
}

func TestParseGzipped(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(urlsetXML))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	doc := Parse(buf.Bytes())
	require.Equal(t, KindURLSet, doc.Kind)
	require.Len(t, doc.Locs, 2)
}

func TestParseHTMLWrapped(t *testing.T) {
	wrapped := `<html><head></head><body><pre>` +
		strings.ReplaceAll(strings.ReplaceAll(urlsetXML, "<", "&lt;"), ">", "&gt;") +
		`</pre></body></html>`

	doc := Parse([]byte(wrapped))
	require.Equal(t, KindURLSet, doc.Kind)
	require.Len(t, doc.Locs, 2)
}

func TestParseRegexFallback(t *testing.T) {
	// Truncated document the XML parser cannot load end to end.
	broken := `<urlset><url><loc>https://www.example.com/a-1.htm</loc></url><url><loc>https://www.example.com/b-2.htm`
	doc := Parse([]byte(broken))
	require.NotEqual(t, KindInvalid, doc.Kind)
	require.Contains(t, doc.Locs, "https://www.example.com/a-1.htm")
}

func TestParseInvalid(t *testing.T) {
	doc := Parse([]byte("<html><body>404</body></html>"))
	require.Equal(t, KindInvalid, doc.Kind)
}

func TestLooksLikeSitemap(t *testing.T) {
	require.True(t, LooksLikeSitemap("https://www.example.com/sitemap_products_1.xml"))
	require.True(t, LooksLikeSitemap("https://www.example.com/Sitemap-2.XML"))
	require.False(t, LooksLikeSitemap("https://www.example.com/desk-123456.htm"))
}

func newTestWalker(t *testing.T, baseURL string) *Walker {
	t.Helper()
	clients := fetch.NewClientSetWith(fetch.NewPrimaryClient(5*time.Second), nil)
	f := fetch.New(clients, fetch.NewLimiter(0, 1000), nil, zap.NewNop())
	f.SetRetryDelays([]time.Duration{time.Millisecond})
	return NewWalker(f, func(u string) bool { return strings.HasSuffix(u, ".htm") }, 0, zap.NewNop())
}

func TestWalkerDiscoverNested(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset>
  <url><loc>%[1]s/a-1.htm</loc></url>
  <url><loc>%[1]s/b-2.htm</loc></url>
  <url><loc>%[1]s/c-3.htm</loc></url>
  <url><loc>%[1]s/sitemap_extra.xml</loc></url>
</urlset>`, srv.URL)
	})
	mux.HandleFunc("/sitemap_extra.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset>
  <url><loc>%[1]s/d-4.htm</loc></url>
  <url><loc>%[1]s/a-1.htm</loc></url>
</urlset>`, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	w := newTestWalker(t, srv.URL)
	urls := w.Discover(context.Background(), []string{srv.URL + "/sitemap.xml"}, 0)

	// 3 products from the root plus 1 new one from the nested sitemap; the
	// duplicate is dropped.
	require.Len(t, urls, 4)
}

func TestWalkerRootsOffsetLimit(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap_index.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<sitemapindex>
  <sitemap><loc>%[1]s/sm-1.xml</loc></sitemap>
  <sitemap><loc>%[1]s/sm-2.xml</loc></sitemap>
  <sitemap><loc>%[1]s/sm-3.xml</loc></sitemap>
  <sitemap><loc>%[1]s/sm-4.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	w := newTestWalker(t, srv.URL)
	roots := w.Roots(context.Background(), []string{srv.URL + "/sitemap_index.xml"}, 1, 2, 0)
	require.Equal(t, []string{srv.URL + "/sm-2.xml", srv.URL + "/sm-3.xml"}, roots)
}

func TestWalkerMaxPerSitemap(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset>
  <url><loc>%[1]s/a-1.htm</loc></url>
  <url><loc>%[1]s/b-2.htm</loc></url>
  <url><loc>%[1]s/c-3.htm</loc></url>
</urlset>`, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	clients := fetch.NewClientSetWith(fetch.NewPrimaryClient(5*time.Second), nil)
	f := fetch.New(clients, fetch.NewLimiter(0, 1000), nil, zap.NewNop())
	w := NewWalker(f, nil, 2, zap.NewNop())

	urls := w.Discover(context.Background(), []string{srv.URL + "/sitemap.xml"}, 0)
	require.Len(t, urls, 2)
}

func TestWalkerSkipsBrokenSitemap(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap_index.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<sitemapindex>
  <sitemap><loc>%[1]s/missing.xml</loc></sitemap>
  <sitemap><loc>%[1]s/good.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
	})
	mux.HandleFunc("/missing.xml", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/good.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset><url><loc>%s/a-1.htm</loc></url></urlset>`, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	w := newTestWalker(t, srv.URL)
	urls := w.Discover(context.Background(), []string{srv.URL + "/sitemap_index.xml"}, 0)
	require.Len(t, urls, 1)
}

func TestWalkerFetchesLeafRootOnce(t *testing.T) {
	var hits atomic.Int32
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprintf(w, `<urlset><url><loc>%s/a-1.htm</loc></url></urlset>`, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	w := newTestWalker(t, srv.URL)
	roots := w.Roots(context.Background(), []string{srv.URL + "/sitemap.xml"}, 0, 0, 0)
	require.Equal(t, []string{srv.URL + "/sitemap.xml"}, roots)

	urls := w.Discover(context.Background(), roots, 0)
	require.Len(t, urls, 1)
	require.Equal(t, int32(1), hits.Load())
}

func TestWalkerCapKeepsNestedSitemaps(t *testing.T) {
	// The nested sitemap loc sits after the product cap is hit; it must
	// still be followed.
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset>
  <url><loc>%[1]s/a-1.htm</loc></url>
  <url><loc>%[1]s/b-2.htm</loc></url>
  <url><loc>%[1]s/sitemap_more.xml</loc></url>
</urlset>`, srv.URL)
	})
	mux.HandleFunc("/sitemap_more.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset><url><loc>%s/c-3.htm</loc></url></urlset>`, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	clients := fetch.NewClientSetWith(fetch.NewPrimaryClient(5*time.Second), nil)
	f := fetch.New(clients, fetch.NewLimiter(0, 1000), nil, zap.NewNop())
	w := NewWalker(f, func(u string) bool { return strings.HasSuffix(u, ".htm") }, 1, zap.NewNop())

	urls := w.Discover(context.Background(), []string{srv.URL + "/sitemap.xml"}, 0)
	// One product per document under the cap, from both sitemaps.
	require.ElementsMatch(t, []string{srv.URL + "/a-1.htm", srv.URL + "/c-3.htm"}, urls)
}

func TestCategoryLinks(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/office-desks", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
  <a href="/oak-desk-123456.htm">Oak Desk</a>
  <a href="/about-us">About</a>
  <a href="/oak-desk-123456.htm">Oak Desk again</a>
</body></html>`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	w := newTestWalker(t, srv.URL)
	urls := w.CategoryLinks(context.Background(), []string{srv.URL + "/office-desks"}, 0)
	require.Equal(t, []string{srv.URL + "/oak-desk-123456.htm"}, urls)
}
