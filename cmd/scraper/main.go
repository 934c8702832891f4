package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/user/retail-scraper/internal/api"
	"github.com/user/retail-scraper/internal/browser"
	"github.com/user/retail-scraper/internal/config"
	"github.com/user/retail-scraper/internal/domain"
	"github.com/user/retail-scraper/internal/extract"
	"github.com/user/retail-scraper/internal/fetch"
	"github.com/user/retail-scraper/internal/monitoring"
	"github.com/user/retail-scraper/internal/pipeline"
	"github.com/user/retail-scraper/internal/robots"
	"github.com/user/retail-scraper/internal/sink"
	"github.com/user/retail-scraper/internal/sitemap"
)

const userAgent = "retail-scraper"

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()

	// Optional metrics endpoint for long chunked runs.
	var server *api.Server
	if cfg.MetricsAddr != "" {
		server = api.NewServer(cfg.MetricsAddr, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	// Assemble the fetcher.
	timeout := time.Duration(cfg.HTTPTimeout) * time.Second
	clients := fetch.NewClientSet(timeout)
	if cfg.UseBrowser {
		clients = fetch.NewClientSetWith(
			fetch.NewPrimaryClient(timeout),
			browser.New(timeout, logger),
		)
	}
	limiter := fetch.NewLimiter(time.Duration(cfg.RequestDelay*float64(time.Second)), cfg.LongPauseEvery)
	fetcher := fetch.New(clients, limiter, metrics, logger)

	profile, err := extract.ForSite(cfg.SiteProfile, cfg.BaseURL, cfg.GraphQLURL)
	if err != nil {
		logger.Fatal("could not resolve site profile", zap.Error(err))
	}

	// Robots: crawl-delay hint plus sitemap discovery.
	info := robots.Fetch(ctx, fetcher, cfg.BaseURL, userAgent)
	if info.CrawlDelay > 0 {
		logger.Info("honoring crawl-delay", zap.Duration("delay", info.CrawlDelay))
	}

	urls, err := collectURLs(ctx, cfg, fetcher, profile, info, logger)
	if err != nil {
		logger.Fatal("url discovery failed", zap.Error(err))
	}
	if len(urls) == 0 && ctx.Err() == nil {
		logger.Fatal("no product urls discovered", zap.String("base_url", cfg.BaseURL))
	}
	if cfg.MaxProducts > 0 && len(urls) > cfg.MaxProducts {
		urls = urls[:cfg.MaxProducts]
	}
	logger.Info("urls collected", zap.Int("count", len(urls)))

	// Sinks: CSV always, Postgres when configured.
	csvSink, err := sink.NewCSVSink(cfg.OutputCSV)
	if err != nil {
		logger.Fatal("could not open output csv", zap.Error(err))
	}
	sinks := []sink.RowSink{csvSink}
	if cfg.PostgresURL != "" {
		pgSink, err := sink.NewPostgresSink(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		sinks = append(sinks, pgSink)
	}

	tasks := make([]domain.URLTask, 0, len(urls))
	for _, u := range urls {
		tasks = append(tasks, domain.URLTask{URL: u, CrawlDelay: info.CrawlDelay})
	}

	dispatcher := pipeline.NewDispatcher(fetcher, profile, sinks, cfg.Workers, metrics, logger)
	stats := dispatcher.Run(ctx, tasks)

	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logger.Error("sink close failed", zap.Error(err))
		}
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", zap.Error(err))
		}
	}

	logger.Info("run complete",
		zap.Int("processed", stats.Processed),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("errors", stats.Errors),
		zap.Int("skipped", stats.Skipped),
		zap.Int("not_found", stats.NotFound),
		zap.Int("rows", stats.Rows),
		zap.Float64("success_rate", stats.SuccessRate()),
		zap.Int("requests", fetcher.Requests()))
}

// collectURLs enumerates the product URLs for this run: an explicit URL
// list file when configured, otherwise robots sitemaps (falling back to
// {base}/sitemap.xml) walked with the chunk's offset/limit applied.
func collectURLs(ctx context.Context, cfg *config.Config, fetcher *fetch.Fetcher, profile extract.Profile, info robots.Info, logger *zap.Logger) ([]string, error) {
	if cfg.URLsFile != "" {
		return readURLsFile(cfg.URLsFile)
	}

	rootSitemaps := info.Sitemaps
	if len(rootSitemaps) == 0 {
		rootSitemaps = []string{cfg.BaseURL + "/sitemap.xml"}
	}

	walker := sitemap.NewWalker(fetcher, profile.IsProductURL, cfg.MaxURLsPerSitemap, logger)
	roots := walker.Roots(ctx, rootSitemaps, cfg.SitemapOffset, cfg.MaxSitemaps, info.CrawlDelay)
	urls := walker.Discover(ctx, roots, info.CrawlDelay)

	if len(urls) == 0 {
		if cats := cfg.Categories(); len(cats) > 0 {
			logger.Warn("sitemaps yielded no urls, crawling category pages", zap.Int("categories", len(cats)))
			urls = walker.CategoryLinks(ctx, cats, info.CrawlDelay)
		}
	}
	return urls, nil
}

func readURLsFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}
