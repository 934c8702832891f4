package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/retail-scraper/internal/domain"
	"github.com/user/retail-scraper/internal/extract"
	"github.com/user/retail-scraper/internal/fetch"
	"github.com/user/retail-scraper/internal/monitoring"
	"github.com/user/retail-scraper/internal/sink"
)

// Stats aggregates the outcome of a run.
type Stats struct {
	Processed int
	Succeeded int
	Errors    int
	Skipped   int
	NotFound  int
	Rows      int
}

// SuccessRate is Succeeded over Processed, in percent.
func (s Stats) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Processed) * 100
}

// Dispatcher fans product URLs out over a fixed worker pool, deduplicating
// by URL. One URL failing never affects the rest of the batch.
type Dispatcher struct {
	fetcher *fetch.Fetcher
	profile extract.Profile
	sinks   []sink.RowSink
	workers int
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu    sync.Mutex
	seen  map[string]bool
	stats Stats
}

const progressEvery = 20

func NewDispatcher(f *fetch.Fetcher, p extract.Profile, sinks []sink.RowSink, workers int, m *monitoring.Metrics, logger *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		fetcher: f,
		profile: p,
		sinks:   sinks,
		workers: workers,
		metrics: m,
		logger:  logger,
		seen:    map[string]bool{},
	}
}

// Run processes every not-yet-seen task and blocks until all workers drain.
// The returned stats cover this call only.
func (d *Dispatcher) Run(ctx context.Context, tasks []domain.URLTask) Stats {
	dateScraped := time.Now().UTC().Format("2006-01-02")

	queue := make(chan domain.URLTask, d.workers*2)
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				d.process(ctx, task, dateScraped)
			}
		}()
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			break
		}
		if !d.markSeen(task.URL) {
			continue
		}
		queue <- task
	}
	close(queue)
	wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// markSeen atomically checks and records a URL; false means a duplicate.
func (d *Dispatcher) markSeen(url string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[url] {
		return false
	}
	d.seen[url] = true
	return true
}

func (d *Dispatcher) process(ctx context.Context, task domain.URLTask, dateScraped string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic processing url", zap.String("url", task.URL), zap.Any("panic", r))
			d.metrics.IncErrors("panic")
			d.finish(func(s *Stats) { s.Errors++ })
		}
	}()

	product, err := d.profile.Process(ctx, d.fetcher, task.URL, task.CrawlDelay)
	switch {
	case errors.Is(err, fetch.ErrNotFound):
		d.metrics.IncProcessed("not_found")
		d.finish(func(s *Stats) { s.NotFound++ })
		return
	case err != nil:
		d.logger.Warn("url failed", zap.String("url", task.URL), zap.Error(err))
		d.metrics.IncProcessed("error")
		d.metrics.IncErrors("fetch_failed")
		d.finish(func(s *Stats) { s.Errors++ })
		return
	case product == nil:
		d.logger.Info("not a product page", zap.String("url", task.URL))
		d.metrics.IncProcessed("skipped")
		d.finish(func(s *Stats) { s.Skipped++ })
		return
	}

	records := product.Records(dateScraped)
	written := 0
	for _, s := range d.sinks {
		if err := s.WriteRows(ctx, records); err != nil {
			d.logger.Error("sink write failed", zap.String("url", task.URL), zap.Error(err))
			d.metrics.IncErrors("sink_failed")
			continue
		}
		written = len(records)
	}

	d.metrics.IncProcessed("success")
	d.metrics.AddRows(written)
	d.logger.Info("product scraped",
		zap.String("url", task.URL),
		zap.String("product_id", product.ID),
		zap.Int("rows", len(records)))
	d.finish(func(s *Stats) {
		s.Succeeded++
		s.Rows += written
	})
}

// finish applies a stats mutation and handles the periodic progress log.
func (d *Dispatcher) finish(apply func(*Stats)) {
	d.mu.Lock()
	d.stats.Processed++
	apply(&d.stats)
	processed, stats := d.stats.Processed, d.stats
	d.mu.Unlock()

	if processed%progressEvery == 0 {
		d.logger.Info("progress",
			zap.Int("processed", processed),
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("errors", stats.Errors),
			zap.Int("rows", stats.Rows))
		runtime.GC()
	}
}
