package pagination

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrTooManyPages is returned when the backend reports more pages than the
// fetcher is configured to walk.
var ErrTooManyPages = errors.New("page count exceeds limit")

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// MaxPages caps the page count accepted from the backend.
	MaxPages int
}

// DefaultConfig returns a configuration that stays well below the backend's
// tolerance for a single client.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
		MaxPages:       1000,
	}
}

// pageResult is the outcome of fetching a single page
type pageResult[T any] struct {
	pageNumber int
	items      []T
	err        error
}

// BatchFetcher fetches every page of a list with a bounded worker pool.
// Exports use it; screens page through a Pager instead.
type BatchFetcher[T any] struct {
	source DataSource[T]
	config Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher[T any](source DataSource[T], config Config) *BatchFetcher[T] {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}

	return &BatchFetcher[T]{
		source: source,
		config: config,
	}
}

// FetchAll fetches page 1 to learn the page count, then the remaining pages in
// parallel. Items are returned in page order. On failure the items of the
// pages fetched so far are returned together with the error.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context) ([]T, error) {
	start := time.Now()

	first, err := bf.fetchPage(ctx, 1)
	if err != nil {
		batchPagesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	batchPagesTotal.WithLabelValues("success").Inc()

	totalPages := first.Pagination.TotalPages
	log.Info().
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	// Single page optimization
	if totalPages <= 1 {
		log.Info().
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first.Items, nil
	}
	if totalPages > bf.config.MaxPages {
		return first.Items, fmt.Errorf("%w: backend reports %d pages, limit %d",
			ErrTooManyPages, totalPages, bf.config.MaxPages)
	}

	results := map[int][]T{1: first.Items}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := bf.config.MaxConcurrency
	if workers > totalPages-1 {
		workers = totalPages - 1
	}

	pageQueue := make(chan int)
	pageResults := make(chan pageResult[T], workers)

	// Page 1 is already fetched
	go func() {
		defer close(pageQueue)
		for page := 2; page <= totalPages; page++ {
			select {
			case pageQueue <- page:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, pageQueue, pageResults, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
	}()

	var firstErr error
	for result := range pageResults {
		if result.err != nil {
			batchPagesTotal.WithLabelValues("error").Inc()
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", result.pageNumber, result.err)
				// Stop the remaining workers
				cancel()
			}
			continue
		}
		batchPagesTotal.WithLabelValues("success").Inc()
		results[result.pageNumber] = result.items
	}

	items := collectInPageOrder(results)

	if firstErr != nil {
		log.Warn().
			Err(firstErr).
			Int("fetched_pages", len(results)).
			Int("total_pages", totalPages).
			Msg("Worker error - returning partial results")
		return items, fmt.Errorf("worker error (partial data: %d/%d pages): %w", len(results), totalPages, firstErr)
	}

	log.Info().
		Int("pages", len(results)).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, nil
}

func (bf *BatchFetcher[T]) fetchPage(ctx context.Context, page int) (Page[T], error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.source.FetchPage(pageCtx, page)
}

// worker processes pages from the queue
func (bf *BatchFetcher[T]) worker(ctx context.Context, pageQueue <-chan int, results chan<- pageResult[T], wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		if ctx.Err() != nil {
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		page, err := bf.fetchPage(ctx, pageNum)
		// FetchAll drains results until every worker is done
		results <- pageResult[T]{pageNumber: pageNum, items: page.Items, err: err}
		if err != nil {
			return
		}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}

func collectInPageOrder[T any](results map[int][]T) []T {
	pages := make([]int, 0, len(results))
	total := 0
	for page, items := range results {
		pages = append(pages, page)
		total += len(items)
	}
	sort.Ints(pages)

	items := make([]T, 0, total)
	for _, page := range pages {
		items = append(items, results[page]...)
	}
	return items
}
