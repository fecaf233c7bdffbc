package pagination

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/univ-admin-client/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultErrorBuffer = 8

type options struct {
	name         string
	logger       *zerolog.Logger
	fetchTimeout time.Duration
	errorBuffer  int
}

// Option configures a Pager.
type Option func(*options)

// WithName sets the screen name used in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// WithFetchTimeout bounds every page fetch. 0 disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) { o.fetchTimeout = d }
}

// WithErrorBuffer sets the capacity of the error channel.
func WithErrorBuffer(n int) Option {
	return func(o *options) { o.errorBuffer = n }
}

// Pager drives incremental, cancellable, auto-resetting pagination over a
// DataSource and publishes the resulting display list.
//
// At most one fetch is in flight. Results that arrive after OnDisappear,
// a reset or Close are discarded without touching state.
type Pager[T Identifiable] struct {
	source       DataSource[T]
	name         string
	logger       zerolog.Logger
	fetchTimeout time.Duration

	mu          sync.Mutex
	cells       []Cell[T]
	currentPage int
	totalPages  int
	loading     bool
	resetArmed  bool
	visible     bool
	failed      bool
	closed      bool
	seen        map[int]struct{}

	// generation invalidates in-flight fetches
	generation  uint64
	scope       context.Context
	cancelScope context.CancelFunc

	errs       chan error
	dispatcher *dispatcher[T]
}

// NewPager creates a Pager over source. The pager starts armed: the first
// OnAppear loads page 1.
func NewPager[T Identifiable](source DataSource[T], opts ...Option) *Pager[T] {
	o := options{
		name:        "list",
		errorBuffer: defaultErrorBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.errorBuffer < 1 {
		o.errorBuffer = 1
	}

	logger := log.With().Str("component", "pager").Str("screen", o.name).Logger()
	if o.logger != nil {
		logger = o.logger.With().Str("screen", o.name).Logger()
	}

	return &Pager[T]{
		source:       source,
		name:         o.name,
		logger:       logger,
		fetchTimeout: o.fetchTimeout,
		cells:        []Cell[T]{LoadingCell[T]()},
		totalPages:   1,
		resetArmed:   true,
		seen:         make(map[int]struct{}),
		errs:         make(chan error, o.errorBuffer),
		dispatcher:   newDispatcher[T](),
	}
}

// Name returns the screen name.
func (p *Pager[T]) Name() string {
	return p.name
}

// OnAppear marks the list visible. When a reset is armed the display list
// becomes the lone sentinel and page 1 is fetched. Otherwise a no-op.
func (p *Pager[T]) OnAppear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	p.visible = true
	if p.scope == nil {
		p.scope, p.cancelScope = context.WithCancel(context.Background())
	}
	if !p.resetArmed {
		return
	}

	p.resetLocked()
	p.startFetchLocked()
	p.publishLocked()
}

// RequestMore fetches the next page. Ignored while a fetch is in flight,
// while the list is not visible, or once the last page has been shown.
func (p *Pager[T]) RequestMore() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.visible || p.loading || p.resetArmed {
		return
	}
	if !p.hasSentinelLocked() {
		p.logger.Debug().Int("page", p.currentPage).Msg("Last page reached, ignoring request")
		return
	}

	p.startFetchLocked()
	p.publishLocked()
}

// OnDisappear cancels the in-flight fetch and arms a reset for the next
// OnAppear.
func (p *Pager[T]) OnDisappear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	p.visible = false
	p.cancelLocked()
	p.resetArmed = true
	if p.loading {
		p.logger.Debug().Int("page", p.currentPage).Msg("Cancelling in-flight fetch")
	}
	p.loading = false
	p.publishLocked()
}

// NotifyExternalMutation restarts pagination after the underlying data
// changed elsewhere. A visible list resets and reloads page 1 immediately; an
// invisible one only arms the reset.
func (p *Pager[T]) NotifyExternalMutation() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	if !p.visible {
		p.resetArmed = true
		p.publishLocked()
		return
	}

	p.cancelLocked()
	p.scope, p.cancelScope = context.WithCancel(context.Background())
	p.resetLocked()
	p.startFetchLocked()
	p.publishLocked()
}

// Snapshot returns the current state.
func (p *Pager[T]) Snapshot() Snapshot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe registers fn for every published state, starting with the
// current one. Calls are ordered and made from a single goroutine.
func (p *Pager[T]) Subscribe(fn func(Snapshot[T])) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.dispatcher.subscribe(fn)
	p.dispatcher.publish(p.snapshotLocked(), id)

	var once sync.Once
	return func() {
		once.Do(func() { p.dispatcher.unsubscribe(id) })
	}
}

// Errors returns the channel of fetch failures, one *client.APIError per
// failed fetch. A session invalidation is never reported here. The channel
// is closed by Close.
func (p *Pager[T]) Errors() <-chan error {
	return p.errs
}

// Close cancels in-flight work and stops notifications.
func (p *Pager[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.cancelLocked()
	p.loading = false
	close(p.errs)
	p.dispatcher.close()
}

// resetLocked restores the pre-initialization state.
func (p *Pager[T]) resetLocked() {
	p.generation++
	p.cells = []Cell[T]{LoadingCell[T]()}
	p.currentPage = 0
	p.totalPages = 1
	p.resetArmed = false
	p.loading = false
	p.failed = false
	p.seen = make(map[int]struct{})
	pagerResetsTotal.WithLabelValues(p.name).Inc()
}

func (p *Pager[T]) cancelLocked() {
	p.generation++
	if p.cancelScope != nil {
		p.cancelScope()
	}
	p.scope, p.cancelScope = nil, nil
}

func (p *Pager[T]) hasSentinelLocked() bool {
	return len(p.cells) > 0 && p.cells[len(p.cells)-1].IsLoading()
}

// startFetchLocked advances to the next page and fetches it.
func (p *Pager[T]) startFetchLocked() {
	p.loading = true
	p.failed = false
	p.currentPage++

	page := p.currentPage
	gen := p.generation
	ctx := p.scope

	p.logger.Debug().Int("page", page).Msg("Fetching page")
	go p.fetch(ctx, gen, page)
}

func (p *Pager[T]) fetch(ctx context.Context, gen uint64, page int) {
	if p.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.source.FetchPage(ctx, page)
	pagerFetchDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || gen != p.generation {
		pagerFetchesTotal.WithLabelValues(p.name, "discarded").Inc()
		p.logger.Debug().Int("page", page).Msg("Discarding stale page result")
		return
	}

	if err != nil {
		p.onFetchFailedLocked(page, err)
		return
	}
	p.onFetchSucceededLocked(result)
}

func (p *Pager[T]) onFetchSucceededLocked(result Page[T]) {
	pagerFetchesTotal.WithLabelValues(p.name, "success").Inc()

	p.totalPages = result.Pagination.TotalPages

	cells := make([]Cell[T], 0, len(p.cells)+len(result.Items)+1)
	cells = append(cells, p.cells...)
	if n := len(cells); n > 0 && cells[n-1].IsLoading() {
		cells = cells[:n-1]
	}

	skipped := 0
	for _, item := range result.Items {
		id := item.EntityID()
		if _, dup := p.seen[id]; dup {
			skipped++
			continue
		}
		p.seen[id] = struct{}{}
		cells = append(cells, ItemCell(item))
	}
	if result.Pagination.HasMore() {
		cells = append(cells, LoadingCell[T]())
	}

	p.cells = cells
	p.loading = false

	p.logger.Debug().
		Int("page", p.currentPage).
		Int("total_pages", p.totalPages).
		Int("items", len(result.Items)).
		Int("duplicates", skipped).
		Msg("Page merged")

	p.publishLocked()
}

func (p *Pager[T]) onFetchFailedLocked(page int, err error) {
	pagerFetchesTotal.WithLabelValues(p.name, "error").Inc()

	p.loading = false
	p.failed = true
	// The failed page is requested again by the next RequestMore
	p.currentPage = page - 1

	if errors.Is(err, client.ErrSessionInvalidated) {
		p.logger.Debug().Int("page", page).Msg("Fetch stopped by session invalidation")
		p.publishLocked()
		return
	}

	apiErr := client.AsAPIError(p.name, err)
	p.logger.Warn().
		Err(err).
		Int("page", page).
		Str("message_key", apiErr.MessageKey).
		Msg("Page fetch failed")

	select {
	case p.errs <- apiErr:
	default:
		p.logger.Warn().Msg("Error channel full, dropping alert")
	}

	p.publishLocked()
}

func (p *Pager[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Cells:       p.cells,
		CurrentPage: p.currentPage,
		TotalPages:  p.totalPages,
		Loading:     p.loading,
		ResetArmed:  p.resetArmed,
		Visible:     p.visible,
		Failed:      p.failed,
	}
}

func (p *Pager[T]) publishLocked() {
	p.dispatcher.publish(p.snapshotLocked(), 0)
}
