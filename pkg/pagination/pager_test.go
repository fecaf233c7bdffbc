package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/univ-admin-client/pkg/client"
	"github.com/rs/zerolog"
)

type item struct{ id int }

func (i item) EntityID() int { return i.id }

type reply struct {
	page Page[item]
	err  error
}

type fetchCall struct {
	page  int
	ctx   context.Context
	reply chan reply
}

// fakeSource hands every FetchPage call to the test, which answers it.
type fakeSource struct {
	calls chan fetchCall
	done  chan struct{}
}

func newFakeSource(t *testing.T) *fakeSource {
	f := &fakeSource{
		calls: make(chan fetchCall, 16),
		done:  make(chan struct{}),
	}
	t.Cleanup(func() { close(f.done) })
	return f
}

func (f *fakeSource) FetchPage(ctx context.Context, page int) (Page[item], error) {
	c := fetchCall{page: page, ctx: ctx, reply: make(chan reply, 1)}
	f.calls <- c
	select {
	case r := <-c.reply:
		return r.page, r.err
	case <-f.done:
		return Page[item]{}, context.Canceled
	}
}

func (f *fakeSource) expectCall(t *testing.T) fetchCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(time.Second):
		t.Fatal("expected a data source call")
		return fetchCall{}
	}
}

func (f *fakeSource) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected data source call for page %d", c.page)
	case <-time.After(50 * time.Millisecond):
	}
}

func items(from, n int) []item {
	out := make([]item, n)
	for i := range out {
		out[i] = item{id: from + i}
	}
	return out
}

func (c fetchCall) succeed(list []item, current, total int) {
	c.reply <- reply{page: Page[item]{Items: list, Pagination: PaginationInfo{CurrentPage: current, TotalPages: total}}}
}

func (c fetchCall) fail(err error) {
	c.reply <- reply{err: err}
}

func newTestPager(t *testing.T, source DataSource[item]) *Pager[item] {
	t.Helper()
	p := NewPager[item](source, WithName("test"), WithLogger(zerolog.Nop()))
	t.Cleanup(p.Close)
	return p
}

func waitFor(t *testing.T, p *Pager[item], what string, cond func(Snapshot[item]) bool) Snapshot[item] {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s := p.Snapshot(); cond(s) {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; state = %+v", what, p.Snapshot())
	return Snapshot[item]{}
}

func idle(s Snapshot[item]) bool { return !s.Loading }

func countSentinels(cells []Cell[item]) int {
	n := 0
	for _, c := range cells {
		if c.IsLoading() {
			n++
		}
	}
	return n
}

func TestPager_SinglePageList(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.OnAppear()
	call := source.expectCall(t)
	if call.page != 1 {
		t.Fatalf("first page = %d, want 1", call.page)
	}
	call.succeed(items(1, 2), 1, 1)

	s := waitFor(t, p, "idle", idle)
	if len(s.Cells) != 2 || countSentinels(s.Cells) != 0 {
		t.Errorf("cells = %d (sentinels %d), want 2 items and no sentinel", len(s.Cells), countSentinels(s.Cells))
	}
	if s.HasMore() {
		t.Error("HasMore() = true on the last page")
	}
}

func TestPager_TwoPagesOfThree(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.OnAppear()
	source.expectCall(t).succeed(items(1, 20), 1, 3)
	waitFor(t, p, "page 1", idle)

	p.RequestMore()
	call := source.expectCall(t)
	if call.page != 2 {
		t.Fatalf("second page = %d, want 2", call.page)
	}
	call.succeed(items(21, 20), 2, 3)

	s := waitFor(t, p, "page 2", func(s Snapshot[item]) bool { return !s.Loading && s.CurrentPage == 2 })
	if got := len(s.Items()); got != 40 {
		t.Errorf("items = %d, want 40", got)
	}
	if len(s.Cells) != 41 || !s.Cells[40].IsLoading() {
		t.Errorf("cells = %d, want 40 items + trailing sentinel", len(s.Cells))
	}
	if s.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", s.TotalPages)
	}
}

func TestPager_InitialLoadFailure(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.OnAppear()
	source.expectCall(t).fail(errors.New("dial tcp: connection refused"))

	select {
	case err := <-p.Errors():
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %T, want *client.APIError", err)
		}
		if !apiErr.IsGeneral() || apiErr.Class != client.ErrorClassNetwork {
			t.Errorf("APIError = %s/%s, want general network", apiErr.MessageKey, apiErr.Class)
		}
	case <-time.After(time.Second):
		t.Fatal("no error emitted")
	}

	s := waitFor(t, p, "idle", idle)
	if len(s.Cells) != 1 || !s.Cells[0].IsLoading() {
		t.Errorf("cells = %+v, want only the sentinel", s.Cells)
	}
	if !s.InitialLoadFailed() {
		t.Error("InitialLoadFailed() = false")
	}

	select {
	case err := <-p.Errors():
		t.Errorf("second error emitted: %v", err)
	default:
	}
}

func TestPager_RetryAfterFailureRequestsSamePage(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.OnAppear()
	source.expectCall(t).succeed(items(1, 5), 1, 3)
	waitFor(t, p, "page 1", idle)

	p.RequestMore()
	source.expectCall(t).fail(&client.APIError{Code: 500, MessageKey: client.GeneralErrorKey, Class: client.ErrorClassServer})
	<-p.Errors()
	s := waitFor(t, p, "failure", idle)
	if len(s.Items()) != 5 || !s.HasMore() {
		t.Errorf("display list changed by failure: %d items, more=%v", len(s.Items()), s.HasMore())
	}
	if s.InitialLoadFailed() {
		t.Error("load-more failure reported as initial load failure")
	}

	p.RequestMore()
	if call := source.expectCall(t); call.page != 2 {
		t.Errorf("retry page = %d, want 2", call.page)
	}
}

func TestPager_PagesIncreaseByOne(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.OnAppear()
	for want := 1; want <= 4; want++ {
		if want > 1 {
			p.RequestMore()
		}
		call := source.expectCall(t)
		if call.page != want {
			t.Fatalf("page = %d, want %d", call.page, want)
		}
		call.succeed(items(want*100, 3), want, 4)
		waitFor(t, p, "page merged", func(s Snapshot[item]) bool { return !s.Loading && s.CurrentPage == want })
	}

	s := p.Snapshot()
	if s.HasMore() {
		t.Error("sentinel present after the last page")
	}

	// Terminal: a direct call is a safe no-op
	p.RequestMore()
	source.expectNoCall(t)
}

func TestPager_SingleSentinelInEveryState(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	var mu sync.Mutex
	var violations []string
	unsubscribe := p.Subscribe(func(s Snapshot[item]) {
		n := countSentinels(s.Cells)
		if n > 1 || (n == 1 && !s.Cells[len(s.Cells)-1].IsLoading()) {
			mu.Lock()
			violations = append(violations, "bad sentinel placement")
			mu.Unlock()
		}
	})
	defer unsubscribe()

	p.OnAppear()
	source.expectCall(t).succeed(items(1, 3), 1, 3)
	waitFor(t, p, "page 1", idle)
	p.RequestMore()
	source.expectCall(t).fail(errors.New("timeout"))
	waitFor(t, p, "failure", idle)
	p.RequestMore()
	source.expectCall(t).succeed(items(4, 3), 2, 3)
	waitFor(t, p, "page 2", func(s Snapshot[item]) bool { return !s.Loading && s.CurrentPage == 2 })
	p.NotifyExternalMutation()
	source.expectCall(t).succeed(items(1, 3), 1, 1)
	waitFor(t, p, "reset", func(s Snapshot[item]) bool { return !s.Loading && !s.HasMore() })

	mu.Lock()
	defer mu.Unlock()
	if len(violations) > 0 {
		t.Errorf("violations: %v", violations)
	}
}

func TestPager_RequestMoreWhileLoading(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.OnAppear()
	source.expectCall(t).succeed(items(1, 2), 1, 5)
	waitFor(t, p, "page 1", idle)

	p.RequestMore()
	p.RequestMore()
	call := source.expectCall(t)
	source.expectNoCall(t)

	call.succeed(items(3, 2), 2, 5)
	waitFor(t, p, "page 2", idle)
}

func TestPager_StaleResultDiscarded(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.OnAppear()
	source.expectCall(t).succeed(items(1, 2), 1, 3)
	waitFor(t, p, "page 1", idle)

	p.RequestMore()
	call := source.expectCall(t)

	p.OnDisappear()
	before := p.Snapshot()
	if before.Loading {
		t.Error("Loading = true after OnDisappear")
	}
	if !before.ResetArmed {
		t.Error("ResetArmed = false after OnDisappear")
	}

	select {
	case <-call.ctx.Done():
	case <-time.After(time.Second):
		t.Error("in-flight fetch context not cancelled")
	}

	call.succeed(items(3, 2), 2, 3)
	time.Sleep(50 * time.Millisecond)

	after := p.Snapshot()
	if len(after.Cells) != len(before.Cells) || after.Loading != before.Loading || after.CurrentPage != before.CurrentPage {
		t.Errorf("state changed by stale result: before %+v, after %+v", before, after)
	}
}

func TestPager_ResetOnReappear(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.OnAppear()
	source.expectCall(t).succeed(items(1, 10), 1, 2)
	waitFor(t, p, "page 1", idle)

	p.OnDisappear()
	p.OnAppear()

	s := p.Snapshot()
	if len(s.Cells) != 1 || !s.Cells[0].IsLoading() {
		t.Errorf("cells after reappear = %d, want only the sentinel", len(s.Cells))
	}
	if call := source.expectCall(t); call.page != 1 {
		t.Errorf("page after reset = %d, want 1", call.page)
	}
}

func TestPager_OnAppearIdempotent(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.OnAppear()
	source.expectCall(t).succeed(items(1, 2), 1, 2)
	waitFor(t, p, "page 1", idle)

	p.OnAppear()
	source.expectNoCall(t)
	if got := len(p.Snapshot().Items()); got != 2 {
		t.Errorf("items = %d, want 2", got)
	}
}

func TestPager_RequestMoreIgnoredWhenHidden(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.RequestMore()
	source.expectNoCall(t)

	p.OnAppear()
	source.expectCall(t).succeed(items(1, 2), 1, 2)
	waitFor(t, p, "page 1", idle)
	p.OnDisappear()

	p.RequestMore()
	source.expectNoCall(t)
}

func TestPager_DeduplicatesAcrossPages(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.OnAppear()
	source.expectCall(t).succeed(items(1, 3), 1, 2)
	waitFor(t, p, "page 1", idle)

	// Item 3 shifted onto page 2 after a server-side insert
	p.RequestMore()
	source.expectCall(t).succeed([]item{{3}, {4}, {5}}, 2, 2)
	s := waitFor(t, p, "page 2", func(s Snapshot[item]) bool { return !s.Loading && s.CurrentPage == 2 })

	got := s.Items()
	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("items = %v, want ids %v", got, want)
	}
	for i, id := range want {
		if got[i].id != id {
			t.Errorf("items[%d] = %d, want %d", i, got[i].id, id)
		}
	}
}

func TestPager_SessionInvalidationNotReported(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	p.OnAppear()
	source.expectCall(t).fail(client.ErrSessionInvalidated)
	waitFor(t, p, "idle", idle)

	select {
	case err := <-p.Errors():
		t.Errorf("error emitted for session invalidation: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPager_ErrorBufferFullDropsAlerts(t *testing.T) {
	source := newFakeSource(t)
	p := NewPager[item](source, WithLogger(zerolog.Nop()), WithErrorBuffer(1))
	t.Cleanup(p.Close)
	failedIdle := func(s Snapshot[item]) bool { return s.Failed && !s.Loading }

	// Nobody reads Errors while three fetches in a row fail
	p.OnAppear()
	source.expectCall(t).fail(errors.New("offline"))
	waitFor(t, p, "first failure", failedIdle)
	for i := 0; i < 2; i++ {
		p.RequestMore()
		call := source.expectCall(t)
		if call.page != 1 {
			t.Fatalf("retry page = %d, want 1", call.page)
		}
		call.fail(errors.New("offline"))
		waitFor(t, p, "repeated failure", failedIdle)
	}

	// The pager keeps working with a full error channel
	p.RequestMore()
	source.expectCall(t).succeed(items(1, 3), 1, 1)
	s := waitFor(t, p, "recovery", func(s Snapshot[item]) bool { return !s.Loading && !s.Failed })
	if len(s.Items()) != 3 {
		t.Errorf("items = %d, want 3", len(s.Items()))
	}

	select {
	case err := <-p.Errors():
		if err == nil {
			t.Error("buffered error is nil")
		}
	default:
		t.Fatal("first error was not buffered")
	}
	select {
	case err := <-p.Errors():
		t.Errorf("alert beyond the buffer delivered: %v", err)
	default:
	}
}

func TestDispatcher_UnsubscribeSkipsPendingDelivery(t *testing.T) {
	d := newDispatcher[item]()
	defer d.close()

	var mu sync.Mutex
	var secondCalls int
	var secondID uint64
	flushed := make(chan struct{})

	d.subscribe(func(Snapshot[item]) {
		d.unsubscribe(secondID)
	})
	secondID = d.subscribe(func(Snapshot[item]) {
		mu.Lock()
		secondCalls++
		mu.Unlock()
	})
	d.subscribe(func(Snapshot[item]) {
		close(flushed)
	})

	d.publish(Snapshot[item]{CurrentPage: 1}, 0)
	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("snapshot not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if secondCalls != 0 {
		t.Errorf("unsubscribed callback ran %d times, want 0", secondCalls)
	}
}

func TestPager_NotifyExternalMutation(t *testing.T) {
	t.Run("visible resets immediately", func(t *testing.T) {
		source := newFakeSource(t)
		p := newTestPager(t, source)

		p.OnAppear()
		source.expectCall(t).succeed(items(1, 2), 1, 1)
		waitFor(t, p, "page 1", idle)

		p.NotifyExternalMutation()
		s := p.Snapshot()
		if len(s.Cells) != 1 || !s.Cells[0].IsLoading() || !s.Loading {
			t.Errorf("state after mutation = %+v, want loading sentinel", s)
		}
		if call := source.expectCall(t); call.page != 1 {
			t.Errorf("page = %d, want 1", call.page)
		}
	})

	t.Run("hidden only arms", func(t *testing.T) {
		source := newFakeSource(t)
		p := newTestPager(t, source)

		p.OnAppear()
		source.expectCall(t).succeed(items(1, 2), 1, 1)
		waitFor(t, p, "page 1", idle)
		p.OnDisappear()

		p.NotifyExternalMutation()
		source.expectNoCall(t)
		if !p.Snapshot().ResetArmed {
			t.Error("ResetArmed = false")
		}

		p.OnAppear()
		if call := source.expectCall(t); call.page != 1 {
			t.Errorf("page = %d, want 1", call.page)
		}
	})

	t.Run("in-flight fetch is discarded", func(t *testing.T) {
		source := newFakeSource(t)
		p := newTestPager(t, source)

		p.OnAppear()
		stale := source.expectCall(t)
		p.NotifyExternalMutation()
		fresh := source.expectCall(t)

		stale.succeed(items(100, 5), 1, 1)
		fresh.succeed(items(1, 2), 1, 1)

		s := waitFor(t, p, "fresh page", idle)
		time.Sleep(20 * time.Millisecond)
		s = p.Snapshot()
		if got := s.Items(); len(got) != 2 || got[0].id != 1 {
			t.Errorf("items = %v, want the fresh page", got)
		}
	})
}

func TestPager_SubscribeOrderedAndReentrant(t *testing.T) {
	source := newFakeSource(t)
	p := newTestPager(t, source)

	var mu sync.Mutex
	var pages []int
	done := make(chan struct{})
	var once sync.Once

	unsubscribe := p.Subscribe(func(s Snapshot[item]) {
		// Calling back into the pager must not deadlock
		_ = p.Snapshot()
		mu.Lock()
		pages = append(pages, s.CurrentPage)
		mu.Unlock()
		if !s.Loading && s.CurrentPage == 2 {
			once.Do(func() { close(done) })
		}
	})
	defer unsubscribe()

	p.OnAppear()
	source.expectCall(t).succeed(items(1, 1), 1, 2)
	waitFor(t, p, "page 1", idle)
	p.RequestMore()
	source.expectCall(t).succeed(items(2, 1), 2, 2)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber never saw page 2")
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(pages); i++ {
		if pages[i] < pages[i-1] {
			t.Errorf("snapshots out of order: %v", pages)
		}
	}
	if pages[0] != 0 {
		t.Errorf("first snapshot page = %d, want the initial state", pages[0])
	}
}

func TestPager_CloseStopsEverything(t *testing.T) {
	source := newFakeSource(t)
	p := NewPager[item](source, WithLogger(zerolog.Nop()))

	p.OnAppear()
	call := source.expectCall(t)
	p.Close()
	p.Close()

	call.succeed(items(1, 2), 1, 1)
	if _, ok := <-p.Errors(); ok {
		t.Error("Errors() not closed")
	}

	p.OnAppear()
	p.RequestMore()
	source.expectNoCall(t)
}

func TestPager_FetchTimeout(t *testing.T) {
	source := DataSourceFunc[item](func(ctx context.Context, page int) (Page[item], error) {
		<-ctx.Done()
		return Page[item]{}, ctx.Err()
	})
	p := NewPager[item](source, WithLogger(zerolog.Nop()), WithFetchTimeout(20*time.Millisecond))
	defer p.Close()

	p.OnAppear()
	select {
	case err := <-p.Errors():
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("error = %v, want deadline exceeded", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout not reported")
	}
}

func TestPaginationInfo_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want PaginationInfo
	}{
		{`{"page":2,"totalPages":5}`, PaginationInfo{2, 5}},
		{`{"totalPages":3}`, PaginationInfo{1, 3}},
		{`{}`, PaginationInfo{1, 1}},
	}

	for _, tt := range tests {
		var got PaginationInfo
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestCell(t *testing.T) {
	c := ItemCell(item{7})
	if c.IsLoading() {
		t.Error("item cell reports loading")
	}
	if v, ok := c.Item(); !ok || v.id != 7 {
		t.Errorf("Item() = %v, %v", v, ok)
	}
	if _, ok := LoadingCell[item]().Item(); ok {
		t.Error("sentinel returned an item")
	}
}
