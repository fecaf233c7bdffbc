// Package pagination implements the paged list state machine shared by every
// list screen, plus a parallel fetcher for exporting whole lists.
//
// A Pager owns the page counters and the display list: the fetched items
// followed by at most one loading sentinel. Showing the sentinel asks for the
// next page:
//
//	pager := pagination.NewPager[models.Faculty](source, pagination.WithName("faculties"))
//	defer pager.Close()
//
//	unsubscribe := pager.Subscribe(func(s pagination.Snapshot[models.Faculty]) {
//		render(s.Cells)
//	})
//	defer unsubscribe()
//
//	pager.OnAppear()    // resets if armed and loads page 1
//	pager.RequestMore() // sentinel became visible
//	pager.OnDisappear() // cancels the in-flight page, arms the reset
//
// Failed fetches are reported once on Errors() and leave the display list and
// the page counters as they were, so scrolling to the sentinel again retries
// the same page.
//
// BatchFetcher reads every page of a DataSource with a bounded worker pool:
//
//	fetcher := pagination.NewBatchFetcher[models.Lesson](source, pagination.DefaultConfig())
//	lessons, err := fetcher.FetchAll(ctx)
package pagination
