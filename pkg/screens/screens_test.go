package screens

import (
	"testing"
	"time"

	"github.com/Sternrassler/univ-admin-client/internal/testutil"
	"github.com/Sternrassler/univ-admin-client/pkg/api"
	"github.com/Sternrassler/univ-admin-client/pkg/client"
	"github.com/Sternrassler/univ-admin-client/pkg/events"
	"github.com/Sternrassler/univ-admin-client/pkg/models"
	"github.com/Sternrassler/univ-admin-client/pkg/pagination"
)

func newTestAPI(t *testing.T) (*testutil.MockBackend, *api.API, *events.Bus) {
	t.Helper()
	backend := testutil.NewMockBackend()
	t.Cleanup(backend.Close)

	cfg := client.DefaultConfig(backend.URL(), "univctl-test/1.0")
	cfg.Retry = client.RetryConfig{MaxAttempts: 1}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	bus := events.NewBus()
	return backend, api.New(c, bus), bus
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func idle[T pagination.Identifiable](s *Screen[T], page int) func() bool {
	return func() bool {
		snap := s.Snapshot()
		return !snap.Loading && snap.CurrentPage == page
	}
}

func pageRequests(b *testutil.MockBackend, path, page string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Path == path && r.Query["page"] == page {
			n++
		}
	}
	return n
}

func faculty(id int) map[string]any {
	return map[string]any{"id": id, "name": "F"}
}

func TestFacultiesList_ScrollAndReload(t *testing.T) {
	backend, a, bus := newTestAPI(t)
	backend.ServeList("/faculty/list", "faculties",
		[]any{faculty(1), faculty(2)},
		[]any{faculty(3)},
	)

	s := FacultiesList(a, bus)
	t.Cleanup(s.Close)

	if s.Name() != NameFaculties {
		t.Errorf("Name() = %q", s.Name())
	}

	s.OnAppear()
	waitFor(t, "page 1", idle(s, 1))
	if !s.Snapshot().HasMore() {
		t.Error("HasMore() = false after page 1 of 2")
	}

	s.RequestMore()
	waitFor(t, "page 2", idle(s, 2))
	snap := s.Snapshot()
	if got := len(snap.Items()); got != 3 || snap.HasMore() {
		t.Fatalf("items = %d, HasMore = %v; want 3, false", got, snap.HasMore())
	}

	bus.Publish(events.EntityChanged{Kind: models.KindCathedra, ID: 9, Action: events.ActionCreated})
	waitFor(t, "reload", func() bool { return pageRequests(backend, "/faculty/list", "1") == 2 })
	waitFor(t, "page 1 after reload", idle(s, 1))
	if got := len(s.Snapshot().Items()); got != 2 {
		t.Errorf("items after reload = %d, want 2", got)
	}
}

func TestGroupsList_IgnoresOtherCathedras(t *testing.T) {
	backend, a, bus := newTestAPI(t)
	backend.ServeList("/group/list", "groups", []any{map[string]any{"id": 1, "name": "G-1"}})

	s := GroupsList(a, bus, 5)
	t.Cleanup(s.Close)
	s.OnAppear()
	waitFor(t, "page 1", idle(s, 1))

	bus.Publish(events.EntityChanged{Kind: models.KindGroup, ID: 2, Action: events.ActionCreated, ParentID: 6})
	bus.Publish(events.EntityChanged{Kind: models.KindLesson, ID: 2, Action: events.ActionCreated})
	time.Sleep(50 * time.Millisecond)
	if n := backend.RequestCount(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}

	bus.Publish(events.EntityChanged{Kind: models.KindGroup, ID: 2, Action: events.ActionDeleted})
	waitFor(t, "reload", func() bool { return backend.RequestCount() == 2 })
}

func TestCathedrasList_AllFaculties(t *testing.T) {
	backend, a, bus := newTestAPI(t)
	backend.ServeList("/cathedra/list", "cathedras", []any{map[string]any{"id": 1, "name": "C-1", "facultyId": 3}})

	s := CathedrasList(a, bus, 0)
	t.Cleanup(s.Close)
	s.OnAppear()
	waitFor(t, "page 1", idle(s, 1))

	req, _ := backend.LastRequest()
	if _, ok := req.Query["facultyId"]; ok {
		t.Errorf("unscoped list sent facultyId: %v", req.Query)
	}

	bus.Publish(events.EntityChanged{Kind: models.KindCathedra, ID: 9, Action: events.ActionCreated, ParentID: 4})
	waitFor(t, "reload", func() bool { return backend.RequestCount() == 2 })
}

func TestHiddenScreen_ArmsReset(t *testing.T) {
	backend, a, bus := newTestAPI(t)
	backend.ServeList("/lesson/list", "lessons", []any{map[string]any{"id": 1, "name": "Algebra"}})

	s := LessonsList(a, bus)
	t.Cleanup(s.Close)
	s.OnAppear()
	waitFor(t, "page 1", idle(s, 1))
	s.OnDisappear()

	bus.Publish(events.EntityChanged{Kind: models.KindLesson, ID: 1, Action: events.ActionUpdated})
	time.Sleep(50 * time.Millisecond)
	if n := backend.RequestCount(); n != 1 {
		t.Fatalf("requests while hidden = %d, want 1", n)
	}
	if !s.Snapshot().ResetArmed {
		t.Error("reset not armed")
	}

	s.OnAppear()
	waitFor(t, "reload on appear", func() bool { return backend.RequestCount() == 2 })
}

func TestPaymentHistory_ReloadsOnUserUpdate(t *testing.T) {
	backend, a, bus := newTestAPI(t)
	backend.ServeList("/balance-history", "changes", []any{map[string]any{"id": 1, "change": 100}})

	s := PaymentHistory(a, bus)
	t.Cleanup(s.Close)
	s.OnAppear()
	waitFor(t, "page 1", idle(s, 1))

	bus.Publish(events.UserUpdated{Part: events.PartPayments})
	waitFor(t, "reload", func() bool { return backend.RequestCount() == 2 })
}

func TestScreen_HidesOnLogout(t *testing.T) {
	backend, a, bus := newTestAPI(t)
	backend.ServeList("/cathedra/list", "cathedras", []any{})

	s := CathedrasList(a, bus, 1)
	t.Cleanup(s.Close)
	s.OnAppear()
	waitFor(t, "page 1", idle(s, 1))

	bus.Publish(events.SessionInvalidated{Reason: "forbidden"})
	snap := s.Snapshot()
	if snap.Visible || !snap.ResetArmed {
		t.Errorf("snapshot = %+v, want hidden and armed", snap)
	}
}

func TestScreen_CloseUnsubscribes(t *testing.T) {
	backend, a, bus := newTestAPI(t)
	backend.ServeList("/faculty/list", "faculties", []any{faculty(1)})

	s := FacultiesList(a, bus)
	s.OnAppear()
	waitFor(t, "page 1", idle(s, 1))
	s.Close()

	bus.Publish(events.EntityChanged{Kind: models.KindFaculty, ID: 1, Action: events.ActionDeleted})
	time.Sleep(50 * time.Millisecond)
	if n := backend.RequestCount(); n != 1 {
		t.Errorf("requests after Close = %d, want 1", n)
	}
}
