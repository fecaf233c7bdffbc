// Package screens provides the list view-models: one Pager per screen, bound
// to its data source and reloaded when the bus reports a relevant change.
package screens

import (
	"github.com/Sternrassler/univ-admin-client/pkg/api"
	"github.com/Sternrassler/univ-admin-client/pkg/events"
	"github.com/Sternrassler/univ-admin-client/pkg/models"
	"github.com/Sternrassler/univ-admin-client/pkg/pagination"
)

// Screen names, used as the pager name in logs and metrics.
const (
	NameFaculties      = "faculties"
	NameCathedras      = "cathedras"
	NameGroups         = "groups"
	NameLessons        = "lessons"
	NamePaymentHistory = "payment_history"
)

// Names lists every screen.
var Names = []string{NameFaculties, NameCathedras, NameGroups, NameLessons, NamePaymentHistory}

// Screen is a Pager plus its bus subscriptions.
type Screen[T pagination.Identifiable] struct {
	*pagination.Pager[T]
	unsubscribe []func()
}

func newScreen[T pagination.Identifiable](name string, source pagination.DataSource[T], opts []pagination.Option) *Screen[T] {
	opts = append([]pagination.Option{pagination.WithName(name)}, opts...)
	return &Screen[T]{Pager: pagination.NewPager(source, opts...)}
}

// reloadOn resets the list for every EntityChanged accepted by match.
func (s *Screen[T]) reloadOn(bus *events.Bus, match func(events.EntityChanged) bool) {
	if bus == nil {
		return
	}
	s.unsubscribe = append(s.unsubscribe, events.On(bus, func(e events.EntityChanged) {
		if match(e) {
			s.NotifyExternalMutation()
		}
	}))
}

// hideOnLogout stops the list when the session ends.
func (s *Screen[T]) hideOnLogout(bus *events.Bus) {
	if bus == nil {
		return
	}
	s.unsubscribe = append(s.unsubscribe, events.On(bus, func(events.SessionInvalidated) {
		s.OnDisappear()
	}))
}

// Close drops the subscriptions and closes the pager.
func (s *Screen[T]) Close() {
	for _, unsub := range s.unsubscribe {
		unsub()
	}
	s.unsubscribe = nil
	s.Pager.Close()
}

func ofKind(kinds ...models.Kind) func(events.EntityChanged) bool {
	return func(e events.EntityChanged) bool {
		for _, k := range kinds {
			if e.Kind == k {
				return true
			}
		}
		return false
	}
}

// inParent matches changes of kind under parentID. A zero ParentID means the
// owner is unknown and matches every parent; a zero parentID is an unscoped
// list and matches every change of kind.
func inParent(kind models.Kind, parentID int) func(events.EntityChanged) bool {
	return func(e events.EntityChanged) bool {
		return e.Kind == kind && (parentID == 0 || e.ParentID == 0 || e.ParentID == parentID)
	}
}

// FacultiesList is the faculties screen. Cathedra changes reload it too since
// every row shows a cathedra count.
func FacultiesList(a *api.API, bus *events.Bus, opts ...pagination.Option) *Screen[models.Faculty] {
	s := newScreen(NameFaculties, a.FacultiesSource(), opts)
	s.reloadOn(bus, ofKind(models.KindFaculty, models.KindCathedra))
	s.hideOnLogout(bus)
	return s
}

// CathedrasList is the screen of the cathedras of facultyID, or of every
// faculty when facultyID is 0.
func CathedrasList(a *api.API, bus *events.Bus, facultyID int, opts ...pagination.Option) *Screen[models.Cathedra] {
	s := newScreen(NameCathedras, a.CathedrasSource(facultyID), opts)
	s.reloadOn(bus, func(e events.EntityChanged) bool {
		return inParent(models.KindCathedra, facultyID)(e) || e.Kind == models.KindGroup
	})
	s.hideOnLogout(bus)
	return s
}

// GroupsList is the screen of the groups of cathedraID.
func GroupsList(a *api.API, bus *events.Bus, cathedraID int, opts ...pagination.Option) *Screen[models.Group] {
	s := newScreen(NameGroups, a.GroupsSource(cathedraID), opts)
	s.reloadOn(bus, inParent(models.KindGroup, cathedraID))
	s.hideOnLogout(bus)
	return s
}

// LessonsList is the lessons screen. Group changes reload it since lessons
// embed their groups.
func LessonsList(a *api.API, bus *events.Bus, opts ...pagination.Option) *Screen[models.Lesson] {
	s := newScreen(NameLessons, a.LessonsSource(), opts)
	s.reloadOn(bus, ofKind(models.KindLesson, models.KindGroup))
	s.hideOnLogout(bus)
	return s
}

// PaymentHistory is the balance history screen of the signed-in student. It
// reloads whenever the user is updated.
func PaymentHistory(a *api.API, bus *events.Bus, opts ...pagination.Option) *Screen[models.Payment] {
	s := newScreen(NamePaymentHistory, a.BalanceHistorySource(), opts)
	s.reloadOn(bus, ofKind(models.KindPayment))
	if bus != nil {
		s.unsubscribe = append(s.unsubscribe, events.On(bus, func(events.UserUpdated) {
			s.NotifyExternalMutation()
		}))
	}
	s.hideOnLogout(bus)
	return s
}
