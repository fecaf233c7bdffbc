// Package events is the in-process bus for cross-screen notifications:
// entity mutations, session invalidation and user updates.
package events

import (
	"reflect"
	"sync"

	"github.com/Sternrassler/univ-admin-client/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Action is the kind of mutation in an EntityChanged event.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// EntityChanged is published after a successful create, edit or delete.
type EntityChanged struct {
	Kind   models.Kind
	ID     int
	Action Action
	// ParentID is the owning faculty of a cathedra or cathedra of a group,
	// 0 when unknown or not applicable.
	ParentID int
}

// SessionInvalidated is published when the session ends, either by logout or
// because the backend rejected the token.
type SessionInvalidated struct {
	Reason string
}

// UserPart names what changed in a UserUpdated event.
type UserPart string

const (
	PartPayments UserPart = "payments"
	PartEntirely UserPart = "entirely"
)

// UserUpdated is published when the signed-in user changed.
type UserUpdated struct {
	Part UserPart
}

// Event is any of the event types above.
type Event any

type handler struct {
	id uint64
	fn func(Event)
}

// Bus delivers events synchronously to subscribers of the event's type, in
// subscription order. Publish may be called from any goroutine; handlers must
// not block.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]handler
	nextID   uint64
	logger   zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[reflect.Type][]handler),
		logger:   log.With().Str("component", "events").Logger(),
	}
}

// Publish delivers e to every handler registered for its type.
func (b *Bus) Publish(e Event) {
	if e == nil {
		return
	}
	t := reflect.TypeOf(e)

	b.mu.RLock()
	hs := append([]handler(nil), b.handlers[t]...)
	b.mu.RUnlock()

	b.logger.Debug().
		Str("event", t.String()).
		Int("handlers", len(hs)).
		Msg("Publishing event")

	for _, h := range hs {
		h.fn(e)
	}
}

func (b *Bus) subscribe(t reflect.Type, fn func(Event)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], handler{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			hs := b.handlers[t]
			for i, h := range hs {
				if h.id == id {
					b.handlers[t] = append(hs[:i:i], hs[i+1:]...)
					break
				}
			}
		})
	}
}

// On registers fn for events of type E and returns the unsubscribe function.
func On[E any](b *Bus, fn func(E)) (unsubscribe func()) {
	t := reflect.TypeOf((*E)(nil)).Elem()
	return b.subscribe(t, func(e Event) {
		fn(e.(E))
	})
}
