// Package api binds every backend operation to the request client: list
// pages as pagination data sources, entity mutations, session and payments.
//
// Successful mutations are announced on the event bus so that list screens
// showing the affected entities reload.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/univ-admin-client/pkg/client"
	"github.com/Sternrassler/univ-admin-client/pkg/events"
	"github.com/Sternrassler/univ-admin-client/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrInvalidInput is returned, before any request is sent, when an input
// fails validation.
var ErrInvalidInput = errors.New("invalid input")

var validate = validator.New(validator.WithRequiredStructEnabled())

// API is the set of backend operations.
type API struct {
	client *client.Client
	bus    *events.Bus
	logger zerolog.Logger
}

// New creates the API over c. bus may be nil when nobody listens for
// mutations.
func New(c *client.Client, bus *events.Bus) *API {
	return &API{
		client: c,
		bus:    bus,
		logger: log.With().Str("component", "api").Logger(),
	}
}

// Client returns the underlying request client.
func (a *API) Client() *client.Client {
	return a.client
}

func (a *API) publish(e events.Event) {
	if a.bus != nil {
		a.bus.Publish(e)
	}
}

func validateInput(in any) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// mutation describes one create/edit/delete call.
type mutation struct {
	op       client.Operation
	method   string
	path     string
	params   map[string]any
	kind     models.Kind
	action   events.Action
	parentID int
}

// mutate performs m, decodes the entity returned with status want and
// publishes EntityChanged.
func mutate[T models.Entity](ctx context.Context, a *API, m mutation, want int) (T, error) {
	req := client.Request{Method: m.method, Path: m.path, Params: m.params}
	entity, err := client.Call(ctx, a.client, m.op, req, client.DecodeJSON[T](want))
	if err != nil {
		return entity, err
	}

	a.logger.Info().
		Str("kind", string(m.kind)).
		Int("id", entity.EntityID()).
		Str("action", string(m.action)).
		Msg("Entity changed")
	a.publish(events.EntityChanged{Kind: m.kind, ID: entity.EntityID(), Action: m.action, ParentID: m.parentID})
	return entity, nil
}

// remove performs a DELETE expecting 204 and publishes EntityChanged.
func (a *API) remove(ctx context.Context, op client.Operation, kind models.Kind, id int) error {
	req := client.Request{Method: http.MethodDelete, Path: fmt.Sprintf("/%s/%d", kind, id)}
	if _, err := client.Call(ctx, a.client, op, req, client.DecodeNone(http.StatusNoContent)); err != nil {
		return err
	}

	a.logger.Info().
		Str("kind", string(kind)).
		Int("id", id).
		Msg("Entity deleted")
	a.publish(events.EntityChanged{Kind: kind, ID: id, Action: events.ActionDeleted})
	return nil
}

// Delete removes the entity of kind with id. Payments cannot be deleted.
func (a *API) Delete(ctx context.Context, kind models.Kind, id int) error {
	switch kind {
	case models.KindFaculty:
		return a.DeleteFaculty(ctx, id)
	case models.KindCathedra:
		return a.DeleteCathedra(ctx, id)
	case models.KindGroup:
		return a.DeleteGroup(ctx, id)
	case models.KindLesson:
		return a.DeleteLesson(ctx, id)
	default:
		return fmt.Errorf("%w: cannot delete %q", ErrInvalidInput, kind)
	}
}
