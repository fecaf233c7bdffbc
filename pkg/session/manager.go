package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/univ-admin-client/pkg/api"
	"github.com/Sternrassler/univ-admin-client/pkg/client"
	"github.com/Sternrassler/univ-admin-client/pkg/events"
	"github.com/Sternrassler/univ-admin-client/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend is the part of the API the manager drives.
type Backend interface {
	LogIn(ctx context.Context, creds api.Credentials) (string, error)
	LogOut(ctx context.Context) error
	UserData(ctx context.Context) (models.User, error)
}

// Reasons carried by events.SessionInvalidated.
const (
	ReasonLogout    = "logout"
	ReasonForbidden = "forbidden"
)

var (
	_ client.TokenSource      = (*Manager)(nil)
	_ client.ForbiddenHandler = (*Manager)(nil)
)

// Manager owns the session. It is the client's token source and forbidden
// handler, so a 403 on any call ends the session.
//
// Every write to the store happens under sessionMu, and a user is only stored
// while the token it was loaded with is still the stored one.
type Manager struct {
	store  Store
	bus    *events.Bus
	logger zerolog.Logger

	mu      sync.Mutex
	backend Backend

	sessionMu sync.Mutex
}

// NewManager creates a manager over store. bus may be nil.
func NewManager(store Store, bus *events.Bus) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		store:  store,
		bus:    bus,
		logger: log.With().Str("component", "session").Logger(),
	}
}

// Attach sets the backend used by LogIn, LogOut and RefreshUser. The API is
// built on a client that already references the manager, so it is attached
// after construction.
func (m *Manager) Attach(b Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backend = b
}

func (m *Manager) attached() (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backend == nil {
		return nil, errors.New("session manager has no backend")
	}
	return m.backend, nil
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Token implements client.TokenSource. No session yields an empty token.
func (m *Manager) Token(ctx context.Context) (string, error) {
	token, err := m.store.Token(ctx)
	if errors.Is(err, ErrNoSession) {
		return "", nil
	}
	return token, err
}

// HandleForbidden implements client.ForbiddenHandler: the stored session is
// dropped and SessionInvalidated is published. A 403 for a request that
// carried a different token than the stored one belongs to a session that is
// already gone and is ignored.
func (m *Manager) HandleForbidden(ctx context.Context, operation, token string) {
	ctx = context.WithoutCancel(ctx)

	m.sessionMu.Lock()
	current, err := m.Token(ctx)
	if err == nil && current != "" && current != token {
		m.sessionMu.Unlock()
		m.logger.Debug().
			Str("operation", operation).
			Msg("Ignoring 403 for a replaced session")
		return
	}
	m.logger.Warn().
		Str("operation", operation).
		Msg("Backend rejected session, logging out")
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error().Err(err).Msg("Failed to clear session")
	}
	m.sessionMu.Unlock()

	m.publish(events.SessionInvalidated{Reason: ReasonForbidden})
}

// LogIn starts a session, stores its token and loads the user. When the new
// session is invalidated before its user is stored, LogIn fails with
// client.ErrSessionInvalidated and nothing is kept.
func (m *Manager) LogIn(ctx context.Context, creds api.Credentials) (models.User, error) {
	b, err := m.attached()
	if err != nil {
		return nil, err
	}

	token, err := b.LogIn(ctx, creds)
	if err != nil {
		return nil, err
	}
	m.sessionMu.Lock()
	err = m.store.SetToken(ctx, token)
	m.sessionMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	user, err := m.loadUser(ctx, b, token)
	if err != nil {
		m.clearIfCurrent(ctx, token)
		return nil, err
	}

	m.logger.Info().
		Str("login", user.UserProfile().LoginName).
		Str("role", string(user.Role())).
		Msg("Logged in")
	return user, nil
}

// RefreshUser reloads the signed-in user and stores it.
func (m *Manager) RefreshUser(ctx context.Context) (models.User, error) {
	b, err := m.attached()
	if err != nil {
		return nil, err
	}
	token, err := m.store.Token(ctx)
	if err != nil {
		return nil, err
	}
	return m.loadUser(ctx, b, token)
}

// loadUser fetches the user for the session identified by token and stores it
// only if that session is still the current one.
func (m *Manager) loadUser(ctx context.Context, b Backend, token string) (models.User, error) {
	user, err := b.UserData(ctx)
	if err != nil {
		return nil, err
	}

	m.sessionMu.Lock()
	current, err := m.store.Token(ctx)
	switch {
	case errors.Is(err, ErrNoSession) || (err == nil && current != token):
		err = client.ErrSessionInvalidated
	case err == nil:
		if setErr := m.store.SetUser(ctx, user); setErr != nil {
			err = fmt.Errorf("store user: %w", setErr)
		}
	}
	m.sessionMu.Unlock()
	if err != nil {
		return nil, err
	}

	m.publish(events.UserUpdated{Part: events.PartEntirely})
	return user, nil
}

func (m *Manager) clearIfCurrent(ctx context.Context, token string) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	if current, err := m.store.Token(ctx); err != nil || current != token {
		return
	}
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error().Err(err).Msg("Failed to clear session")
	}
}

// LogOut ends the session on the backend and locally. When the backend call
// fails for any reason other than an already invalidated session, the local
// session is kept.
func (m *Manager) LogOut(ctx context.Context) error {
	b, err := m.attached()
	if err != nil {
		return err
	}
	if err := b.LogOut(ctx); err != nil {
		if errors.Is(err, client.ErrSessionInvalidated) {
			return nil
		}
		return err
	}
	m.sessionMu.Lock()
	err = m.store.Clear(ctx)
	m.sessionMu.Unlock()
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	m.logger.Info().Msg("Logged out")
	m.publish(events.SessionInvalidated{Reason: ReasonLogout})
	return nil
}

// CurrentUser returns the stored user or ErrNoSession.
func (m *Manager) CurrentUser(ctx context.Context) (models.User, error) {
	return m.store.User(ctx)
}

// Active reports whether a token is stored.
func (m *Manager) Active(ctx context.Context) bool {
	token, err := m.Token(ctx)
	return err == nil && token != ""
}

func (m *Manager) publish(e events.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}
