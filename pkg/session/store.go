// Package session keeps the signed-in user's token and profile and performs
// the logout that follows a forbidden response.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/Sternrassler/univ-admin-client/pkg/models"
)

// ErrNoSession is returned by stores that hold no token or no user.
var ErrNoSession = errors.New("no session")

// Store persists the session token and the signed-in user.
type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	User(ctx context.Context) (models.User, error)
	SetUser(ctx context.Context, u models.User) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	user  models.User
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoSession
	}
	return s.token, nil
}

func (s *MemoryStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) User(context.Context) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, ErrNoSession
	}
	return s.user, nil
}

func (s *MemoryStore) SetUser(_ context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	return nil
}
