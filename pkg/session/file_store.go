package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Sternrassler/univ-admin-client/pkg/models"
)

type fileState struct {
	Token string          `json:"token,omitempty"`
	User  json.RawMessage `json:"user,omitempty"`
}

// FileStore keeps the session in a JSON file readable only by its owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. The file is created on the
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() (fileState, error) {
	var st fileState
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read session file: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decode session file: %w", err)
	}
	return st, nil
}

func (s *FileStore) save(st fileState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) update(fn func(*fileState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	return s.save(st)
}

func (s *FileStore) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return "", err
	}
	if st.Token == "" {
		return "", ErrNoSession
	}
	return st.Token, nil
}

func (s *FileStore) SetToken(_ context.Context, token string) error {
	return s.update(func(st *fileState) error {
		st.Token = token
		return nil
	})
}

func (s *FileStore) User(context.Context) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(st.User) == 0 {
		return nil, ErrNoSession
	}
	return models.ParseUser(st.User)
}

func (s *FileStore) SetUser(_ context.Context, u models.User) error {
	data, err := models.EncodeUser(u)
	if err != nil {
		return err
	}
	return s.update(func(st *fileState) error {
		st.User = data
		return nil
	})
}

// Clear removes the session file.
func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
