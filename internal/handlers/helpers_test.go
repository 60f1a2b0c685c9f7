package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/store"
)

// memUserStore is an in-memory UserStore for handler tests.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]store.User // by email
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]store.User)}
}

func (m *memUserStore) CreateUser(_ context.Context, u store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return store.ErrEmailTaken
	}
	u.CreatedAt = time.Now()
	m.users[u.Email] = u
	return nil
}

func (m *memUserStore) UserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

// memCVStore is an in-memory CVStore for handler tests.
type memCVStore struct {
	mu  sync.Mutex
	cvs map[string]store.CV
}

func newMemCVStore() *memCVStore {
	return &memCVStore{cvs: make(map[string]store.CV)}
}

func (m *memCVStore) SaveCV(_ context.Context, c store.CV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.cvs[c.ID]; ok && existing.OwnerID != c.OwnerID {
		return nil // silently ignored, matches owner-scoped upsert
	}
	c.UpdatedAt = time.Now()
	m.cvs[c.ID] = c
	return nil
}

func (m *memCVStore) CVByID(_ context.Context, id, ownerID string) (store.CV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cvs[id]
	if !ok || c.OwnerID != ownerID {
		return store.CV{}, store.ErrNotFound
	}
	return c, nil
}

func (m *memCVStore) PreviewCV(_ context.Context, id string) (store.CV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cvs[id]
	if !ok {
		return store.CV{}, store.ErrNotFound
	}
	return c, nil
}

func (m *memCVStore) ListCVs(_ context.Context, ownerID string) ([]store.CV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.CV
	for _, c := range m.cvs {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCVStore) DeleteCV(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cvs[id]
	if !ok || c.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(m.cvs, id)
	return nil
}

func testTokenManager(t *testing.T) *auth.Manager {
	t.Helper()
	var cfg config.Config
	cfg.Auth.SessionTTL = time.Hour
	m, err := auth.NewManager(cfg, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}
