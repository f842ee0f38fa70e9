package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// MockUserStore implements store.UserStore for testing
type MockUserStore struct {
	// GetByIDFn overrides the default lookup when set
	GetByIDFn func(ctx context.Context, id int64) (*domain.User, error)

	// Err is returned from GetByID when set
	Err error

	mu    sync.RWMutex
	users map[int64]domain.User
}

var _ store.UserStore = (*MockUserStore)(nil)

// NewMockUserStore creates a store holding users.
func NewMockUserStore(users ...domain.User) *MockUserStore {
	m := &MockUserStore{users: make(map[int64]domain.User)}
	for _, u := range users {
		m.Add(u)
	}
	return m
}

// Add inserts or replaces a user.
func (m *MockUserStore) Add(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

// GetByID implements the UserStore interface
func (m *MockUserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &user, nil
}

func (m *MockUserStore) ref(id int64) (domain.UserRef, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return domain.UserRef{}, false
	}
	return user.Ref(), true
}
