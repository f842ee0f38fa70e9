package mocks

import (
	"context"
	"slices"
	"sync"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// MockTaskStore implements store.TaskStore for testing
type MockTaskStore struct {
	// Err is returned from GetByID when set
	Err error

	mu    sync.RWMutex
	tasks map[int64]domain.Task
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates a store holding tasks.
func NewMockTaskStore(tasks ...domain.Task) *MockTaskStore {
	m := &MockTaskStore{tasks: make(map[int64]domain.Task)}
	for _, t := range tasks {
		m.Add(t)
	}
	return m
}

// Add inserts or replaces a task.
func (m *MockTaskStore) Add(task domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
}

// GetByID implements the TaskStore interface
func (m *MockTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	task.AssigneeIDs = slices.Clone(task.AssigneeIDs)
	task.WatcherIDs = slices.Clone(task.WatcherIDs)
	return &task, nil
}
