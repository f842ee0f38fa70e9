package mocks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// MockCommentStore is an in-memory store.CommentStore. Authors and mentions
// are resolved against a MockUserStore, and unknown users are rejected
// the way a foreign key would reject them.
type MockCommentStore struct {
	// Function fields override the default behavior when set
	ListByTaskFn func(ctx context.Context, taskID int64) ([]domain.Comment, error)
	CreateFn     func(ctx context.Context, c store.NewComment) (*domain.Comment, error)

	// Err is returned from every method when set
	Err error

	users *MockUserStore

	mu       sync.RWMutex
	comments map[int64]domain.Comment
	nextID   int64
	clock    time.Time
}

var _ store.CommentStore = (*MockCommentStore)(nil)

// NewMockCommentStore creates an empty store resolving users from users.
func NewMockCommentStore(users *MockUserStore) *MockCommentStore {
	return &MockCommentStore{
		users:    users,
		comments: make(map[int64]domain.Comment),
		nextID:   1,
		clock:    time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

// tick advances the store clock so successive writes are strictly ordered.
func (m *MockCommentStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *MockCommentStore) mentions(ids []int64) ([]domain.UserRef, error) {
	refs := make([]domain.UserRef, 0, len(ids))
	for _, id := range ids {
		ref, ok := m.users.ref(id)
		if !ok {
			return nil, store.ErrInvalidEntity
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// ListByTask implements the CommentStore interface
func (m *MockCommentStore) ListByTask(ctx context.Context, taskID int64) ([]domain.Comment, error) {
	if m.ListByTaskFn != nil {
		return m.ListByTaskFn(ctx, taskID)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.RLock()
	out := make([]domain.Comment, 0)
	for _, c := range m.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Comment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

// GetByID implements the CommentStore interface
func (m *MockCommentStore) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, store.ErrCommentNotFound
	}
	return &c, nil
}

// Create implements the CommentStore interface
func (m *MockCommentStore) Create(ctx context.Context, nc store.NewComment) (*domain.Comment, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, nc)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	author, ok := m.users.ref(nc.AuthorID)
	if !ok {
		return nil, store.ErrInvalidEntity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mentions, err := m.mentions(nc.MentionIDs)
	if err != nil {
		return nil, err
	}

	now := m.tick()
	c := domain.Comment{
		ID:             m.nextID,
		TaskID:         nc.TaskID,
		AuthorID:       nc.AuthorID,
		Author:         author,
		Text:           nc.Text,
		AttachmentPath: nc.AttachmentPath,
		CreatedAt:      now,
		UpdatedAt:      now,
		Mentions:       mentions,
	}
	m.nextID++
	m.comments[c.ID] = c
	return &c, nil
}

// Update implements the CommentStore interface
func (m *MockCommentStore) Update(ctx context.Context, id int64, text string, mentionIDs []int64) (*domain.Comment, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok {
		return nil, store.ErrCommentNotFound
	}
	mentions, err := m.mentions(mentionIDs)
	if err != nil {
		return nil, err
	}

	c.Text = text
	c.Mentions = mentions
	c.IsEdited = true
	c.UpdatedAt = m.tick()
	m.comments[id] = c
	return &c, nil
}

// Delete implements the CommentStore interface
func (m *MockCommentStore) Delete(ctx context.Context, id int64) error {
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return store.ErrCommentNotFound
	}
	delete(m.comments, id)
	return nil
}

// Len returns the number of stored comments.
func (m *MockCommentStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.comments)
}
