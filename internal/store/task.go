package store

import (
	"context"

	"github.com/phrazzld/taskflow-api/internal/domain"
)

// TaskStore provides read access to tasks and their membership.
type TaskStore interface {
	// GetByID retrieves a task with its assignee and watcher ids.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
}
