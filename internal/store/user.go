package store

import (
	"context"

	"github.com/phrazzld/taskflow-api/internal/domain"
)

// UserStore provides read access to user accounts. Account management
// belongs to the REST layer; the comment channel only resolves identities.
type UserStore interface {
	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}
