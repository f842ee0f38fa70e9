package store

import (
	"context"

	"github.com/phrazzld/taskflow-api/internal/domain"
)

// NewComment carries the fields a caller supplies when posting a comment.
// The store assigns the id and timestamps.
type NewComment struct {
	TaskID         int64
	AuthorID       int64
	Text           string
	AttachmentPath *string
	MentionIDs     []int64
}

// CommentStore defines the interface for comment persistence. Every method
// returning a comment returns it enriched with author and mention identities.
type CommentStore interface {
	// ListByTask returns all comments of a task ordered by creation time,
	// oldest first, ties broken by id. An unknown task yields an empty slice.
	ListByTask(ctx context.Context, taskID int64) ([]domain.Comment, error)

	// GetByID retrieves a comment by its unique ID.
	// Returns ErrCommentNotFound if the comment does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Comment, error)

	// Create saves a comment and its mentions atomically.
	// Returns ErrInvalidEntity if the task, author or a mentioned user does not exist.
	Create(ctx context.Context, c NewComment) (*domain.Comment, error)

	// Update replaces the text and the full mention set of a comment and
	// marks it edited. An empty mentionIDs clears all mentions.
	// Returns ErrCommentNotFound if the comment does not exist.
	Update(ctx context.Context, id int64, text string, mentionIDs []int64) (*domain.Comment, error)

	// Delete removes a comment together with its mentions.
	// Returns ErrCommentNotFound if the comment does not exist.
	Delete(ctx context.Context, id int64) error
}
