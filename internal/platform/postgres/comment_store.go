package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

const commentColumns = `
	c.id, c.task_id, c.author_id, u.username, c.text, c.attachment_path,
	c.is_edited, c.created_at, c.updated_at
`

// PostgresCommentStore implements the store.CommentStore interface
// using a PostgreSQL database as the storage backend.
// Writes that touch both comments and comment_mentions run in one transaction.
type PostgresCommentStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresCommentStore creates a new PostgreSQL implementation of the CommentStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresCommentStore(db *sql.DB, logger *slog.Logger) *PostgresCommentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCommentStore{
		db:     db,
		logger: logger.With(slog.String("component", "comment_store")),
	}
}

// Ensure PostgresCommentStore implements store.CommentStore interface
var _ store.CommentStore = (*PostgresCommentStore)(nil)

// ListByTask implements store.CommentStore.ListByTask
func (s *PostgresCommentStore) ListByTask(ctx context.Context, taskID int64) ([]domain.Comment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + commentColumns + `
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.task_id = $1
		ORDER BY c.created_at ASC, c.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list comments",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	comments := []domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			log.Error("failed to scan comment row",
				slog.String("error", err.Error()),
				slog.Int64("task_id", taskID))
			return nil, err
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mentions, err := s.loadMentions(ctx, s.db, `
		SELECT m.comment_id, u.id, u.username
		FROM comment_mentions m
		JOIN comments c ON c.id = m.comment_id
		JOIN users u ON u.id = m.user_id
		WHERE c.task_id = $1
		ORDER BY m.comment_id, u.id
	`, taskID)
	if err != nil {
		log.Error("failed to load task mentions",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, err
	}
	for i := range comments {
		if refs, ok := mentions[comments[i].ID]; ok {
			comments[i].Mentions = refs
		}
	}

	log.Debug("comments listed",
		slog.Int64("task_id", taskID),
		slog.Int("count", len(comments)))
	return comments, nil
}

// GetByID implements store.CommentStore.GetByID
func (s *PostgresCommentStore) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	c, err := s.get(ctx, s.db, id)
	if err != nil && !errors.Is(err, store.ErrCommentNotFound) {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get comment by ID",
			slog.String("error", err.Error()),
			slog.Int64("comment_id", id))
	}
	return c, err
}

// Create implements store.CommentStore.Create
// The comment row and its mention rows are written in one transaction.
func (s *PostgresCommentStore) Create(ctx context.Context, nc store.NewComment) (*domain.Comment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := domain.ValidateCommentText(nc.Text); err != nil {
		return nil, err
	}
	mentionIDs, err := domain.NormalizeMentionIDs(nc.MentionIDs)
	if err != nil {
		return nil, err
	}

	var created *domain.Comment
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO comments (task_id, author_id, text, attachment_path, is_edited, created_at, updated_at)
			VALUES ($1, $2, $3, $4, false, now(), now())
			RETURNING id
		`, nc.TaskID, nc.AuthorID, nc.Text, nullString(nc.AttachmentPath)).Scan(&id)
		if err != nil {
			return MapError(err)
		}

		if err := insertMentions(ctx, tx, id, mentionIDs); err != nil {
			return err
		}

		created, err = s.get(ctx, tx, id)
		return err
	})
	if err != nil {
		log.Error("failed to create comment",
			slog.String("error", err.Error()),
			slog.Int64("task_id", nc.TaskID),
			slog.Int64("author_id", nc.AuthorID))
		return nil, err
	}

	log.Info("comment created",
		slog.Int64("comment_id", created.ID),
		slog.Int64("task_id", created.TaskID),
		slog.Int("mentions", len(created.Mentions)))
	return created, nil
}

// Update implements store.CommentStore.Update
// Text and mentions are replaced in one transaction and the comment is marked edited.
func (s *PostgresCommentStore) Update(
	ctx context.Context,
	id int64,
	text string,
	mentionIDs []int64,
) (*domain.Comment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := domain.ValidateCommentText(text); err != nil {
		return nil, err
	}
	mentionIDs, err := domain.NormalizeMentionIDs(mentionIDs)
	if err != nil {
		return nil, err
	}

	var updated *domain.Comment
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE comments
			SET text = $1, is_edited = true, updated_at = now()
			WHERE id = $2
		`, text, id)
		if err != nil {
			return MapError(err)
		}
		if err := checkRowsAffected(result, store.ErrCommentNotFound); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM comment_mentions WHERE comment_id = $1`, id); err != nil {
			return MapError(err)
		}
		if err := insertMentions(ctx, tx, id, mentionIDs); err != nil {
			return err
		}

		updated, err = s.get(ctx, tx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrCommentNotFound) {
			log.Debug("comment not found for update", slog.Int64("comment_id", id))
		} else {
			log.Error("failed to update comment",
				slog.String("error", err.Error()),
				slog.Int64("comment_id", id))
		}
		return nil, err
	}

	log.Info("comment updated",
		slog.Int64("comment_id", id),
		slog.Int("mentions", len(updated.Mentions)))
	return updated, nil
}

// Delete implements store.CommentStore.Delete
func (s *PostgresCommentStore) Delete(ctx context.Context, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comment_mentions WHERE comment_id = $1`, id); err != nil {
			return MapError(err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
		if err != nil {
			return MapError(err)
		}
		return checkRowsAffected(result, store.ErrCommentNotFound)
	})
	if err != nil {
		if errors.Is(err, store.ErrCommentNotFound) {
			log.Debug("comment not found for delete", slog.Int64("comment_id", id))
		} else {
			log.Error("failed to delete comment",
				slog.String("error", err.Error()),
				slog.Int64("comment_id", id))
		}
		return err
	}

	log.Info("comment deleted", slog.Int64("comment_id", id))
	return nil
}

// get loads one enriched comment through db, which may be a transaction.
func (s *PostgresCommentStore) get(ctx context.Context, db store.DBTX, id int64) (*domain.Comment, error) {
	query := `SELECT ` + commentColumns + `
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id = $1
	`

	c, err := scanComment(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCommentNotFound
		}
		return nil, MapError(err)
	}

	mentions, err := s.loadMentions(ctx, db, `
		SELECT m.comment_id, u.id, u.username
		FROM comment_mentions m
		JOIN users u ON u.id = m.user_id
		WHERE m.comment_id = $1
		ORDER BY u.id
	`, id)
	if err != nil {
		return nil, err
	}
	if refs, ok := mentions[id]; ok {
		c.Mentions = refs
	}
	return c, nil
}

// loadMentions groups (comment_id, user_id, username) rows by comment.
func (s *PostgresCommentStore) loadMentions(
	ctx context.Context,
	db store.DBTX,
	query string,
	arg int64,
) (map[int64][]domain.UserRef, error) {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64][]domain.UserRef)
	for rows.Next() {
		var commentID int64
		var ref domain.UserRef
		if err := rows.Scan(&commentID, &ref.ID, &ref.Username); err != nil {
			return nil, err
		}
		out[commentID] = append(out[commentID], ref)
	}
	return out, rows.Err()
}

func insertMentions(ctx context.Context, tx *sql.Tx, commentID int64, userIDs []int64) error {
	for _, userID := range userIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO comment_mentions (comment_id, user_id) VALUES ($1, $2)
		`, commentID, userID)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: mentioned user %d does not exist", store.ErrInvalidEntity, userID)
			}
			return MapError(err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (*domain.Comment, error) {
	var c domain.Comment
	var attachment sql.NullString
	err := row.Scan(
		&c.ID,
		&c.TaskID,
		&c.AuthorID,
		&c.Author.Username,
		&c.Text,
		&attachment,
		&c.IsEdited,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Author.ID = c.AuthorID
	if attachment.Valid {
		path := attachment.String
		c.AttachmentPath = &path
	}
	c.Mentions = []domain.UserRef{}
	return &c, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
