package realtime

import (
	"context"
	"fmt"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// dispatch routes one frame by its type and returns the type label used
// for metrics.
func (s *session) dispatch(ctx context.Context, raw []byte) (string, error) {
	msg, err := decodeMessage(raw)
	if err != nil {
		return "invalid", err
	}

	switch msg.Type {
	case "", TypeNewComment:
		return TypeNewComment, s.createComment(ctx, msg)
	case TypeTyping:
		return TypeTyping, s.typing(ctx)
	case TypeEditComment:
		return TypeEditComment, s.editComment(ctx, msg)
	case TypeDeleteComment:
		return TypeDeleteComment, s.deleteComment(ctx, msg)
	default:
		return "unknown", fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
}

func (s *session) sendHistory(ctx context.Context) error {
	comments, err := s.h.comments.ListByTask(ctx, s.task.ID)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}

	data, err := encode(envelope{Type: TypeHistory, Data: toViews(ctx, comments, s.h.signer)})
	if err != nil {
		return err
	}
	if err := s.conn.Send(data); err != nil {
		return fmt.Errorf("send history: %w", err)
	}
	s.log.Debug("history sent", "comment_count", len(comments))
	return nil
}

func (s *session) createComment(ctx context.Context, msg inboundMessage) error {
	req := newCommentRequest{Text: msg.Text, MentionIDs: msg.MentionIDs}
	if err := validateRequest(s.h.validate, req); err != nil {
		return err
	}
	if err := domain.ValidateCommentText(req.Text); err != nil {
		return err
	}
	mentionIDs, err := domain.NormalizeMentionIDs(req.MentionIDs)
	if err != nil {
		return err
	}

	comment, err := s.h.comments.Create(ctx, store.NewComment{
		TaskID:     s.task.ID,
		AuthorID:   s.user.ID,
		Text:       req.Text,
		MentionIDs: mentionIDs,
	})
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}

	s.log.Info("comment created", "comment_id", comment.ID, "mention_count", len(comment.Mentions))
	return s.publish(ctx, TypeNewComment, 0, envelope{
		Type: TypeNewComment,
		Data: toView(ctx, *comment, s.h.signer),
	})
}

func (s *session) typing(ctx context.Context) error {
	return s.publish(ctx, TypeTyping, s.user.ID, typingNotice{
		Type:     TypeTyping,
		UserID:   s.user.ID,
		Username: s.user.Username,
	})
}

func (s *session) editComment(ctx context.Context, msg inboundMessage) error {
	req := editCommentRequest{CommentID: msg.CommentID, Text: msg.Text, MentionIDs: msg.MentionIDs}
	if err := validateRequest(s.h.validate, req); err != nil {
		return err
	}
	if err := domain.ValidateCommentText(req.Text); err != nil {
		return err
	}
	mentionIDs, err := domain.NormalizeMentionIDs(req.MentionIDs)
	if err != nil {
		return err
	}

	comment, err := s.taskComment(ctx, req.CommentID)
	if err != nil {
		return err
	}
	if !s.h.access.CanModifyComment(comment, s.user) {
		return ErrEditForbidden
	}

	updated, err := s.h.comments.Update(ctx, comment.ID, req.Text, mentionIDs)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}

	s.log.Info("comment edited", "comment_id", updated.ID)
	return s.publish(ctx, TypeEditComment, 0, envelope{
		Type: TypeEditComment,
		Data: toView(ctx, *updated, s.h.signer),
	})
}

func (s *session) deleteComment(ctx context.Context, msg inboundMessage) error {
	req := deleteCommentRequest{CommentID: msg.CommentID}
	if err := validateRequest(s.h.validate, req); err != nil {
		return err
	}

	comment, err := s.taskComment(ctx, req.CommentID)
	if err != nil {
		return err
	}
	if !s.h.access.CanModifyComment(comment, s.user) {
		return ErrDeleteForbidden
	}

	if err := s.h.comments.Delete(ctx, comment.ID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	s.log.Info("comment deleted", "comment_id", comment.ID)
	return s.publish(ctx, TypeDeleteComment, 0, envelope{
		Type: TypeDeleteComment,
		Data: deletedComment{CommentID: comment.ID},
	})
}

// taskComment loads a comment of the session's task. Comments of other
// tasks are reported as not found.
func (s *session) taskComment(ctx context.Context, id int64) (*domain.Comment, error) {
	comment, err := s.h.comments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	if comment.TaskID != s.task.ID {
		return nil, fmt.Errorf("%w: comment %d belongs to task %d", store.ErrCommentNotFound, id, comment.TaskID)
	}
	return comment, nil
}

// publish hands a broadcast to the event bus. The write that produced it
// has already succeeded, so a publish failure is logged and not reported.
func (s *session) publish(ctx context.Context, eventType string, excludeUserID int64, message any) error {
	event, err := events.NewBroadcastEvent(s.task.ID, eventType, excludeUserID, message)
	if err != nil {
		return fmt.Errorf("encode %s broadcast: %w", eventType, err)
	}
	if err := s.h.emitter.EmitEvent(ctx, event); err != nil {
		s.log.Error("failed to publish broadcast",
			"event_type", eventType,
			"event_id", event.ID,
			"error", redact.Error(err))
	}
	return nil
}
