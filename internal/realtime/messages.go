package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/samber/lo"
)

// Message types carried in the "type" field.
const (
	TypeNewComment    = "new_comment"
	TypeEditComment   = "edit_comment"
	TypeDeleteComment = "delete_comment"
	TypeTyping        = "typing"
	TypeHistory       = "history"
	TypeError         = "error"
)

// inboundMessage is any client frame. A missing type means a new comment.
type inboundMessage struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	MentionIDs []int64 `json:"mention_ids"`
	CommentID  int64   `json:"comment_id"`
}

type newCommentRequest struct {
	Text       string  `validate:"required,max=10000"`
	MentionIDs []int64 `validate:"omitempty,dive,gt=0"`
}

type editCommentRequest struct {
	CommentID  int64   `validate:"required,gt=0"`
	Text       string  `validate:"required,max=10000"`
	MentionIDs []int64 `validate:"omitempty,dive,gt=0"`
}

type deleteCommentRequest struct {
	CommentID int64 `validate:"required,gt=0"`
}

func decodeMessage(raw []byte) (inboundMessage, error) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return inboundMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return msg, nil
}

// validateRequest runs struct validation and maps the first failure to a
// domain or request error.
func validateRequest(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	fe := fieldErrs[0]
	switch {
	case fe.StructField() == "CommentID":
		return ErrMissingCommentID
	case fe.StructField() == "Text" && fe.Tag() == "max":
		return domain.ErrCommentTextTooLong
	case fe.StructField() == "Text":
		return domain.ErrEmptyCommentText
	case strings.HasPrefix(fe.StructField(), "MentionIDs"):
		return domain.ErrInvalidMentionID
	default:
		return fmt.Errorf("%w: %s", domain.ErrValidation, fe.Error())
	}
}

type envelope struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type typingNotice struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type deletedComment struct {
	CommentID int64 `json:"comment_id"`
}

// commentView is the wire form of a comment.
type commentView struct {
	domain.Comment
	AttachmentURL string `json:"attachment_url,omitempty"`
}

// AttachmentSigner issues download URLs for stored attachments.
type AttachmentSigner interface {
	PresignedURL(ctx context.Context, path string) (string, error)
}

func errorEnvelope(message string) envelope {
	return envelope{Type: TypeError, Message: message}
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

func toView(ctx context.Context, c domain.Comment, signer AttachmentSigner) commentView {
	if c.Mentions == nil {
		c.Mentions = []domain.UserRef{}
	}
	view := commentView{Comment: c}
	if signer != nil && c.AttachmentPath != nil && *c.AttachmentPath != "" {
		// An unsigned attachment still carries its path.
		if url, err := signer.PresignedURL(ctx, *c.AttachmentPath); err == nil {
			view.AttachmentURL = url
		}
	}
	return view
}

func toViews(ctx context.Context, comments []domain.Comment, signer AttachmentSigner) []commentView {
	return lo.Map(comments, func(c domain.Comment, _ int) commentView {
		return toView(ctx, c, signer)
	})
}
