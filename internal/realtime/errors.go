package realtime

import (
	"errors"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// Per-message request errors.
var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownType      = errors.New("unknown message type")
	ErrMissingCommentID = errors.New("comment_id is required")
	ErrEditForbidden    = errors.New("edit not permitted")
	ErrDeleteForbidden  = errors.New("delete not permitted")
)

const serverErrorMessage = "Server error"

// errorMessage maps a dispatch error to the message sent to the client.
// Unrecognized errors never reach the client verbatim.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		return "Invalid message format"
	case errors.Is(err, ErrUnknownType):
		return "Unknown message type"
	case errors.Is(err, ErrMissingCommentID):
		return "comment_id is required"
	case errors.Is(err, domain.ErrEmptyCommentText):
		return "Comment text cannot be empty"
	case errors.Is(err, domain.ErrCommentTextTooLong):
		return "Comment text is too long"
	case errors.Is(err, domain.ErrInvalidMentionID):
		return "Invalid mention ids"
	case errors.Is(err, store.ErrCommentNotFound):
		return "Comment not found"
	case errors.Is(err, ErrEditForbidden):
		return "You don't have permission to edit this comment"
	case errors.Is(err, ErrDeleteForbidden):
		return "You don't have permission to delete this comment"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Mentioned user not found"
	case domain.IsValidationError(err):
		return "Invalid message"
	default:
		return serverErrorMessage
	}
}
