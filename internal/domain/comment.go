package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

// MaxCommentLength is the maximum number of characters in a comment's text.
const MaxCommentLength = 10000

// Common validation errors for Comment
var (
	ErrEmptyCommentText   = fmt.Errorf("%w: comment text cannot be empty", ErrEmptyContent)
	ErrCommentTextTooLong = fmt.Errorf("%w: comment text exceeds %d characters", ErrContentTooLong, MaxCommentLength)
	ErrInvalidMentionID   = fmt.Errorf("%w: mention id", ErrInvalidID)
)

// Comment is a message posted on a task. Mentions are returned in the order
// the store enriches them; callers compare them as a set.
type Comment struct {
	ID             int64     `json:"id"`
	TaskID         int64     `json:"task_id"`
	AuthorID       int64     `json:"author_id"`
	Author         UserRef   `json:"author"`
	Text           string    `json:"text"`
	AttachmentPath *string   `json:"attachment_path"`
	IsEdited       bool      `json:"is_edited"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Mentions       []UserRef `json:"mentions"`
}

// MentionIDs returns the ids of the mentioned users.
func (c *Comment) MentionIDs() []int64 {
	return lo.Map(c.Mentions, func(m UserRef, _ int) int64 { return m.ID })
}

// ValidateCommentText checks that text is non-blank and within MaxCommentLength.
func ValidateCommentText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyCommentText
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return ErrCommentTextTooLong
	}
	return nil
}

// NormalizeMentionIDs drops duplicate ids while keeping first-seen order.
// A nil input yields an empty, non-nil slice so callers can always replace
// a mention set with the result.
func NormalizeMentionIDs(ids []int64) ([]int64, error) {
	for _, id := range ids {
		if id <= 0 {
			return nil, ErrInvalidMentionID
		}
	}
	if len(ids) == 0 {
		return []int64{}, nil
	}
	return lo.Uniq(ids), nil
}

// IsValidationError reports whether err came from domain validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrContentTooLong) ||
		errors.Is(err, ErrInvalidID)
}
