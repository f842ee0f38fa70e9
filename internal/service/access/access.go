// Package access decides who may read a task's comment channel and who may
// change a comment.
package access

import "github.com/phrazzld/taskflow-api/internal/domain"

// Checker answers access questions for the comment channel.
type Checker interface {
	// CanAccessTask reports whether user may view and comment on task.
	CanAccessTask(task *domain.Task, user *domain.User) bool
	// CanModifyComment reports whether user may edit or delete comment.
	CanModifyComment(comment *domain.Comment, user *domain.User) bool
}

// Policy is the task membership policy: creators, assignees and watchers
// see a task, and superusers see everything. Only a comment's author or a
// superuser may change it.
type Policy struct{}

// NewPolicy returns the default membership policy.
func NewPolicy() Policy {
	return Policy{}
}

var _ Checker = Policy{}

// IsSuperuser reports whether user has elevated rights.
func IsSuperuser(user *domain.User) bool {
	return user != nil && user.IsSuperuser
}

// CanAccessTask implements Checker.
func (Policy) CanAccessTask(task *domain.Task, user *domain.User) bool {
	if task == nil || user == nil {
		return false
	}
	if IsSuperuser(user) {
		return true
	}
	return task.CreatorID == user.ID || task.IsAssignee(user.ID) || task.IsWatcher(user.ID)
}

// CanModifyComment implements Checker.
func (Policy) CanModifyComment(comment *domain.Comment, user *domain.User) bool {
	if comment == nil || user == nil {
		return false
	}
	return comment.AuthorID == user.ID || IsSuperuser(user)
}
