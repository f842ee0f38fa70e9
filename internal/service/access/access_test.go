package access

import (
	"testing"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCanAccessTask(t *testing.T) {
	t.Parallel()

	task := &domain.Task{ID: 7, CreatorID: 1, AssigneeIDs: []int64{2}, WatcherIDs: []int64{3}}

	tests := []struct {
		name string
		user *domain.User
		want bool
	}{
		{name: "creator", user: &domain.User{ID: 1}, want: true},
		{name: "assignee", user: &domain.User{ID: 2}, want: true},
		{name: "watcher", user: &domain.User{ID: 3}, want: true},
		{name: "superuser outsider", user: &domain.User{ID: 9, IsSuperuser: true}, want: true},
		{name: "outsider", user: &domain.User{ID: 4}, want: false},
		{name: "nil user", user: nil, want: false},
	}

	policy := NewPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, policy.CanAccessTask(task, tt.user))
		})
	}

	assert.False(t, policy.CanAccessTask(nil, &domain.User{ID: 1}))
}

func TestCanModifyComment(t *testing.T) {
	t.Parallel()

	comment := &domain.Comment{ID: 10, TaskID: 7, AuthorID: 1}

	tests := []struct {
		name string
		user *domain.User
		want bool
	}{
		{name: "author", user: &domain.User{ID: 1}, want: true},
		{name: "superuser", user: &domain.User{ID: 9, IsSuperuser: true}, want: true},
		{name: "assignee who is not the author", user: &domain.User{ID: 2}, want: false},
		{name: "nil user", user: nil, want: false},
	}

	policy := NewPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, policy.CanModifyComment(comment, tt.user))
		})
	}
}

func TestIsSuperuser(t *testing.T) {
	t.Parallel()
	assert.True(t, IsSuperuser(&domain.User{IsSuperuser: true}))
	assert.False(t, IsSuperuser(&domain.User{}))
	assert.False(t, IsSuperuser(nil))
}
