package domain

import "slices"

// Task is a unit of work. Only the membership fields used for access
// decisions are loaded; status and description stay with the REST layer.
type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	CreatorID   int64   `json:"creator_id"`
	AssigneeIDs []int64 `json:"assignee_ids"`
	WatcherIDs  []int64 `json:"watcher_ids"`
}

// IsAssignee reports whether userID is assigned to the task.
func (t *Task) IsAssignee(userID int64) bool {
	return slices.Contains(t.AssigneeIDs, userID)
}

// IsWatcher reports whether userID watches the task.
func (t *Task) IsWatcher(userID int64) bool {
	return slices.Contains(t.WatcherIDs, userID)
}
