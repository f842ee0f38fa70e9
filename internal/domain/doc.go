// Package domain contains the core business entities of the task tracker:
// users, tasks with their assignees and watchers, and task comments with
// mentions. It is independent of any specific storage or delivery mechanism.
package domain
