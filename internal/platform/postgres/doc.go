// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package.
//
// The stores expect the following tables, managed outside this service:
//
//	users            (id, username, email, is_active, is_superuser)
//	tasks            (id, title, creator_id)
//	task_assignees   (task_id, user_id)
//	task_watchers    (task_id, user_id)
//	comments         (id, task_id, author_id, text, attachment_path,
//	                  is_edited, created_at, updated_at)
//	comment_mentions (comment_id, user_id), primary key on both columns,
//	                  foreign keys to comments and users
//
// Connections are opened through the pgx database/sql driver registered by
// github.com/jackc/pgx/v5/stdlib.
package postgres
