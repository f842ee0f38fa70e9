// Package store defines interfaces for data persistence operations.
// These interfaces keep the comment channel independent of the database
// technology behind users, tasks and comments, and hold the shared error
// vocabulary and transaction helper used by the implementations.
package store
