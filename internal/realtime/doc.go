// Package realtime serves the per-task comment channel over WebSocket.
//
// A Handler upgrades each request, authenticates the bearer token, checks
// task membership and then runs a session that replays the comment history
// and dispatches inbound frames (new comments, edits, deletions and typing
// notices). Mutations are published as events; the Registry receives them
// and fans them out to every connection listening on the task.
package realtime
