// Package events carries task broadcasts from the session that produced them
// to every connection registry that may hold listeners for the task.
//
// The primary components are:
//   - BroadcastEvent: an encoded wire message addressed to a task
//   - EventHandler: implemented by the connection registry
//   - InMemoryEventEmitter: synchronous delivery within one process
//   - RedisBus: pub/sub delivery across server instances
package events
