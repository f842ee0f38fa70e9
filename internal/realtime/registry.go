package realtime

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/samber/lo"
)

// Delivery is the outcome of sending one broadcast to one recipient.
type Delivery struct {
	UserID int64
	Err    error
}

// Registry routes broadcasts to the live connections of a task. It holds at
// most one connection per (task, user); a later Connect replaces the slot.
type Registry struct {
	mu      sync.RWMutex
	tasks   map[int64]map[int64]Conn
	total   int
	logger  *slog.Logger
	metrics *Metrics
}

var _ events.EventHandler = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger, metrics *Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tasks:   make(map[int64]map[int64]Conn),
		logger:  logger.With("component", "connection_registry"),
		metrics: metrics,
	}
}

// Connect registers conn as the listener of taskID for userID and returns
// the connection it replaced, if any. The replaced socket is left open.
func (r *Registry) Connect(conn Conn, taskID, userID int64) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.tasks[taskID]
	if !ok {
		group = make(map[int64]Conn)
		r.tasks[taskID] = group
	}
	previous, replaced := group[userID]
	group[userID] = conn
	if !replaced {
		r.total++
		r.metrics.setConnections(r.total)
	}
	return previous
}

// Disconnect removes the entry for (taskID, userID). Missing entries are ignored.
func (r *Registry) Disconnect(taskID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(taskID, userID)
}

// Release removes the entry for (taskID, userID) only if it still points at
// conn, so a stale session cannot evict the connection that replaced it.
func (r *Registry) Release(taskID, userID int64, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.tasks[taskID][userID]; !ok || current != conn {
		return false
	}
	r.removeLocked(taskID, userID)
	return true
}

func (r *Registry) removeLocked(taskID, userID int64) {
	group, ok := r.tasks[taskID]
	if !ok {
		return
	}
	if _, ok := group[userID]; !ok {
		return
	}
	delete(group, userID)
	if len(group) == 0 {
		delete(r.tasks, taskID)
	}
	r.total--
	r.metrics.setConnections(r.total)
}

// Broadcast sends message to every listener of taskID.
func (r *Registry) Broadcast(taskID int64, message []byte) []Delivery {
	return r.BroadcastExcept(taskID, message, 0)
}

// BroadcastExcept sends message to every listener of taskID except
// excludeUserID. Recipients whose send fails are pruned and their socket
// closed; the others are unaffected.
func (r *Registry) BroadcastExcept(taskID int64, message []byte, excludeUserID int64) []Delivery {
	type recipient struct {
		userID int64
		conn   Conn
	}

	r.mu.RLock()
	recipients := make([]recipient, 0, len(r.tasks[taskID]))
	for userID, conn := range r.tasks[taskID] {
		if excludeUserID != 0 && userID == excludeUserID {
			continue
		}
		recipients = append(recipients, recipient{userID: userID, conn: conn})
	}
	r.mu.RUnlock()

	deliveries := make([]Delivery, 0, len(recipients))
	for _, rc := range recipients {
		err := rc.conn.Send(message)
		deliveries = append(deliveries, Delivery{UserID: rc.userID, Err: err})
		if err == nil {
			continue
		}

		r.logger.Warn("dropping unreachable listener",
			"task_id", taskID,
			"user_id", rc.userID,
			"conn_id", rc.conn.ID(),
			"error", err)
		if r.Release(taskID, rc.userID, rc.conn) {
			_ = rc.conn.Close(websocket.CloseTryAgainLater, "connection not keeping up") //nolint:errcheck
		}
	}
	return deliveries
}

// Count returns the number of listeners of taskID.
func (r *Registry) Count(taskID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks[taskID])
}

// Tasks returns the ids of tasks with at least one listener, ascending.
func (r *Registry) Tasks() []int64 {
	r.mu.RLock()
	ids := lo.Keys(r.tasks)
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// CloseAll closes every registered connection with code and empties the registry.
func (r *Registry) CloseAll(code int, reason string) {
	r.mu.Lock()
	conns := make([]Conn, 0, r.total)
	for _, group := range r.tasks {
		conns = append(conns, lo.Values(group)...)
	}
	r.tasks = make(map[int64]map[int64]Conn)
	r.total = 0
	r.metrics.setConnections(0)
	r.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(code, reason) //nolint:errcheck
	}
	r.logger.Info("closed all listeners", "count", len(conns))
}

// HandleEvent delivers a bus event to the local listeners of its task.
// Delivery failures are handled by pruning and never fail the event.
func (r *Registry) HandleEvent(ctx context.Context, event *events.BroadcastEvent) error {
	deliveries := r.BroadcastExcept(event.TaskID, event.Payload, event.ExcludeUserID)
	failed := lo.CountBy(deliveries, func(d Delivery) bool { return d.Err != nil })

	r.metrics.recordBroadcast(event.Type)
	r.metrics.recordDeliveryFailures(failed)
	r.logger.Debug("broadcast delivered",
		"event_id", event.ID,
		"event_type", event.Type,
		"task_id", event.TaskID,
		"recipients", len(deliveries),
		"failed", failed)
	return nil
}
