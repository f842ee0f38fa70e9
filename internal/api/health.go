package api

import (
	"context"
	"net/http"
	"time"

	"github.com/phrazzld/taskflow-api/internal/api/shared"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// TaskLister reports the tasks with live listeners.
type TaskLister interface {
	Tasks() []int64
}

// HealthResponse is the body of a healthy /health reply.
type HealthResponse struct {
	Status      string `json:"status"`
	ActiveTasks int    `json:"active_tasks"`
}

// HealthHandler reports whether the database is reachable.
type HealthHandler struct {
	db       Pinger
	registry TaskLister
	timeout  time.Duration
}

// NewHealthHandler creates a health handler with a two second ping budget.
func NewHealthHandler(db Pinger, registry TaskLister) *HealthHandler {
	return &HealthHandler{db: db, registry: registry, timeout: 2 * time.Second}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "database unavailable", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:      "ok",
		ActiveTasks: len(h.registry.Tasks()),
	})
}
