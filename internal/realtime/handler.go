package realtime

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/service/access"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/samber/lo"
)

// Dependencies are the collaborators of the comment channel handler.
// Signer and Metrics are optional.
type Dependencies struct {
	Tokens   auth.JWTService
	Users    store.UserStore
	Tasks    store.TaskStore
	Comments store.CommentStore
	Access   access.Checker
	Registry *Registry
	Emitter  events.EventEmitter
	Signer   AttachmentSigner
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Handler upgrades requests on /tasks/{task_id}/comments and runs one
// session per connection.
type Handler struct {
	tokens   auth.JWTService
	users    store.UserStore
	tasks    store.TaskStore
	comments store.CommentStore
	access   access.Checker
	registry *Registry
	emitter  events.EventEmitter
	signer   AttachmentSigner
	metrics  *Metrics
	logger   *slog.Logger

	upgrader websocket.Upgrader
	validate *validator.Validate
	connOpts connOptions
}

// NewHandler validates deps and builds the handler.
func NewHandler(deps Dependencies, cfg config.RealtimeConfig, allowedOrigins []string) (*Handler, error) {
	switch {
	case deps.Tokens == nil:
		return nil, errors.New("realtime: token service is required")
	case deps.Users == nil, deps.Tasks == nil, deps.Comments == nil:
		return nil, errors.New("realtime: user, task and comment stores are required")
	case deps.Access == nil:
		return nil, errors.New("realtime: access checker is required")
	case deps.Registry == nil:
		return nil, errors.New("realtime: registry is required")
	case deps.Emitter == nil:
		return nil, errors.New("realtime: event emitter is required")
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		tokens:   deps.Tokens,
		users:    deps.Users,
		tasks:    deps.Tasks,
		comments: deps.Comments,
		access:   deps.Access,
		registry: deps.Registry,
		emitter:  deps.Emitter,
		signer:   deps.Signer,
		metrics:  deps.Metrics,
		logger:   log.With("component", "comment_channel"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		validate: validator.New(),
		connOpts: connOptions{
			sendBuffer:      cfg.SendBufferSize,
			maxMessageBytes: cfg.MaxMessageBytes,
			pingInterval:    cfg.PingInterval,
			pongWait:        cfg.PongWait,
			writeWait:       cfg.WriteWait,
		},
	}, nil
}

// originChecker allows requests without an Origin header (non-browser
// clients) and browser requests from an allowed origin. An empty list or
// "*" allows every origin.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.ContainsBy(allowed, func(a string) bool {
			return strings.EqualFold(a, origin)
		})
	}
}

// bearerToken reads the access token from the "token" query parameter,
// which browsers can set on a WebSocket URL, falling back to the
// Authorization header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rawTaskID := chi.URLParam(r, "task_id")
	token := bearerToken(r)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error response.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	conn := newWSConn(uuid.NewString(), ws, h.connOpts)
	go conn.writeLoop()

	s := &session{
		h:     h,
		conn:  conn,
		log:   logger.FromContextOrDefault(r.Context(), h.logger).With("conn_id", conn.ID()),
		state: StateConnecting,
	}
	s.run(r.Context(), rawTaskID, token)

	select {
	case <-conn.Done():
	case <-time.After(2 * h.connOpts.writeWait):
		_ = ws.Close()
	}
}
