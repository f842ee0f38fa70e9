package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// State is the lifecycle stage of one comment channel connection.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateAuthorizing
	StateActive
	StateClosed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthorizing:
		return "authorizing"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

var stateTransitions = map[State][]State{
	StateConnecting:     {StateAuthenticating},
	StateAuthenticating: {StateAuthorizing, StateRejected},
	StateAuthorizing:    {StateActive, StateRejected},
	StateActive:         {StateClosed},
}

// CanTransitionTo reports whether next directly follows s.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Handshake rejection reasons, used as metric labels.
const (
	reasonMissingToken = "missing_token"
	reasonInvalidToken = "invalid_token"
	reasonExpiredToken = "expired_token"
	reasonUnknownUser  = "unknown_user"
	reasonInactiveUser = "inactive_user"
	reasonInvalidTask  = "invalid_task"
	reasonTaskNotFound = "task_not_found"
	reasonForbidden    = "forbidden"
	reasonLookupFailed = "lookup_failed"
)

// rejection ends a handshake. message is sent as the close reason.
type rejection struct {
	reason  string
	message string
	code    int
	err     error
}

func (r *rejection) Error() string {
	if r.err != nil {
		return r.reason + ": " + r.err.Error()
	}
	return r.reason
}

func reject(reason, message string, err error) *rejection {
	return &rejection{reason: reason, message: message, code: websocket.ClosePolicyViolation, err: err}
}

// session drives one connection from handshake to close.
type session struct {
	h     *Handler
	conn  *wsConn
	log   *slog.Logger
	state State
	user  *domain.User
	task  *domain.Task
}

func (s *session) transition(next State) {
	if !s.state.CanTransitionTo(next) {
		s.log.Error("invalid session transition", "from", s.state, "to", next)
		return
	}
	s.log.Debug("session state changed", "from", s.state, "to", next)
	s.state = next
}

func (s *session) run(ctx context.Context, rawTaskID, token string) {
	s.transition(StateAuthenticating)
	user, rej := s.authenticate(ctx, token)
	if rej != nil {
		s.reject(rej)
		return
	}
	s.user = user
	s.log = s.log.With("user_id", user.ID)

	s.transition(StateAuthorizing)
	task, rej := s.authorize(ctx, rawTaskID)
	if rej != nil {
		s.reject(rej)
		return
	}
	s.task = task
	s.log = s.log.With("task_id", task.ID)
	ctx = logger.WithLogger(ctx, s.log)

	s.transition(StateActive)
	if replaced := s.h.registry.Connect(s.conn, task.ID, user.ID); replaced != nil {
		s.log.Info("replaced existing listener", "replaced_conn_id", replaced.ID())
	}
	s.log.Info("comment channel opened")

	code, reason := s.serve(ctx)

	s.h.registry.Release(task.ID, user.ID, s.conn)
	_ = s.conn.Close(code, reason) //nolint:errcheck
	s.transition(StateClosed)
	s.log.Info("comment channel closed", "close_code", code)
}

func (s *session) authenticate(ctx context.Context, token string) (*domain.User, *rejection) {
	if token == "" {
		return nil, reject(reasonMissingToken, "Authentication required", nil)
	}

	claims, err := s.h.tokens.ValidateToken(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, reject(reasonExpiredToken, "Token expired", err)
		}
		return nil, reject(reasonInvalidToken, "Invalid token", err)
	}

	user, err := s.h.users.GetByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		return nil, reject(reasonUnknownUser, "Invalid token", err)
	case err != nil:
		rej := reject(reasonLookupFailed, serverErrorMessage, err)
		rej.code = websocket.CloseInternalServerErr
		return nil, rej
	case !user.IsActive:
		return nil, reject(reasonInactiveUser, "Inactive user", nil)
	}
	return user, nil
}

func (s *session) authorize(ctx context.Context, rawTaskID string) (*domain.Task, *rejection) {
	taskID, err := strconv.ParseInt(rawTaskID, 10, 64)
	if err != nil || taskID <= 0 {
		return nil, reject(reasonInvalidTask, "Task not found", domain.ErrInvalidID)
	}

	task, err := s.h.tasks.GetByID(ctx, taskID)
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		return nil, reject(reasonTaskNotFound, "Task not found", err)
	case err != nil:
		rej := reject(reasonLookupFailed, serverErrorMessage, err)
		rej.code = websocket.CloseInternalServerErr
		return nil, rej
	}

	if !s.h.access.CanAccessTask(task, s.user) {
		return nil, reject(reasonForbidden, "Access denied", nil)
	}
	return task, nil
}

func (s *session) reject(rej *rejection) {
	s.transition(StateRejected)
	s.h.metrics.recordRejection(rej.reason)
	if rej.code == websocket.CloseInternalServerErr {
		s.log.Error("handshake failed", "error", redact.String(rej.Error()))
	} else {
		s.log.Info("handshake rejected", "reason", rej.reason)
	}
	_ = s.conn.Close(rej.code, rej.message) //nolint:errcheck
}

// serve replays history and then handles messages in arrival order until
// the peer leaves or a fault occurs. It returns the close code to use.
func (s *session) serve(ctx context.Context) (int, string) {
	if err := s.sendHistory(ctx); err != nil {
		s.log.Error("failed to send history", "error", redact.Error(err))
		return s.fault()
	}

	for {
		raw, err := s.conn.readMessage()
		if err != nil {
			if s.conn.isClosing() || websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
				websocket.CloseAbnormalClosure) {
				return websocket.CloseNormalClosure, ""
			}
			s.log.Warn("read failed", "error", err)
			return s.fault()
		}

		if err := s.handle(ctx, raw); err != nil {
			return s.fault()
		}
	}
}

// fault notifies the client with a best-effort error envelope.
func (s *session) fault() (int, string) {
	if data, err := encode(errorEnvelope(serverErrorMessage)); err == nil {
		_ = s.conn.Send(data) //nolint:errcheck
	}
	return websocket.CloseInternalServerErr, serverErrorMessage
}

// handle processes one inbound frame. Request errors are answered with an
// error envelope; only a panic is returned as a fault.
func (s *session) handle(ctx context.Context, raw []byte) (fault error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic while handling message",
				"panic", r,
				"stack", string(debug.Stack()))
			fault = fmt.Errorf("panic: %v", r)
		}
	}()

	msgType, err := s.dispatch(ctx, raw)
	s.h.metrics.recordMessage(msgType, err)
	if err != nil {
		s.replyError(err)
	}
	return nil
}

func (s *session) replyError(err error) {
	message := errorMessage(err)
	if message == serverErrorMessage {
		s.log.Error("message handling failed", "error", redact.Error(err))
	} else {
		s.log.Debug("message rejected", "error", err)
	}

	data, encErr := encode(errorEnvelope(message))
	if encErr != nil {
		return
	}
	if sendErr := s.conn.Send(data); sendErr != nil {
		s.log.Warn("failed to send error envelope", "error", sendErr)
	}
}
