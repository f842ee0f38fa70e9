package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/mocks"
	"github.com/phrazzld/taskflow-api/internal/service/access"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "router-test-secret-long-enough-for-hs256"

func testConfig(redisURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "debug", ShutdownTimeout: time.Second},
		Auth:   config.AuthConfig{JWTSecret: testJWTSecret, TokenLifetimeMinutes: 5},
		Realtime: config.RealtimeConfig{
			SendBufferSize:  16,
			MaxMessageBytes: 64 * 1024,
			PingInterval:    time.Second,
			PongWait:        5 * time.Second,
			WriteWait:       time.Second,
		},
		Redis: config.RedisConfig{URL: redisURL, ChannelPrefix: "taskflow-test"},
	}
}

type testServer struct {
	app    *application
	server *httptest.Server
	mock   sqlmock.Sqlmock
}

// newTestServer wires an application around in-memory stores and a mocked
// database, then serves its router. Servers sharing the same stores and
// Redis behave like instances of one deployment.
func newTestServer(t *testing.T, cfg *config.Config, users *mocks.MockUserStore, tasks *mocks.MockTaskStore, comments *mocks.MockCommentStore) *testServer {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	jwtService, err := auth.NewJWTService(cfg.Auth)
	require.NoError(t, err)

	app := &application{
		config:       cfg,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		db:           db,
		userStore:    users,
		taskStore:    tasks,
		commentStore: comments,
		jwtService:   jwtService,
		accessPolicy: access.NewPolicy(),
	}
	require.NoError(t, app.setupRealtime(context.Background()))
	t.Cleanup(func() {
		app.registry.CloseAll(websocket.CloseGoingAway, "test done")
		if app.redisBus != nil {
			_ = app.redisBus.Close()
		}
	})

	router, err := app.setupRouter()
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{app: app, server: server, mock: mock}
}

func fixtures() (*mocks.MockUserStore, *mocks.MockTaskStore, *mocks.MockCommentStore) {
	users := mocks.NewMockUserStore(
		domain.User{ID: 1, Username: "alice", IsActive: true},
		domain.User{ID: 2, Username: "bob", IsActive: true},
	)
	tasks := mocks.NewMockTaskStore(domain.Task{ID: 7, Title: "Launch", CreatorID: 1, AssigneeIDs: []int64{2}})
	return users, tasks, mocks.NewMockCommentStore(users)
}

func (s *testServer) token(t *testing.T, userID int64) string {
	t.Helper()
	token, err := s.app.jwtService.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	return token
}

func (s *testServer) join(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/v1/tasks/7/comments"
	header := http.Header{"Authorization": []string{"Bearer " + s.token(t, userID)}}

	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	msg := readEnvelope(t, conn)
	require.Equal(t, "history", msg.Type)
	return conn
}

type envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg envelope
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	users, tasks, comments := fixtures()
	s := newTestServer(t, testConfig(""), users, tasks, comments)

	s.mock.ExpectPing()
	resp, err := http.Get(s.server.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	var body struct {
		Status      string `json:"status"`
		ActiveTasks int    `json:"active_tasks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 0, body.ActiveTasks)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	users, tasks, comments := fixtures()
	s := newTestServer(t, testConfig(""), users, tasks, comments)
	s.join(t, 1)

	resp, err := http.Get(s.server.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "taskflow_ws_connections 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCommentRoundTrip(t *testing.T) {
	t.Parallel()

	users, tasks, comments := fixtures()
	s := newTestServer(t, testConfig(""), users, tasks, comments)

	alice := s.join(t, 1)
	bob := s.join(t, 2)

	require.NoError(t, alice.WriteJSON(map[string]any{"text": "hello bob", "mention_ids": []int64{2}}))

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readEnvelope(t, conn)
		require.Equal(t, "new_comment", msg.Type)
		var c domain.Comment
		require.NoError(t, json.Unmarshal(msg.Data, &c))
		assert.Equal(t, "hello bob", c.Text)
		assert.Equal(t, "alice", c.Author.Username)
		assert.Equal(t, []domain.UserRef{{ID: 2, Username: "bob"}}, c.Mentions)
	}
	assert.Equal(t, 1, comments.Len())
}

func TestUnauthenticatedJoinIsRejected(t *testing.T) {
	t.Parallel()

	users, tasks, comments := fixtures()
	s := newTestServer(t, testConfig(""), users, tasks, comments)

	u := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/v1/tasks/7/comments?token=bogus"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestRedisFanOutAcrossInstances(t *testing.T) {
	t.Parallel()

	redis := miniredis.RunT(t)
	cfg := testConfig("redis://" + redis.Addr())

	users, tasks, comments := fixtures()
	first := newTestServer(t, cfg, users, tasks, comments)
	second := newTestServer(t, cfg, users, tasks, comments)

	alice := first.join(t, 1)
	bob := second.join(t, 2)

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "new_comment", "text": "across the fleet"}))

	got := readEnvelope(t, bob)
	require.Equal(t, "new_comment", got.Type)
	var c domain.Comment
	require.NoError(t, json.Unmarshal(got.Data, &c))
	assert.Equal(t, "across the fleet", c.Text)

	// The sender is served by its own instance's subscription.
	assert.Equal(t, "new_comment", readEnvelope(t, alice).Type)
}

func TestCleanupClosesConnectionsWithGoingAway(t *testing.T) {
	t.Parallel()

	users, tasks, comments := fixtures()
	s := newTestServer(t, testConfig(""), users, tasks, comments)
	conn := s.join(t, 1)

	s.mock.ExpectClose()
	s.app.cleanup()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}
