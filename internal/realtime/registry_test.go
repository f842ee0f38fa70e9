package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id      string
	sendErr error

	mu        sync.Mutex
	sent      [][]byte
	closeCode int
	closed    int
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, message)
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	c.closeCode = code
	return nil
}

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = string(m)
	}
	return out
}

func TestRegistryConnect(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil)
	a, b := newFakeConn("a"), newFakeConn("b")

	assert.Nil(t, r.Connect(a, 7, 1))
	assert.Nil(t, r.Connect(b, 7, 2))
	assert.Nil(t, r.Connect(newFakeConn("c"), 9, 1))

	assert.Equal(t, 2, r.Count(7))
	assert.Equal(t, 1, r.Count(9))
	assert.Equal(t, 0, r.Count(8))
	assert.Equal(t, []int64{7, 9}, r.Tasks())
}

func TestRegistryConnectReplacesSlot(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil)
	first, second := newFakeConn("first"), newFakeConn("second")

	r.Connect(first, 7, 1)
	replaced := r.Connect(second, 7, 1)

	assert.Same(t, first, replaced)
	assert.Equal(t, 1, r.Count(7))
	assert.Zero(t, first.closed, "registry must not close the replaced socket")

	r.Broadcast(7, []byte(`{"type":"x"}`))
	assert.Empty(t, first.messages())
	assert.Len(t, second.messages(), 1)
}

func TestRegistryDisconnect(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil)
	r.Connect(newFakeConn("a"), 7, 1)
	r.Connect(newFakeConn("b"), 7, 2)

	r.Disconnect(7, 1)
	assert.Equal(t, 1, r.Count(7))

	r.Disconnect(7, 2)
	assert.Equal(t, 0, r.Count(7))
	assert.Empty(t, r.Tasks())

	// Missing entries are ignored.
	r.Disconnect(7, 2)
	r.Disconnect(42, 1)
	assert.Empty(t, r.Tasks())
}

func TestRegistryReleaseComparesConnection(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil)
	stale, current := newFakeConn("stale"), newFakeConn("current")
	r.Connect(stale, 7, 1)
	r.Connect(current, 7, 1)

	assert.False(t, r.Release(7, 1, stale))
	assert.Equal(t, 1, r.Count(7))

	assert.True(t, r.Release(7, 1, current))
	assert.Equal(t, 0, r.Count(7))
	assert.False(t, r.Release(7, 1, current))
}

func TestRegistryBroadcast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		exclude   int64
		wantUsers []int64
	}{
		{name: "everyone", exclude: 0, wantUsers: []int64{1, 2, 3}},
		{name: "except sender", exclude: 2, wantUsers: []int64{1, 3}},
		{name: "exclude absent user", exclude: 99, wantUsers: []int64{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewRegistry(nil, nil)
			conns := map[int64]*fakeConn{1: newFakeConn("1"), 2: newFakeConn("2"), 3: newFakeConn("3")}
			for userID, c := range conns {
				r.Connect(c, 7, userID)
			}
			other := newFakeConn("other-task")
			r.Connect(other, 8, 1)

			deliveries := r.BroadcastExcept(7, []byte(`{"type":"typing"}`), tt.exclude)

			got := make([]int64, 0, len(deliveries))
			for _, d := range deliveries {
				require.NoError(t, d.Err)
				got = append(got, d.UserID)
			}
			assert.ElementsMatch(t, tt.wantUsers, got)
			for userID, c := range conns {
				if userID == tt.exclude {
					assert.Empty(t, c.messages())
					continue
				}
				assert.Equal(t, []string{`{"type":"typing"}`}, c.messages())
			}
			assert.Empty(t, other.messages())
		})
	}
}

func TestRegistryBroadcastToEmptyTask(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil)
	assert.Empty(t, r.Broadcast(7, []byte(`{}`)))
}

func TestRegistryBroadcastPrunesFailedRecipients(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil)
	healthy := newFakeConn("healthy")
	broken := newFakeConn("broken")
	broken.sendErr = ErrSendQueueFull
	r.Connect(healthy, 7, 1)
	r.Connect(broken, 7, 2)

	deliveries := r.Broadcast(7, []byte(`{"type":"new_comment"}`))

	require.Len(t, deliveries, 2)
	for _, d := range deliveries {
		if d.UserID == 2 {
			assert.ErrorIs(t, d.Err, ErrSendQueueFull)
		} else {
			assert.NoError(t, d.Err)
		}
	}
	assert.Len(t, healthy.messages(), 1)
	assert.Equal(t, 1, r.Count(7))
	assert.Equal(t, 1, broken.closed)
	assert.Equal(t, websocket.CloseTryAgainLater, broken.closeCode)

	// The pruned user no longer receives anything.
	deliveries = r.Broadcast(7, []byte(`{}`))
	require.Len(t, deliveries, 1)
	assert.Equal(t, int64(1), deliveries[0].UserID)
}

func TestRegistryCloseAll(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil)
	a, b := newFakeConn("a"), newFakeConn("b")
	r.Connect(a, 7, 1)
	r.Connect(b, 8, 2)

	r.CloseAll(websocket.CloseGoingAway, "server shutting down")

	assert.Empty(t, r.Tasks())
	assert.Equal(t, websocket.CloseGoingAway, a.closeCode)
	assert.Equal(t, websocket.CloseGoingAway, b.closeCode)
}

func TestRegistryHandleEvent(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	r := NewRegistry(nil, metrics)

	sender, listener, broken := newFakeConn("sender"), newFakeConn("listener"), newFakeConn("broken")
	broken.sendErr = errors.New("socket gone")
	r.Connect(sender, 7, 1)
	r.Connect(listener, 7, 2)
	r.Connect(broken, 7, 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.Connections))

	event, err := events.NewBroadcastEvent(7, TypeTyping, 1, typingNotice{Type: TypeTyping, UserID: 1, Username: "alice"})
	require.NoError(t, err)

	require.NoError(t, r.HandleEvent(context.Background(), event))

	assert.Empty(t, sender.messages())
	assert.Equal(t, []string{`{"type":"typing","user_id":1,"username":"alice"}`}, listener.messages())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Broadcasts.WithLabelValues(TypeTyping)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DeliveryFailures))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Connections))
}

func TestRegistryConcurrentUse(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil)

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			c := newFakeConn("c")
			r.Connect(c, 7, userID)
			r.Broadcast(7, []byte(`{}`))
			r.Release(7, userID, c)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count(7))
}
