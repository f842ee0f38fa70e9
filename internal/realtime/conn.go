package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrSendQueueFull is returned when a connection's outbound queue is full.
	ErrSendQueueFull = errors.New("send queue full")
	// ErrConnClosed is returned when sending to a closing or closed connection.
	ErrConnClosed = errors.New("connection closed")
)

// Conn is a client socket as seen by the registry.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string
	// Send enqueues an encoded message without blocking.
	Send(message []byte) error
	// Close flushes queued messages, writes a close frame with code and
	// reason, and releases the socket. Only the first call has an effect.
	Close(code int, reason string) error
}

type connOptions struct {
	sendBuffer      int
	maxMessageBytes int64
	pingInterval    time.Duration
	pongWait        time.Duration
	writeWait       time.Duration
}

// wsConn wraps a gorilla connection with a bounded send queue drained by a
// single write pump, since gorilla allows one concurrent writer.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	opts connOptions

	send       chan []byte
	closing    chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	closeFrame []byte
}

var _ Conn = (*wsConn)(nil)

func newWSConn(id string, ws *websocket.Conn, opts connOptions) *wsConn {
	c := &wsConn{
		id:      id,
		ws:      ws,
		opts:    opts,
		send:    make(chan []byte, opts.sendBuffer),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	ws.SetReadLimit(opts.maxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(opts.pongWait)) //nolint:errcheck
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(opts.pongWait))
	})
	return c
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(message []byte) error {
	select {
	case <-c.closing:
		return ErrConnClosed
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- message:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *wsConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.closeFrame = websocket.FormatCloseMessage(code, reason)
		close(c.closing)
	})
	return nil
}

// Done is closed once the write pump has released the socket.
func (c *wsConn) Done() <-chan struct{} {
	return c.done
}

func (c *wsConn) readMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// writeLoop drains the send queue and pings the peer until Close is called
// or a write fails. It owns closing the underlying socket.
func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(c.opts.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.done)
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.writeWait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-c.closing:
			c.flush()
			deadline := time.Now().Add(c.opts.writeWait)
			_ = c.ws.WriteControl(websocket.CloseMessage, c.closeFrame, deadline) //nolint:errcheck
			return
		}
	}
}

func (c *wsConn) write(msg []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.writeWait)) //nolint:errcheck
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

func (c *wsConn) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) isClosing() bool {
	select {
	case <-c.closing:
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}
