package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"puzzlearena/core/internal/client"
)

var errPollSpent = errors.New("long-poll connection already answered or expired")

// wsConn adapts a websocket connection to the client.Conn contract. Writes
// are serialized because batches and keepalive pings come from different
// goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

// SendBatch delivers one ordered batch as a single JSON frame.
func (c *wsConn) SendBatch(batch []client.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(batch)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.Close()
}

// pollConn carries at most one batch toward a parked long-poll request.
type pollConn struct {
	mu      sync.Mutex
	ch      chan []client.Message
	sent    bool
	expired bool
}

func newPollConn() *pollConn {
	return &pollConn{ch: make(chan []client.Message, 1)}
}

// SendBatch hands the one permitted batch to the waiting request, failing if
// the request already returned so the session keeps the messages buffered.
func (c *pollConn) SendBatch(batch []client.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired || c.sent {
		return errPollSpent
	}
	c.sent = true
	c.ch <- batch
	return nil
}

// expire marks the request as gone and drains a batch that raced the expiry,
// so it can still ride out on the response instead of being lost.
func (c *pollConn) expire() ([]client.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired = true
	select {
	case batch := <-c.ch:
		return batch, true
	default:
		return nil, false
	}
}
