// Package client holds the per-client outbound session: the single point of
// truth for what has been sent versus what is still pending toward the one
// transport connection currently reaching that client.
package client

import (
	"sync"

	"puzzlearena/core/internal/logging"
)

// KindHello names the synthetic handshake message sent on every attach.
const KindHello = "hello"

// Message is one structured outbound unit; the transport boundary owns the
// wire encoding.
type Message struct {
	Kind string `json:"kind"`
	Data any    `json:"data,omitempty"`
}

// Mode describes the flow-control discipline of an attached connection.
type Mode int

const (
	// Streaming connections stay usable after a send.
	Streaming Mode = iota
	// SingleShot connections permit exactly one send before being replaced
	// (long-poll semantics).
	SingleShot
)

// Conn is the transport connection handle a session pushes batches to.
type Conn interface {
	// SendBatch delivers one ordered batch, oldest message first.
	SendBatch(batch []Message) error
}

// Session buffers outbound messages for a possibly-absent or flow-controlled
// connection. Messages are never dropped, reordered, or sent twice, and a
// single-shot connection never carries more than one outstanding batch.
type Session struct {
	mu       sync.Mutex
	id       string
	playerID string
	gameID   string
	conn     Conn
	mode     Mode
	canSend  bool
	pending  []Message
	log      *logging.Logger
}

// NewSession constructs a session for the given client id.
func NewSession(id string, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.L()
	}
	return &Session{id: id, log: logger.With(logging.String("client_id", id))}
}

// ID returns the client id this session serves.
func (s *Session) ID() string { return s.id }

// BindPlayer records which player currently owns this session.
func (s *Session) BindPlayer(playerID string) {
	s.mu.Lock()
	s.playerID = playerID
	s.mu.Unlock()
}

// PlayerID returns the owning player id, if any.
func (s *Session) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

// SetGameID records the game the client is currently watching.
func (s *Session) SetGameID(gameID string) {
	s.mu.Lock()
	s.gameID = gameID
	s.mu.Unlock()
}

// GameID returns the recorded game id, if any.
func (s *Session) GameID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameID
}

// Enqueue appends one message and flushes the whole pending buffer as a
// single batch if the connection is attached and sendable; otherwise the
// message waits for the next attach.
func (s *Session) Enqueue(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, msg)
	s.flushLocked()
}

// Attach replaces the current connection. A fresh connection always starts
// sendable, and the buffered backlog plus a synthetic hello handshake goes
// out immediately as one batch.
func (s *Session) Attach(conn Conn, mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.mode = mode
	s.canSend = true
	//1.- The handshake leads the batch so the client sees it before any backlog.
	s.pending = append([]Message{{Kind: KindHello, Data: map[string]string{"client_id": s.id}}}, s.pending...)
	s.flushLocked()
}

// Detach drops the connection if it is still the current one; stale detach
// notifications from an already-replaced connection are ignored.
func (s *Session) Detach(conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
}

// Requeue returns a batch that was sent but never reached the client to the
// front of the buffer, so the next attach delivers it first. Synthetic hello
// messages are skipped; the next attach mints its own.
func (s *Session) Requeue(batch []Message) {
	kept := make([]Message, 0, len(batch))
	for _, msg := range batch {
		if msg.Kind == KindHello {
			continue
		}
		kept = append(kept, msg)
	}
	if len(kept) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(kept, s.pending...)
}

// Pending reports how many messages are buffered; used by diagnostics.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Session) flushLocked() {
	if s.conn == nil || !s.canSend || len(s.pending) == 0 {
		return
	}
	batch := s.pending
	s.pending = nil
	if s.mode == SingleShot {
		//2.- A long-poll connection is spent after one send until the next attach.
		s.canSend = false
	}
	if err := s.conn.SendBatch(batch); err != nil {
		//3.- Keep the batch for the next connection; nothing is dropped on failure.
		s.pending = append(batch, s.pending...)
		s.conn = nil
		s.log.Warn("batch delivery failed", logging.Int("messages", len(batch)), logging.Error(err))
	}
}
