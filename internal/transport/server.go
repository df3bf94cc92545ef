// Package transport is the HTTP boundary of the session core: it decodes
// framed client commands into core operations and pushes session batches back
// over streaming websockets or single-shot long-poll requests. The core never
// sees wire encoding; it exchanges structured messages only.
package transport

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"puzzlearena/core/internal/client"
	"puzzlearena/core/internal/config"
	"puzzlearena/core/internal/games"
	"puzzlearena/core/internal/logging"
	"puzzlearena/core/internal/player"
)

// Server owns the transport boundary: one client.Session per client id plus
// the HTTP surface that attaches connections to them.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	players *player.Service
	games   *games.Manager

	mu       sync.Mutex
	sessions map[string]*client.Session

	upgrader    websocket.Upgrader
	authLimiter *SlidingWindowLimiter
	started     time.Time
}

// NewServer wires the boundary against the core services.
func NewServer(cfg *config.Config, players *player.Service, gm *games.Manager, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.L()
	}
	return &Server{
		cfg:      cfg,
		log:      logger.With(logging.String("component", "transport")),
		players:  players,
		games:    gm,
		sessions: make(map[string]*client.Session),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		authLimiter: NewSlidingWindowLimiter(cfg.AuthWindow, cfg.AuthBurst, time.Now),
		started:     time.Now(),
	}
}

// Handler returns the full HTTP surface with trace propagation applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/hello", s.handleHello)
	mux.HandleFunc("/api/command", s.handleCommand)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/poll", s.handlePoll)
	return logging.HTTPTraceMiddleware(s.log)(mux)
}

// Session returns the session for clientID, creating it on first contact.
func (s *Server) Session(clientID string) *client.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[clientID]
	if !ok {
		sess = client.NewSession(clientID, s.log)
		s.sessions[clientID] = sess
	}
	return sess
}

func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// command is one decoded inbound frame.
type command struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Secret   string `json:"secret,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Badge    string `json:"badge,omitempty"`
	Points   int    `json:"points,omitempty"`
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var cmd command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "malformed hello", http.StatusBadRequest)
		return
	}
	clientID := strings.TrimSpace(cmd.ClientID)
	if clientID == "" {
		clientID = uuid.NewString()
	}
	s.Session(clientID)
	writeJSON(w, http.StatusOK, map[string]string{"client_id": clientID})
}

// handleCommand runs one core operation per request; the reply carries only
// the operation outcome, while state and events travel through /ws or /poll.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var cmd command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "malformed command", http.StatusBadRequest)
		return
	}
	status, body := s.dispatch(r.Context(), cmd)
	writeJSON(w, status, body)
}

func (s *Server) dispatch(ctx context.Context, cmd command) (int, any) {
	logger := logging.LoggerFromContext(ctx)
	switch cmd.Type {
	case "register":
		err := s.players.Register(ctx, cmd.ID, cmd.Name, cmd.Secret)
		switch {
		case errors.Is(err, player.ErrAlreadyExists):
			return http.StatusConflict, errBody("already_exists")
		case errors.Is(err, player.ErrInvalidRegistration):
			return http.StatusBadRequest, errBody("invalid_registration")
		case err != nil:
			logger.Error("register failed", logging.Error(err))
			return http.StatusInternalServerError, errBody("internal")
		}
		return http.StatusOK, okBody()
	case "login":
		if !s.authLimiter.Allow() {
			return http.StatusTooManyRequests, errBody("rate_limited")
		}
		id, name, ok, err := s.players.Authenticate(ctx, cmd.Secret)
		if err != nil {
			logger.Error("authenticate failed", logging.Error(err))
			return http.StatusInternalServerError, errBody("internal")
		}
		if !ok {
			return http.StatusUnauthorized, errBody("bad_credentials")
		}
		return http.StatusOK, map[string]any{"ok": true, "id": id, "name": name}
	case "connect":
		sess := s.Session(cmd.ClientID)
		err := s.players.Connect(ctx, cmd.PlayerID, cmd.ClientID, sess)
		switch {
		case errors.Is(err, player.ErrUnknownPlayer):
			return http.StatusNotFound, errBody("unknown_player")
		case err != nil:
			logger.Error("connect failed", logging.Error(err))
			return http.StatusInternalServerError, errBody("internal")
		}
		return http.StatusOK, okBody()
	case "disconnect":
		s.players.Disconnect(cmd.PlayerID, cmd.ClientID)
		return http.StatusOK, okBody()
	case "findGame":
		if err := s.players.FindGame(cmd.PlayerID); err != nil {
			return http.StatusConflict, errBody("not_running")
		}
		return http.StatusOK, okBody()
	case "leave":
		if err := s.players.Leave(cmd.PlayerID, cmd.Reason); err != nil {
			return http.StatusConflict, errBody("not_running")
		}
		return http.StatusOK, okBody()
	default:
		return http.StatusBadRequest, errBody("unknown_command")
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.URL.Query().Get("client"))
	if clientID == "" {
		http.Error(w, "client query parameter required", http.StatusBadRequest)
		return
	}
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	sess := s.Session(clientID)
	conn := newWSConn(raw)
	sess.Attach(conn, client.Streaming)

	//1.- Keepalive pings run beside the reader until either side fails.
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			break
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			sess.Enqueue(client.Message{Kind: "error", Data: map[string]string{"reason": "malformed_command"}})
			continue
		}
		if cmd.ClientID == "" {
			cmd.ClientID = clientID
		}
		if status, body := s.dispatch(r.Context(), cmd); status >= http.StatusBadRequest {
			sess.Enqueue(client.Message{Kind: "error", Data: body})
		}
	}
	close(stop)
	conn.close()
	sess.Detach(conn)
	//2.- Losing the stream means the client is gone; tell the player actor.
	if playerID := sess.PlayerID(); playerID != "" {
		s.players.Disconnect(playerID, clientID)
	}
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.URL.Query().Get("client"))
	if clientID == "" {
		http.Error(w, "client query parameter required", http.StatusBadRequest)
		return
	}
	sess := s.Session(clientID)
	conn := newPollConn()
	sess.Attach(conn, client.SingleShot)

	timer := time.NewTimer(s.cfg.PollTimeout)
	defer timer.Stop()
	select {
	case batch := <-conn.ch:
		writeJSON(w, http.StatusOK, map[string]any{"messages": batch})
	case <-timer.C:
		if batch, ok := conn.expire(); ok {
			writeJSON(w, http.StatusOK, map[string]any{"messages": batch})
			return
		}
		sess.Detach(conn)
		writeJSON(w, http.StatusOK, map[string]any{"messages": []client.Message{}})
	case <-r.Context().Done():
		recoverPoll(sess, conn)
	}
}

// recoverPoll salvages a cancelled long-poll: a batch the session already
// handed to the connection never reached the client, so it goes back to the
// front of the buffer for the next attach.
func recoverPoll(sess *client.Session, conn *pollConn) {
	if batch, ok := conn.expire(); ok {
		sess.Requeue(batch)
	}
	sess.Detach(conn)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.started).String(),
		"players": s.players.Running(),
		"clients": s.sessionCount(),
	})
}

// handleStats exposes occupancy details, guarded by the admin token when one
// is configured.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AdminToken != "" {
		provided := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.AdminToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"players": s.players.Running(),
		"clients": s.sessionCount(),
		"games":   s.games.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func okBody() map[string]any { return map[string]any{"ok": true} }

func errBody(reason string) map[string]any {
	return map[string]any{"ok": false, "error": reason}
}
