package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"puzzlearena/core/internal/auth"
	"puzzlearena/core/internal/client"
	"puzzlearena/core/internal/games"
	"puzzlearena/core/internal/history"
	"puzzlearena/core/internal/journal"
	"puzzlearena/core/internal/logging"
	"puzzlearena/core/internal/registry"
	"puzzlearena/core/internal/store"
)

const registryKind = "player"

var (
	// ErrAlreadyExists rejects registration under a taken player id.
	ErrAlreadyExists = errors.New("player already exists")
	// ErrUnknownPlayer indicates no persisted history exists for the id.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrNotRunning indicates the operation needs a running player actor.
	ErrNotRunning = errors.New("player not running")
	// ErrInvalidRegistration rejects registrations with missing fields.
	ErrInvalidRegistration = errors.New("id, name and secret must all be provided")
)

const defaultMailboxSize = 64

// Service is the entry point for all player operations: it owns registration
// and authentication against the persistence store and starts player actors
// on demand through the registry.
type Service struct {
	store        store.Store
	reg          *registry.Registry
	games        *games.Manager
	journal      *journal.Writer
	log          *logging.Logger
	relayTimeout time.Duration
	mailboxSize  int
}

// ServiceOption configures optional Service behaviour at construction time.
type ServiceOption func(*Service)

// WithRelayTimeout bounds how long a game event relay may wait on an actor.
func WithRelayTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.relayTimeout = timeout
		}
	}
}

// WithJournal streams every appended player event to the given journal.
func WithJournal(w *journal.Writer) ServiceOption {
	return func(s *Service) { s.journal = w }
}

// WithMailboxSize overrides the per-actor mailbox buffer; primarily for tests.
func WithMailboxSize(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.mailboxSize = size
		}
	}
}

// NewService wires the player subsystem against its collaborators.
func NewService(st store.Store, reg *registry.Registry, gm *games.Manager, logger *logging.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.L()
	}
	s := &Service{
		store:        st,
		reg:          reg,
		games:        gm,
		log:          logger.With(logging.String("component", "player")),
		relayTimeout: 5 * time.Second,
		mailboxSize:  defaultMailboxSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Register creates a brand-new player: a fresh history seeded with the
// register event and the welcome badge, persisted under a guarded create so
// a double-register is rejected rather than merged.
func (s *Service) Register(ctx context.Context, id, name, secret string) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(name) == "" || secret == "" {
		return ErrInvalidRegistration
	}
	exists, err := s.store.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check player %q: %w", id, err)
	}
	if exists {
		return ErrAlreadyExists
	}
	h := history.New(Realize)
	if err := h.Append(EventRegister, Payload{ID: id, Name: name, Secret: secret}); err != nil {
		return fmt.Errorf("seed player %q: %w", id, err)
	}
	if err := h.Append(EventGetBadge, Payload{Badge: WelcomeBadge}); err != nil {
		return fmt.Errorf("seed player %q: %w", id, err)
	}
	if err := h.CreatePersisted(ctx, s.store, id); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("persist player %q: %w", id, err)
	}
	//1.- Start the actor eagerly so the fresh history is served from memory.
	if _, err := s.reg.LookupOrStart(registryKind, id, func() (any, error) {
		a := newActor(s, id, h)
		go a.run()
		return a, nil
	}); err != nil {
		return fmt.Errorf("start player %q: %w", id, err)
	}
	s.log.Info("player registered", logging.String("player_id", id))
	return nil
}

// Authenticate scans persisted player states for an exact secret match and
// returns the matching identity. The scan is linear in the number of
// persisted players.
func (s *Service) Authenticate(ctx context.Context, secret string) (id, name string, ok bool, err error) {
	if secret == "" {
		return "", "", false, nil
	}
	state, err := history.PersistedStateByMatch(ctx, s.store, Realize,
		func(st State) bool { return auth.SecretEqual(st.Secret, secret) })
	if errors.Is(err, history.ErrNotPersisted) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("authenticate: %w", err)
	}
	return state.ID, state.Name, true, nil
}

// Connect attaches the client session as the player's current client,
// starting the actor from its persisted history when it is not yet running.
// The connect event itself is dispatched asynchronously.
func (s *Service) Connect(ctx context.Context, playerID, clientID string, session *client.Session) error {
	for attempt := 0; attempt < 2; attempt++ {
		actor, err := s.actorFor(ctx, playerID)
		if err != nil {
			return err
		}
		if actor.send(connectMsg{clientID: clientID, session: session}) {
			return nil
		}
		//1.- The actor died between lookup and send; one retry restarts it.
	}
	return fmt.Errorf("connect player %q: %w", playerID, ErrNotRunning)
}

// Disconnect reports that the client's connection is gone. Unknown players
// and stale client ids are no-ops.
func (s *Service) Disconnect(playerID, clientID string) {
	if actor, ok := s.lookup(playerID); ok {
		actor.send(disconnectMsg{clientID: clientID})
	}
}

// FindGame asks the games manager to place the player somewhere with room.
func (s *Service) FindGame(playerID string) error {
	actor, ok := s.lookup(playerID)
	if !ok {
		return ErrNotRunning
	}
	if !actor.send(findGameMsg{}) {
		return ErrNotRunning
	}
	return nil
}

// Leave withdraws the player from their current game for the given reason.
func (s *Service) Leave(playerID, reason string) error {
	actor, ok := s.lookup(playerID)
	if !ok {
		return ErrNotRunning
	}
	if !actor.send(leaveMsg{reason: reason}) {
		return ErrNotRunning
	}
	return nil
}

// GrantPoints appends a score delta to the player's history.
func (s *Service) GrantPoints(playerID string, delta int) error {
	return s.appendFor(playerID, EventGetPoints, Payload{Points: delta})
}

// GrantBadge appends a badge award to the player's history.
func (s *Service) GrantBadge(playerID, badge string) error {
	return s.appendFor(playerID, EventGetBadge, Payload{Badge: badge})
}

func (s *Service) appendFor(playerID, eventType string, payload Payload) error {
	actor, ok := s.lookup(playerID)
	if !ok {
		return ErrNotRunning
	}
	if !actor.send(appendMsg{eventType: eventType, payload: payload}) {
		return ErrNotRunning
	}
	return nil
}

// Relay adapts the player subsystem to the games.Relay contract: it delivers
// one game event to the named player's actor, bounded by the relay timeout.
func (s *Service) Relay(playerID string, event games.GameEvent) games.RelayResult {
	actor, ok := s.lookup(playerID)
	if !ok {
		return games.RelayUnreachable
	}
	return actor.HandleGameEvent(event, s.relayTimeout)
}

// Running reports how many player actors are currently resident.
func (s *Service) Running() int {
	return s.reg.Count(registryKind)
}

// Shutdown stops every resident actor, persisting each history.
func (s *Service) Shutdown(ctx context.Context) {
	s.reg.Each(registryKind, func(id string, handle any) {
		if actor, ok := handle.(*Actor); ok {
			actor.Stop(ctx)
		}
	})
}

func (s *Service) lookup(playerID string) (*Actor, bool) {
	handle, ok := s.reg.Lookup(registryKind, playerID)
	if !ok {
		return nil, false
	}
	actor, ok := handle.(*Actor)
	return actor, ok
}

// actorFor returns the running actor for playerID, loading its persisted
// history and starting it when absent.
func (s *Service) actorFor(ctx context.Context, playerID string) (*Actor, error) {
	handle, err := s.reg.LookupOrStart(registryKind, playerID, func() (any, error) {
		h, err := history.LoadPersisted(ctx, s.store, playerID, Realize)
		if errors.Is(err, history.ErrNotPersisted) {
			return nil, ErrUnknownPlayer
		}
		if err != nil {
			return nil, err
		}
		a := newActor(s, playerID, h)
		go a.run()
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	actor, ok := handle.(*Actor)
	if !ok {
		return nil, ErrNotRunning
	}
	return actor, nil
}
