// Package games tracks live game instances and their occupancy, matching
// players into any game with spare capacity or creating one on demand. The
// game rules engine itself is external; this package only depends on the
// narrow contract games must satisfy.
package games

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"puzzlearena/core/internal/logging"
)

var (
	// ErrGameFull indicates a join was rejected because the game is at capacity.
	ErrGameFull = errors.New("game full")
	// ErrUnknownGame indicates the referenced game is not tracked.
	ErrUnknownGame = errors.New("unknown game")
	// ErrNoFactory indicates the manager cannot create games yet.
	ErrNoFactory = errors.New("game factory not configured")
)

// PlayerInfo is the sanitized projection of a player shared with games and
// other players; credentials and identifiers never appear here.
type PlayerInfo struct {
	Name   string   `json:"name"`
	Points int      `json:"points"`
	Badges []string `json:"badges"`
}

// GameEvent is one event a game broadcasts to its participants.
type GameEvent struct {
	GameID   string         `json:"game_id"`
	At       time.Time      `json:"at"`
	Type     string         `json:"type"`
	PlayerID string         `json:"player_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// RelayResult is a participant's answer to a relayed game event.
type RelayResult int

const (
	// RelayContinue means the participant consumed the event and stays subscribed.
	RelayContinue RelayResult = iota
	// RelayWrongGame means the participant no longer belongs to this game.
	RelayWrongGame
	// RelayLeft means the event was the participant's own departure.
	RelayLeft
	// RelayUnreachable means the participant could not be reached in time.
	RelayUnreachable
)

// Relay delivers one game event to the named player and reports the outcome.
// Implementations must bound their own delivery timeout; a timeout surfaces
// as RelayUnreachable, never as a fault in the calling game.
type Relay func(playerID string, event GameEvent) RelayResult

// Game is the contract every game instance satisfies toward the manager.
type Game interface {
	ID() string
	// Join admits a player or returns a rejection such as ErrGameFull.
	Join(ctx context.Context, playerID string, info PlayerInfo, source string) error
	// Leave removes a player for the stated reason, reporting whether the
	// player was actually a member.
	Leave(ctx context.Context, playerID string, reason string) bool
}

// Factory starts a new game instance under the supplied id.
type Factory func(ctx context.Context, id string) (Game, error)

// JoinOutcome reports the result of a find-or-create-and-join request.
type JoinOutcome struct {
	GameID string
	Source string
	Err    error
}

type tracked struct {
	game      Game
	occupancy int
}

// Manager is the singleton occupancy tracker and matchmaker.
type Manager struct {
	mu       sync.Mutex
	factory  Factory
	capacity int
	order    []string
	games    map[string]*tracked
	newID    func() string
	log      *logging.Logger
}

// ManagerOption configures optional Manager behaviour at construction time.
type ManagerOption func(*Manager)

// WithIDSource overrides how new game ids are minted; primarily for tests.
func WithIDSource(newID func() string) ManagerOption {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// WithFactory supplies the game factory at construction time.
func WithFactory(factory Factory) ManagerOption {
	return func(m *Manager) { m.factory = factory }
}

// NewManager constructs a manager admitting up to capacity players per game.
func NewManager(capacity int, logger *logging.Logger, opts ...ManagerOption) *Manager {
	if capacity <= 0 {
		capacity = 1
	}
	if logger == nil {
		logger = logging.L()
	}
	m := &Manager{
		capacity: capacity,
		games:    make(map[string]*tracked),
		newID:    func() string { return ulid.Make().String() },
		log:      logger.With(logging.String("component", "games")),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// SetFactory installs the game factory; used when the factory closes over
// collaborators constructed after the manager.
func (m *Manager) SetFactory(factory Factory) {
	m.mu.Lock()
	m.factory = factory
	m.mu.Unlock()
}

// CreateGame starts a fresh game instance and registers it at occupancy zero.
func (m *Manager) CreateGame(ctx context.Context) (string, error) {
	m.mu.Lock()
	factory := m.factory
	id := m.newID()
	m.mu.Unlock()
	if factory == nil {
		return "", ErrNoFactory
	}
	game, err := factory(ctx, id)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.games[id] = &tracked{game: game}
	m.order = append(m.order, id)
	m.mu.Unlock()
	m.log.Info("game created", logging.String("game_id", id))
	return id, nil
}

// Join admits the player to the identified game, incrementing the tracked
// occupancy only when the game accepts.
func (m *Manager) Join(ctx context.Context, playerID, gameID string, info PlayerInfo, source string) error {
	m.mu.Lock()
	t, ok := m.games[gameID]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownGame
	}
	if err := t.game.Join(ctx, playerID, info, source); err != nil {
		return err
	}
	m.mu.Lock()
	t.occupancy++
	m.mu.Unlock()
	return nil
}

// Leave removes the player from the identified game and releases its slot.
func (m *Manager) Leave(ctx context.Context, playerID, gameID, reason string) {
	m.mu.Lock()
	t, ok := m.games[gameID]
	m.mu.Unlock()
	if !ok {
		return
	}
	//1.- A stale leave for a player the game never held must not drift the
	// occupancy below the true member count.
	if !t.game.Leave(ctx, playerID, reason) {
		return
	}
	m.mu.Lock()
	if t.occupancy > 0 {
		t.occupancy--
	}
	m.mu.Unlock()
}

// FindGameAndJoin places the player into the first game with spare capacity,
// creating one when none fits, and reports the outcome asynchronously. A
// player already in a game is left alone.
func (m *Manager) FindGameAndJoin(ctx context.Context, playerID string, info PlayerInfo, currentGameID string, report func(JoinOutcome)) {
	if currentGameID != "" {
		return
	}
	go func() {
		outcome := m.findAndJoin(ctx, playerID, info)
		if outcome.Err != nil {
			m.log.Warn("matchmaking failed",
				logging.String("player_id", playerID), logging.Error(outcome.Err))
		}
		if report != nil {
			report(outcome)
		}
	}()
}

func (m *Manager) findAndJoin(ctx context.Context, playerID string, info PlayerInfo) JoinOutcome {
	m.mu.Lock()
	var gameID string
	for _, id := range m.order {
		if t, ok := m.games[id]; ok && t.occupancy < m.capacity {
			gameID = id
			break
		}
	}
	m.mu.Unlock()

	source := "matched"
	if gameID == "" {
		created, err := m.CreateGame(ctx)
		if err != nil {
			return JoinOutcome{Err: err}
		}
		gameID = created
		source = "created"
	}
	if err := m.Join(ctx, playerID, gameID, info, source); err != nil {
		return JoinOutcome{GameID: gameID, Source: source, Err: err}
	}
	return JoinOutcome{GameID: gameID, Source: source}
}

// Occupancy reports the tracked player count for one game.
func (m *Manager) Occupancy(gameID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.games[gameID]
	if !ok {
		return 0, false
	}
	return t.occupancy, true
}

// Snapshot returns game ids in creation order with their occupancy counts.
func (m *Manager) Snapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.games))
	for id, t := range m.games {
		out[id] = t.occupancy
	}
	return out
}
