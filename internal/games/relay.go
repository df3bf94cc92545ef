package games

import (
	"context"
	"sync"
	"time"

	"puzzlearena/core/internal/logging"
)

// RelayGame is a minimal built-in game: it enforces capacity and relays join
// and leave notifications between its participants. Real puzzle rules live in
// an external engine satisfying the same Game contract.
type RelayGame struct {
	mu       sync.Mutex
	id       string
	capacity int
	members  []string
	resolve  func(playerID string) Relay
	now      func() time.Time
	log      *logging.Logger
}

// RelayFactory builds a Factory producing RelayGame instances whose event
// relays are resolved through the supplied lookup.
func RelayFactory(capacity int, resolve func(playerID string) Relay, logger *logging.Logger) Factory {
	if logger == nil {
		logger = logging.L()
	}
	return func(_ context.Context, id string) (Game, error) {
		return &RelayGame{
			id:       id,
			capacity: capacity,
			resolve:  resolve,
			now:      time.Now,
			log:      logger.With(logging.String("game_id", id)),
		}, nil
	}
}

// ID returns the game identifier.
func (g *RelayGame) ID() string { return g.id }

// Join admits the player and announces the arrival to every participant.
func (g *RelayGame) Join(_ context.Context, playerID string, info PlayerInfo, source string) error {
	g.mu.Lock()
	if len(g.members) >= g.capacity {
		g.mu.Unlock()
		return ErrGameFull
	}
	g.members = append(g.members, playerID)
	g.mu.Unlock()

	g.broadcast(GameEvent{
		GameID:   g.id,
		At:       g.now().UTC(),
		Type:     "join",
		PlayerID: playerID,
		Data:     map[string]any{"name": info.Name, "source": source},
	})
	return nil
}

// Leave removes the player and announces the departure, including to the
// leaving player so their actor can close out cleanly. Reports whether the
// player was a member.
func (g *RelayGame) Leave(_ context.Context, playerID string, reason string) bool {
	g.mu.Lock()
	kept := g.members[:0]
	removed := false
	for _, id := range g.members {
		if id == playerID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	g.members = kept
	g.mu.Unlock()
	if !removed {
		return false
	}

	g.broadcast(GameEvent{
		GameID:   g.id,
		At:       g.now().UTC(),
		Type:     "leave",
		PlayerID: playerID,
		Data:     map[string]any{"reason": reason},
	})
	return true
}

// Members returns the current participant ids in join order.
func (g *RelayGame) Members() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.members...)
}

func (g *RelayGame) broadcast(event GameEvent) {
	g.mu.Lock()
	targets := make([]string, 0, len(g.members)+1)
	for _, id := range g.members {
		if event.Type == "join" && id == event.PlayerID {
			//1.- The joiner learns its membership through the manager's join
			// outcome; its own join broadcast would race that fold and come
			// back wrongGame.
			continue
		}
		targets = append(targets, id)
	}
	if event.Type == "leave" {
		//2.- The leaving player still hears their own departure once.
		targets = append(targets, event.PlayerID)
	}
	g.mu.Unlock()

	var drop []string
	for _, playerID := range targets {
		relay := g.resolve(playerID)
		if relay == nil {
			continue
		}
		switch relay(playerID, event) {
		case RelayWrongGame:
			//3.- The player moved on; stop delivering to them.
			drop = append(drop, playerID)
		case RelayUnreachable:
			g.log.Warn("participant unreachable", logging.String("player_id", playerID))
		}
	}
	if len(drop) == 0 {
		return
	}
	g.mu.Lock()
	kept := g.members[:0]
	for _, id := range g.members {
		stale := false
		for _, d := range drop {
			if id == d {
				stale = true
				break
			}
		}
		if !stale {
			kept = append(kept, id)
		}
	}
	g.members = kept
	g.mu.Unlock()
}
