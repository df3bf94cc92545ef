// Package player implements the per-player actor: one mailbox goroutine per
// player id owning an event history, reacting to lifecycle messages and
// keeping exactly one client session current at a time.
package player

import (
	"fmt"

	"puzzlearena/core/internal/games"
	"puzzlearena/core/internal/history"
)

// Event types recorded in a player's history.
const (
	EventRegister  = "register"
	EventConnect   = "connect"
	EventJoin      = "join"
	EventLeave     = "leave"
	EventGetPoints = "getPoints"
	EventGetBadge  = "getBadge"
)

// WelcomeBadge is granted to every player right after registration.
const WelcomeBadge = "alpha-tester"

// Payload carries the per-event data folded into a player's state. One struct
// covers all event types so persisted logs round-trip without a type registry;
// unused fields stay zero.
type Payload struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Secret   string `json:"secret,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	GameID   string `json:"game_id,omitempty"`
	Points   int    `json:"points,omitempty"`
	Badge    string `json:"badge,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Source   string `json:"source,omitempty"`
}

// State is the derived player state; exclusively owned by the player actor.
// Secret never leaves this package except through exact-match authentication.
type State struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Secret   string   `json:"secret"`
	ClientID string   `json:"client_id,omitempty"`
	GameID   string   `json:"game_id,omitempty"`
	Points   int      `json:"points"`
	Badges   []string `json:"badges,omitempty"`
}

// Realize folds one event into the player state. The register event
// bootstraps the full initial state; every other type adjusts one field.
func Realize(s State, event history.Event[Payload]) (State, error) {
	p := event.Payload
	switch event.Type {
	case EventRegister:
		if s.ID != "" {
			return s, fmt.Errorf("register on already-initialised state %q", s.ID)
		}
		return State{ID: p.ID, Name: p.Name, Secret: p.Secret}, nil
	case EventConnect:
		s.ClientID = p.ClientID
		return s, nil
	case EventJoin:
		s.GameID = p.GameID
		return s, nil
	case EventLeave:
		s.GameID = ""
		return s, nil
	case EventGetPoints:
		s.Points += p.Points
		if s.Points < 0 {
			s.Points = 0
		}
		return s, nil
	case EventGetBadge:
		s.Badges = append([]string{p.Badge}, s.Badges...)
		return s, nil
	default:
		return s, fmt.Errorf("unknown event type %q", event.Type)
	}
}

// Info returns the sanitized projection shared with games and other players.
func (s State) Info() games.PlayerInfo {
	return games.PlayerInfo{
		Name:   s.Name,
		Points: s.Points,
		Badges: append([]string(nil), s.Badges...),
	}
}

// view is the snapshot pushed to the player's own client; the secret and the
// client id are stripped.
type view struct {
	Name   string   `json:"name"`
	GameID string   `json:"game_id,omitempty"`
	Points int      `json:"points"`
	Badges []string `json:"badges,omitempty"`
}

func snapshotView(s State) view {
	return view{
		Name:   s.Name,
		GameID: s.GameID,
		Points: s.Points,
		Badges: append([]string(nil), s.Badges...),
	}
}

// eventView is the incremental notification pushed to the player's own
// client; credential material never rides along.
type eventView struct {
	At      string  `json:"at"`
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

func sanitizePayload(p Payload) Payload {
	p.Secret = ""
	return p
}
