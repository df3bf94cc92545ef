package player

import (
	"context"
	"time"

	"puzzlearena/core/internal/client"
	"puzzlearena/core/internal/games"
	"puzzlearena/core/internal/history"
	"puzzlearena/core/internal/logging"
)

// Message kinds pushed to the player's own client session.
const (
	msgState        = "state"
	msgEvent        = "event"
	msgSuperseded   = "otherClientConnected"
	msgGameEvent    = "gameEvent"
	msgJoinRejected = "joinRejected"
)

const persistAttempts = 3

type connectMsg struct {
	clientID string
	session  *client.Session
}

type disconnectMsg struct {
	clientID string
}

type findGameMsg struct{}

type appendMsg struct {
	eventType string
	payload   Payload
}

type leaveMsg struct {
	reason string
}

type joinOutcomeMsg struct {
	outcome games.JoinOutcome
}

type relayMsg struct {
	event games.GameEvent
	reply chan games.RelayResult
}

type stopMsg struct{}

// Actor owns one player's history and processes its mailbox sequentially; no
// other goroutine ever touches the history or the state derived from it.
type Actor struct {
	id       string
	svc      *Service
	hist     *history.History[State, Payload]
	session  *client.Session
	listener int
	mailbox  chan any
	done     chan struct{}
	log      *logging.Logger
}

func newActor(svc *Service, id string, hist *history.History[State, Payload]) *Actor {
	return &Actor{
		id:      id,
		svc:     svc,
		hist:    hist,
		mailbox: make(chan any, svc.mailboxSize),
		done:    make(chan struct{}),
		log:     svc.log.With(logging.String("player_id", id)),
	}
}

// send enqueues a message unless the actor has terminated.
func (a *Actor) send(msg any) bool {
	select {
	case a.mailbox <- msg:
		return true
	case <-a.done:
		return false
	}
}

// HandleGameEvent synchronously relays a game event into the actor's mailbox
// and waits for its verdict, bounded by timeout. Timeouts and dead actors
// surface as RelayUnreachable so the calling game never faults.
func (a *Actor) HandleGameEvent(event games.GameEvent, timeout time.Duration) games.RelayResult {
	reply := make(chan games.RelayResult, 1)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case a.mailbox <- relayMsg{event: event, reply: reply}:
	case <-a.done:
		return games.RelayUnreachable
	case <-timer.C:
		return games.RelayUnreachable
	}
	select {
	case result := <-reply:
		return result
	case <-a.done:
		return games.RelayUnreachable
	case <-timer.C:
		return games.RelayUnreachable
	}
}

// Stop asks the actor to persist and exit, waiting until it has done so or
// ctx expires.
func (a *Actor) Stop(ctx context.Context) {
	if !a.send(stopMsg{}) {
		return
	}
	select {
	case <-a.done:
	case <-ctx.Done():
	}
}

func (a *Actor) run() {
	defer close(a.done)
	for msg := range a.mailbox {
		switch m := msg.(type) {
		case connectMsg:
			if !a.handleConnect(m) {
				return
			}
		case disconnectMsg:
			if !a.handleDisconnect(m) {
				return
			}
		case findGameMsg:
			a.handleFindGame()
		case joinOutcomeMsg:
			if !a.handleJoinOutcome(m.outcome) {
				return
			}
		case leaveMsg:
			a.handleLeave(m.reason)
		case appendMsg:
			if !a.append(m.eventType, m.payload) {
				return
			}
		case relayMsg:
			verdict, alive := a.handleRelay(m.event)
			m.reply <- verdict
			if !alive {
				return
			}
		case stopMsg:
			a.terminate("stop")
			return
		}
	}
}

// append folds one event into the history. A reducer failure is a
// programming error: the actor logs it, persists what it has, and dies.
func (a *Actor) append(eventType string, payload Payload) bool {
	if err := a.hist.Append(eventType, payload); err != nil {
		a.log.Error("event rejected by reducer", logging.String("event_type", eventType), logging.Error(err))
		a.terminate("reducer failure")
		return false
	}
	if a.svc.journal != nil {
		if err := a.svc.journal.Record("player", a.id, eventType, sanitizePayload(payload)); err != nil {
			a.log.Warn("journal write failed", logging.Error(err))
		}
	}
	return true
}

func (a *Actor) handleConnect(m connectMsg) bool {
	if a.session != nil {
		//1.- Displace the previous client explicitly rather than dropping it.
		if a.session.ID() != m.clientID {
			a.session.Enqueue(client.Message{Kind: msgSuperseded, Data: map[string]string{"client_id": m.clientID}})
		}
		a.hist.RemoveListener(a.listener)
	}
	a.session = m.session
	a.session.BindPlayer(a.id)
	//2.- The snapshot lands synchronously here, before any later event.
	a.listener = a.hist.AddListener(&clientListener{session: m.session}, history.TellStateOnAttach)
	return a.append(EventConnect, Payload{ClientID: m.clientID})
}

func (a *Actor) handleDisconnect(m disconnectMsg) bool {
	if a.session == nil || a.session.ID() != m.clientID {
		//1.- Stale or duplicate notification for a client that was already replaced.
		return true
	}
	a.hist.RemoveListener(a.listener)
	a.session = nil
	state := a.hist.State()
	if state.GameID == "" {
		//2.- No game at stake: stay resident so a reconnect finds warm state.
		return true
	}
	//3.- In-game membership requires an attached client; leaving and dying
	// now lets the persisted snapshot carry a clean game-less state.
	if !a.append(EventLeave, Payload{Reason: "disconnect"}) {
		return false
	}
	gameID := state.GameID
	go a.svc.games.Leave(context.Background(), a.id, gameID, "disconnect")
	a.terminate("client disconnected while in game")
	return false
}

func (a *Actor) handleFindGame() {
	state := a.hist.State()
	if state.GameID != "" {
		return
	}
	a.svc.games.FindGameAndJoin(context.Background(), a.id, state.Info(), state.GameID, func(outcome games.JoinOutcome) {
		a.send(joinOutcomeMsg{outcome: outcome})
	})
}

func (a *Actor) handleJoinOutcome(outcome games.JoinOutcome) bool {
	if outcome.Err != nil {
		if a.session != nil {
			a.session.Enqueue(client.Message{Kind: msgJoinRejected, Data: map[string]string{"reason": outcome.Err.Error()}})
		}
		return true
	}
	if a.session != nil {
		a.session.SetGameID(outcome.GameID)
	}
	return a.append(EventJoin, Payload{GameID: outcome.GameID, Source: outcome.Source})
}

// handleLeave only notifies the game; the leave event lands in the history
// when the game broadcasts the departure back through handleRelay.
func (a *Actor) handleLeave(reason string) {
	state := a.hist.State()
	if state.GameID == "" {
		return
	}
	go a.svc.games.Leave(context.Background(), a.id, state.GameID, reason)
}

func (a *Actor) handleRelay(event games.GameEvent) (games.RelayResult, bool) {
	state := a.hist.State()
	if event.GameID != state.GameID {
		//1.- Plausibly a race from a just-left game; tell the caller to stop delivering.
		return games.RelayWrongGame, true
	}
	if a.session != nil {
		a.session.Enqueue(client.Message{Kind: msgGameEvent, Data: event})
	}
	if event.Type == "leave" && event.PlayerID == a.id {
		reason := ""
		if raw, ok := event.Data["reason"].(string); ok {
			reason = raw
		}
		if !a.append(EventLeave, Payload{Reason: reason}) {
			return games.RelayLeft, false
		}
		if a.session != nil {
			a.session.SetGameID("")
		}
		return games.RelayLeft, true
	}
	return games.RelayContinue, true
}

// terminate persists the history and removes the actor from the registry.
// Persistence failures are retried; state loss here would be unrecoverable.
func (a *Actor) terminate(reason string) {
	if a.session != nil {
		a.hist.RemoveListener(a.listener)
		a.session = nil
	}
	var err error
	for attempt := 0; attempt < persistAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = a.hist.SavePersisted(ctx, a.svc.store, a.id)
		cancel()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
	}
	if err != nil {
		a.log.Error("failed to persist history on termination", logging.Error(err))
	}
	a.svc.reg.Unregister(registryKind, a.id)
	a.log.Info("player actor stopped", logging.String("reason", reason), logging.Int("events", a.hist.Len()))
}

// clientListener forwards history notifications to the attached session,
// stripping credentials on the way out.
type clientListener struct {
	session *client.Session
}

func (l *clientListener) OnState(state State) {
	l.session.Enqueue(client.Message{Kind: msgState, Data: snapshotView(state)})
}

func (l *clientListener) OnEvent(event history.Event[Payload]) {
	l.session.Enqueue(client.Message{Kind: msgEvent, Data: eventView{
		At:      event.At.UTC().Format(time.RFC3339Nano),
		Type:    event.Type,
		Payload: sanitizePayload(event.Payload),
	}})
}
