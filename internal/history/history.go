// Package history implements the append-only event log that is the single
// source of truth for an actor's state. A history folds every appended event
// through a pure reducer into a cached state and fans new events out to
// registered listeners in append order.
package history

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotPersisted indicates no persisted log exists for the requested id,
// distinct from an empty-but-existing history.
var ErrNotPersisted = errors.New("no persisted history")

// ReduceError marks a reducer that could not fold an event. This is a
// programming error: the owning actor must treat it as fatal rather than
// continue with a state that no longer matches its log.
type ReduceError struct {
	EventType string
	Err       error
}

func (e *ReduceError) Error() string {
	return fmt.Sprintf("reduce event %q: %v", e.EventType, e.Err)
}

func (e *ReduceError) Unwrap() error { return e.Err }

// Event is one immutable entry in a history's log.
type Event[P any] struct {
	At      time.Time `json:"at"`
	Type    string    `json:"type"`
	Payload P         `json:"payload"`
}

// Realize folds a single event into the prior state. It must be pure and
// deterministic; the zero state is handed to the first event.
type Realize[S, P any] func(state S, event Event[P]) (S, error)

// NotifyMode selects whether a listener is primed with a snapshot on attach.
type NotifyMode int

const (
	// TellStateOnAttach delivers the current state synchronously at attach
	// time, before any subsequent event notification.
	TellStateOnAttach NotifyMode = iota
	// EventsOnly skips the attach-time snapshot.
	EventsOnly
)

// Listener observes a history. OnState fires once at attach for
// TellStateOnAttach listeners; OnEvent fires for every append afterwards.
type Listener[S, P any] interface {
	OnState(state S)
	OnEvent(event Event[P])
}

type listenerEntry[S, P any] struct {
	listener Listener[S, P]
	mode     NotifyMode
}

// History is an append-only event log with a derived state cache and a
// listener registry. It is not safe for concurrent use; each history is owned
// by exactly one actor goroutine.
type History[S, P any] struct {
	realize   Realize[S, P]
	log       []Event[P]
	state     S
	listeners map[int]listenerEntry[S, P]
	order     []int
	nextID    int
	now       func() time.Time
}

// Option configures optional History behaviour at construction time.
type Option func(clock *func() time.Time)

// WithClock overrides the timestamp source for appended events.
func WithClock(clock func() time.Time) Option {
	return func(target *func() time.Time) {
		if clock != nil {
			*target = clock
		}
	}
}

// New constructs an empty history folding events through realize.
func New[S, P any](realize Realize[S, P], opts ...Option) *History[S, P] {
	h := &History[S, P]{
		realize:   realize,
		listeners: make(map[int]listenerEntry[S, P]),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&h.now)
		}
	}
	return h
}

// Append records a new event, folds it into the cached state, and notifies
// every listener synchronously in attach order. A reducer failure leaves the
// log and state untouched and surfaces as a *ReduceError.
func (h *History[S, P]) Append(eventType string, payload P) error {
	event := Event[P]{At: h.now().UTC(), Type: eventType, Payload: payload}
	next, err := h.realize(h.state, event)
	if err != nil {
		return &ReduceError{EventType: eventType, Err: err}
	}
	//1.- Commit state and log together so listeners observe a consistent pair.
	h.state = next
	h.log = append(h.log, event)
	//2.- Fan out in attach order; listeners run on the owning actor's goroutine.
	for _, id := range h.order {
		if entry, ok := h.listeners[id]; ok {
			entry.listener.OnEvent(event)
		}
	}
	return nil
}

// State returns the cached state; always equal to folding the full log.
func (h *History[S, P]) State() S { return h.state }

// Len reports how many events the log holds.
func (h *History[S, P]) Len() int { return len(h.log) }

// Log returns a copy of the event log, oldest first.
func (h *History[S, P]) Log() []Event[P] {
	return append([]Event[P](nil), h.log...)
}

// AddListener registers a listener and returns its handle. A
// TellStateOnAttach listener receives the current state before this call
// returns, so it can never miss the snapshot that precedes future events.
func (h *History[S, P]) AddListener(l Listener[S, P], mode NotifyMode) int {
	h.nextID++
	id := h.nextID
	h.listeners[id] = listenerEntry[S, P]{listener: l, mode: mode}
	h.order = append(h.order, id)
	if mode == TellStateOnAttach {
		l.OnState(h.state)
	}
	return id
}

// RemoveListener detaches the listener registered under handle, if any.
func (h *History[S, P]) RemoveListener(handle int) {
	if _, ok := h.listeners[handle]; !ok {
		return
	}
	delete(h.listeners, handle)
	for i, id := range h.order {
		if id == handle {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// PastMatches reports whether any logged event satisfies pred.
func (h *History[S, P]) PastMatches(pred func(Event[P]) bool) bool {
	for _, event := range h.log {
		if pred(event) {
			return true
		}
	}
	return false
}

// Past returns every logged event satisfying pred, oldest first.
func (h *History[S, P]) Past(pred func(Event[P]) bool) []Event[P] {
	var matches []Event[P]
	for _, event := range h.log {
		if pred(event) {
			matches = append(matches, event)
		}
	}
	return matches
}
