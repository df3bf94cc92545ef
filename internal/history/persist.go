package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"puzzlearena/core/internal/store"
)

// SavePersisted writes the full event log for id to the store in one atomic
// write; the previous snapshot remains intact if marshalling fails.
func (h *History[S, P]) SavePersisted(ctx context.Context, st store.Store, id string) error {
	blob, err := json.Marshal(h.log)
	if err != nil {
		return fmt.Errorf("encode history %q: %w", id, err)
	}
	if err := st.Save(ctx, id, blob); err != nil {
		return fmt.Errorf("persist history %q: %w", id, err)
	}
	return nil
}

// CreatePersisted writes the log for a brand-new id, failing with
// store.ErrAlreadyExists when a record is already present.
func (h *History[S, P]) CreatePersisted(ctx context.Context, st store.Store, id string) error {
	blob, err := json.Marshal(h.log)
	if err != nil {
		return fmt.Errorf("encode history %q: %w", id, err)
	}
	return st.Create(ctx, id, blob)
}

// LoadPersisted rebuilds a history from its persisted log, replaying realize
// over every stored event. A missing record yields ErrNotPersisted.
func LoadPersisted[S, P any](ctx context.Context, st store.Store, id string, realize Realize[S, P], opts ...Option) (*History[S, P], error) {
	blob, err := st.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotPersisted
	}
	if err != nil {
		return nil, fmt.Errorf("load history %q: %w", id, err)
	}
	h := New(realize, opts...)
	if err := h.replay(blob); err != nil {
		return nil, fmt.Errorf("replay history %q: %w", id, err)
	}
	return h, nil
}

func (h *History[S, P]) replay(blob []byte) error {
	var log []Event[P]
	if err := json.Unmarshal(blob, &log); err != nil {
		return err
	}
	for _, event := range log {
		next, err := h.realize(h.state, event)
		if err != nil {
			return &ReduceError{EventType: event.Type, Err: err}
		}
		h.state = next
		h.log = append(h.log, event)
	}
	return nil
}

// PersistedStateByMatch folds every persisted log in the store and returns
// the first derived state satisfying pred, or ErrNotPersisted when none
// matches. Cost is linear in the number of persisted entities.
func PersistedStateByMatch[S, P any](ctx context.Context, st store.Store, realize Realize[S, P], pred func(S) bool) (S, error) {
	var (
		match   S
		found   bool
		scanErr error
	)
	err := st.ForEach(ctx, func(id string, blob []byte) bool {
		h := New(realize)
		if err := h.replay(blob); err != nil {
			scanErr = fmt.Errorf("replay history %q: %w", id, err)
			return false
		}
		if pred(h.State()) {
			match = h.State()
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return match, fmt.Errorf("scan histories: %w", err)
	}
	if scanErr != nil {
		return match, scanErr
	}
	if !found {
		return match, ErrNotPersisted
	}
	return match, nil
}
