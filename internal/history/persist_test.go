package history

import (
	"context"
	"errors"
	"testing"

	"puzzlearena/core/internal/store"
)

func TestSaveAndLoadPersistedRebuildsState(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	h := New(realizeCounter)
	for _, n := range []int{2, 3, 5} {
		if err := h.Append("add", n); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := h.SavePersisted(ctx, st, "c1"); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadPersisted(ctx, st, "c1", realizeCounter)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.State().Total != 10 {
		t.Fatalf("expected replayed total 10, got %d", loaded.State().Total)
	}
	if loaded.Len() != 3 {
		t.Fatalf("expected 3 replayed events, got %d", loaded.Len())
	}
}

func TestLoadPersistedDistinguishesMissingRecord(t *testing.T) {
	_, err := LoadPersisted(context.Background(), store.NewMemory(), "ghost", realizeCounter)
	if !errors.Is(err, ErrNotPersisted) {
		t.Fatalf("expected ErrNotPersisted, got %v", err)
	}
}

func TestCreatePersistedRejectsExistingRecord(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := New(realizeCounter)
	if err := h.CreatePersisted(ctx, st, "c1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := h.CreatePersisted(ctx, st, "c1"); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPersistedStateByMatchReturnsFirstMatch(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	for id, total := range map[string]int{"a": 1, "b": 7, "c": 7} {
		h := New(realizeCounter)
		if err := h.Append("add", total); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := h.SavePersisted(ctx, st, id); err != nil {
			t.Fatalf("save %q: %v", id, err)
		}
	}

	state, err := PersistedStateByMatch(ctx, st, realizeCounter,
		func(s counter) bool { return s.Total == 7 })
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if state.Total != 7 {
		t.Fatalf("unexpected matched state: %+v", state)
	}

	_, err = PersistedStateByMatch(ctx, st, realizeCounter,
		func(s counter) bool { return s.Total == 42 })
	if !errors.Is(err, ErrNotPersisted) {
		t.Fatalf("expected ErrNotPersisted for no match, got %v", err)
	}
}
