package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestMemoryCreateRejectsDuplicate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Create(ctx, "peter", []byte("v1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.Create(ctx, "peter", []byte("v2")); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	blob, err := m.Load(ctx, "peter")
	if err != nil || string(blob) != "v1" {
		t.Fatalf("losing create must not overwrite, got %q err %v", blob, err)
	}
}

func TestMemoryLoadMissing(t *testing.T) {
	m := NewMemory()
	if _, err := m.Load(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemorySaveOverwrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Save(ctx, "peter", []byte("v1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.Save(ctx, "peter", []byte("v2")); err != nil {
		t.Fatalf("save: %v", err)
	}
	blob, err := m.Load(ctx, "peter")
	if err != nil || string(blob) != "v2" {
		t.Fatalf("expected last write to win, got %q err %v", blob, err)
	}
}

func TestMemoryHandsOutCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	original := []byte("immutable")
	if err := m.Save(ctx, "peter", original); err != nil {
		t.Fatalf("save: %v", err)
	}
	original[0] = 'X'

	blob, err := m.Load(ctx, "peter")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(blob) != "immutable" {
		t.Fatalf("store must not alias caller buffers, got %q", blob)
	}
	blob[0] = 'Y'
	again, _ := m.Load(ctx, "peter")
	if !bytes.Equal(again, []byte("immutable")) {
		t.Fatalf("loaded buffers must not alias storage, got %q", again)
	}
}

func TestMemoryForEachOrderAndStop(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"charlie", "alice", "bob"} {
		if err := m.Save(ctx, id, []byte(id)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	var seen []string
	if err := m.ForEach(ctx, func(id string, _ []byte) bool {
		seen = append(seen, id)
		return true
	}); err != nil {
		t.Fatalf("foreach: %v", err)
	}
	want := []string{"alice", "bob", "charlie"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, seen)
		}
	}

	visits := 0
	if err := m.ForEach(ctx, func(string, []byte) bool {
		visits++
		return false
	}); err != nil {
		t.Fatalf("foreach: %v", err)
	}
	if visits != 1 {
		t.Fatalf("expected early stop after one visit, got %d", visits)
	}
}
