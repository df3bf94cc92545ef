package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func readEntries(t *testing.T, dir string) []Entry {
	t.Helper()
	names, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	if err != nil || len(names) != 1 {
		t.Fatalf("expected one journal file, got %v (err %v)", names, err)
	}
	file, err := os.Open(names[0])
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()
	dec, err := zstd.NewReader(file)
	if err != nil {
		t.Fatalf("open zstd stream: %v", err)
	}
	defer dec.Close()

	var entries []Entry
	scanner := bufio.NewScanner(dec)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan journal: %v", err)
	}
	return entries
}

func TestRecordWritesDecodableEntries(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	w, err := NewWriter(dir, func() time.Time { return fixed })
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	if err := w.Record("player", "peter", "getPoints", map[string]int{"points": 5}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := w.Record("player", "anna", "connect", nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries := readEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.ActorKind != "player" || first.ActorID != "peter" || first.EventType != "getPoints" {
		t.Fatalf("unexpected entry %+v", first)
	}
	if !first.At.Equal(fixed) {
		t.Fatalf("unexpected timestamp %v", first.At)
	}
	if entries[1].ActorID != "anna" {
		t.Fatalf("entries out of order: %+v", entries)
	}
}

func TestRecordIsSafeForConcurrentActors(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, nil)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				if err := w.Record("player", "p", "tick", nil); err != nil {
					t.Errorf("record: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	//1.- Every line must still be intact JSON despite the interleaving.
	if got := len(readEntries(t, dir)); got != writers*perWriter {
		t.Fatalf("expected %d entries, got %d", writers*perWriter, got)
	}
}

func TestNilWriterIsInert(t *testing.T) {
	var w *Writer
	if err := w.Record("player", "p", "tick", nil); err != nil {
		t.Fatalf("nil writer record: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nil writer close: %v", err)
	}
}

func TestNewWriterRequiresDirectory(t *testing.T) {
	if _, err := NewWriter("", nil); err == nil {
		t.Fatal("expected error for empty directory")
	}
}
