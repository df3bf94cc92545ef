// Package journal streams every appended actor event to a compressed JSONL
// file for offline diagnostics and replay. The journal is advisory: failures
// are reported to the caller but never block the actors that feed it.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Entry is one journalled event.
type Entry struct {
	At        time.Time `json:"at"`
	ActorKind string    `json:"actor_kind"`
	ActorID   string    `json:"actor_id"`
	EventType string    `json:"event_type"`
	Payload   any       `json:"payload,omitempty"`
}

// Writer appends journal entries to a zstd-compressed JSONL file.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	enc  *zstd.Encoder
	now  func() time.Time
}

// NewWriter opens a fresh journal file under dir, named by creation time.
func NewWriter(dir string, clock func() time.Time) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("journal directory must be provided")
	}
	if clock == nil {
		clock = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	name := fmt.Sprintf("events-%s.jsonl.zst", clock().UTC().Format("20060102T150405Z"))
	file, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("create journal file: %w", err)
	}
	enc, err := zstd.NewWriter(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("open zstd stream: %w", err)
	}
	return &Writer{file: file, enc: enc, now: clock}, nil
}

// Record appends one entry. Safe for use from multiple actor goroutines.
func (w *Writer) Record(actorKind, actorID, eventType string, payload any) error {
	if w == nil {
		return nil
	}
	line, err := json.Marshal(Entry{
		At:        w.now().UTC(),
		ActorKind: actorKind,
		ActorID:   actorID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.enc.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

// Close flushes the compressed stream and releases the file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Close(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("close zstd stream: %w", err)
	}
	return w.file.Close()
}
