package journalcatalog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"puzzlearena/core/internal/journal"
)

// Entry summarises one journal file for operator inspection.
type Entry struct {
	Path        string         `json:"path"`
	EntryCount  int            `json:"entry_count"`
	FirstAt     time.Time      `json:"first_at,omitempty"`
	LastAt      time.Time      `json:"last_at,omitempty"`
	EventCounts map[string]int `json:"event_counts,omitempty"`
	ActorIDs    []string       `json:"actor_ids,omitempty"`
}

// List walks the directory tree and summarises every journal file found.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []Entry
	//1.- Walk the tree searching for the journal writer's naming pattern.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasPrefix(name, "events-") || !strings.HasSuffix(name, ".jsonl.zst") {
			return nil
		}
		entry, err := summarise(path)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// ReadEntries streams every record of one journal file, optionally filtered
// down to a single actor id.
func ReadEntries(path, actorID string) ([]journal.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []journal.Entry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record journal.Entry
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, err
		}
		if actorID != "" && record.ActorID != actorID {
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func summarise(path string) (Entry, error) {
	records, err := ReadEntries(path, "")
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		Path:        path,
		EntryCount:  len(records),
		EventCounts: make(map[string]int),
	}
	actors := make(map[string]bool)
	for i, record := range records {
		if i == 0 {
			entry.FirstAt = record.At
		}
		entry.LastAt = record.At
		entry.EventCounts[record.EventType]++
		actors[record.ActorID] = true
	}
	if len(entry.EventCounts) == 0 {
		entry.EventCounts = nil
	}
	for id := range actors {
		entry.ActorIDs = append(entry.ActorIDs, id)
	}
	sort.Strings(entry.ActorIDs)
	return entry, nil
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	//1.- Marshal with indentation to keep CLI output legible for operators.
	return json.MarshalIndent(entries, "", "  ")
}
