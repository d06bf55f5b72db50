package logentry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/fieldmap"
)

var errCorruptStore = errors.New("record file is not a JSON array")

// JSONRepo stores every entry in one JSON array file. Mutations are
// serialized in-process and land through a temp file rename. Separate
// processes writing the same file still race with last-writer-wins.
type JSONRepo struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

func NewJSONRepo(path string, logger zerolog.Logger) *JSONRepo {
	return &JSONRepo{path: path, logger: logger.With().Str("store", "json").Logger()}
}

// load reads and normalizes the file. A missing file is an empty store.
func (r *JSONRepo) load() ([]*LogEntry, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptStore, err)
	}

	entries := make([]*LogEntry, 0, len(raw))
	for i, obj := range raw {
		e, err := FromMap(fieldmap.Normalize(obj))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", errCorruptStore, i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// loadForRead treats an unreadable file as empty and logs why.
func (r *JSONRepo) loadForRead() []*LogEntry {
	entries, err := r.load()
	if err != nil {
		r.logger.Warn().Err(err).Str("path", r.path).Msg("record file unreadable, treating as empty")
		return nil
	}
	return entries
}

func (r *JSONRepo) save(entries []*LogEntry) error {
	if entries == nil {
		entries = []*LogEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", r.path, err)
	}
	return nil
}

func (r *JSONRepo) Append(_ context.Context, e *LogEntry) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return 0, fmt.Errorf("append refused: %w", err)
	}
	entries = append(entries, e)
	if err := r.save(entries); err != nil {
		return 0, err
	}
	return len(entries) - 1, nil
}

func (r *JSONRepo) Get(_ context.Context, index int) (*LogEntry, error) {
	r.mu.Lock()
	entries := r.loadForRead()
	r.mu.Unlock()

	if index < 0 || index >= len(entries) {
		return nil, ErrNotFound
	}
	return entries[index], nil
}

func (r *JSONRepo) Replace(_ context.Context, index int, e *LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return fmt.Errorf("replace refused: %w", err)
	}
	if index < 0 || index >= len(entries) {
		return ErrNotFound
	}
	entries[index] = e
	return r.save(entries)
}

func (r *JSONRepo) List(_ context.Context, f Filter, limit, offset int) ([]*IndexedEntry, int, error) {
	r.mu.Lock()
	entries := r.loadForRead()
	r.mu.Unlock()

	var matched []*IndexedEntry
	for i, e := range entries {
		if f.Match(e) {
			matched = append(matched, &IndexedEntry{Index: i, LogEntry: e})
		}
	}
	return page(matched, limit, offset), len(matched), nil
}

// ExistsForMemberOnDate returns the read error to the caller so the guard
// can decide how to degrade.
func (r *JSONRepo) ExistsForMemberOnDate(_ context.Context, medicaidID string, day time.Time) (bool, error) {
	r.mu.Lock()
	entries, err := r.load()
	r.mu.Unlock()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if sameDay(e, medicaidID, day) {
			return true, nil
		}
	}
	return false, nil
}

// Ping checks that the record directory is reachable.
func (r *JSONRepo) Ping(_ context.Context) error {
	info, err := os.Stat(filepath.Dir(r.path))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(r.path))
	}
	return nil
}
