// Package jsonlog persists the trajectory log as a single JSON file.
//
// The file holds the full ordered unit list and is rewritten on every
// append through a temp-file-then-rename cycle, so a restarting reader
// always sees either the previous complete log or the new complete
// log, never a truncated mix.
package jsonlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/recallkit/recallkit-go/core"
)

// Store is a file-backed trajectory log. It keeps the full unit list
// in memory and mirrors it to disk on every append.
//
// Single logical writer per path: the store serializes its own
// mutations, but two processes pointed at the same file will race each
// other's rewrites.
type Store struct {
	path  string
	mu    sync.RWMutex
	units []core.Unit
}

// New creates a store backed by the JSON file at path. No I/O happens
// until Load or Append.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the backing file into memory, replacing any prior state.
// A missing file is an empty store. An unreadable or unparseable file
// is logged and treated as empty; the bad file is moved aside to
// <path>.corrupt so the next append does not overwrite the evidence.
func (s *Store) Load(ctx context.Context) ([]core.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.units = nil
		return nil, nil
	}
	if err != nil {
		log.Printf("[JSONLOG] Unreadable store at %s, starting empty: %v", s.path, err)
		s.units = nil
		return nil, nil
	}

	var units []core.Unit
	if err := json.Unmarshal(data, &units); err != nil {
		log.Printf("[JSONLOG] Corrupt store at %s, starting empty: %v", s.path, err)
		s.preserveCorrupt()
		s.units = nil
		return nil, nil
	}

	s.units = units
	return s.snapshot(), nil
}

// Append adds the unit to the in-memory log and rewrites the backing
// file. The returned ref is the unit's position, stable for the life
// of the store. If persistence fails the unit is kept in memory for
// the current session and the error reports the lost durability; only
// a cancelled context leaves the log untouched.
func (s *Store) Append(ctx context.Context, unit core.Unit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return -1, err
	}

	s.units = append(s.units, unit)
	ref := len(s.units) - 1

	if err := s.persist(); err != nil {
		return ref, fmt.Errorf("persist log: %w", err)
	}
	return ref, nil
}

// Unit returns the unit at ref, if it exists.
func (s *Store) Unit(ref int) (core.Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ref < 0 || ref >= len(s.units) {
		return core.Unit{}, false
	}
	return s.units[ref], true
}

// Units returns a snapshot of the log in insertion order.
func (s *Store) Units() []core.Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Len returns the number of units currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}

// persist writes the full log to a temp file in the same directory and
// atomically replaces the backing file. Caller holds the write lock.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.units, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal units: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

// preserveCorrupt moves an unparseable store file aside for
// inspection. Best effort; an existing .corrupt file is overwritten.
func (s *Store) preserveCorrupt() {
	corrupt := s.path + ".corrupt"
	if err := os.Rename(s.path, corrupt); err != nil {
		log.Printf("[JSONLOG] Could not preserve corrupt store: %v", err)
		return
	}
	log.Printf("[JSONLOG] Corrupt store preserved at %s", corrupt)
}

// snapshot copies the unit slice so callers never alias internal
// state. Caller holds at least a read lock.
func (s *Store) snapshot() []core.Unit {
	if len(s.units) == 0 {
		return nil
	}
	out := make([]core.Unit, len(s.units))
	copy(out, s.units)
	return out
}
