// Package filestore persists session snapshots as a single JSON file.
//
// Writes are atomic: the snapshot is written to a temporary file in the
// same directory, synced, then renamed over the previous file. A crash
// mid-write leaves the old snapshot intact.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/crynn/crynn/internal/application/port"
	"github.com/crynn/crynn/internal/domain/entity"
	"github.com/crynn/crynn/internal/logging"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// Compile-time interface check.
var _ port.SnapshotStore = (*Store)(nil)

// Store implements port.SnapshotStore on top of a single JSON file.
type Store struct {
	path string
}

// New creates a store writing to the given file path. The parent
// directory is created on the first save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Save replaces the snapshot file atomically.
func (s *Store) Save(ctx context.Context, state *entity.SessionState) error {
	log := logging.FromContext(ctx)

	if state == nil {
		return fmt.Errorf("cannot save nil session state")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	log.Debug().
		Str("path", s.path).
		Int("tabs", len(state.Tabs)).
		Msg("session snapshot written")

	return nil
}

// Load reads the most recent snapshot. A missing file yields (nil, nil);
// a file that exists but cannot be decoded is an error so callers can
// distinguish "fresh start" from "corrupt state".
func (s *Store) Load(ctx context.Context) (*entity.SessionState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var state entity.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if state.Version > entity.SessionStateVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", state.Version, entity.SessionStateVersion)
	}

	logging.FromContext(ctx).Debug().
		Str("path", s.path).
		Int("tabs", len(state.Tabs)).
		Msg("session snapshot loaded")

	return &state, nil
}

// Delete removes the snapshot file. Missing files are not an error.
func (s *Store) Delete(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	defer func() { _ = f.Close() }()

	if err := f.Chmod(filePerm); err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
