package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crynn/crynn/internal/application/port"
	"github.com/crynn/crynn/internal/domain/entity"
	"github.com/crynn/crynn/internal/logging"
)

// Compile-time interface check.
var _ port.SnapshotStore = (*Store)(nil)

// Store implements port.SnapshotStore on a single-row session_state
// table. The snapshot travels as a JSON blob so the schema never has
// to chase the snapshot format.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save upserts the snapshot row.
func (s *Store) Save(ctx context.Context, state *entity.SessionState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil session state")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	const query = `
		INSERT INTO session_state (id, version, tab_count, state_json, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			tab_count = excluded.tab_count,
			state_json = excluded.state_json,
			updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, state.Version, len(state.Tabs), string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}

	logging.FromContext(ctx).Debug().
		Int("tabs", len(state.Tabs)).
		Msg("session snapshot written")

	return nil
}

// Load reads the snapshot row. An empty table yields (nil, nil).
func (s *Store) Load(ctx context.Context) (*entity.SessionState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state_json FROM session_state WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	var state entity.SessionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}

	if state.Version > entity.SessionStateVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", state.Version, entity.SessionStateVersion)
	}

	return &state, nil
}

// Delete removes the snapshot row. An empty table is not an error.
func (s *Store) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_state WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}
