package port

import (
	"context"

	"github.com/crynn/crynn/internal/domain/entity"
)

// SnapshotStore durably persists session snapshots.
// Load returns (nil, nil) when no snapshot exists yet.
type SnapshotStore interface {
	Save(ctx context.Context, state *entity.SessionState) error
	Load(ctx context.Context) (*entity.SessionState, error)
	Delete(ctx context.Context) error
}
