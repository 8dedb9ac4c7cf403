package repository

import (
	"context"

	"shein-verse-bot/internal/domain/entity"
)

// SnapshotRepository persists the snapshot between process restarts.
// Save replaces the whole stored snapshot.
type SnapshotRepository interface {
	Load(ctx context.Context) ([]entity.SnapshotEntry, error)
	Save(ctx context.Context, entries []entity.SnapshotEntry) error
}
