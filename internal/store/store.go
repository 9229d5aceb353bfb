package store

import (
	"context"

	"github.com/joescharf/portfolio-sync/internal/models"
)

// Journal records pipeline runs.
type Journal interface {
	RecordRun(ctx context.Context, r *models.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
	LastSuccess(ctx context.Context) (*models.RunRecord, error)
	Close() error
}

var _ Journal = (*SQLiteJournal)(nil)
