package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/portfolio-sync/internal/models"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	s, err := NewSQLiteJournal(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteJournal_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "history.db")

	s, err := NewSQLiteJournal(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestJournal(t)

	// Running migrate again should be a no-op
	err := s.Migrate(context.Background())
	assert.NoError(t, err)
}

func TestRecordRun_RoundTrip(t *testing.T) {
	s := newTestJournal(t)
	ctx := context.Background()

	started := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	r := &models.RunRecord{
		StartedAt:      started,
		FinishedAt:     started.Add(42 * time.Second),
		Status:         models.RunStatusFailed,
		CVChanged:      true,
		SkillsUpdated:  false,
		ImageChanged:   true,
		ImageUpdated:   true,
		ProjectsAdded:  2,
		ProjectsFailed: 1,
		Error:          "analyze skills: boom",
	}
	require.NoError(t, s.RecordRun(ctx, r))
	assert.NotEmpty(t, r.ID)
	assert.Len(t, r.ID, 26)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, r.ID, got.ID)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, 42*time.Second, got.Duration())
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.True(t, got.CVChanged)
	assert.False(t, got.SkillsUpdated)
	assert.True(t, got.ImageChanged)
	assert.True(t, got.ImageUpdated)
	assert.False(t, got.DryRun)
	assert.Equal(t, 2, got.ProjectsAdded)
	assert.Equal(t, 1, got.ProjectsFailed)
	assert.Equal(t, "analyze skills: boom", got.Error)
}

func TestRecordRun_UnfinishedRun(t *testing.T) {
	s := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, &models.RunRecord{Status: models.RunStatusLocked}))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].FinishedAt.IsZero())
	assert.Equal(t, time.Duration(0), runs[0].Duration())
	assert.False(t, runs[0].StartedAt.IsZero())
}

func TestListRuns_NewestFirstWithLimit(t *testing.T) {
	s := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordRun(ctx, &models.RunRecord{
			StartedAt:     base.Add(time.Duration(i) * time.Hour),
			Status:        models.RunStatusSuccess,
			ProjectsAdded: i,
		}))
	}

	runs, err := s.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 4, runs[0].ProjectsAdded)
	assert.Equal(t, 3, runs[1].ProjectsAdded)
	assert.Equal(t, 2, runs[2].ProjectsAdded)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestLastSuccess(t *testing.T) {
	s := newTestJournal(t)
	ctx := context.Background()

	got, err := s.LastSuccess(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordRun(ctx, &models.RunRecord{StartedAt: base, Status: models.RunStatusSuccess, ProjectsAdded: 1}))
	require.NoError(t, s.RecordRun(ctx, &models.RunRecord{StartedAt: base.Add(time.Hour), Status: models.RunStatusSuccess, DryRun: true}))
	require.NoError(t, s.RecordRun(ctx, &models.RunRecord{StartedAt: base.Add(2 * time.Hour), Status: models.RunStatusFailed}))

	got, err = s.LastSuccess(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.ProjectsAdded)
}
