package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/portfolio-sync/internal/config"
	"github.com/joescharf/portfolio-sync/internal/lock"
	"github.com/joescharf/portfolio-sync/internal/metrics"
	"github.com/joescharf/portfolio-sync/internal/models"
	"github.com/joescharf/portfolio-sync/internal/refresh"
	"github.com/joescharf/portfolio-sync/internal/store"
)

// runEnv extends testEnv with a complete set of settings pointing into a
// temp site directory.
func runEnv(t *testing.T) string {
	t.Helper()
	dir, _ := testEnv(t)
	log = slog.New(slog.NewTextHandler(io.Discard, nil))

	viper.Set("ai.api_key", "gsk_test")
	viper.Set("drive.api_key", "drive-key")
	viper.Set("drive.folder_id", "folder")
	viper.Set("data_dir", filepath.Join(dir, "site", "data"))
	viper.Set("public_dir", filepath.Join(dir, "site", "public"))
	viper.Set("drive.base_url", "http://127.0.0.1:1")
	viper.Set("github.api_url", "http://127.0.0.1:1/")
	return dir
}

func TestRun_MissingSettings(t *testing.T) {
	dir, _ := testEnv(t)
	log = slog.New(slog.NewTextHandler(io.Discard, nil))
	errOut := &strings.Builder{}
	ui.ErrOut = errOut

	err := runRun(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
	assert.Contains(t, err.Error(), "ai.api_key")
	assert.Contains(t, errOut.String(), "3 required setting(s) unset")

	_, statErr := os.Stat(filepath.Join(dir, "history.db"))
	assert.True(t, os.IsNotExist(statErr), "invalid config must not touch the journal")
}

func TestRun_LockedRecordsJournal(t *testing.T) {
	dir := runEnv(t)
	textfile := filepath.Join(dir, "metrics", "portfolio_sync.prom")
	viper.Set("metrics.textfile", textfile)

	cfg, err := loadConfig()
	require.NoError(t, err)
	held := lock.New(cfg.LockFile)
	require.NoError(t, held.Acquire())
	t.Cleanup(func() { _ = held.Release() })

	err = runRun(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lock.ErrLocked)

	j, err := store.NewSQLiteJournal(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	runs, err := j.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusLocked, runs[0].Status)
	assert.Contains(t, runs[0].Error, "another run is in progress")

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `portfolio_sync_last_run_status{status="locked"} 1`)
}

func TestFinishRun_CarriesLastSuccessIntoTextfile(t *testing.T) {
	dir := runEnv(t)
	textfile := filepath.Join(dir, "portfolio_sync.prom")
	viper.Set("metrics.textfile", textfile)
	cfg, err := loadConfig()
	require.NoError(t, err)

	okAt := time.Unix(1700000000, 0).UTC()
	finishRun(context.Background(), cfg, metrics.New(), &models.RunRecord{StartedAt: okAt}, nil)

	m := metrics.New()
	finishRun(context.Background(), cfg, m, &models.RunRecord{StartedAt: time.Now().UTC()}, errors.New("boom"))

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `portfolio_sync_last_run_status{status="failed"} 1`)
	assert.NotContains(t, string(data), "portfolio_sync_last_success_timestamp_seconds 0")
	assert.Greater(t, testutil.ToFloat64(m.LastSuccess), 0.0)
}

func TestHistoryRow(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	row := historyRow(&models.RunRecord{
		StartedAt:      start,
		FinishedAt:     start.Add(1500 * time.Millisecond),
		Status:         models.RunStatusFailed,
		DryRun:         true,
		CVChanged:      true,
		ProjectsAdded:  2,
		ProjectsFailed: 1,
		Error:          strings.Repeat("x", 100),
	})

	require.Len(t, row, 8)
	assert.Equal(t, "1 hour ago", row[0])
	assert.Contains(t, row[1], "failed")
	assert.Contains(t, row[1], "(dry)")
	assert.Equal(t, "1.5s", row[2])
	assert.Contains(t, row[3], "yes")
	assert.Equal(t, "2 (1 failed)", row[6])
	assert.Len(t, row[7], 60)
}

func TestPrintRunSummary_DryRun(t *testing.T) {
	_, out := testEnv(t)
	errOut := &strings.Builder{}
	ui.ErrOut = errOut
	dryRun = true
	ui.DryRun = true
	t.Cleanup(func() { dryRun = false })

	printRunSummary(&refresh.Result{
		CV:              &models.RemoteFile{Name: "cv.pdf"},
		Image:           &models.RemoteFile{Name: "me.jpg"},
		CVChanged:       true,
		ProjectsPending: []string{"hex-site"},
	})

	assert.Contains(t, errOut.String(), "Would download")
	assert.Contains(t, errOut.String(), "hex-site")
	assert.NotContains(t, out.String(), "Nothing to do")
}

func TestFinishRun_Status(t *testing.T) {
	dir := runEnv(t)
	cfg, err := loadConfig()
	require.NoError(t, err)
	cfg.JournalPath = filepath.Join(dir, "j", "history.db")

	m := metrics.New()
	rec := &models.RunRecord{StartedAt: time.Now().UTC()}
	finishRun(context.Background(), cfg, m, rec, errors.New("boom"))
	assert.Equal(t, models.RunStatusFailed, rec.Status)
	assert.Equal(t, "boom", rec.Error)

	rec = &models.RunRecord{StartedAt: time.Now().UTC()}
	finishRun(context.Background(), cfg, m, rec, nil)
	assert.Equal(t, models.RunStatusSuccess, rec.Status)

	j, err := store.NewSQLiteJournal(cfg.JournalPath)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	last, err := j.LastSuccess(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, rec.ID, last.ID)
}
