package filesync

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/joescharf/portfolio-sync/internal/besteffort"
)

// DefaultPurgePatterns match leftovers of earlier runs in the public directory.
var DefaultPurgePatterns = []string{"cv_*.pdf", "profile_*.jpg", "*" + TempSuffix}

// Purge removes the regular files directly under dir whose names match any
// pattern. Failures are logged and skipped. It returns how many files were
// removed; a missing dir removes nothing.
func Purge(fsys afero.Fs, dir string, patterns []string, log *slog.Logger) int {
	if log == nil {
		log = slog.Default()
	}
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		log.Debug("purge skipped", "dir", dir, "error", err)
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !matchAny(patterns, e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if besteffort.Do(log, fmt.Sprintf("purge %s", path), func() error { return fsys.Remove(path) }) {
			removed++
		}
	}
	if removed > 0 {
		log.Info("purged stale files", "dir", dir, "count", removed)
	}
	return removed
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
