// Package filesync downloads remote files next to their destination and
// swaps them into place.
package filesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/joescharf/portfolio-sync/internal/besteffort"
)

// TempSuffix is appended to the destination path while downloading.
const TempSuffix = ".tmp"

// Downloader streams a URL into a writer, sending headers with the request.
type Downloader interface {
	Download(ctx context.Context, url string, headers map[string]string, w io.Writer) (int64, error)
}

// RequestSource maps a remote file ID to its download URL and the headers
// that authenticate it.
type RequestSource interface {
	DownloadRequest(fileID string) (string, map[string]string)
}

// Syncer performs temp-download-then-swap updates.
type Syncer struct {
	fs   afero.Fs
	dl   Downloader
	reqs RequestSource
	log  *slog.Logger
}

// New creates a Syncer writing through fsys.
func New(fsys afero.Fs, dl Downloader, reqs RequestSource, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{fs: fsys, dl: dl, reqs: reqs, log: log}
}

// Sync downloads fileID to dest+".tmp" and renames it over dest.
//
// When the old dest cannot be removed or replaced because another process
// holds it, Sync logs a warning and returns the temp path so callers can
// still read the fresh content. Otherwise it returns dest.
func (s *Syncer) Sync(ctx context.Context, fileID, dest string) (string, error) {
	if err := s.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create destination dir: %w", err)
	}

	tmp := dest + TempSuffix
	n, err := s.download(ctx, fileID, tmp)
	if err != nil {
		besteffort.Do(s.log, "remove partial download", func() error {
			return ignoreNotExist(s.fs.Remove(tmp))
		})
		return "", err
	}
	s.log.Info("downloaded", "file", filepath.Base(dest), "size", humanize.Bytes(uint64(n)))

	if err := s.fs.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		if isLocked(err) {
			s.log.Warn("destination is locked, using temp download", "path", dest, "temp", tmp)
			return tmp, nil
		}
		return "", fmt.Errorf("remove %s: %w", dest, err)
	}
	if err := s.fs.Rename(tmp, dest); err != nil {
		if isLocked(err) {
			s.log.Warn("destination is locked, using temp download", "path", dest, "temp", tmp)
			return tmp, nil
		}
		return "", fmt.Errorf("rename %s: %w", tmp, err)
	}
	return dest, nil
}

func (s *Syncer) download(ctx context.Context, fileID, tmp string) (int64, error) {
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	u, headers := s.reqs.DownloadRequest(fileID)
	n, err := s.dl.Download(ctx, u, headers, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close temp file: %w", cerr)
	}
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", fileID, err)
	}
	return n, nil
}

func ignoreNotExist(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
