// Package drive lists the CV folder on Google Drive and builds download
// requests for its files.
package drive

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/joescharf/portfolio-sync/internal/models"
	"github.com/joescharf/portfolio-sync/internal/netclient"
)

// DefaultBaseURL is the Drive v3 REST root.
const DefaultBaseURL = "https://www.googleapis.com/drive/v3/"

const listFields = "files(id, name, mimeType, modifiedTime)"

// Config holds what the lister needs to reach one folder.
type Config struct {
	APIKey   string
	FolderID string
	BaseURL  string // optional; DefaultBaseURL when empty
}

// Lister queries a single Drive folder.
type Lister struct {
	svc      *gdrive.Service
	folderID string
	apiKey   string
	baseURL  string
	log      *slog.Logger
}

// NewLister creates a Lister authenticated with an API key.
func NewLister(ctx context.Context, cfg Config, log *slog.Logger) (*Lister, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if log == nil {
		log = slog.Default()
	}

	svc, err := gdrive.NewService(ctx,
		option.WithAPIKey(cfg.APIKey),
		option.WithEndpoint(base),
	)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Lister{
		svc:      svc,
		folderID: cfg.FolderID,
		apiKey:   cfg.APIKey,
		baseURL:  base,
		log:      log,
	}, nil
}

// List returns the PDFs and images in the folder, newest first.
func (l *Lister) List(ctx context.Context) ([]models.RemoteFile, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(l.folderID))
	res, err := l.svc.Files.List().
		Q(q).
		OrderBy("modifiedTime desc").
		Fields(listFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list drive folder %s: %w", l.folderID, netclient.RedactError(err))
	}

	files := make([]models.RemoteFile, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, models.RemoteFile{
			ID:           f.Id,
			Name:         f.Name,
			MimeType:     f.MimeType,
			ModifiedTime: f.ModifiedTime,
		})
	}
	candidates := FilterCandidates(files)
	l.log.Debug("listed drive folder", "folder", l.folderID, "files", len(files), "candidates", len(candidates))
	return candidates, nil
}

// APIKeyHeader carries the API key on media downloads, keeping it out of
// URLs that end up in errors and logs.
const APIKeyHeader = "X-Goog-Api-Key"

// DownloadRequest returns the media URL for fileID and the headers that
// authenticate it.
func (l *Lister) DownloadRequest(fileID string) (string, map[string]string) {
	u := l.baseURL + "files/" + url.PathEscape(fileID) + "?alt=media"
	return u, map[string]string{APIKeyHeader: l.apiKey}
}

// FilterCandidates keeps PDFs and images, preserving order.
func FilterCandidates(files []models.RemoteFile) []models.RemoteFile {
	out := make([]models.RemoteFile, 0, len(files))
	for _, f := range files {
		if f.IsPDF() || f.IsImage() {
			out = append(out, f)
		}
	}
	return out
}

// escapeQuery escapes a literal for use inside a single-quoted Drive query.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
