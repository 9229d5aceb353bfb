package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"

	"github.com/joescharf/portfolio-sync/internal/besteffort"
	"github.com/joescharf/portfolio-sync/internal/models"
)

// File names inside the data directory.
const (
	MetadataFile = "cv-metadata.json"
	SkillsFile   = "generated-skills.json"
	ProjectsFile = "projects.json"
)

var ErrCorrupt = errors.New("store: unparseable file")

// FileStore persists the pipeline's JSON documents in one directory.
// Every write goes to <file>.tmp first and is renamed into place.
type FileStore struct {
	fs  afero.Fs
	dir string
	log *slog.Logger
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(fsys afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fsys, dir: dir, log: slog.Default()}
}

// WithLogger sets the logger used for cleanup warnings.
func (s *FileStore) WithLogger(log *slog.Logger) *FileStore {
	if log != nil {
		s.log = log
	}
	return s
}

// Path returns the full path of name inside the data directory.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// LoadMetadata reads the sync metadata. A missing file yields the zero value.
// An unparseable file yields the zero value and an error wrapping ErrCorrupt,
// so callers can warn and carry on with a full refresh.
func (s *FileStore) LoadMetadata() (models.SyncMetadata, error) {
	var m models.SyncMetadata
	found, err := s.readJSON(MetadataFile, &m)
	if err != nil || !found {
		return models.SyncMetadata{}, err
	}
	return m, nil
}

// SaveMetadata replaces the sync metadata file.
func (s *FileStore) SaveMetadata(m models.SyncMetadata) error {
	return s.writeJSON(MetadataFile, m)
}

// LoadSkills reads the skills document, or nil when none was written yet.
func (s *FileStore) LoadSkills() (*models.SkillsDocument, error) {
	var doc models.SkillsDocument
	found, err := s.readJSON(SkillsFile, &doc)
	if err != nil || !found {
		return nil, err
	}
	return &doc, nil
}

// SaveSkills replaces the skills file.
func (s *FileStore) SaveSkills(doc *models.SkillsDocument) error {
	return s.writeJSON(SkillsFile, doc)
}

// LoadProjects reads the project list. A missing file is an empty list.
func (s *FileStore) LoadProjects() (*ProjectList, error) {
	data, err := afero.ReadFile(s.fs, s.Path(ProjectsFile))
	if errors.Is(err, os.ErrNotExist) {
		return NewProjectList(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ProjectsFile, err)
	}
	pl, err := ParseProjectList(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ProjectsFile, err)
	}
	return pl, nil
}

// SaveProjects replaces the project list file.
func (s *FileStore) SaveProjects(pl *ProjectList) error {
	return s.writeJSON(ProjectsFile, pl)
}

func (s *FileStore) readJSON(name string, out any) (bool, error) {
	data, err := afero.ReadFile(s.fs, s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%s: %w: %v", name, ErrCorrupt, err)
	}
	return true, nil
}

func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	data = append(data, '\n')

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	path := s.Path(name)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		besteffort.Do(s.log, "remove temp file "+tmp, func() error {
			return s.fs.Remove(tmp)
		})
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
