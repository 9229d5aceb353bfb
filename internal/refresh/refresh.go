// Package refresh runs one pass of the content pipeline: detect changes in
// the Drive folder, update the CV, profile image and skills, then sync
// projects from the code host.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/joescharf/portfolio-sync/internal/detect"
	"github.com/joescharf/portfolio-sync/internal/filesync"
	"github.com/joescharf/portfolio-sync/internal/metrics"
	"github.com/joescharf/portfolio-sync/internal/models"
	"github.com/joescharf/portfolio-sync/internal/projects"
	"github.com/joescharf/portfolio-sync/internal/retry"
	"github.com/joescharf/portfolio-sync/internal/validation"
)

// Lister lists the candidate files of the Drive folder, newest first.
type Lister interface {
	List(ctx context.Context) ([]models.RemoteFile, error)
}

// FileSyncer downloads a remote file over dest and returns where it landed.
type FileSyncer interface {
	Sync(ctx context.Context, fileID, dest string) (string, error)
}

// TextExtractor reads the plain text of a document.
type TextExtractor interface {
	Extract(path string) (string, error)
}

// SkillsAnalyzer categorizes CV text.
type SkillsAnalyzer interface {
	AnalyzeSkills(ctx context.Context, text string) (*models.SkillsDocument, error)
}

// ProjectSyncer runs the project branch.
type ProjectSyncer interface {
	Sync(ctx context.Context, meta *models.SyncMetadata, cvChanged bool) (*projects.Result, error)
}

// Store persists metadata and skills.
type Store interface {
	LoadMetadata() (models.SyncMetadata, error)
	SaveMetadata(m models.SyncMetadata) error
	SaveSkills(doc *models.SkillsDocument) error
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Fs        afero.Fs
	Lister    Lister
	Files     FileSyncer
	Extractor TextExtractor
	Analyzer  SkillsAnalyzer
	Projects  ProjectSyncer
	Store     Store
	Metrics   *metrics.Metrics // optional
	Log       *slog.Logger
}

// Options locate the outputs and tune the run.
type Options struct {
	PublicDir     string
	CVPath        string
	ImagePath     string
	PurgePatterns []string // nil uses filesync.DefaultPurgePatterns
	MinTextLength int
	Retry         retry.Policy
	DryRun        bool
}

// Result summarizes one run.
type Result struct {
	CV    *models.RemoteFile `json:"cv,omitempty"`
	Image *models.RemoteFile `json:"image,omitempty"`

	CVChanged     bool `json:"cvChanged"`
	ImageChanged  bool `json:"imageChanged"`
	ImageUpdated  bool `json:"imageUpdated"`
	ImageDegraded bool `json:"imageDegraded"`
	SkillsUpdated bool `json:"skillsUpdated"`
	CVDegraded    bool `json:"cvDegraded"`
	Purged        int  `json:"purged"`

	ProjectsMatching int      `json:"projectsMatching"`
	ProjectsAdded    int      `json:"projectsAdded"`
	ProjectsFailed   int      `json:"projectsFailed"`
	ProjectsSkipped  bool     `json:"projectsSkipped"`
	ProjectsPending  []string `json:"projectsPending,omitempty"`
	ProjectError     error    `json:"-"`
}

// Pipeline executes runs. It is not safe for concurrent use.
type Pipeline struct {
	d   Deps
	o   Options
	log *slog.Logger
}

// New creates a Pipeline.
func New(d Deps, o Options) *Pipeline {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if o.PurgePatterns == nil {
		o.PurgePatterns = filesync.DefaultPurgePatterns
	}
	if o.Retry.Log == nil {
		o.Retry.Log = d.Log
	}
	return &Pipeline{d: d, o: o, log: d.Log}
}

// Run executes one pass. A failure of the image or CV branch does not stop
// the project branch; it is returned once the project branch has run.
// Project branch failures are reported in Result.ProjectError only.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	if !p.o.DryRun {
		res.Purged = filesync.Purge(p.d.Fs, p.o.PublicDir, p.o.PurgePatterns, p.log)
	}

	files, err := p.d.Lister.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list remote files: %w", err)
	}

	meta, err := p.d.Store.LoadMetadata()
	if err != nil {
		p.log.Warn("sync metadata unreadable, treating everything as changed", "error", err)
		meta = models.SyncMetadata{}
	}

	ch := detect.Detect(files, meta)
	res.CV, res.Image = ch.CV, ch.Image
	res.CVChanged, res.ImageChanged = ch.CVChanged, ch.ImageChanged
	p.log.Info("checked drive folder",
		"files", len(files),
		"cv_changed", ch.CVChanged,
		"image_changed", ch.ImageChanged,
	)

	var held error
	switch {
	case p.o.DryRun:
	case !ch.Any():
		p.log.Info("drive documents unchanged, skipping downloads")
	default:
		if ch.ImageChanged {
			if err := p.syncImage(ctx, &meta, ch.Image, res); err != nil {
				p.log.Error("profile image update failed", "error", err)
				held = errors.Join(held, err)
			}
		}
		if ch.CVChanged {
			if err := p.syncCV(ctx, &meta, ch.CV, res); err != nil {
				p.log.Error("CV update failed", "error", err)
				held = errors.Join(held, err)
			}
		}
	}

	pr, err := p.d.Projects.Sync(ctx, &meta, ch.CVChanged)
	if err != nil {
		p.log.Error("project sync failed", "error", err)
		res.ProjectError = err
		if ctx.Err() != nil {
			held = errors.Join(held, err)
		}
	} else {
		res.ProjectsMatching = pr.Matching
		res.ProjectsAdded = len(pr.Added)
		res.ProjectsFailed = len(pr.Failed)
		res.ProjectsSkipped = pr.Skipped
		res.ProjectsPending = pr.Pending
	}

	return res, held
}

func (p *Pipeline) syncImage(ctx context.Context, meta *models.SyncMetadata, f *models.RemoteFile, res *Result) error {
	path, err := retry.Do(ctx, p.o.Retry, "download profile image", func(ctx context.Context) (string, error) {
		return p.d.Files.Sync(ctx, f.ID, p.o.ImagePath)
	})
	if err != nil {
		p.countDownload(metrics.KindImage, metrics.OutcomeFailure)
		return fmt.Errorf("sync profile image: %w", err)
	}
	if path != p.o.ImagePath {
		p.countDownload(metrics.KindImage, metrics.OutcomeDegraded)
		res.ImageDegraded = true
		return nil
	}
	p.countDownload(metrics.KindImage, metrics.OutcomeSuccess)

	meta.ImgModifiedTime = f.ModifiedTime
	if err := p.d.Store.SaveMetadata(*meta); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	res.ImageUpdated = true
	p.log.Info("profile image updated", "name", f.Name, "modified", f.ModifiedTime)
	return nil
}

func (p *Pipeline) syncCV(ctx context.Context, meta *models.SyncMetadata, f *models.RemoteFile, res *Result) error {
	path, err := retry.Do(ctx, p.o.Retry, "download CV", func(ctx context.Context) (string, error) {
		return p.d.Files.Sync(ctx, f.ID, p.o.CVPath)
	})
	if err != nil {
		p.countDownload(metrics.KindCV, metrics.OutcomeFailure)
		return fmt.Errorf("sync CV: %w", err)
	}
	res.CVDegraded = path != p.o.CVPath
	if res.CVDegraded {
		p.countDownload(metrics.KindCV, metrics.OutcomeDegraded)
	} else {
		p.countDownload(metrics.KindCV, metrics.OutcomeSuccess)
	}

	text, err := p.d.Extractor.Extract(path)
	if err != nil {
		p.log.Warn("could not extract CV text, skills not updated", "path", path, "error", err)
		return nil
	}
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < p.o.MinTextLength {
		p.log.Warn("CV text too short for analysis, skills not updated", "chars", n, "min", p.o.MinTextLength)
		p.countAI(metrics.OutcomeSkipped)
		return nil
	}

	doc, err := retry.Do(ctx, p.o.Retry, "analyze CV skills", func(ctx context.Context) (*models.SkillsDocument, error) {
		return p.d.Analyzer.AnalyzeSkills(ctx, text)
	})
	if err != nil {
		p.countAI(metrics.OutcomeFailure)
		return fmt.Errorf("analyze CV: %w", err)
	}
	p.countAI(metrics.OutcomeSuccess)

	if !validation.IsValidSkills(doc) {
		p.log.Warn("discarding analyzer result: stacks and tools must both be non-empty")
		return nil
	}
	if err := p.d.Store.SaveSkills(doc); err != nil {
		return fmt.Errorf("save skills: %w", err)
	}
	res.SkillsUpdated = true
	p.log.Info("skills updated", "stacks", len(doc.Stacks), "tools", len(doc.Tools))

	if res.CVDegraded {
		p.log.Warn("CV not at its canonical path, change will be picked up again next run", "path", path)
		return nil
	}
	meta.CVModifiedTime = f.ModifiedTime
	if err := p.d.Store.SaveMetadata(*meta); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

func (p *Pipeline) countDownload(kind, outcome string) {
	if p.d.Metrics != nil {
		p.d.Metrics.Downloads.WithLabelValues(kind, outcome).Inc()
	}
}

func (p *Pipeline) countAI(outcome string) {
	if p.d.Metrics != nil {
		p.d.Metrics.AIRequests.WithLabelValues(metrics.KindSkills, outcome).Inc()
	}
}
