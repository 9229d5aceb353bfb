// Package projects appends newly discovered portfolio repositories to the
// persisted project list.
package projects

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/joescharf/portfolio-sync/internal/metrics"
	"github.com/joescharf/portfolio-sync/internal/models"
	"github.com/joescharf/portfolio-sync/internal/retry"
	"github.com/joescharf/portfolio-sync/internal/store"
	"github.com/joescharf/portfolio-sync/internal/validation"
)

// Fallbacks for fields the analyzer did not provide.
const (
	DefaultComplexity   = 5
	DefaultArchitecture = "Unknown"
	DefaultDifficulty   = "Medium"
)

// RepoLister lists the configured account's repositories.
type RepoLister interface {
	ListRepos(ctx context.Context) ([]models.Repository, error)
}

// Analyzer derives project metadata from a repository.
type Analyzer interface {
	AnalyzeProject(ctx context.Context, repo models.Repository) (*models.ProjectAnalysis, error)
}

// Store persists the project list and sync metadata.
type Store interface {
	LoadProjects() (*store.ProjectList, error)
	SaveProjects(pl *store.ProjectList) error
	SaveMetadata(m models.SyncMetadata) error
}

// Options tunes a Syncer.
type Options struct {
	Topic   string
	Retry   retry.Policy
	DryRun  bool
	Metrics *metrics.Metrics // optional
	Log     *slog.Logger
}

// Syncer runs the project branch of a pipeline run.
type Syncer struct {
	repos    RepoLister
	analyzer Analyzer
	store    Store
	opts     Options
	log      *slog.Logger
}

// Result summarizes one Sync.
type Result struct {
	Matching int      // repositories carrying the topic
	Skipped  bool     // nothing changed since the last run
	Added    []string // links appended this run
	Failed   []string // repositories whose analysis failed
	Pending  []string // dry-run: repositories that would be analyzed
}

// New creates a Syncer.
func New(repos RepoLister, analyzer Analyzer, st Store, opts Options) *Syncer {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.Retry.Log == nil {
		opts.Retry.Log = log
	}
	return &Syncer{repos: repos, analyzer: analyzer, store: st, opts: opts, log: log}
}

// Sync lists tagged repositories and appends a project for each one whose
// link is not yet in the list. Existing entries are never modified. meta is
// updated, and saved, only when the recorded set of synced links changes.
//
// Unless cvChanged, nothing happens when the tagged set matches the one
// recorded by the previous run.
func (s *Syncer) Sync(ctx context.Context, meta *models.SyncMetadata, cvChanged bool) (*Result, error) {
	repos, err := s.repos.ListRepos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	matching := make([]models.Repository, 0, len(repos))
	for _, r := range repos {
		if r.HasTopic(s.opts.Topic) {
			matching = append(matching, r)
		}
	}
	res := &Result{Matching: len(matching)}
	if len(matching) == 0 {
		s.log.Info("no repositories tagged for the portfolio", "topic", s.opts.Topic)
		return res, nil
	}

	pl, err := s.store.LoadProjects()
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}

	current := mapset.NewThreadUnsafeSet[string]()
	for _, r := range matching {
		current.Add(r.HTMLURL)
	}
	if !cvChanged && unchanged(meta, current) {
		s.log.Info("project set unchanged, skipping", "matching", len(matching))
		res.Skipped = true
		return res, nil
	}

	for _, r := range matching {
		if pl.Has(r.HTMLURL) {
			continue
		}
		if s.opts.DryRun {
			res.Pending = append(res.Pending, r.Name)
			continue
		}

		analysis, err := retry.Do(ctx, s.opts.Retry, "analyze project "+r.Name,
			func(ctx context.Context) (*models.ProjectAnalysis, error) {
				return s.analyzer.AnalyzeProject(ctx, r)
			})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			s.log.Error("project analysis failed, skipping", "repo", r.Name, "error", err)
			s.observe(metrics.OutcomeFailure)
			res.Failed = append(res.Failed, r.Name)
			continue
		}
		s.observe(metrics.OutcomeSuccess)

		if reset := validation.SanitizeProjectAnalysis(analysis); len(reset) > 0 {
			s.log.Warn("analysis fields out of range, using defaults", "repo", r.Name, "fields", reset)
		}
		added, err := pl.Append(BuildProject(r, analysis))
		if err != nil {
			return nil, err
		}
		if added {
			res.Added = append(res.Added, r.HTMLURL)
			s.log.Info("project added", "repo", r.Name)
		}
	}

	if s.opts.DryRun {
		return res, nil
	}

	if len(res.Added) > 0 {
		if err := s.store.SaveProjects(pl); err != nil {
			return nil, fmt.Errorf("save projects: %w", err)
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.ProjectsAdded.Add(float64(len(res.Added)))
		}
	}

	// Failed repositories stay out of the record so the next run retries them.
	synced := current.Intersect(pl.Links()).ToSlice()
	slices.Sort(synced)
	if meta.LastProjectLinks != nil && meta.LastProjectCount == len(synced) && slices.Equal(sortedCopy(meta.LastProjectLinks), synced) {
		return res, nil
	}
	meta.LastProjectCount = len(synced)
	meta.LastProjectLinks = synced
	if err := s.store.SaveMetadata(*meta); err != nil {
		return nil, fmt.Errorf("save metadata: %w", err)
	}
	return res, nil
}

func (s *Syncer) observe(outcome string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.AIRequests.WithLabelValues(metrics.KindProject, outcome).Inc()
	}
}

// unchanged compares the tagged set with what the previous run recorded.
// Metadata without links falls back to comparing counts.
func unchanged(meta *models.SyncMetadata, current mapset.Set[string]) bool {
	if meta.LastProjectLinks == nil {
		return meta.LastProjectCount == current.Cardinality()
	}
	return mapset.NewThreadUnsafeSet(meta.LastProjectLinks...).Equal(current)
}

func sortedCopy(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}

// BuildProject creates the list entry for repo, filling gaps in a with
// fallbacks. a may be nil.
func BuildProject(repo models.Repository, a *models.ProjectAnalysis) models.Project {
	if a == nil {
		a = &models.ProjectAnalysis{}
	}

	p := models.Project{
		Title:           strings.ToUpper(strings.ReplaceAll(repo.Name, "-", " ")),
		Description:     a.Description,
		Image:           "/projects/" + repo.Name + ".jpg",
		Link:            repo.HTMLURL,
		WebsiteLink:     repo.Homepage,
		Tags:            a.Tags,
		ComplexityScore: a.ComplexityScore,
		Architecture:    a.Architecture,
		Difficulty:      a.Difficulty,
		IsAutoSync:      true,
	}
	if p.Description == "" {
		p.Description = repo.Description
	}
	if len(p.Tags) == 0 {
		p.Tags = repo.Topics
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.ComplexityScore == 0 {
		p.ComplexityScore = DefaultComplexity
	}
	if p.Architecture == "" {
		p.Architecture = DefaultArchitecture
	}
	if p.Difficulty == "" {
		p.Difficulty = DefaultDifficulty
	}
	return p
}
