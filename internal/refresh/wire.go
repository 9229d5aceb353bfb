package refresh

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/joescharf/portfolio-sync/internal/config"
	"github.com/joescharf/portfolio-sync/internal/drive"
	"github.com/joescharf/portfolio-sync/internal/extract"
	"github.com/joescharf/portfolio-sync/internal/filesync"
	"github.com/joescharf/portfolio-sync/internal/githost"
	"github.com/joescharf/portfolio-sync/internal/llm"
	"github.com/joescharf/portfolio-sync/internal/metrics"
	"github.com/joescharf/portfolio-sync/internal/netclient"
	"github.com/joescharf/portfolio-sync/internal/projects"
	"github.com/joescharf/portfolio-sync/internal/store"
)

// FromConfig validates cfg and assembles a Pipeline backed by Drive, GitHub,
// the configured completion provider and JSON files on fsys. Nothing touches
// the network when cfg is invalid.
func FromConfig(ctx context.Context, cfg *config.Config, fsys afero.Fs, m *metrics.Metrics, log *slog.Logger, dryRun bool) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	nc := netclient.New(netclient.Options{
		Timeout:   cfg.Network.Timeout,
		UserAgent: config.AppName,
	})

	lister, err := drive.NewLister(ctx, drive.Config{
		APIKey:   cfg.Drive.APIKey,
		FolderID: cfg.Drive.FolderID,
		BaseURL:  cfg.Drive.BaseURL,
	}, log)
	if err != nil {
		return nil, err
	}

	completer, err := llm.NewCompleter(llm.ProviderConfig{
		Provider:    cfg.AI.Provider,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		BaseURL:     cfg.AI.BaseURL,
		Temperature: cfg.AI.Temperature,
	}, nc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	analyzer := llm.NewAnalyzer(completer, cfg.AI.MaxInputChars)

	gh, err := githost.New(cfg.GitHub.User, cfg.GitHub.Token, cfg.GitHub.APIURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}

	st := store.NewFileStore(fsys, cfg.DataDir).WithLogger(log)
	policy := cfg.RetryPolicy()
	policy.Log = log

	return New(Deps{
		Fs:        fsys,
		Lister:    lister,
		Files:     filesync.New(fsys, nc, lister, log),
		Extractor: extract.NewPDFExtractor(fsys),
		Analyzer:  analyzer,
		Projects: projects.New(gh, analyzer, st, projects.Options{
			Topic:   cfg.GitHub.Topic,
			Retry:   policy,
			DryRun:  dryRun,
			Metrics: m,
			Log:     log,
		}),
		Store:   st,
		Metrics: m,
		Log:     log,
	}, Options{
		PublicDir:     cfg.PublicDir,
		CVPath:        cfg.CVPath(),
		ImagePath:     cfg.ImagePath(),
		MinTextLength: cfg.AI.MinTextLength,
		Retry:         policy,
		DryRun:        dryRun,
	}), nil
}
