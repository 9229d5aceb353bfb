package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/joescharf/portfolio-sync/internal/besteffort"
	"github.com/joescharf/portfolio-sync/internal/config"
	"github.com/joescharf/portfolio-sync/internal/lock"
	"github.com/joescharf/portfolio-sync/internal/metrics"
	"github.com/joescharf/portfolio-sync/internal/models"
	"github.com/joescharf/portfolio-sync/internal/output"
	"github.com/joescharf/portfolio-sync/internal/refresh"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the refresh pipeline once",
	Long: `Run the refresh pipeline once.

Downloads a changed CV and profile image, regenerates the skills file from
the CV, and appends new portfolio-tagged repositories to the project list.
With --dry-run, only lists and reports what would change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		var mse *config.MissingSettingsError
		if errors.As(err, &mse) {
			if missing := mse.Missing(); len(missing) > 0 {
				ui.Warning("%d required setting(s) unset; 'portfolio-sync config show' lists where each value comes from", len(missing))
			}
		}
		return err
	}

	m := metrics.New()
	rec := &models.RunRecord{StartedAt: time.Now().UTC(), DryRun: dryRun}

	if !dryRun {
		lk := lock.New(cfg.LockFile)
		if err := lk.Acquire(); err != nil {
			if errors.Is(err, lock.ErrLocked) {
				rec.Status = models.RunStatusLocked
				finishRun(ctx, cfg, m, rec, err)
			}
			return err
		}
		defer besteffort.Do(log, "release run lock", lk.Release)
	}

	p, err := refresh.FromConfig(ctx, cfg, afero.NewOsFs(), m, log, dryRun)
	if err != nil {
		finishRun(ctx, cfg, m, rec, err)
		return err
	}

	res, runErr := p.Run(ctx)
	if res != nil {
		rec.CVChanged = res.CVChanged
		rec.ImageChanged = res.ImageChanged
		rec.SkillsUpdated = res.SkillsUpdated
		rec.ImageUpdated = res.ImageUpdated
		rec.ProjectsAdded = res.ProjectsAdded
		rec.ProjectsFailed = res.ProjectsFailed
		printRunSummary(res)
	}
	finishRun(ctx, cfg, m, rec, runErr)
	return runErr
}

// finishRun records rec in the journal and writes the metrics textfile,
// both best-effort.
func finishRun(ctx context.Context, cfg *config.Config, m *metrics.Metrics, rec *models.RunRecord, runErr error) {
	rec.FinishedAt = time.Now().UTC()
	if runErr != nil {
		rec.Error = runErr.Error()
		if rec.Status == "" {
			rec.Status = models.RunStatusFailed
		}
	} else {
		rec.Status = models.RunStatusSuccess
	}
	m.ObserveRun(string(rec.Status), rec.FinishedAt)

	// Record even when the run was interrupted.
	ctx = context.WithoutCancel(ctx)
	besteffort.Do(log, "record run in journal", func() error {
		j, err := openJournal(ctx, cfg.JournalPath)
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()
		if err := j.RecordRun(ctx, rec); err != nil {
			return err
		}
		// The textfile is replaced per run; carry the last success forward.
		last, err := j.LastSuccess(ctx)
		if err != nil {
			return err
		}
		if last != nil {
			m.LastSuccess.Set(float64(last.FinishedAt.Unix()))
		}
		return nil
	})

	if cfg.Metrics.Textfile != "" {
		besteffort.Do(log, "write metrics textfile", func() error {
			return m.WriteTextfile(cfg.Metrics.Textfile)
		})
	}
}

func printRunSummary(res *refresh.Result) {
	if res.CV == nil {
		ui.Warning("No PDF found in the Drive folder")
	} else {
		ui.VerboseLog("CV %s modified %s", res.CV.Name, res.CV.ModifiedTime)
	}
	if res.Image == nil {
		ui.Warning("No image found in the Drive folder")
	} else {
		ui.VerboseLog("Image %s modified %s", res.Image.Name, res.Image.ModifiedTime)
	}

	if dryRun {
		if res.CVChanged {
			ui.DryRunMsg("Would download %s and regenerate skills", output.Cyan(res.CV.Name))
		}
		if res.ImageChanged {
			ui.DryRunMsg("Would download %s", output.Cyan(res.Image.Name))
		}
		for _, name := range res.ProjectsPending {
			ui.DryRunMsg("Would analyze and add project %s", output.Cyan(name))
		}
		if !res.CVChanged && !res.ImageChanged && len(res.ProjectsPending) == 0 {
			ui.Info("Nothing to do")
		}
		return
	}

	if res.Purged > 0 {
		ui.Info("Purged %d stale file(s)", res.Purged)
	}
	if !res.CVChanged && !res.ImageChanged {
		ui.Info("CV and profile image are up to date")
	}
	if res.ImageUpdated {
		ui.Success("Profile image updated")
	}
	if res.ImageDegraded {
		ui.Warning("Profile image is locked; new version left next to it")
	}
	if res.SkillsUpdated {
		ui.Success("Skills regenerated from CV")
	}
	if res.CVDegraded {
		ui.Warning("CV is locked; new version left next to it")
	}

	switch {
	case res.ProjectError != nil:
		ui.Error("Project sync failed: %v", res.ProjectError)
	case res.ProjectsSkipped:
		ui.Info("Projects unchanged (%d tagged)", res.ProjectsMatching)
	case res.ProjectsAdded > 0:
		ui.Success("Added %d project(s)", res.ProjectsAdded)
	}
	if res.ProjectsFailed > 0 {
		ui.Warning("%d project(s) could not be analyzed; they will be retried next run", res.ProjectsFailed)
	}
}
