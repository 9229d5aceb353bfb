package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/joescharf/portfolio-sync/internal/config"
	"github.com/joescharf/portfolio-sync/internal/output"
	"github.com/joescharf/portfolio-sync/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show generated content and last sync state",
	Long: `Show what the last runs produced: the recorded Drive modification
times, the skills file, and the project list. Reads local files only.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st := store.NewFileStore(afero.NewOsFs(), cfg.DataDir)

	meta, err := st.LoadMetadata()
	if err != nil {
		ui.Warning("Metadata unreadable: %v", err)
	}
	ui.Info("Sync state (%s)", st.Path(store.MetadataFile))
	ui.Field("CV modified", orNever(meta.CVModifiedTime))
	ui.Field("Image modified", orNever(meta.ImgModifiedTime))
	ui.Field("Projects synced", meta.LastProjectCount)
	ui.Field("CV on disk", yesNoFile(cfg.CVPath()))
	ui.Field("Image on disk", yesNoFile(cfg.ImagePath()))
	statusLastRun(ctx, cfg)
	fmt.Fprintln(ui.Out)

	skills, err := st.LoadSkills()
	switch {
	case err != nil:
		ui.Warning("Skills unreadable: %v", err)
	case skills == nil:
		ui.Info("No skills generated yet")
	default:
		ui.Info("Skills: %d stacks, %d tools", len(skills.Stacks), len(skills.Tools))
	}
	fmt.Fprintln(ui.Out)

	pl, err := st.LoadProjects()
	if err != nil {
		return err
	}
	projects, err := pl.Projects()
	if err != nil {
		return fmt.Errorf("%s: %w", store.ProjectsFile, err)
	}
	if len(projects) == 0 {
		ui.Info("No projects yet. Tag a repository with %q and run 'portfolio-sync run'.", cfg.GitHub.Topic)
		return nil
	}

	table := ui.Table([]string{"Project", "Difficulty", "Complexity", "Architecture", "Auto"})
	for _, p := range projects {
		_ = table.Append([]string{
			p.Title,
			output.DifficultyColor(p.Difficulty),
			output.ComplexityColor(p.ComplexityScore),
			p.Architecture,
			output.YesNo(p.IsAutoSync),
		})
	}
	if err := table.Render(); err != nil {
		return err
	}
	ui.Info("%d project(s)", len(projects))
	return nil
}

// statusLastRun prints the last successful run from the journal, if any.
// A missing journal is not created.
func statusLastRun(ctx context.Context, cfg *config.Config) {
	if _, err := os.Stat(cfg.JournalPath); err != nil {
		ui.Field("Last success", "never")
		return
	}
	j, err := openJournal(ctx, cfg.JournalPath)
	if err != nil {
		ui.Warning("%v", err)
		return
	}
	defer func() { _ = j.Close() }()

	last, err := j.LastSuccess(ctx)
	if err != nil {
		ui.Warning("%v", err)
		return
	}
	if last == nil {
		ui.Field("Last success", "never")
		return
	}
	ui.Field("Last success", humanize.Time(last.StartedAt))
}

func orNever(s string) string {
	if s == "" {
		return "never"
	}
	return s
}

// yesNoFile reports whether path exists as "yes" or "no".
func yesNoFile(path string) string {
	_, err := os.Stat(path)
	return output.YesNo(err == nil)
}
