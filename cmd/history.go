package cmd

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joescharf/portfolio-sync/internal/models"
	"github.com/joescharf/portfolio-sync/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent pipeline runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun(cmd.Context())
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func historyRun(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.JournalPath); os.IsNotExist(err) {
		ui.Info("No runs recorded yet")
		return nil
	}

	j, err := openJournal(ctx, cfg.JournalPath)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	runs, err := j.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded yet")
		return nil
	}

	table := ui.Table([]string{"Started", "Status", "Duration", "CV", "Image", "Skills", "Projects", "Error"})
	for _, r := range runs {
		_ = table.Append(historyRow(r))
	}
	return table.Render()
}

func historyRow(r *models.RunRecord) []string {
	status := output.RunStatusColor(string(r.Status))
	if r.DryRun {
		status += " (dry)"
	}
	projects := strconv.Itoa(r.ProjectsAdded)
	if r.ProjectsFailed > 0 {
		projects += " (" + strconv.Itoa(r.ProjectsFailed) + " failed)"
	}
	return []string{
		humanize.Time(r.StartedAt),
		status,
		r.Duration().Round(10 * time.Millisecond).String(),
		output.YesNo(r.CVChanged),
		output.YesNo(r.ImageUpdated),
		output.YesNo(r.SkillsUpdated),
		projects,
		truncate(r.Error, 60),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
