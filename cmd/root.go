package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/portfolio-sync/internal/config"
	"github.com/joescharf/portfolio-sync/internal/logger"
	"github.com/joescharf/portfolio-sync/internal/output"
	"github.com/joescharf/portfolio-sync/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui  *output.UI
	log *slog.Logger

	verbose   bool
	dryRun    bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "portfolio-sync",
	Short: "Refresh portfolio content from Google Drive and GitHub",
	Long: `portfolio-sync keeps a portfolio site's generated content current.

It downloads the latest CV and profile photo from a Drive folder, asks a
completion API to categorize the skills in the CV, and appends newly tagged
GitHub repositories to the project list. Run it on a schedule.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logger.FormatText, "Log format: text or json")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/portfolio-sync/config.yaml)")
}

func initConfig() {
	// Real environment wins over .env.
	_ = godotenv.Load()

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	l, err := logger.Setup(verbose, logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log = l
}

// loadConfig resolves the effective configuration. It does not validate.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// openJournal opens and migrates the run journal.
func openJournal(ctx context.Context, path string) (*store.SQLiteJournal, error) {
	j, err := store.NewSQLiteJournal(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := j.Migrate(ctx); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

// configFilePath returns the config file in use: --config when given,
// otherwise config.yaml in the default directory.
func configFilePath() (string, error) {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
