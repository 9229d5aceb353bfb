// Package config turns the layered viper settings into one explicit Config
// value. Nothing below cmd/ reads viper or the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joescharf/portfolio-sync/internal/drive"
	"github.com/joescharf/portfolio-sync/internal/llm"
	"github.com/joescharf/portfolio-sync/internal/retry"
	"github.com/joescharf/portfolio-sync/internal/validation"
)

const (
	AppName   = "portfolio-sync"
	EnvPrefix = "PORTFOLIO"

	ProviderGroq      = llm.ProviderGroq
	ProviderAnthropic = llm.ProviderAnthropic

	DefaultGitHubUser     = "alfarabusalihu"
	DefaultGitHubTopic    = "portfolio"
	DefaultMinTextLength  = 100
	DefaultNetworkTimeout = 60 * time.Second
	LockFileName          = ".portfolio-sync.lock"
)

var ErrConfig = errors.New("invalid configuration")

// Config is the complete, resolved configuration of one process.
type Config struct {
	AI          AIConfig      `mapstructure:"ai"`
	Drive       DriveConfig   `mapstructure:"drive"`
	GitHub      GitHubConfig  `mapstructure:"github"`
	DataDir     string        `mapstructure:"data_dir" validate:"required"`
	PublicDir   string        `mapstructure:"public_dir" validate:"required"`
	CVFile      string        `mapstructure:"cv_file" validate:"required"`
	ImageFile   string        `mapstructure:"image_file" validate:"required"`
	Retry       RetryConfig   `mapstructure:"retry"`
	Network     NetworkConfig `mapstructure:"network"`
	LockFile    string        `mapstructure:"lock_file"`
	JournalPath string        `mapstructure:"journal_path"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

type AIConfig struct {
	Provider      string  `mapstructure:"provider" validate:"oneof=groq anthropic"`
	APIKey        string  `mapstructure:"api_key" validate:"required"`
	Model         string  `mapstructure:"model"`
	BaseURL       string  `mapstructure:"base_url"`
	Temperature   float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxInputChars int     `mapstructure:"max_input_chars" validate:"gte=1"`
	MinTextLength int     `mapstructure:"min_text_length" validate:"gte=0"`
}

type DriveConfig struct {
	APIKey   string `mapstructure:"api_key" validate:"required"`
	FolderID string `mapstructure:"folder_id" validate:"required"`
	BaseURL  string `mapstructure:"base_url"`
}

type GitHubConfig struct {
	User   string `mapstructure:"user" validate:"required"`
	Token  string `mapstructure:"token"`
	Topic  string `mapstructure:"topic" validate:"required"`
	APIURL string `mapstructure:"api_url"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	Delay       time.Duration `mapstructure:"delay" validate:"gte=0"`
}

type NetworkConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Key describes one setting for display and error messages.
type Key struct {
	Name   string
	Env    []string // first entry is the prefixed name
	Secret bool
}

// Keys lists every setting in display order. Aliases are the names older
// deploy scripts export.
var Keys = []Key{
	{Name: "ai.provider", Env: envNames("ai.provider")},
	{Name: "ai.api_key", Env: envNames("ai.api_key", "GROQ_API_KEY", "groq_key", "ANTHROPIC_API_KEY"), Secret: true},
	{Name: "ai.model", Env: envNames("ai.model")},
	{Name: "ai.base_url", Env: envNames("ai.base_url")},
	{Name: "ai.temperature", Env: envNames("ai.temperature")},
	{Name: "ai.max_input_chars", Env: envNames("ai.max_input_chars")},
	{Name: "ai.min_text_length", Env: envNames("ai.min_text_length")},
	{Name: "drive.api_key", Env: envNames("drive.api_key", "GOOGLE_API_KEY", "drive_api_key"), Secret: true},
	{Name: "drive.folder_id", Env: envNames("drive.folder_id", "DRIVE_FOLDER_ID", "drive_folder_id"), Secret: true},
	{Name: "drive.base_url", Env: envNames("drive.base_url")},
	{Name: "github.user", Env: envNames("github.user")},
	{Name: "github.token", Env: envNames("github.token", "GITHUB_TOKEN"), Secret: true},
	{Name: "github.topic", Env: envNames("github.topic")},
	{Name: "github.api_url", Env: envNames("github.api_url")},
	{Name: "data_dir", Env: envNames("data_dir")},
	{Name: "public_dir", Env: envNames("public_dir")},
	{Name: "cv_file", Env: envNames("cv_file")},
	{Name: "image_file", Env: envNames("image_file")},
	{Name: "retry.max_attempts", Env: envNames("retry.max_attempts")},
	{Name: "retry.delay", Env: envNames("retry.delay")},
	{Name: "network.timeout", Env: envNames("network.timeout")},
	{Name: "lock_file", Env: envNames("lock_file")},
	{Name: "journal_path", Env: envNames("journal_path")},
	{Name: "metrics.textfile", Env: envNames("metrics.textfile")},
}

// EnvVar returns the prefixed environment variable for key, e.g.
// PORTFOLIO_AI_API_KEY for ai.api_key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func envNames(key string, aliases ...string) []string {
	return append([]string{EnvVar(key)}, aliases...)
}

// LookupKey returns the Key named name.
func LookupKey(name string) (Key, bool) {
	for _, k := range Keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

// DefaultDir returns ~/.config/portfolio-sync.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, k := range Keys {
		if len(k.Env) > 1 {
			_ = v.BindEnv(append([]string{k.Name}, k.Env...)...)
		}
	}

	v.SetDefault("ai.provider", ProviderGroq)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", llm.DefaultModel)
	v.SetDefault("ai.base_url", llm.DefaultBaseURL)
	v.SetDefault("ai.temperature", llm.DefaultTemperature)
	v.SetDefault("ai.max_input_chars", llm.DefaultMaxInputChars)
	v.SetDefault("ai.min_text_length", DefaultMinTextLength)
	v.SetDefault("drive.api_key", "")
	v.SetDefault("drive.folder_id", "")
	v.SetDefault("drive.base_url", drive.DefaultBaseURL)
	v.SetDefault("github.user", DefaultGitHubUser)
	v.SetDefault("github.token", "")
	v.SetDefault("github.topic", DefaultGitHubTopic)
	v.SetDefault("github.api_url", "")
	v.SetDefault("data_dir", filepath.Join("src", "data"))
	v.SetDefault("public_dir", "public")
	v.SetDefault("cv_file", "cv.pdf")
	v.SetDefault("image_file", "profile.jpg")
	v.SetDefault("retry.max_attempts", retry.DefaultMaxAttempts)
	v.SetDefault("retry.delay", retry.DefaultDelay)
	v.SetDefault("network.timeout", DefaultNetworkTimeout)
	v.SetDefault("lock_file", "")
	v.SetDefault("metrics.textfile", "")

	journal := "history.db"
	if dir, err := DefaultDir(); err == nil {
		journal = filepath.Join(dir, "history.db")
	}
	v.SetDefault("journal_path", journal)
}

// Load decodes v into a Config and fills derived values. It does not
// validate; call Validate before touching the network.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.LockFile == "" {
		c.LockFile = filepath.Join(c.DataDir, LockFileName)
	}
	// The defaults point at Groq; don't send them to Anthropic.
	if c.AI.Provider == ProviderAnthropic {
		if c.AI.Model == llm.DefaultModel {
			c.AI.Model = llm.DefaultAnthropicModel
		}
		if c.AI.BaseURL == llm.DefaultBaseURL {
			c.AI.BaseURL = ""
		}
	}
	return &c, nil
}

// CVPath is where the CV lands in the public directory.
func (c *Config) CVPath() string { return filepath.Join(c.PublicDir, c.CVFile) }

// ImagePath is where the profile image lands in the public directory.
func (c *Config) ImagePath() string { return filepath.Join(c.PublicDir, c.ImageFile) }

// RetryPolicy builds the retry policy for pipeline calls.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: c.Retry.MaxAttempts, Delay: c.Retry.Delay}
}

// Validate checks required secrets and value ranges. A failure is a
// *MissingSettingsError wrapping ErrConfig.
func (c *Config) Validate() error {
	err := validation.Struct(c)
	if err == nil {
		return nil
	}
	var verr *validation.Error
	if !errors.As(err, &verr) {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return &MissingSettingsError{Fields: verr.Fields}
}

// MissingSettingsError lists settings that are absent or out of range.
type MissingSettingsError struct {
	Fields []validation.FieldError
}

func (e *MissingSettingsError) Error() string {
	var missing, invalid []string
	for _, f := range e.Fields {
		if f.Tag == "required" {
			missing = append(missing, describe(f.Field))
			continue
		}
		invalid = append(invalid, f.String())
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid settings: "+strings.Join(invalid, "; "))
	}
	return strings.Join(parts, "; ")
}

func (e *MissingSettingsError) Unwrap() error { return ErrConfig }

// Missing returns the names of the required settings that are unset.
func (e *MissingSettingsError) Missing() []string {
	var out []string
	for _, f := range e.Fields {
		if f.Tag == "required" {
			out = append(out, f.Field)
		}
	}
	return out
}

func describe(field string) string {
	k, ok := LookupKey(field)
	if !ok {
		return field
	}
	return fmt.Sprintf("%s (set %s)", field, strings.Join(k.Env, " or "))
}
