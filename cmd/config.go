package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/portfolio-sync/internal/config"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = config.DefaultDir

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage portfolio-sync configuration.

Running bare 'portfolio-sync config' is the same as 'portfolio-sync config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
// Secrets are never written to it.
const configTemplate = `# portfolio-sync configuration
# See: portfolio-sync config show (for effective values and sources)
#
# Secrets are read from the environment (or a .env file):
#   GROQ_API_KEY / ANTHROPIC_API_KEY, GOOGLE_API_KEY, DRIVE_FOLDER_ID, GITHUB_TOKEN

# Site directories
data_dir: "{{ .DataDir }}"
public_dir: "{{ .PublicDir }}"
cv_file: "{{ .CVFile }}"
image_file: "{{ .ImageFile }}"

# Completion provider: groq or anthropic
ai:
  provider: "{{ .Provider }}"
  model: "{{ .Model }}"
  temperature: {{ .Temperature }}

github:
  user: "{{ .GitHubUser }}"
  topic: "{{ .GitHubTopic }}"

retry:
  max_attempts: {{ .MaxAttempts }}
  delay: "{{ .Delay }}"

network:
  timeout: "{{ .Timeout }}"

# Run journal (default: ~/.config/portfolio-sync/history.db)
# journal_path: {{ .JournalPath }}

# Prometheus textfile written after every run (node_exporter collector dir)
# metrics:
#   textfile: /var/lib/node_exporter/textfile/portfolio_sync.prom
`

type configTemplateData struct {
	DataDir     string
	PublicDir   string
	CVFile      string
	ImageFile   string
	Provider    string
	Model       string
	Temperature float64
	GitHubUser  string
	GitHubTopic string
	MaxAttempts int
	Delay       string
	Timeout     string
	JournalPath string
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		DataDir:     viper.GetString("data_dir"),
		PublicDir:   viper.GetString("public_dir"),
		CVFile:      viper.GetString("cv_file"),
		ImageFile:   viper.GetString("image_file"),
		Provider:    viper.GetString("ai.provider"),
		Model:       viper.GetString("ai.model"),
		Temperature: viper.GetFloat64("ai.temperature"),
		GitHubUser:  viper.GetString("github.user"),
		GitHubTopic: viper.GetString("github.topic"),
		MaxAttempts: viper.GetInt("retry.max_attempts"),
		Delay:       viper.GetDuration("retry.delay").String(),
		Timeout:     viper.GetDuration("network.timeout").String(),
		JournalPath: viper.GetString("journal_path"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)

	for _, k := range config.Keys {
		val := viper.Get(k.Name)
		if k.Secret {
			val = maskSecret(viper.GetString(k.Name))
		}
		source := detectSource(k.Name, k.Env, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Name, val, source)
	}

	return nil
}

// maskSecret shows whether a secret is set without revealing it.
func maskSecret(s string) string {
	switch {
	case s == "":
		return "(unset)"
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****"
	}
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from. Env names
// are checked in precedence order.
func detectSource(key string, envVars []string, fileValues map[string]bool) string {
	for _, env := range envVars {
		if _, ok := os.LookupEnv(env); ok {
			return fmt.Sprintf("(env: %s)", env)
		}
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'portfolio-sync config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
