package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration fields are stored as strings in yaml ("1s", "500ms") and parsed
// on access; invalid values are rejected by Validate.

// Config represents the application configuration
type Config struct {
	App           AppConfig           `yaml:"app"`
	Build         BuildConfig         `yaml:"build"`
	Tools         ToolsConfig         `yaml:"tools"`
	Retry         RetryConfig         `yaml:"retry,omitempty"`
	History       HistoryConfig       `yaml:"history,omitempty"`
	Watch         WatchConfig         `yaml:"watch,omitempty"`
	Notifications NotificationsConfig `yaml:"notifications,omitempty"`
}

// AppConfig describes the application being packaged.
type AppConfig struct {
	Name          string      `yaml:"name"`           // output executable name
	EntryScript   string      `yaml:"entry_script"`   // packaging tool entry point
	Icon          string      `yaml:"icon,omitempty"` // icon resource embedded into the executable
	IconGenerator string      `yaml:"icon_generator,omitempty"`
	Assets        []AssetPair `yaml:"assets,omitempty"` // data files bundled alongside the executable
}

// AssetPair is a (source file, destination folder) pair passed to the packaging tool.
type AssetPair struct {
	Source string `yaml:"source"`
	Dest   string `yaml:"dest"`
}

// BuildConfig represents orchestration configuration.
type BuildConfig struct {
	Root            string   `yaml:"root,omitempty"`      // workspace root, empty means the current directory
	Artifacts       []string `yaml:"artifacts,omitempty"` // stale workspace paths removed before packaging
	Packages        []string `yaml:"packages,omitempty"`  // packages the installer must provide
	OneFile         bool     `yaml:"onefile"`
	Windowed        bool     `yaml:"windowed"`
	Clean           bool     `yaml:"clean"` // pass the packaging tool's clean flag
	ContinueOnError bool     `yaml:"continue_on_error,omitempty"`
	Pause           bool     `yaml:"pause,omitempty"` // block for acknowledgment after the completion notice
	ReportDir       string   `yaml:"report_dir,omitempty"`
}

// ToolsConfig names the external collaborator executables.
type ToolsConfig struct {
	Python      string `yaml:"python,omitempty"`
	Pip         string `yaml:"pip,omitempty"`
	PyInstaller string `yaml:"pyinstaller,omitempty"`
}

// RetryConfig controls retry behavior for transient installer failures.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"` // fixed|linear|exponential
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   int              `yaml:"max_retries,omitempty"`
}

// InitialDelayDuration returns the parsed initial delay (zero on parse failure).
func (r RetryConfig) InitialDelayDuration() time.Duration {
	d, _ := time.ParseDuration(r.InitialDelay)
	return d
}

// MaxDelayDuration returns the parsed max delay (zero on parse failure).
func (r RetryConfig) MaxDelayDuration() time.Duration {
	d, _ := time.ParseDuration(r.MaxDelay)
	return d
}

// HistoryConfig controls the SQLite build-run history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// WatchConfig controls watch mode (rebuild on source change).
type WatchConfig struct {
	Paths       []string `yaml:"paths,omitempty"` // extra paths to watch beyond entry script and assets
	Debounce    string   `yaml:"debounce,omitempty"`
	Interval    string   `yaml:"interval,omitempty"` // scheduled rebuild period, empty disables
	MetricsAddr string   `yaml:"metrics_addr,omitempty"`
}

// DebounceDuration returns the parsed debounce window (zero on parse failure).
func (w WatchConfig) DebounceDuration() time.Duration {
	d, _ := time.ParseDuration(w.Debounce)
	return d
}

// IntervalDuration returns the parsed scheduled rebuild period (zero when disabled).
func (w WatchConfig) IntervalDuration() time.Duration {
	if w.Interval == "" {
		return 0
	}
	d, _ := time.ParseDuration(w.Interval)
	return d
}

// NotificationsConfig holds outbound build-event settings.
type NotificationsConfig struct {
	NATS NATSConfig `yaml:"nats,omitempty"`
}

// NATSConfig configures the optional NATS build-event publisher.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Default()
	example.History.Enabled = true
	example.History.Path = "easepack-history.db"

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
