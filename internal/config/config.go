package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the settings file looked up in the project directory.
const DefaultFile = ".infrascan.yaml"

// Config holds all infrascan settings.
type Config struct {
	// Project name written into manifests. Empty means the project
	// directory's base name.
	ProjectName string `yaml:"project_name"`

	// Analysis inputs and outputs
	Analysis AnalysisConfig `yaml:"analysis"`

	// Validation script provisioning
	Scripts ScriptsConfig `yaml:"scripts"`

	// Watch mode
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// AnalysisConfig configures one analysis run.
type AnalysisConfig struct {
	// Config source, relative to the project directory
	ConfigPath string `yaml:"config_path"`

	// Profiles to generate manifests for
	Profiles []string `yaml:"profiles"`

	// Output directory, relative to the project directory
	OutputDir string `yaml:"output_dir"`

	Platform string `yaml:"platform"` // auto, vm, kubernetes
	Format   string `yaml:"format"`   // json, yaml

	// Max profiles processed concurrently
	Parallelism int `yaml:"parallelism"`

	// Parsed-tree LRU cache entries
	CacheSize int `yaml:"cache_size"`
}

// ScriptsConfig configures validation script provisioning.
type ScriptsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // relative to the project directory
}

// WatchConfig configures the config file watcher.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// ValidPlatforms lists the accepted platform settings.
var ValidPlatforms = []string{"auto", "vm", "kubernetes", "k8s"}

// ValidFormats lists the accepted manifest formats.
var ValidFormats = []string{"json", "yaml", "yml"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			ConfigPath:  "src/main/resources/application.yml",
			Profiles:    []string{"dev", "stg", "prod"},
			OutputDir:   "build/infrastructure",
			Platform:    "auto",
			Format:      "json",
			Parallelism: 4,
			CacheSize:   64,
		},
		Scripts: ScriptsConfig{
			Enabled: true,
			Dir:     "bamboo-scripts",
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("INFRASCAN_PROFILES"); v != "" {
		c.Analysis.Profiles = SplitList(v)
	}
	if v := os.Getenv("INFRASCAN_OUTPUT_DIR"); v != "" {
		c.Analysis.OutputDir = v
	}
	if v := os.Getenv("INFRASCAN_PLATFORM"); v != "" {
		c.Analysis.Platform = v
	}
	if v := os.Getenv("INFRASCAN_CONFIG"); v != "" {
		c.Analysis.ConfigPath = v
	}
	if v := os.Getenv("INFRASCAN_FORMAT"); v != "" {
		c.Analysis.Format = v
	}
	if v := os.Getenv("INFRASCAN_SCRIPTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Scripts.Enabled = b
		}
	}
	if v := os.Getenv("INFRASCAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetWatchDebounce returns the watch debounce as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Analysis.ConfigPath) == "" {
		return fmt.Errorf("analysis.config_path must not be empty")
	}
	if len(c.Analysis.Profiles) == 0 {
		return fmt.Errorf("at least one profile is required")
	}
	seen := make(map[string]bool, len(c.Analysis.Profiles))
	for _, p := range c.Analysis.Profiles {
		if strings.TrimSpace(p) == "" || strings.ContainsAny(p, `/\`) {
			return fmt.Errorf("invalid profile name: %q", p)
		}
		// Each profile owns one output file.
		if seen[p] {
			return fmt.Errorf("duplicate profile: %q", p)
		}
		seen[p] = true
	}
	if !contains(ValidPlatforms, strings.ToLower(c.Analysis.Platform)) {
		return fmt.Errorf("invalid platform: %s (valid: %v)", c.Analysis.Platform, ValidPlatforms)
	}
	if !contains(ValidFormats, strings.ToLower(c.Analysis.Format)) {
		return fmt.Errorf("invalid format: %s (valid: %v)", c.Analysis.Format, ValidFormats)
	}
	if c.Analysis.Parallelism < 1 {
		return fmt.Errorf("analysis.parallelism must be at least 1, got %d", c.Analysis.Parallelism)
	}
	if c.Analysis.CacheSize < 1 {
		return fmt.Errorf("analysis.cache_size must be at least 1, got %d", c.Analysis.CacheSize)
	}
	if _, err := c.Logging.ZapLevel(); err != nil {
		return err
	}
	return nil
}

// SplitList splits a comma-separated list, trimming blanks and dropping
// repeated entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" && !contains(out, part) {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
