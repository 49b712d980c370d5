package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"infrascan/internal/analyzer"
	"infrascan/internal/config"
	"infrascan/internal/logging"
)

var (
	// Global flags
	verbose      bool
	settingsPath string

	// Analysis flags, shared by every subcommand
	projectDir  string
	configPath  string
	profiles    string
	outputDir   string
	platform    string
	format      string
	noScripts   bool
	projectName string

	// Set up in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "infrascan",
	Short: "Derive infrastructure requirements from Spring configuration",
	Long: `infrascan reads a multi-profile application.yml and writes one
requirements manifest per profile: files the host must provide, external APIs
it must reach and, on Kubernetes, the ConfigMaps, Secrets and PVCs the
workload depends on.

Declarations under infrastructure.validation override the automatic scan.

Run without a subcommand to analyze the current project.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runAnalyze,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Tool settings file (default: <project-dir>/"+config.DefaultFile+")")

	defaults := config.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&projectDir, "project-dir", "d", "", "Project directory (default: current)")
	pf.StringVarP(&configPath, "config", "c", defaults.Analysis.ConfigPath, "Config source, relative to the project directory")
	pf.StringVarP(&profiles, "profiles", "p", "dev,stg,prod", "Comma-separated profiles")
	pf.StringVarP(&outputDir, "output-dir", "o", defaults.Analysis.OutputDir, "Manifest output directory")
	pf.StringVar(&platform, "platform", defaults.Analysis.Platform, "Deployment platform: auto, vm, kubernetes")
	pf.StringVar(&format, "format", defaults.Analysis.Format, "Manifest format: json, yaml")
	pf.BoolVar(&noScripts, "no-scripts", false, "Do not install the validation script")
	pf.StringVar(&projectName, "project-name", "", "Project name (default: project directory name)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads .env and settings, applies explicit flags on top, and
// installs the logger.
func setup(cmd *cobra.Command) error {
	dir := projectDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	projectDir = dir

	if err := config.LoadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return err
	}

	path := settingsPath
	if path == "" {
		path = filepath.Join(dir, config.DefaultFile)
	}
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	applyFlags(cmd, loaded)
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	cfg = loaded

	logger, err := cfg.Logging.Build(verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetLogger(logger)

	var muted []logging.Category
	for _, c := range logging.Categories() {
		if !cfg.Logging.IsCategoryEnabled(string(c)) {
			muted = append(muted, c)
		}
	}
	logging.SetDisabled(muted...)

	logging.BootDebug("settings loaded from %s", path)
	return nil
}

// applyFlags copies flags the user set explicitly onto c. Unset flags keep
// the settings file (or environment) value.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("config") {
		c.Analysis.ConfigPath = configPath
	}
	if flags.Changed("profiles") {
		c.Analysis.Profiles = config.SplitList(profiles)
	}
	if flags.Changed("output-dir") {
		c.Analysis.OutputDir = outputDir
	}
	if flags.Changed("platform") {
		c.Analysis.Platform = platform
	}
	if flags.Changed("format") {
		c.Analysis.Format = format
	}
	if flags.Changed("no-scripts") {
		c.Scripts.Enabled = !noScripts
	}
	if flags.Changed("project-name") {
		c.ProjectName = projectName
	}
}

// newAnalyzer builds an analyzer from the effective settings.
func newAnalyzer() (*analyzer.Analyzer, error) {
	opts, err := analyzer.OptionsFromConfig(cfg, projectDir)
	if err != nil {
		return nil, err
	}
	return analyzer.New(opts)
}
