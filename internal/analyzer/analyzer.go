// Package analyzer runs a full analysis of one project: target detection,
// per-profile requirement extraction, manifest writing and script
// provisioning.
package analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"infrascan/internal/config"
	"infrascan/internal/detect"
	"infrascan/internal/extract"
	"infrascan/internal/loader"
	"infrascan/internal/logging"
	"infrascan/internal/manifest"
	"infrascan/internal/placeholder"
	"infrascan/internal/provision"
	"infrascan/internal/tree"
)

// Options configures an Analyzer. Relative paths are resolved against
// ProjectDir.
type Options struct {
	ProjectDir  string
	ProjectName string
	ConfigPath  string
	Profiles    []string
	OutputDir   string
	Platform    string // auto, vm, kubernetes
	Format      manifest.Format
	Scripts     bool
	ScriptsDir  string
	Parallelism int
	CacheSize   int
}

// OptionsFromConfig maps tool settings onto analyzer options.
func OptionsFromConfig(cfg *config.Config, projectDir string) (Options, error) {
	format, err := manifest.ParseFormat(cfg.Analysis.Format)
	if err != nil {
		return Options{}, err
	}
	return Options{
		ProjectDir:  projectDir,
		ProjectName: cfg.ProjectName,
		ConfigPath:  cfg.Analysis.ConfigPath,
		Profiles:    append([]string(nil), cfg.Analysis.Profiles...),
		OutputDir:   cfg.Analysis.OutputDir,
		Platform:    cfg.Analysis.Platform,
		Format:      format,
		Scripts:     cfg.Scripts.Enabled,
		ScriptsDir:  cfg.Scripts.Dir,
		Parallelism: cfg.Analysis.Parallelism,
		CacheSize:   cfg.Analysis.CacheSize,
	}, nil
}

// Analyzer analyzes one project. Run may be called repeatedly; parsed
// trees are shared across runs through an LRU cache.
type Analyzer struct {
	opts  Options
	cache *loader.Cache
}

// New validates opts and creates an Analyzer.
func New(opts Options) (*Analyzer, error) {
	if opts.ProjectDir == "" {
		opts.ProjectDir = "."
	}
	abs, err := filepath.Abs(opts.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project dir: %w", err)
	}
	opts.ProjectDir = abs
	if opts.ProjectName == "" {
		opts.ProjectName = filepath.Base(abs)
	}
	if len(opts.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles to analyze")
	}
	if opts.Format == "" {
		opts.Format = manifest.FormatJSON
	}
	if opts.ScriptsDir == "" {
		opts.ScriptsDir = provision.DefaultDir
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if _, err := forcedTarget(opts.Platform); err != nil {
		return nil, err
	}

	cache, err := loader.NewCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		opts:  opts,
		cache: cache,
	}, nil
}

// Options returns the effective options.
func (a *Analyzer) Options() Options { return a.opts }

// ConfigPath returns the absolute path of the config source.
func (a *Analyzer) ConfigPath() string { return a.path(a.opts.ConfigPath) }

func (a *Analyzer) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.opts.ProjectDir, p)
}

// forcedTarget parses a platform setting. It returns nil for auto
// detection.
func forcedTarget(platform string) (target *detect.Target, err error) {
	p := strings.ToLower(strings.TrimSpace(platform))
	if p == "" || p == "auto" {
		return nil, nil
	}
	t, err := detect.ParseTarget(p)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ProfileResult is the outcome for one profile.
type ProfileResult struct {
	Profile    string `json:"profile"`
	Path       string `json:"path,omitempty"`
	Files      int    `json:"files"`
	APIs       int    `json:"apis"`
	ConfigMaps int    `json:"configmaps"`
	Secrets    int    `json:"secrets"`
	Pvcs       int    `json:"pvcs"`
	Error      string `json:"error,omitempty"`
}

// Report summarizes one run.
type Report struct {
	RunID       string            `json:"run_id"`
	Project     string            `json:"project"`
	Target      string            `json:"target"`
	Reason      string            `json:"reason"`
	ConfigFound bool              `json:"config_found"`
	Profiles    []ProfileResult   `json:"profiles"`
	Script      *provision.Result `json:"script,omitempty"`
	ScriptError string            `json:"script_error,omitempty"`
	Duration    time.Duration     `json:"duration"`
}

// Failed counts profiles whose manifest could not be written.
func (r *Report) Failed() int {
	n := 0
	for _, p := range r.Profiles {
		if p.Error != "" {
			n++
		}
	}
	return n
}

// Generated returns the paths of every manifest written.
func (r *Report) Generated() []string {
	var out []string
	for _, p := range r.Profiles {
		if p.Path != "" {
			out = append(out, p.Path)
		}
	}
	return out
}

// Detect decides the deployment target for the project. A forced platform
// wins over the heuristics.
func (a *Analyzer) Detect(configText string) detect.Decision {
	if t, _ := forcedTarget(a.opts.Platform); t != nil {
		return detect.Decision{Target: *t, Reason: "forced"}
	}
	return detect.Explain(detect.ScanProject(a.opts.ProjectDir), configText, detect.OSProbe{Root: a.opts.ProjectDir})
}

// readSource reads the config source. Absent or unreadable sources yield
// empty text so every profile still gets a manifest.
func (a *Analyzer) readSource() (string, bool) {
	path := a.ConfigPath()
	text, found, err := loader.ReadSource(path)
	if err != nil {
		logging.Get(logging.CategoryLoader).Warnf("%v; continuing with empty configuration", err)
		return "", false
	}
	if !found {
		logging.Get(logging.CategoryLoader).Warnf("config source not found: %s; continuing with empty configuration", path)
	}
	return text, found
}

// Tree returns the merged configuration tree for profile.
func (a *Analyzer) Tree(profile string) *tree.Map {
	text, _ := a.readSource()
	return a.cache.Load(text, profile)
}

// Resolve substitutes placeholders in text against profile's tree.
func (a *Analyzer) Resolve(text, profile string) string {
	return placeholder.Resolve(text, a.Tree(profile))
}

// Build creates the manifest for one profile.
func Build(project, profile string, target detect.Target, e *extract.Extractor) *manifest.Manifest {
	platform := manifest.PlatformOf(target)
	m := manifest.New(project, profile, platform)
	m.Infrastructure = e.Infrastructure(profile, platform)
	return m
}

// Run performs one analysis. Per-profile failures are recorded in the
// report and never abort other profiles; only cancellation returns an
// error.
func (a *Analyzer) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	runID := uuid.New().String()[:8]
	log := logging.Get(logging.CategoryBoot).With("run", runID)

	text, found := a.readSource()
	decision := a.Detect(text)
	log.Infof("project %s: target %s (%s)", a.opts.ProjectName, decision.Target, decision.Reason)

	report := &Report{
		RunID:       runID,
		Project:     a.opts.ProjectName,
		Target:      decision.Target.String(),
		Reason:      decision.Reason,
		ConfigFound: found,
		Profiles:    make([]ProfileResult, len(a.opts.Profiles)),
	}

	writer := manifest.Writer{Dir: a.path(a.opts.OutputDir), Format: a.opts.Format}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Parallelism)
	for i, profile := range a.opts.Profiles {
		i, profile := i, profile
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Profiles[i] = a.runProfile(text, profile, decision.Target, writer)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("analysis cancelled: %w", err)
	}

	if a.opts.Scripts {
		res, err := provision.Provision(decision.Target, a.path(a.opts.ScriptsDir))
		if err != nil {
			logging.Get(logging.CategoryProvision).Errorf("%v", err)
			report.ScriptError = err.Error()
		} else {
			report.Script = &res
		}
	}

	hits, misses := a.cache.Stats()
	report.Duration = time.Since(start)
	log.Debugf("run finished in %s (cache hits=%d misses=%d)", report.Duration, hits, misses)
	return report, nil
}

func (a *Analyzer) runProfile(text, profile string, target detect.Target, w manifest.Writer) ProfileResult {
	res := ProfileResult{Profile: profile}

	root := a.cache.Load(text, profile)
	elog := logging.Get(logging.CategoryExtract).Desugar().With(zap.String("profile", profile))
	e := extract.New(root, extract.WithLogger(elog))
	m := Build(a.opts.ProjectName, profile, target, e)

	infra := m.Infrastructure
	res.Files = len(infra.Files)
	res.APIs = len(infra.ExternalAPIs)
	res.ConfigMaps = len(infra.ConfigMaps)
	res.Secrets = len(infra.Secrets)
	res.Pvcs = len(infra.Pvcs)

	path, err := w.Write(m)
	if err != nil {
		logging.Get(logging.CategoryManifest).Errorf("profile %s: %v", profile, err)
		res.Error = err.Error()
		return res
	}
	res.Path = path
	logging.Manifest("generated %s (files=%d apis=%d)", filepath.Base(path), res.Files, res.APIs)
	return res
}
