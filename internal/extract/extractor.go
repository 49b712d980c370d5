// Package extract derives infrastructure requirements from a merged
// configuration tree.
//
// Every category follows the same hybrid policy: a non-empty explicit
// declaration list under infrastructure.validation wins outright; only when it
// is absent does the heuristic scan of configuration values run.
package extract

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"infrascan/internal/logging"
	"infrascan/internal/manifest"
	"infrascan/internal/pattern"
	"infrascan/internal/tree"
)

const (
	// ValidationRoot is the namespace holding explicit declarations and
	// extraction settings. Auto-extraction never scans below it.
	ValidationRoot = "infrastructure.validation"

	CompanyDomainKey   = ValidationRoot + ".company-domain"
	ExcludePatternsKey = ValidationRoot + ".exclude-patterns"

	// DefaultCompanyDomain is used when company-domain is not configured.
	DefaultCompanyDomain = "company.com"
)

// Declaration list paths. Aliases are consulted in order; the first
// non-empty list is used.
var (
	FilesKeys      = []string{ValidationRoot + ".files"}
	APIsKeys       = []string{ValidationRoot + ".apis"}
	ConfigMapsKeys = []string{ValidationRoot + ".configmaps", ValidationRoot + ".configResources"}
	SecretsKeys    = []string{ValidationRoot + ".secrets"}
	PvcsKeys       = []string{ValidationRoot + ".pvcs", ValidationRoot + ".storageVolumes"}
)

// Extractor derives requirement categories from one immutable tree. It is
// safe for concurrent use.
type Extractor struct {
	root            tree.Value
	companyDomain   string
	excludePatterns []string
	excluder        *pattern.Excluder
	log             *zap.SugaredLogger

	filesOnce sync.Once
	files     []manifest.FileCheck
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger routes extraction warnings (dropped declarations) to l.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l.Sugar()
		}
	}
}

// New creates an Extractor over root, reading company-domain and
// exclude-patterns once.
func New(root tree.Value, opts ...Option) *Extractor {
	if root == nil {
		root = tree.Empty()
	}
	e := &Extractor{
		root:          root,
		companyDomain: DefaultCompanyDomain,
		log:           logging.Get(logging.CategoryExtract),
	}
	for _, opt := range opts {
		opt(e)
	}

	if domain, ok := tree.LookupString(root, CompanyDomainKey); ok && domain != "" {
		e.companyDomain = domain
	}
	if l, ok := tree.LookupList(root, ExcludePatternsKey); ok {
		e.excludePatterns = tree.StringList(l)
	}
	e.excluder = pattern.NewExcluder(e.excludePatterns)
	return e
}

// CompanyDomain returns the configured or default company domain.
func (e *Extractor) CompanyDomain() string { return e.companyDomain }

// ExcludePatterns returns the configured user exclusion patterns.
func (e *Extractor) ExcludePatterns() []string {
	out := make([]string, len(e.excludePatterns))
	copy(out, e.excludePatterns)
	return out
}

// Files returns the file requirements. The result is computed once and
// shared with Secrets and Pvcs.
func (e *Extractor) Files() []manifest.FileCheck {
	e.filesOnce.Do(func() {
		e.files = resolveCategory(e, category[manifest.FileCheck]{
			name:  "files",
			paths: FilesKeys,
			parse: e.parseFile,
			key:   func(f manifest.FileCheck) string { return f.Path },
			auto:  e.autoFiles,
		})
	})
	out := make([]manifest.FileCheck, len(e.files))
	copy(out, e.files)
	return out
}

// APIs returns the external API requirements.
func (e *Extractor) APIs() []manifest.ApiCheck {
	return resolveCategory(e, category[manifest.ApiCheck]{
		name:  "apis",
		paths: APIsKeys,
		parse: e.parseAPI,
		key:   func(a manifest.ApiCheck) string { return a.URL },
		auto:  e.autoAPIs,
	})
}

// ConfigMaps returns the Kubernetes ConfigMap requirements.
func (e *Extractor) ConfigMaps() []manifest.ConfigMapCheck {
	return resolveCategory(e, category[manifest.ConfigMapCheck]{
		name:  "configmaps",
		paths: ConfigMapsKeys,
		parse: func(entry *tree.Map) (manifest.ConfigMapCheck, bool) {
			n, ok := e.parseNamed(entry, "configmaps")
			return manifest.ConfigMapCheck{Name: n.name, Critical: n.critical, Description: n.description}, ok
		},
		key:  func(c manifest.ConfigMapCheck) string { return c.Name },
		auto: e.autoConfigMaps,
	})
}

// Secrets returns the Kubernetes Secret requirements.
func (e *Extractor) Secrets() []manifest.SecretCheck {
	return resolveCategory(e, category[manifest.SecretCheck]{
		name:  "secrets",
		paths: SecretsKeys,
		parse: func(entry *tree.Map) (manifest.SecretCheck, bool) {
			n, ok := e.parseNamed(entry, "secrets")
			return manifest.SecretCheck{Name: n.name, Critical: n.critical, Description: n.description}, ok
		},
		key:  func(s manifest.SecretCheck) string { return s.Name },
		auto: e.autoSecrets,
	})
}

// Pvcs returns the PersistentVolumeClaim requirements.
func (e *Extractor) Pvcs() []manifest.PvcCheck {
	return resolveCategory(e, category[manifest.PvcCheck]{
		name:  "pvcs",
		paths: PvcsKeys,
		parse: e.parsePvc,
		key:   func(p manifest.PvcCheck) string { return p.Name },
		auto:  e.autoPvcs,
	})
}

// Infrastructure assembles every category relevant to platform.
func (e *Extractor) Infrastructure(profile string, platform manifest.Platform) manifest.Infrastructure {
	infra := manifest.Infrastructure{
		CompanyDomain: e.companyDomain,
		Files:         e.Files(),
		ExternalAPIs:  e.APIs(),
	}
	if platform == manifest.PlatformKubernetes {
		infra.Namespace = Namespace(profile)
		infra.ConfigMaps = e.ConfigMaps()
		infra.Secrets = e.Secrets()
		infra.Pvcs = e.Pvcs()
	}
	return infra
}

// namespaces maps short profile names to Kubernetes namespaces.
var namespaces = map[string]string{
	"dev":   "development",
	"stg":   "staging",
	"stage": "staging",
	"prod":  "production",
}

// DefaultNamespace is used for profiles without a mapping.
const DefaultNamespace = "default"

// Namespace returns the Kubernetes namespace for profile.
func Namespace(profile string) string {
	if ns, ok := namespaces[profile]; ok {
		return ns
	}
	return DefaultNamespace
}

// category parameterizes resolveCategory for one requirement type.
type category[T any] struct {
	name  string
	paths []string
	parse func(entry *tree.Map) (T, bool)
	key   func(T) string
	auto  func() []T
}

// resolveCategory applies the explicit-over-auto policy. Results are
// deduplicated by identity key, first occurrence wins.
func resolveCategory[T any](e *Extractor, c category[T]) []T {
	if entries, path, ok := e.declarations(c.paths); ok {
		out := make([]T, 0, len(entries))
		seen := make(map[string]bool, len(entries))
		for i, raw := range entries {
			entry, isMap := raw.(*tree.Map)
			if !isMap {
				e.log.Warnf("%s[%d]: declaration is a %s, not a map; skipped", path, i, raw.Kind())
				continue
			}
			item, ok := c.parse(entry)
			if !ok {
				continue
			}
			k := c.key(item)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, item)
		}
		e.log.Debugf("%s: %d explicit entries from %s", c.name, len(out), path)
		return out
	}

	out := dedup(c.auto(), c.key)
	e.log.Debugf("%s: %d auto-extracted entries", c.name, len(out))
	return out
}

// declarations returns the first non-empty declaration list among paths.
func (e *Extractor) declarations(paths []string) ([]tree.Value, string, bool) {
	for _, p := range paths {
		if l, ok := tree.LookupList(e.root, p); ok && l.Len() > 0 {
			return l.Items(), p, true
		}
	}
	return nil, "", false
}

func dedup[T any](items []T, key func(T) string) []T {
	out := make([]T, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		k := key(item)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, item)
	}
	return out
}

// scanLeaves visits every string leaf outside the validation namespace that
// is not excluded.
func (e *Extractor) scanLeaves(fn func(key, value string)) {
	tree.Walk(e.root, func(key string, leaf *tree.Scalar) {
		if strings.HasPrefix(key, ValidationRoot) {
			return
		}
		value, ok := leaf.Text()
		if !ok || e.excluder.Excluded(value) {
			return
		}
		fn(key, value)
	})
}
