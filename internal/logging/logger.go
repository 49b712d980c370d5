// Package logging provides categorized logging for infrascan.
// Each category is a named child of one root zap logger. Until SetLogger is
// called every category is a no-op, so library packages stay silent in tests
// and when embedded.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // CLI startup, settings
	CategoryLoader    Category = "loader"    // Config document parsing and merging
	CategoryDetect    Category = "detect"    // Deployment target detection
	CategoryExtract   Category = "extract"   // Requirement derivation
	CategoryManifest  Category = "manifest"  // Manifest serialization
	CategoryProvision Category = "provision" // Validation script provisioning
	CategoryWatch     Category = "watch"     // Config file watcher
)

var (
	mu       sync.RWMutex
	root     = zap.NewNop()
	loggers  = make(map[Category]*zap.SugaredLogger)
	disabled = make(map[Category]bool)
)

// SetLogger installs the root logger. Category loggers created earlier are
// discarded and rebuilt on next use.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	loggers = make(map[Category]*zap.SugaredLogger)
}

// SetDisabled replaces the set of muted categories. A muted category logs
// nothing at any level.
func SetDisabled(categories ...Category) {
	mu.Lock()
	defer mu.Unlock()
	disabled = make(map[Category]bool, len(categories))
	for _, c := range categories {
		disabled[c] = true
	}
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Categories lists every known category.
func Categories() []Category {
	return []Category{
		CategoryBoot, CategoryLoader, CategoryDetect, CategoryExtract,
		CategoryManifest, CategoryProvision, CategoryWatch,
	}
}

// Root returns the root logger.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Get returns (or creates) the logger for a category.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}
	l := root.Named(string(category)).Sugar()
	if disabled[category] {
		l = zap.NewNop().Sugar()
	}
	loggers[category] = l
	return l
}

// Sync flushes the root logger.
func Sync() {
	_ = Root().Sync()
}

// Convenience helpers for the categories that log outside of Get.

func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debugf(format, args...)
}

func LoaderDebug(format string, args ...interface{}) {
	Get(CategoryLoader).Debugf(format, args...)
}

func DetectDebug(format string, args ...interface{}) {
	Get(CategoryDetect).Debugf(format, args...)
}

func Manifest(format string, args ...interface{}) {
	Get(CategoryManifest).Infof(format, args...)
}

func ManifestDebug(format string, args ...interface{}) {
	Get(CategoryManifest).Debugf(format, args...)
}

func Provision(format string, args ...interface{}) {
	Get(CategoryProvision).Infof(format, args...)
}

func ProvisionDebug(format string, args ...interface{}) {
	Get(CategoryProvision).Debugf(format, args...)
}

func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Infof(format, args...)
}

func WatchDebug(format string, args ...interface{}) {
	Get(CategoryWatch).Debugf(format, args...)
}
