package analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"infrascan/internal/logging"
)

// DefaultDebounce is how long the config source must stay quiet before a
// rerun.
const DefaultDebounce = 500 * time.Millisecond

// RunFunc receives the outcome of every rerun.
type RunFunc func(*Report, error)

// Watcher reruns an Analyzer whenever its config source changes.
// Editors often save in several steps (truncate, write, rename), so events
// are debounced.
type Watcher struct {
	analyzer *Analyzer
	debounce time.Duration
	onRun    RunFunc

	mu        sync.Mutex
	pending   time.Time
	runs      int
	ready     chan struct{}
	readyOnce sync.Once
}

// NewWatcher creates a watcher for a. onRun may be nil.
func NewWatcher(a *Analyzer, debounce time.Duration, onRun RunFunc) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onRun == nil {
		onRun = func(*Report, error) {}
	}
	return &Watcher{
		analyzer: a,
		debounce: debounce,
		onRun:    onRun,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the watch is established.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Runs returns how many reruns were triggered.
func (w *Watcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Run watches the config source's directory until ctx is cancelled. The
// directory itself is watched so that atomic-rename saves are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	target := filepath.Clean(w.analyzer.ConfigPath())
	dir := filepath.Dir(target)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logging.Watch("watching %s", target)
	w.readyOnce.Do(func() { close(w.ready) })

	// Debounce ticker for batching rapid changes
	tick := w.debounce / 5
	if tick < time.Millisecond {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logging.WatchDebug("%s: %s", event.Op, event.Name)
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryWatch).Errorf("watcher error: %v", err)

		case <-ticker.C:
			if w.settled() {
				w.rerun(ctx)
			}
		}
	}
}

// settled reports whether a pending change has been quiet for the debounce
// window, and clears it.
func (w *Watcher) settled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		return false
	}
	w.pending = time.Time{}
	w.runs++
	return true
}

func (w *Watcher) rerun(ctx context.Context) {
	logging.Watch("config changed, rerunning analysis")
	report, err := w.analyzer.Run(ctx)
	if err != nil {
		logging.Get(logging.CategoryWatch).Warnf("rerun failed: %v", err)
	}
	w.onRun(report, err)
}
