package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultWatchDebounce = 500 * time.Millisecond

// WatcherStats tracks reload activity.
type WatcherStats struct {
	Events        int
	Reloads       int
	Failures      int
	LastEventPath string
	LastReload    time.Time
	LastError     string
}

// Watcher reloads the robot behavior config when its file changes. Rapid
// saves are collapsed into one reload once the file has been quiet for the
// debounce window. A config that fails to parse is logged and skipped.
type Watcher struct {
	mu       sync.Mutex
	path     string
	onReload func(RobotConfig)
	logger   *zap.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	pending time.Time
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	stats   WatcherStats
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithWatchDebounce sets the quiet period before a reload.
func WithWatchDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher builds a watcher for the config file at path. onReload runs on
// the watcher goroutine with every successfully parsed config.
func NewWatcher(path string, onReload func(RobotConfig), opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config: watch path is required")
	}
	if onReload == nil {
		return nil, fmt.Errorf("config: reload callback is required")
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		onReload: onReload,
		logger:   zap.NewNop(),
		debounce: defaultWatchDebounce,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Start begins watching. It is non-blocking; Stop must be called to release
// the underlying file watcher.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: start watcher: %w", err)
	}
	// Editors replace files on save, so the parent directory is watched.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(w.path), err)
	}
	w.watcher = fsw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	w.logger.Info("watching behavior config", zap.String("path", w.path))
	go w.run(ctx, fsw, w.stopCh, w.doneCh)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh, fsw := w.stopCh, w.doneCh, w.watcher
	w.watcher = nil
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := fsw.Close(); err != nil {
		w.logger.Warn("config watcher close failed", zap.Error(err))
	}
}

// Stats returns a copy of the reload counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	interval := w.debounce / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		case now := <-ticker.C:
			if w.settled(now) {
				w.reload()
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	w.pending = time.Now()
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.mu.Unlock()
}

func (w *Watcher) settled(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.IsZero() || now.Sub(w.pending) < w.debounce {
		return false
	}
	w.pending = time.Time{}
	return true
}

func (w *Watcher) reload() {
	rc, err := LoadRobotConfig(w.path)
	w.mu.Lock()
	if err != nil {
		w.stats.Failures++
		w.stats.LastError = err.Error()
	} else {
		w.stats.Reloads++
		w.stats.LastReload = time.Now()
		w.stats.LastError = ""
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("behavior config reload failed, keeping previous config", zap.Error(err))
		return
	}
	w.logger.Info("behavior config reloaded",
		zap.String("path", w.path),
		zap.Int("behaviors", len(rc.Behaviors)),
		zap.Int("activities", len(rc.Activities)),
	)
	w.onReload(rc)
}
