package backfill

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Writers often produce several events while an export is still being
// copied in; the debounce lets the file settle before it is read.
const defaultDebounce = 400 * time.Millisecond

// Watcher watches a drop directory and backfills each JSONL export placed
// there. Files already processed are remembered by path, size, and mtime, so
// a restart does not re-run unchanged exports within one process lifetime.
type Watcher struct {
	dir      string
	runner   *Runner
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	processed   map[string]fileStamp
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger // optional; when set, logs file events
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchLogger sets a logger for debug output.
func WithWatchLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a drop-directory watcher feeding the given runner.
func NewWatcher(dir string, runner *Runner, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:         dir,
		runner:      runner,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		processed:   make(map[string]fileStamp),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Exports already sitting in the directory are
// processed first, then the watcher runs until ctx is cancelled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Info("backfill watcher starting", zap.String("dir", w.dir))
	}
	w.syncExisting(ctx)
	go w.run(ctx)
	return nil
}

func (w *Watcher) syncExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("failed to list drop directory", zap.Error(err))
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if isExport(path) {
			w.process(ctx, path)
		}
	}
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !isExport(ev.Name) {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	}
	w.debounceProcess(ctx, ev.Name)
}

func (w *Watcher) debounceProcess(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.process(ctx, path)
	})
}

func (w *Watcher) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}

	w.mu.Lock()
	if prev, ok := w.processed[path]; ok && prev == stamp {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	stats, err := w.runner.RunFile(ctx, path)
	if err != nil {
		if w.logger != nil {
			w.logger.Error("backfill file failed", zap.String("path", path), zap.Error(err))
		}
		return
	}

	w.mu.Lock()
	w.processed[path] = stamp
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Info("backfill file done",
			zap.String("path", path),
			zap.Int("total", stats.Total),
			zap.Int("sent", stats.Sent),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed))
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		for _, t := range w.debounceMap {
			t.Stop()
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.started = false
	})
}

func isExport(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jsonl")
}
