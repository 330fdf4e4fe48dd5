package stream

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

const defaultDebounce = 400 * time.Millisecond

// DBWatcher watches a SQLite database file (and its -wal and -journal siblings) and
// invokes onChange, debounced, after writes.
type DBWatcher struct {
	dbPath   string
	onChange func()
	debounce time.Duration
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// WatcherOption configures a DBWatcher.
type WatcherOption func(*DBWatcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *DBWatcher) { w.logger = l }
}

// WithDebounce sets the quiet period after the last write before onChange fires.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *DBWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewDBWatcher creates a watcher for dbPath.
func NewDBWatcher(dbPath string, onChange func(), opts ...WatcherOption) *DBWatcher {
	w := &DBWatcher{
		dbPath:   filepath.Clean(dbPath),
		onChange: onChange,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching the database directory. It runs until ctx is cancelled or Stop
// is called.
func (w *DBWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	dir := filepath.Dir(w.dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.mu.Unlock()
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	if w.logger != nil {
		w.logger.Debug("database watcher starting", zap.String("path", w.dbPath), zap.Duration("debounce", w.debounce))
	}
	w.mu.Unlock()
	go w.run(ctx, watcher)
	return nil
}

func (w *DBWatcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("database watcher error", zap.Error(err))
			}
		}
	}
}

func (w *DBWatcher) handleEvent(ev fsnotify.Event) {
	if !w.isDatabaseFile(ev.Name) {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	if w.logger != nil {
		w.logger.Debug("database watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	}
	w.schedule()
}

func (w *DBWatcher) isDatabaseFile(path string) bool {
	clean := filepath.Clean(path)
	if filepath.Dir(clean) != filepath.Dir(w.dbPath) {
		return false
	}
	base := filepath.Base(w.dbPath)
	name := filepath.Base(clean)
	return name == base || strings.HasPrefix(name, base+"-")
}

func (w *DBWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		w.mu.Unlock()
		if w.onChange != nil {
			w.onChange()
		}
	})
}

// Stop stops the watcher and releases resources.
func (w *DBWatcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
