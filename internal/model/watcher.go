package model

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/HarshSankhe/behavior-guard-insight/internal/metrics"
)

// debounceWindow coalesces the burst of write notifications a single
// checkpoint save produces into one reload.
const debounceWindow = 200 * time.Millisecond

// dirWatcher watches the models directory and queues the IDs of changed
// checkpoints for the cache's reload consumer. It never touches the cache
// directly; the queue keeps notification and mutation independently
// testable.
type dirWatcher struct {
	fsw    *fsnotify.Watcher
	out    chan<- string
	stop   <-chan struct{}
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer

	closeOnce sync.Once
}

func newDirWatcher(dir string, out chan<- string, stop <-chan struct{}, logger *slog.Logger) (*dirWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &dirWatcher{
		fsw:     fsw,
		out:     out,
		stop:    stop,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}
	go w.run()

	logger.Info("model watcher started", "dir", dir)
	return w, nil
}

func (w *dirWatcher) run() {
	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			metrics.WatcherEventsTotal.Inc()
			w.schedule(strings.TrimSuffix(name, ".json"))

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors are never fatal to the process.
			w.logger.Error("model watcher error", "error", err)
		}
	}
}

// schedule queues id for reload after the debounce window, resetting the
// timer if another notification for the same file arrives first.
func (w *dirWatcher) schedule(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[id]; ok {
		t.Reset(debounceWindow)
		return
	}
	w.pending[id] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()

		select {
		case w.out <- id:
		default:
			w.logger.Warn("reload queue full, dropping notification", "model_id", id)
		}
	})
}

func (w *dirWatcher) close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		for id, t := range w.pending {
			t.Stop()
			delete(w.pending, id)
		}
		w.mu.Unlock()
		_ = w.fsw.Close()
	})
}
