package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HarshSankhe/behavior-guard-insight/internal/metrics"
	"github.com/HarshSankhe/behavior-guard-insight/internal/retry"
)

// Change kinds reported to the OnChange hook.
const (
	ChangeLoaded   = "model_loaded"
	ChangeUnloaded = "model_unloaded"
)

// Cache owns the model_id → artifact mapping and keeps it in sync with the
// models directory. Reads are served concurrently; a background watcher
// triggers reloads when checkpoint files change.
//
// Locking discipline: mu guards only the map itself. File reads and
// checkpoint decoding happen entirely off-lock, so a slow load on one
// goroutine never blocks lookups on another, and readers can never observe
// a half-built artifact.
type Cache struct {
	dir      string
	globalID string
	logger   *slog.Logger

	mu        sync.Mutex
	artifacts map[string]*Artifact

	// onChange, if set, is invoked (outside the lock) after a successful
	// load or unload. Used to stream model lifecycle events.
	onChange func(kind, modelID string)

	watcher  *dirWatcher
	reloadCh chan string
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewCache creates the cache, synchronously loads every checkpoint already
// present in dir, and starts the directory watcher. The directory is created
// if missing. Watcher startup failure is logged and non-fatal: the cache
// still works, it just won't hot-reload.
func NewCache(dir string, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}

	c := &Cache{
		dir:       dir,
		globalID:  GlobalID,
		logger:    logger,
		artifacts: make(map[string]*Artifact),
		reloadCh:  make(chan string, 64),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	n := c.loadAll()
	logger.Info("model cache initialized", "dir", dir, "models", n)

	w, err := newDirWatcher(dir, c.reloadCh, c.stop, logger)
	if err != nil {
		logger.Error("model watcher unavailable, hot-reload disabled", "error", err)
		close(c.done) // nothing to join
		return c, nil
	}
	c.watcher = w

	go c.reloadLoop()
	return c, nil
}

// SetOnChange registers the lifecycle hook. Call before the server starts
// handling traffic; not synchronized against concurrent loads.
func (c *Cache) SetOnChange(fn func(kind, modelID string)) {
	c.onChange = fn
}

// SetGlobalID overrides the shared fallback model's checkpoint name.
// Empty keeps the default. Same call discipline as SetOnChange.
func (c *Cache) SetGlobalID(id string) {
	if id != "" {
		c.globalID = id
	}
}

// Get resolves the model for a user. Lookup order: cached user model, disk
// load of the user model, cached global model, disk load of the global
// model. usedGlobal reports that the caller got the shared fallback rather
// than a model of their own.
func (c *Cache) Get(userID string) (art *Artifact, usedGlobal bool) {
	if a, ok := c.lookup(userID); ok {
		return a, false
	}
	if c.Load(userID) {
		if a, ok := c.lookup(userID); ok {
			return a, false
		}
	}
	if a, ok := c.lookup(c.globalID); ok {
		return a, true
	}
	if c.Load(c.globalID) {
		if a, ok := c.lookup(c.globalID); ok {
			return a, true
		}
	}
	c.logger.Warn("no model available", "user_id", userID)
	return nil, false
}

func (c *Cache) lookup(id string) (*Artifact, bool) {
	c.mu.Lock()
	a, ok := c.artifacts[id]
	c.mu.Unlock()
	return a, ok
}

// Load reads and validates the checkpoint for id, then publishes it.
// Returns false — leaving any previously cached artifact untouched — when
// the file is missing, unreadable, or structurally invalid.
func (c *Cache) Load(id string) bool {
	return c.load(id) == nil
}

// load does the real work and reports why a load failed. The artifact is
// fully built before the lock is taken; the lock covers only the map swap.
func (c *Cache) load(id string) error {
	path := filepath.Join(c.dir, id+".json")

	data, err := os.ReadFile(path) // #nosec G304 -- id comes from checkpoint filenames in our own dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("model file not found", "model_id", id, "path", path)
		} else {
			c.logger.Error("model file unreadable", "model_id", id, "error", err)
		}
		metrics.ModelLoadsTotal.WithLabelValues("error").Inc()
		return err
	}

	art, err := decodeArtifact(id, data)
	if err != nil {
		c.logger.Error("invalid model checkpoint", "model_id", id, "error", err)
		metrics.ModelLoadsTotal.WithLabelValues("invalid").Inc()
		return retry.Permanent(err)
	}

	c.mu.Lock()
	c.artifacts[id] = art
	n := len(c.artifacts)
	c.mu.Unlock()

	metrics.ModelLoadsTotal.WithLabelValues("success").Inc()
	metrics.ModelCacheSize.Set(float64(n))
	c.logger.Info("model loaded", "model_id", id, "version", art.Version)

	if c.onChange != nil {
		c.onChange(ChangeLoaded, id)
	}
	return nil
}

// Unload removes a model from the cache. Returns false if it wasn't cached.
func (c *Cache) Unload(id string) bool {
	c.mu.Lock()
	_, ok := c.artifacts[id]
	if ok {
		delete(c.artifacts, id)
	}
	n := len(c.artifacts)
	c.mu.Unlock()

	if ok {
		metrics.ModelCacheSize.Set(float64(n))
		c.logger.Info("model unloaded", "model_id", id)
		if c.onChange != nil {
			c.onChange(ChangeUnloaded, id)
		}
	}
	return ok
}

// IDs returns the cached model identifiers, sorted.
func (c *Cache) IDs() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.artifacts))
	for id := range c.artifacts {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Info returns the metadata of a cached model.
func (c *Cache) Info(id string) (Info, bool) {
	c.mu.Lock()
	a, ok := c.artifacts[id]
	c.mu.Unlock()
	if !ok {
		return Info{}, false
	}
	return a.info(), true
}

// Size returns the number of cached models.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.artifacts)
}

// RefreshAll discards the cache and reloads every checkpoint found on disk.
// Returns the number of models loaded.
func (c *Cache) RefreshAll() int {
	c.mu.Lock()
	c.artifacts = make(map[string]*Artifact)
	c.mu.Unlock()
	metrics.ModelCacheSize.Set(0)

	c.logger.Info("refreshing all models")
	return c.loadAll()
}

// loadAll loads every *.json checkpoint in the models dir.
func (c *Cache) loadAll() int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Error("cannot list models dir", "dir", c.dir, "error", err)
		return 0
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		if c.Load(id) {
			n++
		}
	}
	return n
}

// reloadLoop consumes model IDs queued by the watcher and loads them.
// A read failure is retried with backoff — the file may still be
// mid-write when the notification arrives. Decode failures are permanent
// and leave the prior artifact in place.
func (c *Cache) reloadLoop() {
	defer close(c.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.stop
		cancel()
	}()

	for {
		select {
		case <-c.stop:
			return
		case id := <-c.reloadCh:
			err := retry.Do(ctx, 3, 100*time.Millisecond, func() error {
				return c.load(id)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("hot reload failed", "model_id", id, "error", err)
			}
		}
	}
}

// Shutdown stops the watcher, joins the reload consumer, and clears the
// mapping. Safe to call more than once.
func (c *Cache) Shutdown() {
	c.stopOnce.Do(func() {
		close(c.stop)
		if c.watcher != nil {
			c.watcher.close()
		}
		<-c.done

		c.mu.Lock()
		c.artifacts = make(map[string]*Artifact)
		c.mu.Unlock()
		metrics.ModelCacheSize.Set(0)

		c.logger.Info("model cache shut down")
	})
}
