// Package watcher ingests new and changed files under watched directories.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/config"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

const defaultDebounce = 400 * time.Millisecond

// FileHandler ingests files and drops change-detection state for removed
// ones. *indexer.Indexer implements it.
type FileHandler interface {
	IndexFile(ctx context.Context, path string, allowedExts []string) ([]string, error)
	Forget(path string)
}

// Watcher feeds files under its root directories to a FileHandler. Writes are
// debounced per path. Removed files are forgotten, but their entries stay in
// the store, which has no per-source delete.
type Watcher struct {
	handler    FileHandler
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	roots   []string
	watched map[string][]string // root -> directories added to fsw
	pending map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	loop    sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a path must stay quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher over cfg's directories. Extensions restrict which files
// are ingested; empty means all.
func New(handler FileHandler, cfg config.WatchConfig, opts ...Option) *Watcher {
	w := &Watcher{
		handler:    handler,
		extensions: cfg.Extensions,
		recursive:  cfg.RecursiveOrDefault(),
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		watched:    make(map[string][]string),
		pending:    make(map[string]*time.Timer),
	}
	for _, dir := range cfg.Directories {
		if abs, err := filepath.Abs(dir); err == nil {
			w.roots = append(w.roots, filepath.Clean(abs))
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching every root. It returns once the watches are in place;
// events are handled until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return rserr.Wrap(err, rserr.CodeConfigInvalidValue, "create file watcher")
	}
	w.fsw = fsw
	for _, root := range w.roots {
		if err := w.watchRootLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			return err
		}
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.logger.Info("Watching directories",
		zap.Strings("roots", w.roots), zap.Strings("extensions", w.extensions), zap.Bool("recursive", w.recursive))

	w.loop.Add(1)
	go w.run(w.ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.loop.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("Watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) {
				w.handleNewDirectory(path)
			}
			return
		}
		if w.matchExtension(path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelPending(path)
		if w.matchExtension(path) {
			w.handler.Forget(path)
			w.logger.Debug("Watcher forgot removed file", zap.String("path", path))
		}
	}
}

// handleNewDirectory watches a directory created or moved under a root and
// ingests what it already contains.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	if w.fsw == nil || !w.recursive {
		w.mu.Unlock()
		return
	}
	root := w.rootOfLocked(dir)
	added, err := w.addTreeLocked(dir)
	w.watched[root] = append(w.watched[root], added...)
	ctx := w.ctx
	w.mu.Unlock()
	if err != nil {
		w.logger.Warn("Watcher failed to watch new directory", zap.String("path", dir), zap.Error(err))
	}
	w.syncDirectory(ctx, dir)
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		ctx := w.ctx
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) bool {
	if ctx == nil || ctx.Err() != nil {
		return false
	}
	ids, err := w.handler.IndexFile(ctx, path, w.extensions)
	if err != nil {
		w.logger.Warn("Watcher failed to ingest file", zap.String("path", path), zap.Error(err))
		return false
	}
	if len(ids) > 0 {
		w.logger.Info("Ingested file", zap.String("path", path), zap.Int("chunks", len(ids)))
	}
	return len(ids) > 0
}

// AddDirectory adds a root. Before Start it is only recorded; after Start it is
// watched immediately and, when syncExisting is set, its current files are
// ingested in the background.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return rserr.Wrap(err, rserr.CodeConfigInvalidValue, "watch directory path", rserr.Field("path", root))
	}
	abs = filepath.Clean(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if slices.Contains(w.roots, abs) {
		return nil
	}
	if w.fsw != nil {
		if err := w.watchRootLocked(abs); err != nil {
			return err
		}
	}
	w.roots = append(w.roots, abs)
	w.logger.Debug("Watcher directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting && w.fsw != nil {
		go w.syncDirectory(w.ctx, abs)
	}
	return nil
}

// RemoveDirectory stops watching root. Entries already ingested stay in the store.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return rserr.Wrap(err, rserr.CodeConfigInvalidValue, "watch directory path", rserr.Field("path", root))
	}
	abs = filepath.Clean(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	idx := slices.Index(w.roots, abs)
	if idx < 0 {
		return nil
	}
	if w.fsw != nil {
		for _, dir := range w.watched[abs] {
			_ = w.fsw.Remove(dir)
		}
	}
	delete(w.watched, abs)
	w.roots = slices.Delete(w.roots, idx, idx+1)
	w.logger.Debug("Watcher directory removed", zap.String("path", abs))
	return nil
}

// Directories returns the current roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.roots)
}

// SyncExisting ingests the files already present under every root and returns
// how many produced entries. Unchanged files are skipped by the handler.
func (w *Watcher) SyncExisting(ctx context.Context) int {
	n := 0
	for _, root := range w.Directories() {
		n += w.syncDirectory(ctx, root)
	}
	return n
}

func (w *Watcher) syncDirectory(ctx context.Context, dir string) int {
	n := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx == nil || ctx.Err() != nil {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if path != dir && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && w.matchExtension(path) && w.ingest(ctx, path) {
			n++
		}
		return nil
	})
	return n
}

// Stop cancels pending ingestion, closes the watches and waits for the event loop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.cancel()
	_ = w.fsw.Close()
	w.fsw = nil
	w.watched = make(map[string][]string)
	w.mu.Unlock()
	w.loop.Wait()
}

func (w *Watcher) watchRootLocked(root string) error {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return rserr.Wrap(err, rserr.CodeConfigInvalidValue, "create watch directory", rserr.Field("path", root))
		}
	} else if err != nil {
		return rserr.Wrap(err, rserr.CodeConfigInvalidValue, "stat watch directory", rserr.Field("path", root))
	} else if !info.IsDir() {
		return rserr.New(rserr.CodeConfigInvalidValue, "watch path is not a directory", rserr.Field("path", root))
	}
	var dirs []string
	if w.recursive {
		dirs, err = w.addTreeLocked(root)
	} else {
		err = w.fsw.Add(root)
		dirs = []string{root}
	}
	if err != nil {
		return rserr.Wrap(err, rserr.CodeConfigInvalidValue, "watch directory", rserr.Field("path", root))
	}
	w.watched[root] = dirs
	return nil
}

func (w *Watcher) addTreeLocked(dir string) ([]string, error) {
	var added []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		added = append(added, path)
		return nil
	})
	return added, err
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rootOfLocked(path) != ""
}

func (w *Watcher) rootOfLocked(path string) string {
	for _, root := range w.roots {
		if root == path || inDir(root, path) {
			return root
		}
	}
	return ""
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) matchExtension(path string) bool {
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
