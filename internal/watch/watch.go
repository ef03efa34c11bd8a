// Package watch reloads the session's workflow from a file whenever the
// file is saved.
package watch

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is reloaded.
const DefaultDebounce = 300 * time.Millisecond

// Loader receives the file contents. editor.Session satisfies it.
type Loader interface {
	LoadText(text string) error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.logger = l } }

// Watcher watches one workflow file. It watches the file's directory so
// that editors which save by renaming over the file are seen too.
type Watcher struct {
	path     string
	loader   Loader
	debounce time.Duration
	logger   *slog.Logger

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	lastHash string
	dirty    time.Time
	reloads  int
}

// New creates a watcher for path that feeds loader.
func New(path string, loader Loader, opts ...Option) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		loader:   loader,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start loads the file once, if it exists, and then watches it. Contents
// the loader rejects are logged; the watch still starts.
func (w *Watcher) Start() error {
	if err := w.Sync(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.logger.Warn("initial workflow load failed", "path", w.path, "err", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("workflow watcher: create fsnotify: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("workflow watcher: watch %s: %w", dir, err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop()
	w.logger.Info("watching workflow file", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop ends the watch and waits for the loop to exit. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// Reloads returns how many times the file was handed to the loader.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(max(w.debounce/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.dirty = time.Now()
				w.mu.Unlock()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("workflow watcher error", "err", err)
		case <-ticker.C:
			w.mu.Lock()
			ready := !w.dirty.IsZero() && time.Since(w.dirty) >= w.debounce
			if ready {
				w.dirty = time.Time{}
			}
			w.mu.Unlock()
			if ready {
				if err := w.Sync(); err != nil && !errors.Is(err, fs.ErrNotExist) {
					w.logger.Warn("workflow reload failed", "path", w.path, "err", err)
				}
			}
		}
	}
}

// Sync reads the file and hands it to the loader if its contents changed
// since the last sync. A loader error is returned; the hash is kept so the
// same broken contents are not reloaded again.
func (w *Watcher) Sync() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	w.mu.Lock()
	if hash == w.lastHash {
		w.mu.Unlock()
		w.logger.Debug("workflow file unchanged, skipping", "path", w.path)
		return nil
	}
	w.lastHash = hash
	w.reloads++
	w.mu.Unlock()

	w.logger.Info("workflow file changed", "path", w.path, "hash", hash[:8])
	if err := w.loader.LoadText(string(data)); err != nil {
		return fmt.Errorf("loading %s: %w", w.path, err)
	}
	return nil
}
