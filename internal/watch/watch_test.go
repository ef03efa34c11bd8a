package watch

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingLoader struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (l *recordingLoader) LoadText(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.texts = append(l.texts, text)
	return l.err
}

func (l *recordingLoader) loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.texts...)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for: %s", msg)
}

func newWatcher(t *testing.T, path string, l Loader) *Watcher {
	t.Helper()
	w := New(path, l,
		WithDebounce(40*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcher_InitialLoadAndChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.json")
	if err := os.WriteFile(path, []byte(`{"1":{"class_type":"A","inputs":{}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	l := &recordingLoader{}
	w := newWatcher(t, path, l)

	if got := l.loaded(); len(got) != 1 {
		t.Fatalf("initial loads = %d, want 1", len(got))
	}

	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(l.loaded()) == 2 }, "reload after write")
	if got := l.loaded()[1]; got != "{}" {
		t.Errorf("reloaded text = %q", got)
	}

	// Same contents again: skipped by the hash check.
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if n := w.Reloads(); n != 2 {
		t.Errorf("reloads = %d, want 2", n)
	}
}

func TestWatcher_AtomicRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.json")
	l := &recordingLoader{}
	newWatcher(t, path, l)

	if got := l.loaded(); len(got) != 0 {
		t.Fatalf("missing file should not load, got %v", got)
	}

	tmp := filepath.Join(dir, ".workflow.tmp")
	if err := os.WriteFile(tmp, []byte(`{"2":{"class_type":"B","inputs":{}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(l.loaded()) == 1 }, "load after rename")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.json")
	l := &recordingLoader{}
	newWatcher(t, path, l)

	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if got := l.loaded(); len(got) != 0 {
		t.Errorf("loads = %v, want none", got)
	}
}

func TestSync_LoaderError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	broken := errors.New("malformed workflow")
	l := &recordingLoader{err: broken}
	w := New(path, l, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := w.Sync(); !errors.Is(err, broken) {
		t.Fatalf("Sync err = %v, want loader error", err)
	}
	if err := w.Sync(); err != nil {
		t.Errorf("second Sync of the same contents = %v, want nil", err)
	}
	if len(l.loaded()) != 1 {
		t.Errorf("loads = %d, want 1", len(l.loaded()))
	}
}

func TestStart_InitialLoaderErrorIsNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := &recordingLoader{err: errors.New("bad")}
	newWatcher(t, path, l)
	if len(l.loaded()) != 1 {
		t.Fatalf("loads = %d, want 1", len(l.loaded()))
	}

	l.mu.Lock()
	l.err = nil
	l.mu.Unlock()
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(l.loaded()) == 2 }, "reload after fix")
}

func TestWatcher_TinyDebounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	l := &recordingLoader{}
	w := New(path, l,
		WithDebounce(time.Nanosecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	if err := os.WriteFile(path, []byte(`{"1":{"class_type":"A","inputs":{}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(l.loaded()) == 2 }, "reload with 1ns debounce")
}
