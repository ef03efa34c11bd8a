package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockDestination records calls to Write.
type mockDestination struct {
	name   string
	err    error
	writes atomic.Int64

	mu   sync.Mutex
	last []byte
}

func (d *mockDestination) Name() string { return d.name }

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	d.mu.Lock()
	d.last = append([]byte(nil), data...)
	d.mu.Unlock()
	return d.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExport_NoDestination(t *testing.T) {
	if err := Export(context.Background(), []byte("{}"), nil, quietLogger()); !errors.Is(err, ErrNoDestination) {
		t.Fatalf("err = %v, want ErrNoDestination", err)
	}
}

func TestExport_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &mockDestination{name: "ok"}
	bad := &mockDestination{name: "bad", err: boom}
	ok2 := &mockDestination{name: "ok2"}

	err := Export(context.Background(), []byte(`{"1":{}}`), []Destination{ok, bad, ok2}, quietLogger())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if ok.writes.Load() != 1 || ok2.writes.Load() != 1 {
		t.Error("a failing destination must not stop the others")
	}
	if string(ok2.last) != `{"1":{}}` {
		t.Errorf("last = %q", ok2.last)
	}
}

func TestFileDestination(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "workflow.json")
	dest := FileDestination{Path: path}

	for _, data := range []string{`{"1":{}}`, `{}`} {
		if err := dest.Write(context.Background(), []byte(data)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if string(got) != data {
			t.Errorf("content = %q, want %q", got, data)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
	if dest.Name() != "file:"+path {
		t.Errorf("Name() = %q", dest.Name())
	}
}

func TestFileDestination_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := FileDestination{Path: filepath.Join(t.TempDir(), "w.json")}
	if err := dest.Write(ctx, []byte("{}")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSchedulerSkipsUnchanged(t *testing.T) {
	var (
		mu  sync.Mutex
		doc = []byte(`{"1":{}}`)
	)
	source := func() []byte {
		mu.Lock()
		defer mu.Unlock()
		return doc
	}
	dest := &mockDestination{name: "mock"}

	sched := NewScheduler(source, []Destination{dest}, 20*time.Millisecond, quietLogger())
	sched.Start()
	time.Sleep(90 * time.Millisecond)

	if n := dest.writes.Load(); n != 1 {
		t.Fatalf("writes before change = %d, want 1", n)
	}

	mu.Lock()
	doc = []byte(`{"1":{},"2":{}}`)
	mu.Unlock()
	time.Sleep(90 * time.Millisecond)
	sched.Stop()

	if n := dest.writes.Load(); n != 2 {
		t.Fatalf("writes after change = %d, want 2", n)
	}
}

func TestSchedulerRetriesFailedExport(t *testing.T) {
	dest := &mockDestination{name: "bad", err: errors.New("down")}
	sched := NewScheduler(func() []byte { return []byte("{}") }, []Destination{dest}, 20*time.Millisecond, quietLogger())
	sched.Start()
	time.Sleep(90 * time.Millisecond)
	sched.Stop()

	if n := dest.writes.Load(); n < 2 {
		t.Fatalf("writes = %d, want retries after failure", n)
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(func() []byte { return nil }, nil, time.Minute, quietLogger())
	sched.Stop()
}

func TestNewS3Destination_RequiresBucketAndKey(t *testing.T) {
	if _, err := NewS3Destination(context.Background(), S3Options{Key: "k", Region: "us-east-1"}); err == nil {
		t.Error("expected error without bucket")
	}
	if _, err := NewS3Destination(context.Background(), S3Options{Bucket: "b", Region: "us-east-1"}); err == nil {
		t.Error("expected error without key")
	}
}

func TestNewS3Destination_Name(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	dest, err := NewS3Destination(context.Background(), S3Options{
		Bucket:   "bucket",
		Key:      "nodegraph/workflow.json",
		Region:   "us-east-1",
		Endpoint: "http://127.0.0.1:9000",
	})
	if err != nil {
		t.Fatalf("NewS3Destination: %v", err)
	}
	if got, want := dest.Name(), "s3://bucket/nodegraph/workflow.json"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
}

func TestS3Destination_Write(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	type put struct{ method, path, digest string }
	got := make(chan put, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		got <- put{r.Method, r.URL.Path, r.Header.Get("X-Amz-Meta-Workflow-Sha256")}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dest, err := NewS3Destination(context.Background(), S3Options{
		Bucket:   "graphs",
		Key:      "team/workflow.json",
		Region:   "us-east-1",
		Endpoint: srv.URL,
	})
	if err != nil {
		t.Fatalf("NewS3Destination: %v", err)
	}
	if err := dest.Write(context.Background(), []byte("{}")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	p := <-got
	if p.method != http.MethodPut || p.path != "/graphs/team/workflow.json" {
		t.Errorf("request = %s %s, want PUT /graphs/team/workflow.json", p.method, p.path)
	}
	// sha256("{}")
	if want := "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a"; p.digest != want {
		t.Errorf("digest metadata = %q, want %q", p.digest, want)
	}
}
