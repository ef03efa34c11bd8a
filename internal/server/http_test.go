package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
	"github.com/alfredjeanlab/nodegraph/internal/client"
	"github.com/alfredjeanlab/nodegraph/internal/editor"
	"github.com/alfredjeanlab/nodegraph/internal/export"
	"github.com/alfredjeanlab/nodegraph/internal/graph"
	"github.com/alfredjeanlab/nodegraph/internal/pipeline"
)

const testObjectInfo = `{
  "A": {"display_name": "Alpha", "category": "src", "input": {"required": {}}, "output": ["X"]},
  "B": {
    "input": {"required": {"x": ["INT", {"default": 5}]}, "optional": {"img": ["IMAGE"]}},
    "output": ["Y"]
  }
}`

type stubEngine struct {
	id  string
	err error
}

func (e *stubEngine) QueuePrompt(context.Context, graph.Payload, string) (string, error) {
	return e.id, e.err
}

type testServer struct {
	srv     *Server
	session *editor.Session
	engine  *stubEngine
	metrics *Metrics
	sched   *pipeline.ManualScheduler
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	cat, err := catalog.Decode([]byte(testObjectInfo))
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &testServer{engine: &stubEngine{id: "p-1"}, metrics: NewMetrics(), sched: &pipeline.ManualScheduler{}}
	f.session, err = editor.New(cat,
		editor.WithEngine(f.engine),
		editor.WithObserver(f.metrics),
		editor.WithScheduler(f.sched),
		editor.WithLogger(logger),
		editor.WithClientID("ng-test"),
	)
	if err != nil {
		t.Fatal(err)
	}
	f.srv = New(f.session, append([]Option{WithLogger(logger), WithMetrics(f.metrics)}, opts...)...)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.srv.Handler("").ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestRoutes(t *testing.T) {
	f := newTestServer(t)
	f.session.Insert("A")
	f.session.Insert("B")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"health", "GET", "/v1/health", nil, http.StatusOK},
		{"status", "GET", "/v1/status", nil, http.StatusOK},
		{"catalog", "GET", "/v1/catalog?q=alp", nil, http.StatusOK},
		{"definition", "GET", "/v1/catalog/B", nil, http.StatusOK},
		{"unknown definition", "GET", "/v1/catalog/Nope", nil, http.StatusNotFound},
		{"workflow", "GET", "/v1/workflow", nil, http.StatusOK},
		{"form", "GET", "/v1/nodes/2/form", nil, http.StatusOK},
		{"form missing node", "GET", "/v1/nodes/9/form", nil, http.StatusNotFound},
		{"set field", "PUT", "/v1/nodes/2/inputs/x", map[string]string{"value": "7"}, http.StatusOK},
		{"set unknown field", "PUT", "/v1/nodes/2/inputs/zz", map[string]string{"value": "7"}, http.StatusBadRequest},
		{"set on missing node", "PUT", "/v1/nodes/9/inputs/x", map[string]string{"value": "7"}, http.StatusNotFound},
		{"insert unknown", "POST", "/v1/nodes", map[string]string{"type": "Nope"}, http.StatusBadRequest},
		{"insert bad body", "POST", "/v1/nodes", "{", http.StatusBadRequest},
		{"scene", "GET", "/v1/pipeline", nil, http.StatusOK},
		{"click output", "POST", "/v1/pipeline/outputs/1/0", nil, http.StatusOK},
		{"click input", "POST", "/v1/pipeline/inputs/2/img", nil, http.StatusOK},
		{"click bad index", "POST", "/v1/pipeline/outputs/1/x", nil, http.StatusBadRequest},
		{"click missing port", "POST", "/v1/pipeline/outputs/1/4", nil, http.StatusBadRequest},
		{"pointer down", "POST", "/v1/pipeline/pointer", pointerRequest{Phase: "down", Node: "1", Pointer: 1}, http.StatusOK},
		{"pointer up", "POST", "/v1/pipeline/pointer", pointerRequest{Phase: "up", Pointer: 1}, http.StatusOK},
		{"pointer bad phase", "POST", "/v1/pipeline/pointer", pointerRequest{Phase: "hover"}, http.StatusBadRequest},
		{"viewport", "POST", "/v1/pipeline/viewport", `{"scroll":{"x":1,"y":2},"size":{"width":800,"height":600}}`, http.StatusNoContent},
		{"ports", "PUT", "/v1/pipeline/ports", `{"ports":[{"node":"1","output":true,"index":0,"x":250,"y":100,"width":10,"height":10}]}`, http.StatusNoContent},
		{"reset layout", "POST", "/v1/pipeline/layout/reset", nil, http.StatusOK},
		{"view", "PUT", "/v1/view", map[string]string{"view": "pipeline"}, http.StatusOK},
		{"bad view", "PUT", "/v1/view", map[string]string{"view": "grid"}, http.StatusBadRequest},
		{"toggle view", "PUT", "/v1/view", map[string]bool{"toggle": true}, http.StatusOK},
		{"command", "POST", "/v1/commands", editor.Command{Op: editor.OpRender}, http.StatusOK},
		{"unknown command", "POST", "/v1/commands", editor.Command{Op: "explode"}, http.StatusBadRequest},
		{"export without destinations", "POST", "/v1/export", nil, http.StatusBadRequest},
		{"download", "GET", "/v1/export", nil, http.StatusOK},
		{"surfaces", "GET", "/v1/surfaces", nil, http.StatusOK},
		{"metrics", "GET", "/metrics", nil, http.StatusOK},
		{"remove", "DELETE", "/v1/nodes/1", nil, http.StatusOK},
		{"remove missing", "DELETE", "/v1/nodes/1", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestInsertAndWorkflow(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, "POST", "/v1/nodes", map[string]string{"type": "B"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("insert = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["id"] != "1" {
		t.Errorf("id = %v", body["id"])
	}
	status := body["status"].(map[string]any)
	if status["message"] != "Node B (1) added." || status["severity"] != "success" {
		t.Errorf("status = %v", status)
	}

	rec = f.do(t, "GET", "/v1/workflow", nil)
	if got := rec.Body.String(); got != f.session.Text() || !strings.Contains(got, `"x": 5`) {
		t.Errorf("workflow = %s", got)
	}
}

func TestLoadWorkflow(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, "PUT", "/v1/workflow", map[string]string{"text": "{"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed = %d", rec.Code)
	}
	status := decodeJSON(t, rec)["status"].(map[string]any)
	if !strings.HasPrefix(status["message"].(string), "JSON could not be parsed") {
		t.Errorf("status = %v", status)
	}

	rec = f.do(t, "PUT", "/v1/workflow", map[string]string{"text": `{"3":{"class_type":"A","inputs":{}}}`})
	if rec.Code != http.StatusOK {
		t.Fatalf("load = %d: %s", rec.Code, rec.Body.String())
	}
	var sum editor.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Nodes != 1 || sum.Status.Message != "Workflow loaded from JSON." {
		t.Errorf("summary = %+v", sum)
	}
}

func TestSubmitStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		empty  bool
		err    error
		want   int
		prompt string
	}{
		{"empty workflow", true, nil, http.StatusUnprocessableEntity, ""},
		{"accepted", false, nil, http.StatusOK, "p-1"},
		{"engine failure", false, errors.New("connection refused"), http.StatusBadGateway, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestServer(t)
			f.engine.err = tt.err
			if !tt.empty {
				f.session.Insert("A")
			}
			rec := f.do(t, "POST", "/v1/submit", nil)
			if rec.Code != tt.want {
				t.Fatalf("submit = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.prompt != "" && decodeJSON(t, rec)["prompt_id"] != tt.prompt {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestSubmit_OutlivesClientDisconnect(t *testing.T) {
	engineDone := make(chan error, 1)
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		time.Sleep(50 * time.Millisecond)
		engineDone <- r.Context().Err()
		_, _ = io.WriteString(w, `{"prompt_id":"slow-1"}`)
	}))
	defer engine.Close()

	cat, err := catalog.Decode([]byte(testObjectInfo))
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session, err := editor.New(cat,
		editor.WithEngine(client.NewHTTPEngine(engine.URL, nil)),
		editor.WithScheduler(&pipeline.ManualScheduler{}),
		editor.WithLogger(logger),
	)
	if err != nil {
		t.Fatal(err)
	}
	session.Insert("A")
	srv := New(session, WithLogger(logger))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest("POST", "/v1/submit", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.Handler("").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("submit = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeJSON(t, rec)["prompt_id"]; got != "slow-1" {
		t.Errorf("prompt_id = %v, want slow-1", got)
	}
	select {
	case err := <-engineDone:
		if err != nil {
			t.Errorf("engine request context: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("engine never finished the request")
	}
}

func TestExport_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	f := newTestServer(t, WithDestinations(export.FileDestination{Path: path}))
	f.session.Insert("A")

	rec := f.do(t, "POST", "/v1/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d: %s", rec.Code, rec.Body.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != f.session.Text() {
		t.Errorf("file = %s", data)
	}
}

func TestDownloadHeaders(t *testing.T) {
	f := newTestServer(t)
	rec := f.do(t, "GET", "/v1/export", nil)
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "workflow.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "{}" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestMetricsExposition(t *testing.T) {
	f := newTestServer(t)
	f.do(t, "POST", "/v1/nodes", map[string]string{"type": "A"})
	f.do(t, "POST", "/v1/nodes", map[string]string{"type": "Nope"})
	f.do(t, "POST", "/v1/submit", nil)

	body := f.do(t, "GET", "/metrics", nil).Body.String()
	for _, want := range []string{
		`nodegraph_commands_total{op="insert",result="ok"} 1`,
		`nodegraph_commands_total{op="insert",result="error"} 1`,
		`nodegraph_submissions_total{result="ok"} 1`,
		`nodegraph_nodes 1`,
		`nodegraph_http_requests_total{route="POST /v1/nodes",status_code="201"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestClientRoundTrip(t *testing.T) {
	f := newTestServer(t)
	ts := httptest.NewServer(f.srv.Handler("secret"))
	defer ts.Close()
	c := client.NewHTTPEditor(ts.URL, "secret")
	ctx := context.Background()

	a, err := c.Insert(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Insert(ctx, "B")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ClickOutput(ctx, a.ID, 0); err != nil {
		t.Fatal(err)
	}
	click, err := c.ClickInput(ctx, b.ID, "img")
	if err != nil {
		t.Fatal(err)
	}
	if !click.Result.Connected || click.Status.Message != "Connected: 1:0 → 2.img" {
		t.Errorf("click = %+v", click)
	}
	field, err := c.SetField(ctx, b.ID, "x", "9.7")
	if err != nil {
		t.Fatal(err)
	}
	if string(field.Value) != "9" {
		t.Errorf("value = %s, want 9", field.Value)
	}
	form, err := c.Form(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if form.ClassType != "B" {
		t.Errorf("form = %+v", form)
	}

	_, err = c.Insert(ctx, "Nope")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("err = %v, want 400 APIError", err)
	}

	unauth := client.NewHTTPEditor(ts.URL, "wrong")
	if _, err := unauth.Status(ctx); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("err = %v, want 401", err)
	}
	if status, err := unauth.Health(ctx); err != nil || status != "ok" {
		t.Errorf("health = %q, %v", status, err)
	}
}
