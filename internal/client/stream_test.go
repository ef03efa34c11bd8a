package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPEditor_Events(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/events/stream" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("topics"); got != "nodegraph.node.*" {
			t.Errorf("topics = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "id: 1\nevent: nodegraph.node.inserted\ndata: {\"node_id\":\"1\"}\n\n")
		fmt.Fprint(w, "id: 2\nevent: nodegraph.node.removed\ndata: {\"node_id\":\"1\"}\n\n")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch, err := NewHTTPEditor(srv.URL, "tok").Events(ctx, "nodegraph.node.*")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	var topics []string
	for msg := range ch {
		topics = append(topics, msg.Topic)
		if string(msg.Data) != `{"node_id":"1"}` {
			t.Errorf("data = %s", msg.Data)
		}
	}
	if len(topics) != 2 || topics[0] != "nodegraph.node.inserted" || topics[1] != "nodegraph.node.removed" {
		t.Errorf("topics = %v", topics)
	}
}

func TestHTTPEditor_Events_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewHTTPEditor(srv.URL, "").Events(context.Background(), "")
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 APIError", err)
	}
}
