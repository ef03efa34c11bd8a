package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/nodegraph/internal/editor"
)

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocket_CommandsAndEvents(t *testing.T) {
	f := newTestServer(t)
	ts := httptest.NewServer(f.srv.Handler(""))
	defer ts.Close()
	conn := dialWS(t, ts, "?topics=nodegraph.node.*")

	if err := conn.WriteJSON(wsCommand{Ref: "c1", Command: editor.Command{Op: editor.OpInsert, Type: "A"}}); err != nil {
		t.Fatal(err)
	}

	var sawEvent, sawResult bool
	for !(sawEvent && sawResult) {
		msg := readWS(t, conn)
		switch msg.Type {
		case "event":
			if msg.Topic != "nodegraph.node.inserted" || !strings.Contains(string(msg.Data), `"node_id":"1"`) {
				t.Errorf("event = %+v", msg)
			}
			sawEvent = true
		case "result":
			if msg.Ref != "c1" || msg.Result == nil || msg.Result.Status.Message != "Node A (1) added." {
				t.Errorf("result = %+v", msg)
			}
			sawResult = true
		default:
			t.Fatalf("unexpected message %+v", msg)
		}
	}
}

func TestWebSocket_CommandError(t *testing.T) {
	f := newTestServer(t)
	ts := httptest.NewServer(f.srv.Handler(""))
	defer ts.Close()
	conn := dialWS(t, ts, "?topics=nodegraph.none")

	if err := conn.WriteJSON(wsCommand{Ref: "c2", Command: editor.Command{Op: editor.OpInsert, Type: "Nope"}}); err != nil {
		t.Fatal(err)
	}
	msg := readWS(t, conn)
	if msg.Type != "error" || msg.Ref != "c2" || !strings.Contains(msg.Error, "unknown node type") {
		t.Errorf("msg = %+v", msg)
	}
	if msg.Result == nil || msg.Result.Status.Message != "Unknown node type: Nope" {
		t.Errorf("result = %+v", msg.Result)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, conn); msg.Type != "error" || !strings.HasPrefix(msg.Error, "invalid command") {
		t.Errorf("msg = %+v", msg)
	}
}

func TestWebSocket_RequiresToken(t *testing.T) {
	f := newTestServer(t)
	ts := httptest.NewServer(f.srv.Handler("secret"))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil || resp == nil || resp.StatusCode != 401 {
		t.Fatalf("dial without token: err=%v resp=%v", err, resp)
	}
	header := map[string][]string{"Authorization": {"Bearer secret"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	conn.Close()
}
