package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/nodegraph/internal/editor"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Access is gated by AuthMiddleware, not by origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsMessage is one server-to-client frame: a session event, the result of a
// command, or a command error.
type wsMessage struct {
	Type   string          `json:"type"`
	Ref    string          `json:"ref,omitempty"`
	ID     uint64          `json:"id,omitempty"`
	Topic  string          `json:"topic,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Result *editor.Result  `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// wsCommand is one client-to-server frame. Ref is echoed in the reply.
type wsCommand struct {
	Ref string `json:"ref,omitempty"`
	editor.Command
}

// handleWebSocket handles GET /v1/ws: session events flow out, commands
// flow in.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	var lastID uint64
	if v := r.URL.Query().Get("last_event_id"); v != "" {
		lastID, _ = strconv.ParseUint(v, 10, 64)
	}
	sub := s.hub.subscribe(parseTopics(r), lastID)
	defer s.hub.unsubscribe(sub)
	surface, detach := s.attach(r, "ws")
	defer detach()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	replies := make(chan wsMessage, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readCommands(ctx, conn, surface, replies)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		var msg wsMessage
		select {
		case <-done:
			return
		case f := <-sub.ch:
			msg = wsMessage{Type: "event", ID: f.ID, Topic: f.Topic, Data: f.Data}
			s.surfaces.Frame(surface)
		case msg = <-replies:
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("websocket write failed", "err", err)
			return
		}
	}
}

func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn, surface string, replies chan<- wsMessage) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.surfaces.Command(surface)
		var cmd wsCommand
		reply := wsMessage{Type: "result"}
		if err := json.Unmarshal(data, &cmd); err != nil {
			reply = wsMessage{Type: "error", Error: "invalid command: " + err.Error()}
		} else {
			reply.Ref = cmd.Ref
			res, err := s.session.Dispatch(ctx, cmd.Command)
			reply.Result = &res
			if err != nil {
				reply.Type, reply.Error = "error", err.Error()
			}
		}
		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}
