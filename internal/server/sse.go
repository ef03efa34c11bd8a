package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// ringSize is the number of recent events kept for Last-Event-ID
	// replay.
	ringSize = 512

	// subscriberBuffer is the per-client queue; events beyond it are
	// dropped for that client.
	subscriberBuffer = 64

	keepaliveInterval = 15 * time.Second
)

// frame is one broadcast event.
type frame struct {
	ID    uint64
	Topic string
	Data  []byte
}

// hub fans session events out to stream and websocket clients and keeps
// the most recent ones for replay.
type hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	nextID uint64
	ring   []frame
	start  int // index of the oldest frame once the ring is full
}

type subscriber struct {
	patterns []string
	ch       chan frame
}

func newHub(size int) *hub {
	return &hub{
		subs: make(map[*subscriber]struct{}),
		ring: make([]frame, 0, size),
	}
}

func (h *hub) broadcast(topic string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	f := frame{ID: h.nextID, Topic: topic, Data: data}
	if len(h.ring) < cap(h.ring) {
		h.ring = append(h.ring, f)
	} else {
		h.ring[h.start] = f
		h.start = (h.start + 1) % len(h.ring)
	}
	for sub := range h.subs {
		if !sub.matches(topic) {
			continue
		}
		select {
		case sub.ch <- f:
		default:
		}
	}
}

// subscribe registers a client. With lastID > 0 the buffered frames after
// it that match are queued first, so replay and live delivery cannot
// interleave out of order.
func (h *hub) subscribe(patterns []string, lastID uint64) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := &subscriber{patterns: patterns, ch: make(chan frame, subscriberBuffer+len(h.ring))}
	if lastID > 0 {
		for _, f := range h.since(lastID) {
			if sub.matches(f.Topic) {
				sub.ch <- f
			}
		}
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// since returns buffered frames newer than lastID, oldest first. The
// caller holds h.mu.
func (h *hub) since(lastID uint64) []frame {
	var out []frame
	for i := range h.ring {
		f := h.ring[(h.start+i)%len(h.ring)]
		if f.ID > lastID {
			out = append(out, f)
		}
	}
	return out
}

func (s *subscriber) matches(topic string) bool {
	if len(s.patterns) == 0 {
		return true
	}
	for _, p := range s.patterns {
		if matchTopic(p, topic) {
			return true
		}
	}
	return false
}

// matchTopic matches a dot-separated topic against a NATS-style pattern:
// "*" matches one segment and a trailing ">" one or more.
func matchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// parseTopics reads the comma-separated "topics" query parameter.
func parseTopics(r *http.Request) []string {
	var topics []string
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// handleEventStream handles GET /v1/events/stream.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var lastID uint64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		lastID, _ = strconv.ParseUint(v, 10, 64)
	}
	sub := s.hub.subscribe(parseTopics(r), lastID)
	defer s.hub.unsubscribe(sub)
	surface, detach := s.attach(r, "sse")
	defer detach()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case f := <-sub.ch:
			writeFrame(w, f)
			flusher.Flush()
			s.surfaces.Frame(surface)
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, f frame) {
	fmt.Fprintf(w, "id:%d\n", f.ID)
	fmt.Fprintf(w, "event:%s\n", f.Topic)
	fmt.Fprintf(w, "data:%s\n\n", f.Data)
}
