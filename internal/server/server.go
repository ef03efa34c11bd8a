// Package server exposes one editing session over HTTP: a JSON API for
// every editor command, a server-sent event stream and a websocket for
// rendering surfaces, and Prometheus metrics.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/nodegraph/internal/editor"
	"github.com/alfredjeanlab/nodegraph/internal/export"
	"github.com/alfredjeanlab/nodegraph/internal/idgen"
	"github.com/alfredjeanlab/nodegraph/internal/presence"
)

// Server serves one session.
type Server struct {
	session *editor.Session
	logger  *slog.Logger
	dests   []export.Destination
	metrics *Metrics
	hub     *hub
	cancel  func()

	surfaces *presence.Tracker
	reaper   *presence.ReaperConfig
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithDestinations sets the destinations written by POST /v1/export.
func WithDestinations(dests ...export.Destination) Option {
	return func(s *Server) { s.dests = append(s.dests, dests...) }
}

// WithMetrics serves m on /metrics and records requests into it. The same
// Metrics is normally registered as the session's observer.
func WithMetrics(m *Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithReaper overrides the surface reaper settings.
func WithReaper(cfg *presence.ReaperConfig) Option { return func(s *Server) { s.reaper = cfg } }

// New returns a server over session. Every session event is fanned out to
// stream and websocket clients until Close is called.
func New(session *editor.Session, opts ...Option) *Server {
	s := &Server{session: session, hub: newHub(ringSize), surfaces: presence.New()}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.reaper == nil {
		s.reaper = &presence.ReaperConfig{}
	}
	if s.reaper.Logger == nil {
		s.reaper.Logger = s.logger
	}
	s.surfaces.StartReaper(s.reaper)
	s.cancel = session.Subscribe(s.broadcast)
	return s
}

// Close stops forwarding session events and the surface reaper.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.surfaces.Stop()
}

// attach registers a surface connection and returns the id it is tracked
// under: the client's ?surface= value, or a generated one.
func (s *Server) attach(r *http.Request, transport string) (string, func()) {
	id := r.URL.Query().Get("surface")
	if id == "" {
		tok, err := idgen.Token(10)
		if err != nil {
			tok = strconv.FormatInt(time.Now().UnixNano(), 36)
		}
		id = transport + "-" + tok
	}
	s.surfaces.Connect(id, transport, r.RemoteAddr)
	s.metrics.Surfaces(s.surfaces.Connected())
	s.logger.Debug("surface attached", "surface", id, "transport", transport)
	return id, func() {
		s.surfaces.Disconnect(id)
		s.metrics.Surfaces(s.surfaces.Connected())
		s.logger.Debug("surface detached", "surface", id)
	}
}

func (s *Server) broadcast(topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event for broadcast", "topic", topic, "err", err)
		return
	}
	s.hub.broadcast(topic, payload)
}

// Handler returns the HTTP handler with every route registered. When
// authToken is non-empty, requests other than GET /v1/health must carry
// Authorization: Bearer <token>.
func (s *Server) Handler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/catalog", s.handleCatalog)
	mux.HandleFunc("GET /v1/catalog/{type}", s.handleDefinition)
	mux.HandleFunc("GET /v1/workflow", s.handleGetWorkflow)
	mux.HandleFunc("PUT /v1/workflow", s.handleLoadWorkflow)
	mux.HandleFunc("GET /v1/export", s.handleDownload)
	mux.HandleFunc("POST /v1/export", s.handleExport)
	mux.HandleFunc("POST /v1/submit", s.handleSubmit)
	mux.HandleFunc("POST /v1/nodes", s.handleInsert)
	mux.HandleFunc("DELETE /v1/nodes/{id}", s.handleRemove)
	mux.HandleFunc("GET /v1/nodes/{id}/form", s.handleForm)
	mux.HandleFunc("PUT /v1/nodes/{id}/inputs/{field}", s.handleSetField)
	mux.HandleFunc("GET /v1/pipeline", s.handleScene)
	mux.HandleFunc("POST /v1/pipeline/outputs/{id}/{index}", s.handleClickOutput)
	mux.HandleFunc("POST /v1/pipeline/inputs/{id}/{field}", s.handleClickInput)
	mux.HandleFunc("POST /v1/pipeline/pointer", s.handlePointer)
	mux.HandleFunc("POST /v1/pipeline/viewport", s.handleViewport)
	mux.HandleFunc("PUT /v1/pipeline/ports", s.handlePorts)
	mux.HandleFunc("POST /v1/pipeline/layout/reset", s.handleResetLayout)
	mux.HandleFunc("PUT /v1/view", s.handleSetView)
	mux.HandleFunc("POST /v1/commands", s.handleCommand)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/ws", s.handleWebSocket)
	mux.HandleFunc("GET /v1/surfaces", s.handleSurfaces)
	mux.Handle("GET /metrics", s.metrics.Handler())

	var h http.Handler = mux
	h = AuthMiddleware(authToken, h)
	h = LoggingMiddleware(s.logger, s.metrics, h)
	h = RecoveryMiddleware(s.logger, h)
	return h
}
