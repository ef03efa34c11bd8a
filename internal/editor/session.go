// Package editor is the editing session: it owns the graph store, the
// pipeline view and the textual view, runs every command under one lock and
// reports each outcome on a single status line and the event bus.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
	"github.com/alfredjeanlab/nodegraph/internal/events"
	"github.com/alfredjeanlab/nodegraph/internal/graph"
	"github.com/alfredjeanlab/nodegraph/internal/idgen"
	"github.com/alfredjeanlab/nodegraph/internal/pipeline"
)

// Observer receives command outcomes, typically for metrics.
type Observer interface {
	CommandDone(op string, err error)
	Submitted(err error)
	Nodes(n int)
	Recomputed()
}

// Listener receives every event the session emits, after the session lock
// is released and in the order the commands ran. It must not block or call
// back into the session.
type Listener func(topic string, event any)

type envelope struct {
	topic string
	event any
}

type config struct {
	logger      *slog.Logger
	engine      Engine
	publisher   events.Publisher
	scheduler   pipeline.Scheduler
	geometry    pipeline.Geometry
	observer    Observer
	clientID    string
	view        ViewMode
	catalogOpts []catalog.LoadOption
}

// Option configures a Session.
type Option func(*config)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithEngine sets the engine that receives submissions.
func WithEngine(e Engine) Option { return func(c *config) { c.engine = e } }

// WithPublisher sets the event bus publisher.
func WithPublisher(p events.Publisher) Option { return func(c *config) { c.publisher = p } }

// WithScheduler sets the frame scheduler for connection recomputes.
func WithScheduler(s pipeline.Scheduler) Option { return func(c *config) { c.scheduler = s } }

// WithGeometry replaces the default card geometry of the pipeline view.
func WithGeometry(g pipeline.Geometry) Option { return func(c *config) { c.geometry = g } }

// WithObserver registers a command observer.
func WithObserver(o Observer) Option { return func(c *config) { c.observer = o } }

// WithClientID fixes the client id sent with submissions.
func WithClientID(id string) Option { return func(c *config) { c.clientID = id } }

// WithInitialView selects the view mode the session starts in.
func WithInitialView(m ViewMode) Option { return func(c *config) { c.view = m } }

// WithCatalogOptions passes options to the catalog load in Open.
func WithCatalogOptions(opts ...catalog.LoadOption) Option {
	return func(c *config) { c.catalogOpts = append(c.catalogOpts, opts...) }
}

// Session is one editing session. All methods are safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	logger   *slog.Logger
	engine   Engine
	pub      events.Publisher
	observer Observer
	clientID string

	catalog *catalog.Catalog
	store   *graph.Store
	view    *pipeline.View
	mode    ViewMode
	text    string
	status  Status
	outbox  []envelope

	// deliverMu is taken before mu is released so batches go out in
	// command order.
	deliverMu sync.Mutex

	listenersMu  sync.RWMutex
	listeners    map[int]Listener
	nextListener int
}

// Open loads the catalog from src and starts a session over it. A catalog
// that cannot be loaded is not fatal: the session starts with an empty
// catalog and an error status.
func Open(ctx context.Context, src catalog.Source, opts ...Option) (*Session, error) {
	cfg := buildConfig(opts)
	cat, loadErr := catalog.Load(ctx, src, cfg.catalogOpts...)
	s, err := newSession(cat, cfg)
	if err != nil {
		return nil, err
	}
	s.update(func() {
		if loadErr != nil {
			s.logger.Error("loading node definitions", "err", loadErr)
			s.setStatus(SeverityError, msgCatalogUnavailable)
			return
		}
		s.logger.Info("node definitions loaded", "types", cat.Len())
		s.setStatus(SeverityInfo, msgReady)
	})
	return s, nil
}

// New starts a session over an already loaded catalog.
func New(cat *catalog.Catalog, opts ...Option) (*Session, error) {
	s, err := newSession(cat, buildConfig(opts))
	if err != nil {
		return nil, err
	}
	s.update(func() { s.setStatus(SeverityInfo, msgReady) })
	return s, nil
}

func buildConfig(opts []Option) config {
	cfg := config{view: ViewSimple}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.publisher == nil {
		cfg.publisher = &events.NoopPublisher{}
	}
	if cfg.scheduler == nil {
		cfg.scheduler = &pipeline.ManualScheduler{}
	}
	if cfg.observer == nil {
		cfg.observer = nopObserver{}
	}
	return cfg
}

func newSession(cat *catalog.Catalog, cfg config) (*Session, error) {
	if cat == nil {
		cat = catalog.Empty()
	}
	if cfg.clientID == "" {
		id, err := idgen.ClientID()
		if err != nil {
			return nil, fmt.Errorf("generating client id: %w", err)
		}
		cfg.clientID = id
	}
	if _, err := ParseViewMode(string(cfg.view)); err != nil {
		return nil, err
	}

	s := &Session{
		logger:    cfg.logger,
		engine:    cfg.engine,
		pub:       cfg.publisher,
		observer:  cfg.observer,
		clientID:  cfg.clientID,
		catalog:   cat,
		store:     graph.NewStore(cat),
		mode:      cfg.view,
		listeners: make(map[int]Listener),
	}
	viewOpts := []pipeline.Option{pipeline.WithRecomputeHook(s.onRecompute)}
	if cfg.geometry != nil {
		viewOpts = append(viewOpts, pipeline.WithGeometry(cfg.geometry))
	}
	s.view = pipeline.New(s.store, lockedScheduler{s: s, inner: cfg.scheduler}, viewOpts...)
	s.refreshText()
	if s.mode == ViewPipeline {
		s.view.Render()
	}
	return s, nil
}

// lockedScheduler runs frame callbacks under the session lock.
type lockedScheduler struct {
	s     *Session
	inner pipeline.Scheduler
}

func (l lockedScheduler) Schedule(fn func()) {
	l.inner.Schedule(func() { l.s.update(fn) })
}

type nopObserver struct{}

func (nopObserver) CommandDone(string, error) {}
func (nopObserver) Submitted(error)           {}
func (nopObserver) Nodes(int)                 {}
func (nopObserver) Recomputed()               {}

// update runs fn under the session lock and then delivers the events fn
// emitted.
func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	out := s.outbox
	s.outbox = nil
	s.deliverMu.Lock()
	s.mu.Unlock()
	defer s.deliverMu.Unlock()
	s.deliver(out)
}

// run is update for a named command whose outcome is observed.
func (s *Session) run(op string, fn func() error) error {
	var err error
	s.update(func() { err = fn() })
	s.observer.CommandDone(op, err)
	return err
}

func (s *Session) deliver(out []envelope) {
	if len(out) == 0 {
		return
	}
	ctx := context.Background()
	for _, e := range out {
		if err := s.pub.Publish(ctx, e.topic, e.event); err != nil {
			s.logger.Warn("failed to publish event", "topic", e.topic, "err", err)
		}
	}
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, e := range out {
		for _, l := range s.listeners {
			l(e.topic, e.event)
		}
	}
}

func (s *Session) emit(topic string, event any) {
	s.outbox = append(s.outbox, envelope{topic: topic, event: event})
}

func (s *Session) setStatus(sev Severity, msg string) {
	s.status = Status{Severity: sev, Message: msg}
	s.emit(events.TopicStatus, events.StatusChanged{Severity: string(sev), Message: msg})
}

func (s *Session) fail(err error, msg string) error {
	s.setStatus(SeverityError, msg)
	return err
}

// refreshText regenerates the textual view from the store.
func (s *Session) refreshText() {
	text, err := s.store.Serialize().Indent()
	if err != nil {
		s.logger.Error("serializing workflow", "err", err)
		return
	}
	s.text = text
}

// changed follows every graph mutation: the textual view is regenerated and
// the pipeline view re-rendered when it is showing.
func (s *Session) changed() {
	s.refreshText()
	if s.mode == ViewPipeline {
		s.view.Render()
	}
	s.observer.Nodes(s.store.Len())
	s.emit(events.TopicWorkflowChanged, events.WorkflowChanged{Text: s.text, Nodes: s.store.Len()})
}

func (s *Session) onRecompute(paths []pipeline.Path) {
	s.observer.Recomputed()
	s.emit(events.TopicPipelineConnections, events.ConnectionsRecomputed{Paths: paths})
}

// Subscribe registers fn for every future event. Call the returned function
// to unregister.
func (s *Session) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()
	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Summary is a snapshot of session state.
type Summary struct {
	Status   Status   `json:"status"`
	View     ViewMode `json:"view"`
	Nodes    int      `json:"nodes"`
	Catalog  int      `json:"catalog"`
	ClientID string   `json:"client_id"`
}

// Summary returns the current session state.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		Status:   s.status,
		View:     s.mode,
		Nodes:    s.store.Len(),
		Catalog:  s.catalog.Len(),
		ClientID: s.clientID,
	}
}

// Status returns the current status line.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ClientID returns the id sent with submissions.
func (s *Session) ClientID() string { return s.clientID }

// Catalog returns the read-only catalog.
func (s *Session) Catalog() *catalog.Catalog { return s.catalog }

// Len returns the number of nodes.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Len()
}
