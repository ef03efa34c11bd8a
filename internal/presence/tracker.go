// Package presence tracks the rendering surfaces attached to a session.
//
// A surface is one event-stream or websocket connection. The server
// records it on connect, touches it on every command or delivered frame,
// and marks it disconnected when the connection ends. A background reaper
// flags connected surfaces that have gone quiet and evicts disconnected
// ones after a grace period, so a surface that reconnects with the same id
// keeps its history.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Entry is a snapshot of one surface.
type Entry struct {
	ID             string    `json:"id"`
	Transport      string    `json:"transport"` // "sse" or "ws"
	RemoteAddr     string    `json:"remote_addr,omitempty"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	IdleSecs       float64   `json:"idle_secs"`
	Commands       int64     `json:"commands"`
	Frames         int64     `json:"frames"`
	Connected      bool      `json:"connected"`
	Idle           bool      `json:"idle,omitempty"`
	DisconnectedAt time.Time `json:"disconnected_at,omitzero"`
}

// ReaperConfig configures the background sweep.
type ReaperConfig struct {
	// IdleThreshold is how long a connected surface may go without activity
	// before it is flagged idle. Default: 2 minutes.
	IdleThreshold time.Duration

	// EvictAfter is how long a disconnected surface stays in the roster.
	// Default: 10 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans. Default: 30 seconds.
	SweepInterval time.Duration

	// OnIdle is called, outside the lock, for each surface newly flagged idle.
	OnIdle func(id string)

	Logger *slog.Logger
}

// Tracker is an in-memory surface roster.
type Tracker struct {
	mu       sync.RWMutex
	surfaces map[string]*surfaceState

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type surfaceState struct {
	transport      string
	remoteAddr     string
	firstSeen      time.Time
	lastSeen       time.Time
	commands       int64
	frames         int64
	conns          int
	idle           bool
	disconnectedAt time.Time
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{surfaces: make(map[string]*surfaceState)}
}

// Connect records a new connection for id. A surface may hold several
// connections at once; it counts as connected while any is open.
func (t *Tracker) Connect(id, transport, remoteAddr string) {
	if id == "" {
		return
	}
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.surfaces[id]
	if !ok {
		s = &surfaceState{firstSeen: now}
		t.surfaces[id] = s
	}
	s.transport = transport
	s.remoteAddr = remoteAddr
	s.lastSeen = now
	s.conns++
	s.idle = false
	s.disconnectedAt = time.Time{}
}

// Command records one command received from id.
func (t *Tracker) Command(id string) {
	t.touch(id, func(s *surfaceState) { s.commands++ })
}

// Frame records one frame delivered to id.
func (t *Tracker) Frame(id string) {
	t.touch(id, func(s *surfaceState) { s.frames++ })
}

func (t *Tracker) touch(id string, fn func(*surfaceState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.surfaces[id]
	if !ok {
		return
	}
	s.lastSeen = time.Now()
	s.idle = false
	fn(s)
}

// Disconnect closes one connection of id.
func (t *Tracker) Disconnect(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.surfaces[id]
	if !ok || s.conns == 0 {
		return
	}
	s.conns--
	if s.conns == 0 {
		s.disconnectedAt = time.Now()
	}
}

// Connected returns the number of surfaces with an open connection.
func (t *Tracker) Connected() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, s := range t.surfaces {
		if s.conns > 0 {
			n++
		}
	}
	return n
}

// Roster returns every tracked surface, most recently active first.
func (t *Tracker) Roster() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	entries := make([]Entry, 0, len(t.surfaces))
	for id, s := range t.surfaces {
		entries = append(entries, Entry{
			ID:             id,
			Transport:      s.transport,
			RemoteAddr:     s.remoteAddr,
			FirstSeen:      s.firstSeen,
			LastSeen:       s.lastSeen,
			IdleSecs:       now.Sub(s.lastSeen).Seconds(),
			Commands:       s.commands,
			Frames:         s.frames,
			Connected:      s.conns > 0,
			Idle:           s.idle,
			DisconnectedAt: s.disconnectedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// StartReaper launches the background sweep. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 2 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 10 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})
	go t.reapLoop(cfg)
}

// Stop shuts down the reaper.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg, time.Now())
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig, now time.Time) {
	var newlyIdle []string

	t.mu.Lock()
	for id, s := range t.surfaces {
		if s.conns == 0 {
			if now.Sub(s.disconnectedAt) > cfg.EvictAfter {
				delete(t.surfaces, id)
			}
			continue
		}
		if !s.idle && now.Sub(s.lastSeen) > cfg.IdleThreshold {
			s.idle = true
			newlyIdle = append(newlyIdle, id)
		}
	}
	t.mu.Unlock()

	for _, id := range newlyIdle {
		cfg.Logger.Info("surface idle", "surface", id, "threshold", cfg.IdleThreshold)
		if cfg.OnIdle != nil {
			cfg.OnIdle(id)
		}
	}
}
