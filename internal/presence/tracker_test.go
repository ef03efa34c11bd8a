package presence

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func quietConfig() *ReaperConfig {
	return &ReaperConfig{
		IdleThreshold: time.Minute,
		EvictAfter:    5 * time.Minute,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestConnect_BasicTracking(t *testing.T) {
	tr := New()
	tr.Connect("ws-1", "ws", "10.0.0.1:5555")
	tr.Command("ws-1")
	tr.Command("ws-1")
	tr.Frame("ws-1")

	roster := tr.Roster()
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(roster))
	}
	e := roster[0]
	if e.ID != "ws-1" || e.Transport != "ws" || e.RemoteAddr != "10.0.0.1:5555" {
		t.Errorf("entry = %+v", e)
	}
	if e.Commands != 2 || e.Frames != 1 {
		t.Errorf("commands=%d frames=%d, want 2 and 1", e.Commands, e.Frames)
	}
	if !e.Connected {
		t.Error("expected connected")
	}
	if tr.Connected() != 1 {
		t.Errorf("Connected() = %d", tr.Connected())
	}
}

func TestConnect_IgnoresEmptyID(t *testing.T) {
	tr := New()
	tr.Connect("", "sse", "")
	if len(tr.Roster()) != 0 {
		t.Error("empty id should not be tracked")
	}
}

func TestTouch_UnknownSurface(t *testing.T) {
	tr := New()
	tr.Command("ghost")
	tr.Frame("ghost")
	tr.Disconnect("ghost")
	if len(tr.Roster()) != 0 {
		t.Error("unknown surfaces should not be created by activity")
	}
}

func TestDisconnect_CountsConnections(t *testing.T) {
	tr := New()
	tr.Connect("s", "sse", "")
	tr.Connect("s", "ws", "")

	tr.Disconnect("s")
	if !tr.Roster()[0].Connected {
		t.Fatal("surface with one open connection should stay connected")
	}
	tr.Disconnect("s")
	e := tr.Roster()[0]
	if e.Connected || e.DisconnectedAt.IsZero() {
		t.Errorf("entry = %+v, want disconnected", e)
	}
	tr.Disconnect("s")
	if tr.Connected() != 0 {
		t.Errorf("Connected() = %d", tr.Connected())
	}
}

func TestRoster_SortedByMostRecent(t *testing.T) {
	tr := New()
	tr.Connect("a", "sse", "")
	tr.Connect("b", "sse", "")
	tr.mu.Lock()
	tr.surfaces["a"].lastSeen = time.Now().Add(-time.Hour)
	tr.mu.Unlock()

	roster := tr.Roster()
	if roster[0].ID != "b" || roster[1].ID != "a" {
		t.Errorf("order = %s, %s", roster[0].ID, roster[1].ID)
	}
}

func TestSweep_FlagsIdleSurfaces(t *testing.T) {
	tr := New()
	tr.Connect("quiet", "ws", "")
	tr.Connect("busy", "ws", "")
	tr.mu.Lock()
	tr.surfaces["quiet"].lastSeen = time.Now().Add(-2 * time.Minute)
	tr.mu.Unlock()

	var idle []string
	cfg := quietConfig()
	cfg.OnIdle = func(id string) { idle = append(idle, id) }
	tr.sweep(cfg, time.Now())
	tr.sweep(cfg, time.Now())

	if len(idle) != 1 || idle[0] != "quiet" {
		t.Errorf("OnIdle calls = %v, want [quiet] once", idle)
	}

	tr.Command("quiet")
	for _, e := range tr.Roster() {
		if e.Idle {
			t.Errorf("%s still idle after activity", e.ID)
		}
	}
}

func TestSweep_EvictsDisconnected(t *testing.T) {
	tr := New()
	tr.Connect("gone", "sse", "")
	tr.Connect("recent", "sse", "")
	tr.Disconnect("gone")
	tr.Disconnect("recent")
	tr.mu.Lock()
	tr.surfaces["gone"].disconnectedAt = time.Now().Add(-10 * time.Minute)
	tr.mu.Unlock()

	tr.sweep(quietConfig(), time.Now())

	roster := tr.Roster()
	if len(roster) != 1 || roster[0].ID != "recent" {
		t.Errorf("roster = %+v, want only recent", roster)
	}
}

func TestReconnect_KeepsHistory(t *testing.T) {
	tr := New()
	tr.Connect("s", "ws", "")
	tr.Command("s")
	tr.Disconnect("s")
	tr.Connect("s", "ws", "")

	e := tr.Roster()[0]
	if !e.Connected || e.Commands != 1 || !e.DisconnectedAt.IsZero() {
		t.Errorf("entry = %+v", e)
	}
}

func TestStartReaper_StopsCleanly(t *testing.T) {
	tr := New()
	cfg := quietConfig()
	cfg.SweepInterval = 10 * time.Millisecond
	tr.StartReaper(cfg)
	time.Sleep(30 * time.Millisecond)
	tr.Stop()
	tr.Stop()
}
