package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs callbacks at the next frame boundary.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func())

// Schedule implements Scheduler.
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

// ManualScheduler queues callbacks until Flush is called.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []func()
}

// Schedule implements Scheduler.
func (m *ManualScheduler) Schedule(fn func()) {
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
}

// Pending returns the number of queued callbacks.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Flush runs the queued callbacks and returns how many ran. Callbacks
// scheduled while flushing wait for the next Flush.
func (m *ManualScheduler) Flush() int {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// FrameLoop runs scheduled callbacks on a fixed tick, one batch per frame.
type FrameLoop struct {
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending []func()
}

// NewFrameLoop creates a loop that ticks every interval.
func NewFrameLoop(interval time.Duration, logger *slog.Logger) *FrameLoop {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameLoop{interval: interval, logger: logger}
}

// Schedule implements Scheduler.
func (l *FrameLoop) Schedule(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
}

// Run ticks until ctx is done.
func (l *FrameLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	l.logger.Debug("frame loop started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.frame()
		}
	}
}

func (l *FrameLoop) frame() {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, fn := range batch {
		l.run(fn)
	}
}

func (l *FrameLoop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("frame callback panicked", "panic", r)
		}
	}()
	fn()
}
