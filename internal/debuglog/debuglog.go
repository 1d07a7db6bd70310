// Package debuglog records connect, query and error events. Every event is
// written to a pslog logger and the most recent ones are kept in memory for
// the debug overlay.
package debuglog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/0xataru/dfox/internal/logx"
	"pkt.systems/pslog"
)

// Kind identifies the event type
type Kind string

const (
	KindConnect Kind = "connect"
	KindQuery   Kind = "query"
	KindError   Kind = "error"
)

// DefaultCapacity is the number of events kept for the overlay
const DefaultCapacity = 200

// Event is one debug record
type Event struct {
	Kind     Kind
	Time     time.Time
	Duration time.Duration
	Engine   string
	Target   string
	Message  string
}

// Sink receives debug events
type Sink interface {
	Record(ev Event)
}

// Log is a Sink backed by a logger and a ring of recent events
type Log struct {
	mu     sync.Mutex
	ring   []Event
	next   int
	full   bool
	logger pslog.Logger
	closer io.Closer
}

// New returns a Log writing to logger and keeping capacity events
func New(logger pslog.Logger, capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		ring:   make([]Event, capacity),
		logger: logx.Or(logger),
	}
}

// Open appends events to the file at path
func Open(path string, verbose bool, capacity int) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	l := New(logx.New(f, verbose), capacity)
	l.closer = f
	return l, nil
}

// Logger returns the underlying logger, for components that log directly
func (l *Log) Logger() pslog.Logger {
	return l.logger
}

// Record stores ev and writes it to the log
func (l *Log) Record(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	l.mu.Lock()
	l.ring[l.next] = ev
	l.next = (l.next + 1) % len(l.ring)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()

	kv := []any{"kind", string(ev.Kind)}
	if ev.Engine != "" {
		kv = append(kv, "engine", ev.Engine)
	}
	if ev.Target != "" {
		kv = append(kv, "target", ev.Target)
	}
	if ev.Duration > 0 {
		kv = append(kv, "duration", ev.Duration)
	}
	if ev.Kind == KindError {
		l.logger.Error(ev.Message, kv...)
		return
	}
	l.logger.Info(ev.Message, kv...)
}

// Events returns the retained events, oldest first
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		out := make([]Event, l.next)
		copy(out, l.ring[:l.next])
		return out
	}
	out := make([]Event, 0, len(l.ring))
	out = append(out, l.ring[l.next:]...)
	out = append(out, l.ring[:l.next]...)
	return out
}

// Close closes the log file, if any
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Discard is a Sink that drops everything
type Discard struct{}

func (Discard) Record(Event) {}
