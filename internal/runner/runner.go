// Package runner executes database work off the UI loop. Work is grouped in
// slots; each slot holds at most one job and a newer submission cancels the
// older one.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/0xataru/dfox/internal/logx"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"pkt.systems/pslog"
)

// Slot is a logical lane of work
type Slot int

const (
	SlotConnect Slot = iota
	SlotList
	SlotQuery

	// NumSlots is the number of slots
	NumSlots
)

func (s Slot) String() string {
	switch s {
	case SlotConnect:
		return "connect"
	case SlotList:
		return "list"
	case SlotQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Slots lists every slot
func Slots() []Slot {
	return []Slot{SlotConnect, SlotList, SlotQuery}
}

// Token identifies one submission. Seq is allocated by the caller and must
// grow with every submission; the zero token means nothing is pending.
type Token struct {
	Slot Slot
	Seq  uint64
}

// IsZero reports whether the token is unset
func (t Token) IsZero() bool {
	return t.Seq == 0
}

// Func is the unit of work
type Func func(ctx context.Context) (any, error)

// Outcome is delivered once per job that was not cancelled
type Outcome struct {
	Token   Token
	CallID  string
	Value   any
	Err     error
	Elapsed time.Duration
}

const (
	DefaultWorkers = 3
	DefaultBuffer  = 16
)

type job struct {
	token     Token
	id        string
	cancel    context.CancelFunc
	cancelled bool
}

// Runner runs jobs on a bounded set of workers
type Runner struct {
	mu       sync.Mutex
	sem      *semaphore.Weighted
	outcomes chan Outcome
	inflight map[Slot]*job
	wg       sync.WaitGroup
	ctx      context.Context
	stop     context.CancelFunc
	closed   bool
	logger   pslog.Logger

	workers int64
	buffer  int
}

// Option configures a Runner
type Option func(*Runner)

// WithWorkers bounds the number of jobs running at once
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = int64(n)
		}
	}
}

// WithBuffer sets the outcome channel capacity
func WithBuffer(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// WithLogger sets the runner logger
func WithLogger(log pslog.Logger) Option {
	return func(r *Runner) {
		r.logger = log
	}
}

// New creates a runner. Close must be called to release its workers.
func New(opts ...Option) *Runner {
	r := &Runner{
		workers:  DefaultWorkers,
		buffer:   DefaultBuffer,
		inflight: make(map[Slot]*job, NumSlots),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logx.Or(r.logger)
	r.sem = semaphore.NewWeighted(r.workers)
	r.outcomes = make(chan Outcome, r.buffer)
	r.ctx, r.stop = context.WithCancel(context.Background())
	return r
}

// Outcomes delivers results of finished jobs. It is closed by Close.
func (r *Runner) Outcomes() <-chan Outcome {
	return r.outcomes
}

// Submit starts fn under tok and returns immediately. A job already running
// in the same slot is cancelled and its outcome suppressed.
func (r *Runner) Submit(tok Token, fn Func) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return tok
	}
	if prev, ok := r.inflight[tok.Slot]; ok {
		r.cancelLocked(prev, "superseded")
	}

	ctx, cancel := context.WithCancel(r.ctx)
	j := &job{token: tok, id: uuid.NewString(), cancel: cancel}
	r.inflight[tok.Slot] = j

	r.logger.Debug("runner submit", "slot", tok.Slot.String(), "seq", tok.Seq, "call_id", j.id)

	r.wg.Add(1)
	go r.run(ctx, j, fn)
	return tok
}

// Cancel cancels the job running under tok, if it is still the slot's job
func (r *Runner) Cancel(tok Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if j, ok := r.inflight[tok.Slot]; ok && j.token == tok {
		r.cancelLocked(j, "cancelled")
	}
}

// Pending reports whether slot has a job in flight
func (r *Runner) Pending(slot Slot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inflight[slot]
	return ok
}

func (r *Runner) cancelLocked(j *job, reason string) {
	j.cancelled = true
	j.cancel()
	if r.inflight[j.token.Slot] == j {
		delete(r.inflight, j.token.Slot)
	}
	r.logger.Debug("runner cancel", "slot", j.token.Slot.String(), "seq", j.token.Seq, "call_id", j.id, "reason", reason)
}

func (r *Runner) run(ctx context.Context, j *job, fn Func) {
	defer r.wg.Done()
	defer j.cancel()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return
	}
	start := time.Now()
	value, err := fn(ctx)
	elapsed := time.Since(start)
	r.sem.Release(1)

	r.mu.Lock()
	if j.cancelled {
		r.mu.Unlock()
		r.logger.Debug("runner drop", "slot", j.token.Slot.String(), "seq", j.token.Seq, "call_id", j.id)
		return
	}
	delete(r.inflight, j.token.Slot)
	r.mu.Unlock()

	r.logger.Debug("runner done", "slot", j.token.Slot.String(), "seq", j.token.Seq, "call_id", j.id,
		"elapsed", elapsed, "failed", err != nil)

	out := Outcome{Token: j.token, CallID: j.id, Value: value, Err: err, Elapsed: elapsed}
	select {
	case r.outcomes <- out:
	case <-r.ctx.Done():
	}
}

// Close cancels every job, waits for the workers and closes Outcomes.
// Calling it twice is a no-op.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, j := range r.inflight {
		r.cancelLocked(j, "shutdown")
	}
	r.mu.Unlock()

	r.stop()
	r.wg.Wait()
	close(r.outcomes)
}
