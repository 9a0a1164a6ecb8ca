package transcript

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/internal/metrics"
)

// DefaultWriteTimeout bounds a single persistence call made by a Log.
const DefaultWriteTimeout = 5 * time.Second

// Notifier receives every event appended through a Log. Publish must not block.
type Notifier interface {
	Publish(sessionID string, ev Event)
}

// Options configure a Log. Zero values are fine.
type Options struct {
	WriteTimeout time.Duration
	Notifier     Notifier
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

// Log is the best-effort front of a Store. Writes return immediately and are
// applied in order on a per-session lane, so a slow session never delays
// another. Reads wait for that session's pending writes first. Store errors
// are logged and counted but never returned.
type Log struct {
	store    Store
	logger   *zap.Logger
	notifier Notifier
	metrics  *metrics.Metrics
	timeout  time.Duration
	now      func() time.Time

	mu    sync.Mutex
	lanes map[string]*lane
	last  map[string]time.Time
}

type lane struct {
	queue []func(ctx context.Context)
}

// NewLog creates a Log on store.
func NewLog(store Store, opts Options, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Log{
		store:    store,
		logger:   logger,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		timeout:  opts.WriteTimeout,
		now:      opts.Now,
		lanes:    make(map[string]*lane),
		last:     make(map[string]time.Time),
	}
}

// SetNotifier replaces the notifier. Call before the Log is shared.
func (l *Log) SetNotifier(n Notifier) {
	l.mu.Lock()
	l.notifier = n
	l.mu.Unlock()
}

// Start creates the session if it does not exist. Calling it again is a no-op.
func (l *Log) Start(id string) {
	at := l.stamp(id)
	l.enqueue(id, func(ctx context.Context) {
		l.check("start", id, l.store.Start(ctx, id, at))
	})
}

// Append stamps ev and queues it, starting the session if needed. The stamped
// event is returned right away. Timestamps never go backwards within a session.
func (l *Log) Append(id string, ev Event) Event {
	ev.TS = l.stamp(id)
	if !ev.Type.Valid() {
		l.logger.Warn("dropping transcript event with unknown type",
			zap.String("session_id", id), zap.String("type", string(ev.Type)))
		return ev
	}
	l.enqueue(id, func(ctx context.Context) {
		l.check("append", id, l.store.Append(ctx, id, ev))
	})
	l.metrics.EventAppended(string(ev.Type))

	l.mu.Lock()
	n := l.notifier
	l.mu.Unlock()
	if n != nil {
		n.Publish(id, ev)
	}
	return ev
}

// End marks the session ended. Missing or already ended sessions are left alone.
func (l *Log) End(id string) {
	at := l.stamp(id)
	l.enqueue(id, func(ctx context.Context) {
		l.check("end", id, l.store.End(ctx, id, at))
	})
}

// Get returns the session after its queued writes have been applied.
func (l *Log) Get(ctx context.Context, id string) (*Session, bool) {
	l.drain(ctx, id)
	s, err := l.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		l.check("get", id, err)
		return nil, false
	}
	return s, true
}

// List returns session summaries, most recently started first.
func (l *Log) List(ctx context.Context) []Summary {
	l.drainAll(ctx)
	list, err := l.store.List(ctx)
	if err != nil {
		l.check("list", "", err)
		return []Summary{}
	}
	return list
}

// Delete removes the session and reports whether it existed.
func (l *Log) Delete(ctx context.Context, id string) bool {
	l.drain(ctx, id)
	ok, err := l.store.Delete(ctx, id)
	if err != nil {
		l.check("delete", id, err)
		return false
	}
	l.forget(id)
	return ok
}

// Prune removes the oldest sessions until at most max remain and returns how
// many were removed. Writes queued before the call are applied first, so a
// pending append never recreates a pruned session.
func (l *Log) Prune(ctx context.Context, max int) int {
	l.drainAll(ctx)
	ids, err := l.store.Prune(ctx, max)
	if err != nil {
		l.check("prune", "", err)
	}
	for _, id := range ids {
		l.forget(id)
	}
	if len(ids) > 0 {
		l.logger.Info("pruned transcript sessions", zap.Int("deleted", len(ids)), zap.Int("max", max))
	}
	l.metrics.Pruned(len(ids))
	return len(ids)
}

// Flush waits until every queued write has been applied or ctx is done.
func (l *Log) Flush(ctx context.Context) {
	l.drainAll(ctx)
}

func (l *Log) stamp(id string) time.Time {
	now := l.now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.last[id]; ok && now.Before(last) {
		now = last
	}
	l.last[id] = now
	return now
}

func (l *Log) forget(id string) {
	l.mu.Lock()
	delete(l.last, id)
	l.mu.Unlock()
}

func (l *Log) check(op, id string, err error) {
	if err == nil {
		return
	}
	l.metrics.StoreFailed(op)
	l.logger.Warn("transcript store failure", zap.String("op", op), zap.String("session_id", id), zap.Error(err))
}

func (l *Log) enqueue(id string, op func(ctx context.Context)) {
	l.mu.Lock()
	ln, ok := l.lanes[id]
	if ok {
		ln.queue = append(ln.queue, op)
		l.mu.Unlock()
		return
	}
	ln = &lane{queue: []func(context.Context){op}}
	l.lanes[id] = ln
	l.mu.Unlock()
	go l.run(id, ln)
}

func (l *Log) run(id string, ln *lane) {
	for {
		l.mu.Lock()
		if len(ln.queue) == 0 {
			delete(l.lanes, id)
			l.mu.Unlock()
			return
		}
		op := ln.queue[0]
		ln.queue[0] = nil
		ln.queue = ln.queue[1:]
		l.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		op(ctx)
		cancel()
	}
}

func (l *Log) drain(ctx context.Context, id string) {
	l.mu.Lock()
	_, busy := l.lanes[id]
	l.mu.Unlock()
	if !busy {
		return
	}
	done := make(chan struct{})
	l.enqueue(id, func(context.Context) { close(done) })
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (l *Log) drainAll(ctx context.Context) {
	l.mu.Lock()
	ids := make([]string, 0, len(l.lanes))
	for id := range l.lanes {
		ids = append(ids, id)
	}
	l.mu.Unlock()
	for _, id := range ids {
		l.drain(ctx, id)
	}
}
