package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrLoopStopped is returned by Call when the loop exits before the task ran.
var ErrLoopStopped = errors.New("bus: loop stopped")

// Loop is the single cooperative event loop every chart mutation runs on.
// Tasks run strictly in the order they were posted and each one runs to
// completion before the next starts. A task may post further tasks; they are
// queued behind everything already pending.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	running bool
}

// NewLoop returns an idle loop. Tasks queue up until Run or Drain is called.
func NewLoop() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Post queues fn. It never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Drain runs queued tasks on the calling goroutine until the queue is empty,
// including tasks posted while draining. It returns how many tasks ran.
// Drain must not be called while Run is active.
func (l *Loop) Drain() int {
	n := 0
	for {
		fn, ok := l.next()
		if !ok {
			return n
		}
		l.runTask(fn)
		n++
	}
}

// Run processes tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("bus: loop already running")
	}
	l.running = true
	l.mu.Unlock()
	defer close(l.stopped)

	slog.Debug("event loop started")
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			slog.Debug("event loop stopped", "pending", l.Pending())
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Call posts fn and waits for it to finish on the loop. It is how goroutines
// outside the loop (HTTP handlers, browser callbacks) touch chart state.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	l.Post(func() { done <- fn() })
	select {
	case err := <-done:
		return err
	case <-l.stopped:
		select {
		case err := <-done:
			return err
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event loop task panicked", "panic", r)
		}
	}()
	fn()
}
