package host

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dshills/previewctl/internal/logging"
)

// ErrLoopStopped is returned when posting to a stopped loop.
var ErrLoopStopped = errors.New("event loop stopped")

// Loop runs callbacks one at a time on a single goroutine. Command handlers
// and configuration change handlers are posted here, so they never run
// concurrently with each other.
type Loop struct {
	queue  chan func()
	done   chan struct{}
	stop   sync.Once
	logger *logging.Logger
}

// NewLoop creates a loop with a queue of size entries.
func NewLoop(size int, logger *logging.Logger) *Loop {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = logging.NullLogger
	}
	return &Loop{
		queue:  make(chan func(), size),
		done:   make(chan struct{}),
		logger: logger.WithComponent("loop"),
	}
}

// Post queues fn. It reports false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// After posts fn once d has elapsed. The returned function cancels the
// timer if it has not fired yet.
func (l *Loop) After(d time.Duration, fn func()) (cancel func()) {
	t := time.AfterFunc(d, func() { l.Post(fn) })
	return func() { t.Stop() }
}

// Call posts fn and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
}

// Run processes callbacks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			l.run(fn)
		}
	}
}

// Stop ends Run. Queued callbacks are dropped.
func (l *Loop) Stop() {
	l.stop.Do(func() { close(l.done) })
}

// Done is closed once the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("callback panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}
