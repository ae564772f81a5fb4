package eventloop

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/maxkimambo/geotask/internal/logger"
)

// Metrics tracks what went through the loop
type Metrics struct {
	posted   int64
	executed int64
	dropped  int64
	panics   int64
}

// GetPosted returns the number of accepted posts
func (m *Metrics) GetPosted() int64 {
	return atomic.LoadInt64(&m.posted)
}

// GetExecuted returns the number of handlers that ran
func (m *Metrics) GetExecuted() int64 {
	return atomic.LoadInt64(&m.executed)
}

// GetDropped returns the number of posts refused after Stop
func (m *Metrics) GetDropped() int64 {
	return atomic.LoadInt64(&m.dropped)
}

// GetPanics returns the number of recovered handler panics
func (m *Metrics) GetPanics() int64 {
	return atomic.LoadInt64(&m.panics)
}

// Loop runs posted functions one at a time on a single goroutine.
// It is the observer thread: hooks, progress observers and the
// cancellation coordinator only ever run here.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped bool
	started atomic.Bool
	stopOne sync.Once
	metrics *Metrics
}

// New creates a stopped loop; call Run to start draining.
func New() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		metrics: &Metrics{},
	}
}

// Metrics returns the loop counters
func (l *Loop) Metrics() *Metrics {
	return l.metrics
}

// Post schedules fn. It never waits for fn and returns false once the
// loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		atomic.AddInt64(&l.metrics.dropped, 1)
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	atomic.AddInt64(&l.metrics.posted, 1)

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do posts fn and blocks until it has run. It must not be called from
// the loop goroutine.
func (l *Loop) Do(fn func()) bool {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-l.doneCh:
		// the loop may have drained fn right before exiting
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

// Run drains the queue until ctx is done or Stop is called. Pending
// functions are executed before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return fmt.Errorf("event loop already running")
	}
	defer close(l.doneCh)

	logger.Op.Debug("Event loop started")
	for {
		l.drain()
		select {
		case <-ctx.Done():
			l.Stop()
			l.drain()
			logger.Op.Debug("Event loop stopped by context")
			return ctx.Err()
		case <-l.stopCh:
			l.drain()
			logger.Op.Debug("Event loop stopped")
			return nil
		case <-l.wake:
		}
	}
}

// Stop refuses further posts and makes Run return after the queue is drained.
func (l *Loop) Stop() {
	l.stopOne.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		close(l.stopCh)
	})
}

// Done is closed when Run has returned
func (l *Loop) Done() <-chan struct{} {
	return l.doneCh
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.execute(fn)
		}
	}
}

func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&l.metrics.panics, 1)
			logger.Op.WithFields(map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("Recovered panic in event loop handler")
		}
	}()
	fn()
	atomic.AddInt64(&l.metrics.executed, 1)
}
