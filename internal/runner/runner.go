package runner

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/logger"
	"github.com/maxkimambo/geotask/internal/task"
)

// Poster marshals a function onto the observer goroutine.
// *eventloop.Loop satisfies it.
type Poster interface {
	Post(fn func()) bool
}

// doner is implemented by posters that can report they have stopped
type doner interface {
	Done() <-chan struct{}
}

// Hooks are lifecycle callbacks. They are always invoked on the
// observer goroutine; nil fields are skipped.
type Hooks struct {
	OnRunning   func(t *task.Task)
	OnSucceeded func(t *task.Task)
	OnCancelled func(t *task.Task)
	OnFailed    func(t *task.Task, err error)
}

// Metrics tracks submissions seen by a runner
type Metrics struct {
	accepted  int64
	rejected  int64
	completed int64
}

// GetAccepted returns the number of accepted submissions
func (m *Metrics) GetAccepted() int64 {
	return atomic.LoadInt64(&m.accepted)
}

// GetRejected returns the number of refused submissions
func (m *Metrics) GetRejected() int64 {
	return atomic.LoadInt64(&m.rejected)
}

// GetCompleted returns the number of tasks that reached a terminal state
func (m *Metrics) GetCompleted() int64 {
	return atomic.LoadInt64(&m.completed)
}

type subscriber struct {
	id    uint64
	hooks Hooks
}

// Runner executes at most one task at a time on a worker goroutine and
// reports lifecycle transitions on the observer goroutine. Submissions
// made while a task runs are rejected, never queued.
type Runner struct {
	loop Poster

	mu      sync.Mutex
	current *task.Task
	subs    []subscriber
	nextID  uint64

	wg      sync.WaitGroup
	metrics *Metrics
}

// New creates a runner delivering hooks through loop
func New(loop Poster) *Runner {
	return &Runner{
		loop:    loop,
		metrics: &Metrics{},
	}
}

// Metrics returns the runner counters
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Subscribe registers lifecycle hooks. The returned func removes them.
func (r *Runner) Subscribe(h Hooks) (unsubscribe func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscriber{id: id, hooks: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, s := range r.subs {
				if s.id == id {
					r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Current returns the running task, or nil when the slot is free
func (r *Runner) Current() *task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Busy reports whether a task occupies the worker slot
func (r *Runner) Busy() bool {
	return r.Current() != nil
}

// Wait blocks until no worker is executing
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Submit starts t if the worker slot is free. It returns immediately;
// the body runs on the worker after OnRunning hooks were delivered.
func (r *Runner) Submit(t *task.Task) error {
	r.mu.Lock()

	if r.current != nil {
		running := r.current
		r.mu.Unlock()
		atomic.AddInt64(&r.metrics.rejected, 1)
		logger.Op.WithFields(map[string]interface{}{
			"task":    t.Name(),
			"running": running.Name(),
		}).Info("Submission rejected: worker busy")
		return taskerrors.NewSubmissionRejectedError(t.Name(), running.Name())
	}

	if !t.MarkRunning() {
		r.mu.Unlock()
		return taskerrors.NewTaskAlreadyStartedError(t.Name(), t.State().String())
	}

	r.current = t
	r.wg.Add(1)

	ready := make(chan struct{})
	subs := r.snapshot()
	posted := r.loop.Post(func() {
		defer close(ready)
		for _, s := range subs {
			if s.hooks.OnRunning != nil {
				callHook("running", t, func() { s.hooks.OnRunning(t) })
			}
		}
	})
	if !posted {
		r.current = nil
		t.RevertToIdle()
		r.mu.Unlock()
		r.wg.Done()
		logger.Op.WithFields(map[string]interface{}{
			"task": t.Name(),
		}).Warn("Submission rejected: observer loop stopped")
		return taskerrors.NewRunnerStoppedError(t.Name())
	}
	r.mu.Unlock()

	atomic.AddInt64(&r.metrics.accepted, 1)
	logger.Op.WithFields(map[string]interface{}{
		"task": t.Name(),
		"id":   t.ID(),
	}).Info("Task submitted")

	go r.work(t, ready)
	return nil
}

func (r *Runner) work(t *task.Task, ready <-chan struct{}) {
	defer r.wg.Done()

	var stopped <-chan struct{}
	if d, ok := r.loop.(doner); ok {
		stopped = d.Done()
	}
	select {
	case <-ready:
	case <-stopped:
		logger.Op.WithFields(map[string]interface{}{
			"task": t.Name(),
		}).Warn("Observer loop stopped before task start")
	}

	state := r.execute(t)

	r.mu.Lock()
	if r.current == t {
		r.current = nil
	}
	subs := r.snapshot()
	r.mu.Unlock()
	atomic.AddInt64(&r.metrics.completed, 1)

	if !r.loop.Post(func() { deliverTerminal(subs, t, state) }) {
		logger.Op.WithFields(map[string]interface{}{
			"task":  t.Name(),
			"state": state.String(),
		}).Warn("Terminal hooks dropped: observer loop stopped")
	}
}

// execute runs the task and keeps any escaping panic inside the worker
func (r *Runner) execute(t *task.Task) (state task.State) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Op.WithFields(map[string]interface{}{
				"task":  t.Name(),
				"panic": fmt.Sprint(rec),
				"stack": string(debug.Stack()),
			}).Error("Worker recovered from panic")
			state = t.State()
		}
	}()
	return t.Execute()
}

func (r *Runner) snapshot() []subscriber {
	return append([]subscriber(nil), r.subs...)
}

func deliverTerminal(subs []subscriber, t *task.Task, state task.State) {
	for _, s := range subs {
		h := s.hooks
		switch state {
		case task.StateSucceeded:
			if h.OnSucceeded != nil {
				callHook("succeeded", t, func() { h.OnSucceeded(t) })
			}
		case task.StateCancelled:
			if h.OnCancelled != nil {
				callHook("cancelled", t, func() { h.OnCancelled(t) })
			}
		case task.StateFailed:
			if h.OnFailed != nil {
				callHook("failed", t, func() { h.OnFailed(t, t.Err()) })
			}
		}
	}
}

// callHook isolates observers from each other
func callHook(name string, t *task.Task, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Op.WithFields(map[string]interface{}{
				"task":  t.Name(),
				"hook":  name,
				"panic": fmt.Sprint(rec),
			}).Error("Lifecycle hook panicked")
		}
	}()
	fn()
}
