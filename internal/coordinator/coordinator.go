package coordinator

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/logger"
	"github.com/maxkimambo/geotask/internal/runner"
	"github.com/maxkimambo/geotask/internal/task"
)

// State of the confirmation handshake
type State int32

const (
	// StateIdle means no confirmation is in progress
	StateIdle State = iota
	// StateConfirmPending means the user has been asked and not yet answered
	StateConfirmPending
	// StateCancelling means cancellation was confirmed and the task has
	// not finished yet
	StateCancelling
)

// String returns a string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfirmPending:
		return "confirm-pending"
	case StateCancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}

// Request is one confirmation shown to the user
type Request struct {
	ID        string
	TaskID    string
	TaskName  string
	ExitAfter bool // the application closes once the task has stopped
}

// Prompter asks the user to confirm a cancellation. Ask must not block;
// answer may be called from any goroutine, at most once.
type Prompter interface {
	Ask(req Request, answer func(accepted bool))
}

// AcceptDisabler is implemented by prompters that can grey out the
// accept action once the prompted task has already finished.
type AcceptDisabler interface {
	DisableAccept(req Request)
}

// Poster marshals a function onto the observer goroutine
type Poster interface {
	Post(fn func()) bool
}

// TaskSource is the part of the runner the coordinator needs
type TaskSource interface {
	Current() *task.Task
	Subscribe(h runner.Hooks) (unsubscribe func())
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithCloseAborted registers a callback for a declined close request
func WithCloseAborted(fn func(Request)) Option {
	return func(c *Coordinator) {
		c.onCloseAborted = fn
	}
}

// WithSettled registers a callback run on the observer goroutine each time
// the handshake returns to idle
func WithSettled(fn func()) Option {
	return func(c *Coordinator) {
		c.onSettled = fn
	}
}

// Coordinator arbitrates cancellation between the user and the running
// task. Every state change happens on the observer goroutine.
type Coordinator struct {
	loop     Poster
	tasks    TaskSource
	prompter Prompter

	shutdown       func()
	shutdownOnce   sync.Once
	shutdownFired  atomic.Bool
	onCloseAborted func(Request)
	onSettled      func()
	unsubscribe    func()

	// observer goroutine only
	pending   *Request
	target    *task.Task
	exitAfter bool

	state atomic.Int32
}

// New creates a coordinator. shutdown is invoked at most once, on the
// observer goroutine, when the application should exit.
func New(loop Poster, tasks TaskSource, prompter Prompter, shutdown func(), opts ...Option) *Coordinator {
	c := &Coordinator{
		loop:     loop,
		tasks:    tasks,
		prompter: prompter,
		shutdown: shutdown,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.unsubscribe = tasks.Subscribe(runner.Hooks{
		OnSucceeded: c.onTerminal,
		OnCancelled: c.onTerminal,
		OnFailed:    func(t *task.Task, _ error) { c.onTerminal(t) },
	})
	return c
}

// Close detaches the coordinator from the runner
func (c *Coordinator) Close() {
	c.unsubscribe()
}

// State returns the current handshake state
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// ShutdownRequested reports whether the shutdown func has fired
func (c *Coordinator) ShutdownRequested() bool {
	return c.shutdownFired.Load()
}

// RequestCancellation asks to stop the running task. With exitAfter the
// application shuts down once the task has stopped. Safe from any goroutine.
func (c *Coordinator) RequestCancellation(exitAfter bool) {
	if !c.loop.Post(func() { c.handleRequest(exitAfter) }) {
		logger.Op.Debug("Cancellation request dropped: observer loop stopped")
	}
}

// CloseRequested is the application close attempt: it shuts down at once
// when nothing runs and otherwise asks to cancel and exit.
func (c *Coordinator) CloseRequested() {
	c.loop.Post(func() {
		if c.runningTask() == nil && c.State() == StateIdle {
			logger.Op.Info("Close requested with no running task")
			c.fireShutdown()
			return
		}
		c.handleRequest(true)
	})
}

func (c *Coordinator) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		logger.Op.WithFields(map[string]interface{}{
			"from": old.String(),
			"to":   s.String(),
		}).Debug("Cancellation state changed")
		if s == StateIdle && c.onSettled != nil {
			c.onSettled()
		}
	}
}

func (c *Coordinator) runningTask() *task.Task {
	t := c.tasks.Current()
	if t == nil || t.State() != task.StateRunning {
		return nil
	}
	return t
}

func (c *Coordinator) handleRequest(exitAfter bool) {
	switch c.State() {
	case StateIdle:
		t := c.runningTask()
		if t == nil {
			logger.Op.Debug("Cancellation requested with no running task")
			return
		}

		req := Request{
			ID:        uuid.NewString(),
			TaskID:    t.ID(),
			TaskName:  t.Name(),
			ExitAfter: exitAfter,
		}
		c.pending = &req
		c.target = t
		c.setState(StateConfirmPending)

		logger.Op.WithFields(map[string]interface{}{
			"task":      t.Name(),
			"request":   req.ID,
			"exitAfter": exitAfter,
		}).Info("Asking for cancellation confirmation")

		c.prompter.Ask(req, func(accepted bool) {
			if !c.loop.Post(func() { c.handleAnswer(req.ID, accepted) }) {
				logger.Op.Debug("Confirmation answer dropped: observer loop stopped")
			}
		})

	case StateConfirmPending:
		logger.Op.WithFields(map[string]interface{}{
			"request":   c.pending.ID,
			"exitAfter": exitAfter,
		}).Info("Cancellation request ignored: confirmation already pending")

	case StateCancelling:
		if exitAfter && !c.exitAfter {
			c.exitAfter = true
			logger.Op.Info("Pending cancellation will now close the application")
			return
		}
		logger.Op.Debug("Cancellation request ignored: already cancelling")
	}
}

func (c *Coordinator) handleAnswer(id string, accepted bool) {
	if c.State() != StateConfirmPending || c.pending == nil || c.pending.ID != id {
		logger.Op.WithFields(map[string]interface{}{
			"request": id,
		}).Debug("Ignoring stale confirmation answer")
		return
	}

	req := *c.pending
	t := c.target
	c.pending = nil

	if !accepted {
		c.target = nil
		c.setState(StateIdle)
		logger.Op.WithFields(map[string]interface{}{
			"task": req.TaskName,
		}).Info("Cancellation declined")
		if req.ExitAfter && c.onCloseAborted != nil {
			c.onCloseAborted(req)
		}
		return
	}

	if t.State().IsTerminal() || c.tasks.Current() != t {
		race := taskerrors.NewCancellationRaceError(req.TaskName, t.State().String())
		logger.Op.WithFields(map[string]interface{}{
			"code": taskerrors.GetErrorCode(race),
		}).Info(race.Message)

		c.target = nil
		c.setState(StateIdle)
		if req.ExitAfter {
			c.fireShutdown()
		}
		return
	}

	c.exitAfter = req.ExitAfter
	c.setState(StateCancelling)
	t.RequestCancellation()
}

func (c *Coordinator) onTerminal(t *task.Task) {
	switch c.State() {
	case StateConfirmPending:
		if t == c.target {
			if d, ok := c.prompter.(AcceptDisabler); ok {
				d.DisableAccept(*c.pending)
			}
		}

	case StateCancelling:
		if t != c.target {
			return
		}
		exit := c.exitAfter
		c.target = nil
		c.exitAfter = false
		c.setState(StateIdle)
		if exit {
			c.fireShutdown()
		}
	}
}

func (c *Coordinator) fireShutdown() {
	c.shutdownOnce.Do(func() {
		c.shutdownFired.Store(true)
		logger.Op.Info("Shutting down")
		if c.shutdown != nil {
			c.shutdown()
		}
	})
}
