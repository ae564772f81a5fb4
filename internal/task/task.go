package task

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/logger"
	"github.com/maxkimambo/geotask/internal/progress"
)

// ErrCancelled is returned by a body that stopped because cancellation
// was requested
var ErrCancelled = stderrors.New("task cancelled")

// Body is the work a task performs. It runs on the worker goroutine and
// should check ctl.IsCancellationRequested (or ctx) at its own pace.
type Body interface {
	Run(ctx context.Context, ctl Control) error
}

// BodyFunc adapts a function to Body
type BodyFunc func(ctx context.Context, ctl Control) error

// Run calls f
func (f BodyFunc) Run(ctx context.Context, ctl Control) error {
	return f(ctx, ctl)
}

// Task is one unit of background work. A task runs at most once.
type Task struct {
	id     string
	name   string
	params interface{}
	body   Body

	state           atomic.Int32
	cancelRequested atomic.Bool
	ctx             context.Context
	cancel          context.CancelFunc

	progress *progress.Channel
	// worker-only: highest fraction published while Running
	lastFraction float64
	lastMessage  string

	mu        sync.RWMutex
	console   []string
	err       error
	startTime *time.Time
	endTime   *time.Time
}

// New creates an idle task
func New(name string, params interface{}, body Body) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		id:           uuid.NewString(),
		name:         name,
		params:       params,
		body:         body,
		ctx:          ctx,
		cancel:       cancel,
		progress:     progress.NewChannel(),
		lastFraction: progress.Indeterminate,
	}
	t.state.Store(int32(StateIdle))
	return t
}

// ID returns the unique identifier of this task instance
func (t *Task) ID() string {
	return t.id
}

// Name returns the catalog name of the task
func (t *Task) Name() string {
	return t.name
}

// Params returns the typed parameters the task was created with
func (t *Task) Params() interface{} {
	return t.params
}

// State returns the current lifecycle state
func (t *Task) State() State {
	return State(t.state.Load())
}

// Progress returns the task's progress channel
func (t *Task) Progress() *progress.Channel {
	return t.progress
}

// Err returns the failure of a Failed task, nil otherwise
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Console returns a copy of the lines printed by the task
func (t *Task) Console() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.console...)
}

// StartTime returns when the task entered Running
func (t *Task) StartTime() *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.startTime
}

// EndTime returns when the task reached a terminal state
func (t *Task) EndTime() *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.endTime
}

// Duration returns how long the task ran, or has been running
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.startTime == nil {
		return 0
	}
	if t.endTime == nil {
		return time.Since(*t.startTime)
	}
	return t.endTime.Sub(*t.startTime)
}

// RequestCancellation asks the task to stop. Safe from any goroutine and
// idempotent; it returns true only for the call that set the flag. After a
// terminal state it does nothing.
func (t *Task) RequestCancellation() bool {
	if t.State().IsTerminal() {
		return false
	}
	if !t.cancelRequested.CompareAndSwap(false, true) {
		return false
	}
	t.cancel()

	logger.Op.WithFields(map[string]interface{}{
		"task":  t.name,
		"id":    t.id,
		"state": t.State().String(),
	}).Info("Cancellation requested")
	return true
}

// IsCancellationRequested reports whether cancellation was ever requested
func (t *Task) IsCancellationRequested() bool {
	return t.cancelRequested.Load()
}

// MarkRunning moves an idle task to Running. It fails if the task has
// already been started.
func (t *Task) MarkRunning() bool {
	if !t.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return false
	}
	now := time.Now()
	t.mu.Lock()
	t.startTime = &now
	t.mu.Unlock()
	return true
}

// RevertToIdle undoes MarkRunning when the task could not be handed to
// a worker
func (t *Task) RevertToIdle() {
	if t.state.CompareAndSwap(int32(StateRunning), int32(StateIdle)) {
		t.mu.Lock()
		t.startTime = nil
		t.mu.Unlock()
	}
}

// Execute runs the body on the calling goroutine and performs the terminal
// transition. The task must be Running. Panics in the body are recovered
// and reported as failures.
func (t *Task) Execute() State {
	if t.State() != StateRunning {
		logger.Op.WithFields(map[string]interface{}{
			"task":  t.name,
			"state": t.State().String(),
		}).Warn("Execute called on a task that is not running")
		return t.State()
	}

	if t.IsCancellationRequested() {
		logger.Op.WithFields(map[string]interface{}{
			"task": t.name,
			"id":   t.id,
		}).Info("Task cancelled before its body started")
		return t.finish(StateCancelled, nil)
	}

	err := t.runBody()
	state, failure := t.outcome(err)
	return t.finish(state, failure)
}

func (t *Task) runBody() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = taskerrors.NewTaskPanicError(t.name, r)
		}
	}()
	return t.body.Run(t.ctx, &control{t: t})
}

// outcome maps what the body returned to a terminal state
func (t *Task) outcome(err error) (State, error) {
	if err == nil {
		return StateSucceeded, nil
	}
	if stderrors.Is(err, ErrCancelled) {
		return StateCancelled, nil
	}
	if stderrors.Is(err, context.Canceled) && t.IsCancellationRequested() {
		return StateCancelled, nil
	}
	if te, ok := taskerrors.AsTaskError(err); ok && te.Category == taskerrors.ErrorCategoryTask {
		return StateFailed, te
	}
	return StateFailed, taskerrors.NewTaskFailureError(t.name, err)
}

func (t *Task) finish(state State, failure error) State {
	now := time.Now()
	t.mu.Lock()
	t.endTime = &now
	t.err = failure
	t.mu.Unlock()

	if state == StateCancelled || state == StateFailed {
		t.progress.Publish(progress.Reset())
	}

	if !t.state.CompareAndSwap(int32(StateRunning), int32(state)) {
		// only Execute moves a task out of Running
		panic(fmt.Sprintf("task %s: terminal transition from %s", t.name, t.State()))
	}
	t.cancel()

	fields := map[string]interface{}{
		"task":     t.name,
		"id":       t.id,
		"state":    state.String(),
		"duration": t.Duration().Round(time.Millisecond).String(),
	}
	if failure != nil {
		fields["error"] = failure.Error()
	}
	logger.Op.WithFields(fields).Info("Task finished")

	return state
}

// publish applies the monotonic rule and forwards to the channel
func (t *Task) publish(fraction float64, message, title string) {
	fraction = progress.Clamp(fraction)
	if fraction < t.lastFraction || (fraction == progress.Indeterminate && t.lastFraction >= 0) {
		fraction = t.lastFraction
	}
	t.lastFraction = fraction
	t.lastMessage = message
	t.progress.Publish(progress.Snapshot{Fraction: fraction, Message: message, Title: title})
}

func (t *Task) println(msg string) {
	t.mu.Lock()
	t.console = append(t.console, msg)
	t.mu.Unlock()

	logger.Op.WithFields(map[string]interface{}{
		"task": t.name,
	}).Debug(msg)

	fraction := t.lastFraction
	title := t.progress.Latest().Title
	t.publish(fraction, msg, title)
}

func (t *Task) String() string {
	return fmt.Sprintf("%s(%s)", t.name, t.id)
}
