package task

// State represents where a task is in its lifecycle
type State int32

const (
	// StateIdle indicates the task has been created but not started
	StateIdle State = iota
	// StateRunning indicates the task body is executing on the worker
	StateRunning
	// StateSucceeded indicates the body returned normally
	StateSucceeded
	// StateCancelled indicates the body stopped because cancellation was requested
	StateCancelled
	// StateFailed indicates the body returned an error or panicked
	StateFailed
)

// String returns a string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions can happen
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateCancelled || s == StateFailed
}
