package task

import "github.com/maxkimambo/geotask/internal/progress"

// Control is what a running body uses to report back. It must only be
// used from the goroutine executing the body.
type Control interface {
	// Publish reports progress; a fraction lower than the last one is
	// raised to it
	Publish(fraction float64, message, title string)
	// SetProgress reports a fraction and labels it as a percentage
	SetProgress(fraction float64)
	// Println appends a console line and publishes it as the message
	Println(msg string)
	// IsCancellationRequested reports whether the task should stop
	IsCancellationRequested() bool
	// ClearProgress shows the reset snapshot once cancellation has been
	// requested. It reports whether the reset was published.
	ClearProgress() bool
}

type control struct {
	t *Task
}

func (c *control) Publish(fraction float64, message, title string) {
	c.t.publish(fraction, message, title)
}

func (c *control) SetProgress(fraction float64) {
	fraction = progress.Clamp(fraction)
	if fraction < c.t.lastFraction {
		fraction = c.t.lastFraction
	}
	c.t.publish(fraction, c.t.lastMessage, progress.PercentLabel(fraction))
}

func (c *control) Println(msg string) {
	c.t.println(msg)
}

func (c *control) IsCancellationRequested() bool {
	return c.t.IsCancellationRequested()
}

func (c *control) ClearProgress() bool {
	if !c.t.IsCancellationRequested() {
		return false
	}
	c.t.progress.Publish(progress.Reset())
	return true
}
