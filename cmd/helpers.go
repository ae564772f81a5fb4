package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/maxkimambo/geotask/internal/config"
	"github.com/maxkimambo/geotask/internal/dispatcher"
	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/jobs"
	"github.com/maxkimambo/geotask/internal/task"
	"github.com/maxkimambo/geotask/internal/utils"
)

// newDispatcher builds a dispatcher for the catalog with every built-in
// processor registered
func newDispatcher(entries []config.TaskEntry) (*dispatcher.Dispatcher, error) {
	d := dispatcher.New(entries)
	for name, p := range jobs.Builtins() {
		d.Register(name, p)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// existingOutput returns the "output" parameter when it names a file that
// is already there
func existingOutput(params map[string]interface{}) (string, bool) {
	for key, value := range params {
		if !strings.EqualFold(key, "output") {
			continue
		}
		path, ok := value.(string)
		if !ok || path == "" {
			return "", false
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return "", false
		}
		return path, true
	}
	return "", false
}

// summaryBox renders the outcome of a finished task
func summaryBox(t *task.Task, width int) string {
	var box *utils.Box
	switch t.State() {
	case task.StateSucceeded:
		box = utils.NewBox(utils.SuccessMessage, fmt.Sprintf("Task %s finished", t.Name()))
	case task.StateCancelled:
		box = utils.NewBox(utils.WarningMessage, fmt.Sprintf("Task %s was cancelled", t.Name()))
	default:
		box = utils.NewBox(utils.ErrorMessage, fmt.Sprintf("Task %s failed", t.Name()))
	}
	box.WithWidth(width)

	box.AddField("Duration", t.Duration().Round(10 * time.Millisecond))
	if last := t.Progress().Latest(); last.Seq > 0 && !last.IsIndeterminate() {
		box.AddField("Progress", last.Title)
	}
	if err := t.Err(); err != nil {
		box.AddField("Error", taskerrors.DisplayErrorSummary(err))
		if te, ok := taskerrors.AsTaskError(err); ok && te.OriginalError != nil {
			box.AddField("Cause", te.OriginalError)
		}
	}
	if console := t.Console(); len(console) > 0 {
		box.AddField("Last line", console[len(console)-1])
	}
	return box.Render()
}
