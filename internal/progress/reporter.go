package progress

import (
	"fmt"
	"strings"
	"time"
)

// Reporter formats progress lines for a single task run
type Reporter struct {
	taskName  string
	startTime time.Time
	now       func() time.Time
}

// NewReporter creates a new progress reporter for taskName
func NewReporter(taskName string) *Reporter {
	return &Reporter{
		taskName:  taskName,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Elapsed returns the time since the reporter was created
func (r *Reporter) Elapsed() time.Duration {
	return r.now().Sub(r.startTime)
}

// Report generates a formatted progress line
func (r *Reporter) Report(s Snapshot) string {
	elapsed := r.Elapsed()

	var sb strings.Builder
	sb.WriteString(r.taskName)
	sb.WriteString(": ")

	if s.IsIndeterminate() {
		sb.WriteString("working")
	} else {
		title := s.Title
		if title == "" {
			title = PercentLabel(s.Fraction)
		}
		sb.WriteString(title)
	}

	if s.Message != "" {
		sb.WriteString(fmt.Sprintf(" | %s", s.Message))
	}

	sb.WriteString(fmt.Sprintf(" | Elapsed: %s", FormatDuration(elapsed)))

	if eta := CalculateETA(s.Fraction, elapsed); eta > 0 {
		sb.WriteString(fmt.Sprintf(" | ETA: %s", FormatDuration(eta)))
	}

	return sb.String()
}

// ReportTaskStart reports the start of a task
func (r *Reporter) ReportTaskStart(description string) string {
	if description == "" {
		return fmt.Sprintf("Starting %s", r.taskName)
	}
	return fmt.Sprintf("Starting %s: %s", r.taskName, description)
}

// ReportTaskComplete reports how a task ended
func (r *Reporter) ReportTaskComplete(outcome string) string {
	return fmt.Sprintf("%s %s in %s", r.taskName, outcome, FormatDuration(r.Elapsed()))
}

// CalculateETA estimates time remaining from the completed fraction
func CalculateETA(fraction float64, elapsed time.Duration) time.Duration {
	if fraction <= 0 || fraction >= 1 || elapsed <= 0 {
		return 0
	}

	total := time.Duration(float64(elapsed) / fraction)
	return total - elapsed
}

// FormatDuration formats a duration in a user-friendly way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
