package progress

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/maxkimambo/geotask/internal/logger"
)

// Renderer prints progress lines for one task. Intermediate snapshots
// are throttled; complete and final snapshots are always printed.
type Renderer struct {
	reporter  *Reporter
	sometimes *rate.Sometimes
	print     func(string)

	mu          sync.Mutex
	lastPrinted uint64
}

// NewRenderer creates a renderer that prints through the user logger at
// most once per interval. A zero interval prints every snapshot.
func NewRenderer(taskName string, interval time.Duration) *Renderer {
	return NewRendererWithOutput(taskName, interval, func(line string) { logger.User.Info(line) })
}

// NewRendererWithOutput is NewRenderer with a custom line sink
func NewRendererWithOutput(taskName string, interval time.Duration, print func(string)) *Renderer {
	s := &rate.Sometimes{Interval: interval}
	if interval <= 0 {
		s = &rate.Sometimes{Every: 1}
	}
	return &Renderer{
		reporter:  NewReporter(taskName),
		sometimes: s,
		print:     print,
	}
}

// Reporter exposes the underlying line formatter
func (r *Renderer) Reporter() *Reporter {
	return r.reporter
}

// Observe is a progress Observer
func (r *Renderer) Observe(s Snapshot) {
	if s.IsComplete() {
		r.Final(s)
		return
	}
	r.sometimes.Do(func() { r.emit(s) })
}

// Final prints s regardless of the throttle. Snapshots older than the
// last printed one are skipped.
func (r *Renderer) Final(s Snapshot) {
	r.emit(s)
}

func (r *Renderer) emit(s Snapshot) {
	r.mu.Lock()
	if s.Seq != 0 && s.Seq <= r.lastPrinted {
		r.mu.Unlock()
		return
	}
	r.lastPrinted = s.Seq
	line := r.reporter.Report(s)
	r.mu.Unlock()

	r.print(line)
}
