package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/maxkimambo/geotask/internal/progress"
	"github.com/maxkimambo/geotask/internal/task"
)

// SleepParams configures the sleep processor
type SleepParams struct {
	Duration time.Duration `mapstructure:"duration"`
	Steps    int           `mapstructure:"steps"`
	FailAt   int           `mapstructure:"fail_at"`
}

// Sleep waits in equal steps, reporting progress after each one. It is
// useful to try cancellation from the terminal.
type Sleep struct{}

func (Sleep) NewParams() interface{} {
	return &SleepParams{Duration: 3 * time.Second, Steps: 10}
}

func (Sleep) NewBody(params interface{}) (task.Body, error) {
	p, ok := params.(*SleepParams)
	if !ok {
		return nil, fmt.Errorf("unexpected parameters %T", params)
	}
	if p.Steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", p.Steps)
	}
	if p.Duration < 0 {
		return nil, fmt.Errorf("duration must not be negative")
	}
	cfg := *p

	return task.BodyFunc(func(ctx context.Context, ctl task.Control) error {
		return measure("sleep", func() error {
			step := cfg.Duration / time.Duration(cfg.Steps)
			ctl.Println(fmt.Sprintf("Sleeping %s in %d steps", cfg.Duration, cfg.Steps))

			timer := time.NewTimer(step)
			defer timer.Stop()
			for i := 1; i <= cfg.Steps; i++ {
				select {
				case <-ctx.Done():
					return stop(ctl)
				case <-timer.C:
				}
				if cfg.FailAt == i {
					return fmt.Errorf("step %d failed on request", i)
				}
				fraction := float64(i) / float64(cfg.Steps)
				ctl.Publish(fraction, fmt.Sprintf("Step %d of %d", i, cfg.Steps), progress.PercentLabel(fraction))
				timer.Reset(step)
			}
			ctl.Println("Done")
			return nil
		})
	}), nil
}
