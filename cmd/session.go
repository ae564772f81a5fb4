package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/maxkimambo/geotask/internal/coordinator"
	"github.com/maxkimambo/geotask/internal/eventloop"
	"github.com/maxkimambo/geotask/internal/logger"
	"github.com/maxkimambo/geotask/internal/progress"
	"github.com/maxkimambo/geotask/internal/runner"
	"github.com/maxkimambo/geotask/internal/task"
	"github.com/maxkimambo/geotask/internal/utils"
)

// session runs one task with a terminal front-end: progress lines, a
// summary box, Ctrl-C to cancel and exit, and "c" + Enter to cancel.
type session struct {
	in       io.Reader
	out      io.Writer
	interval time.Duration
	signals  []os.Signal

	// interrupts replaces OS signal delivery when set
	interrupts <-chan os.Signal
}

func newSession(in io.Reader, out io.Writer, interval time.Duration) *session {
	return &session{
		in:       in,
		out:      out,
		interval: interval,
		signals:  []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// run submits t and blocks until the application should exit. The
// returned state is the state of t at that point.
func (s *session) run(ctx context.Context, t *task.Task) (task.State, error) {
	loop := eventloop.New()
	r := runner.New(loop)
	prompter := utils.NewTerminalPrompter(s.out)
	width := utils.TerminalWidth(s.out) - 8

	// observer goroutine only
	finished := false

	var coord *coordinator.Coordinator
	coord = coordinator.New(loop, r, prompter, loop.Stop,
		coordinator.WithCloseAborted(func(req coordinator.Request) {
			if r.Current() != nil {
				logger.User.Infof("Close aborted, %s keeps running", req.TaskName)
			}
		}),
		coordinator.WithSettled(func() {
			if finished {
				coord.CloseRequested()
			}
		}),
	)
	defer coord.Close()

	renderer := progress.NewRenderer(t.Name(), s.interval)
	stopProgress := t.Progress().Subscribe(renderer.Observe, loop)
	defer stopProgress()

	onFinished := func(t *task.Task) {
		renderer.Final(t.Progress().Latest())
		fmt.Fprintln(s.out, summaryBox(t, width))
		finished = true
		if coord.State() == coordinator.StateIdle {
			coord.CloseRequested()
		}
	}
	reporter := renderer.Reporter()
	r.Subscribe(runner.Hooks{
		OnRunning: func(t *task.Task) {
			logger.User.Starting(reporter.ReportTaskStart(""))
			logger.User.Console("Press Ctrl-C to cancel and exit, or type 'c' and Enter to cancel")
		},
		OnSucceeded: func(t *task.Task) {
			logger.User.Success(reporter.ReportTaskComplete("completed"))
			onFinished(t)
		},
		OnCancelled: func(t *task.Task) {
			logger.User.Cancelledf("%s", reporter.ReportTaskComplete("stopped"))
			onFinished(t)
		},
		OnFailed: func(t *task.Task, err error) {
			logger.User.Failedf("%s: %v", reporter.ReportTaskComplete("failed"), err)
			onFinished(t)
		},
	})

	inputCtx, stopInput := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		stopInput()
		wg.Wait()
	}()

	wg.Add(2)
	go func() {
		defer wg.Done()
		prompter.Serve(inputCtx, utils.ReadLines(s.in), func(line string) {
			if strings.EqualFold(line, "c") {
				coord.RequestCancellation(false)
			}
		})
	}()
	go func() {
		defer wg.Done()
		s.watchInterrupts(inputCtx, coord)
	}()

	if err := r.Submit(t); err != nil {
		return t.State(), err
	}

	runErr := loop.Run(ctx)
	if !t.State().IsTerminal() {
		t.RequestCancellation()
	}
	r.Wait()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return t.State(), runErr
	}
	return t.State(), nil
}

// watchInterrupts turns Ctrl-C and SIGTERM into close requests
func (s *session) watchInterrupts(ctx context.Context, coord *coordinator.Coordinator) {
	interrupts := s.interrupts
	if interrupts == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, s.signals...)
		defer signal.Stop(ch)
		interrupts = ch
	}

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-interrupts:
			logger.Op.WithFields(map[string]interface{}{
				"signal": sig.String(),
			}).Info("Close requested")
			coord.CloseRequested()
		}
	}
}
