package jobs

import (
	"context"
	"path/filepath"
	"time"

	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/logger"
	"github.com/maxkimambo/geotask/internal/task"
)

// Share of the progress bar reserved for reading the input table
const readShare = 0.1

// TableJob processes one input table row by row
type TableJob[R any] interface {
	Name() string
	Intro() string
	Source() string
	ReadTable() ([]R, error)
	Perform(row R) error
	Write() error
	Report() string
}

// FolderJob processes every suitable file of a folder
type FolderJob interface {
	Name() string
	Intro() string
	Source() string
	InputFiles() ([]string, error)
	Perform(path string) error
	Finish() error
	Report() string
}

// measure logs start and end of a job body with its duration
func measure(name string, fn func() error) error {
	start := time.Now()
	logger.Op.WithFields(map[string]interface{}{"task": name}).Debug("Job started")

	err := fn()

	fields := map[string]interface{}{
		"task":     name,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		logger.Op.WithFields(fields).Debug("Job stopped with error")
		return err
	}
	logger.Op.WithFields(fields).Debug("Job completed")
	return nil
}

func stopped(ctx context.Context, ctl task.Control) bool {
	return ctl.IsCancellationRequested() || ctx.Err() != nil
}

func stop(ctl task.Control) error {
	ctl.Println("Task stopped")
	ctl.ClearProgress()
	return task.ErrCancelled
}

// OneFile drives a TableJob: reading takes the first tenth of the bar,
// the rows share the rest. A row error fails the task.
func OneFile[R any](job TableJob[R]) task.Body {
	return task.BodyFunc(func(ctx context.Context, ctl task.Control) error {
		return measure(job.Name(), func() error {
			ctl.Println(job.Intro())

			ctl.Println("Reading input file")
			rows, err := job.ReadTable()
			if err != nil {
				ctl.Println("Could not read the input file")
				return taskerrors.NewReadInputError(job.Source(), err)
			}
			ctl.SetProgress(readShare)

			ctl.Println("Computing...")
			performed := readShare
			increment := 0.0
			if len(rows) > 0 {
				increment = (1 - readShare) / float64(len(rows))
			}
			for i, row := range rows {
				if stopped(ctx, ctl) {
					return stop(ctl)
				}
				if err := job.Perform(row); err != nil {
					ctl.Println("Computation error, see the log for details")
					logger.Op.WithFields(map[string]interface{}{
						"task": job.Name(),
						"row":  i + 1,
					}).Warn(err.Error())
					return err
				}
				performed += increment
				ctl.SetProgress(performed)
			}

			ctl.Println("Writing results")
			if err := job.Write(); err != nil {
				ctl.Println("Could not write the output file")
				return err
			}

			ctl.Println(job.Report())
			ctl.SetProgress(1)
			return nil
		})
	})
}

// ManyFiles drives a FolderJob: every file advances the bar by the same
// step. A file that fails is reported on the console and skipped.
func ManyFiles(job FolderJob) task.Body {
	return task.BodyFunc(func(ctx context.Context, ctl task.Control) error {
		return measure(job.Name(), func() error {
			files, err := job.InputFiles()
			if err != nil {
				ctl.Println("Could not list the input folder")
				return taskerrors.NewReadInputError(job.Source(), err)
			}
			if len(files) == 0 {
				ctl.Println("The folder contains no suitable files")
				return taskerrors.NewNoInputError(job.Source())
			}
			ctl.Println(job.Intro())

			increment := 1 / float64(len(files))
			performed := 0.0
			for _, path := range files {
				if stopped(ctx, ctl) {
					return stop(ctl)
				}
				ctl.Println("Reading file: " + filepath.Base(path))

				if err := job.Perform(path); err != nil {
					ctl.Println(err.Error())
					logger.Op.WithFields(map[string]interface{}{
						"task": job.Name(),
						"file": path,
					}).Warn("Skipping file")
				}
				performed += increment
				ctl.SetProgress(performed)
			}

			if err := job.Finish(); err != nil {
				ctl.Println("Could not write the output file")
				return err
			}

			ctl.Println(job.Report())
			ctl.SetProgress(1)
			return nil
		})
	})
}
