package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/geotask/internal/logger"
	"github.com/maxkimambo/geotask/internal/task"
	"github.com/maxkimambo/geotask/internal/utils"
)

var (
	taskParams       []string
	progressInterval time.Duration
	yes              bool
)

var runCmd = &cobra.Command{
	Use:   "run <task-id>",
	Short: "Run a task from the catalog",
	Long: `Runs one task from the catalog in the background and reports its progress.

Parameters are passed as repeated --param key=value flags. Press Ctrl-C to
cancel the task and exit once it has stopped, or type 'c' and Enter to
cancel it and stay until it finishes.

Example:
geotask run convert-table --param input=holes.txt --param output=holes_out.txt
geotask run merge-tables --param folder=assays --param output=assays.txt --param extension=.csv
geotask run sleep --param duration=10s --param steps=20
`,
	Args: cobra.ExactArgs(1),
	RunE: runTask,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayVarP(&taskParams, "param", "p", nil, "Task parameter in key=value format (repeatable)")
	runCmd.Flags().DurationVar(&progressInterval, "progress-interval", 500*time.Millisecond, "Minimum time between progress lines")
	runCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Overwrite an existing output file without asking")
}

func runTask(cmd *cobra.Command, args []string) error {
	params, err := utils.ParseParams(taskParams)
	if err != nil {
		return err
	}

	d, err := newDispatcher(cfg.Tasks)
	if err != nil {
		return err
	}
	t, err := d.Dispatch(args[0], params)
	if err != nil {
		return err
	}

	if path, ok := existingOutput(params); ok {
		proceed, err := utils.PromptForConfirmation(os.Stdin, os.Stdout, yes,
			"overwrite "+path, "the output file already exists")
		if err != nil {
			return err
		}
		if !proceed {
			logger.User.Info("Nothing was run.")
			return nil
		}
	}

	state, err := newSession(os.Stdin, os.Stdout, cfg.Progress.Interval).run(cmd.Context(), t)
	if err != nil {
		return err
	}
	if state == task.StateFailed {
		return t.Err()
	}
	return nil
}
