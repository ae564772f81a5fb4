package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/geotask/internal/config"
	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/utils"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks [task-id]",
	Short: "List the task catalog or describe one task",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Fprint(cmd.OutOrStdout(), catalogTable(cfg.Tasks))
			return nil
		}
		entry, ok := cfg.Entry(args[0])
		if !ok {
			ids := make([]string, 0, len(cfg.Tasks))
			for _, e := range cfg.Tasks {
				ids = append(ids, e.ID)
			}
			sort.Strings(ids)
			return taskerrors.NewUnknownTaskError(args[0], ids)
		}
		fmt.Fprintln(cmd.OutOrStdout(), describeTask(entry))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func catalogTable(entries []config.TaskEntry) string {
	table := utils.NewTableFormatter("ID", "Title", "Processor", "Required")
	for _, e := range entries {
		table.AddRow(e.ID, e.Title, e.Processor, strings.Join(e.Required, ", "))
	}
	return table.String()
}

func describeTask(e config.TaskEntry) string {
	report := utils.NewReportBuilder().
		Header(e.ID).
		AddKeyValue("Title", e.Title).
		AddKeyValue("Processor", e.Processor)

	if len(e.Required) > 0 {
		report.Section("Required parameters:")
		for _, key := range e.Required {
			report.AddBullet(key)
		}
	}

	if len(e.Defaults) > 0 {
		keys := make([]string, 0, len(e.Defaults))
		for k := range e.Defaults {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		report.Section("Defaults:")
		for _, k := range keys {
			report.AddBullet(fmt.Sprintf("%s = %v", k, e.Defaults[k]))
		}
	}
	return report.Build()
}
