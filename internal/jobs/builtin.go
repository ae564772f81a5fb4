package jobs

import "github.com/maxkimambo/geotask/internal/task"

// Processor matches dispatcher.Processor
type Processor interface {
	NewParams() interface{}
	NewBody(params interface{}) (task.Body, error)
}

// Builtins returns the processors shipped with the binary, by name
func Builtins() map[string]Processor {
	return map[string]Processor{
		"convert-table": ConvertTable{},
		"merge-tables":  MergeTables{},
		"sleep":         Sleep{},
	}
}
