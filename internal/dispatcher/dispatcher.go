package dispatcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/maxkimambo/geotask/internal/config"
	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/logger"
	"github.com/maxkimambo/geotask/internal/task"
)

// Params is the untyped parameter bag supplied by the caller
type Params map[string]interface{}

// Processor turns decoded parameters into a task body. NewParams returns
// a pointer to a fresh parameter struct with mapstructure tags.
type Processor interface {
	NewParams() interface{}
	NewBody(params interface{}) (task.Body, error)
}

// Dispatcher creates tasks from catalog ids and parameter bags. It never
// runs anything.
type Dispatcher struct {
	entries    []config.TaskEntry
	byID       map[string]config.TaskEntry
	processors map[string]Processor
}

// New creates a dispatcher over the given catalog
func New(entries []config.TaskEntry) *Dispatcher {
	d := &Dispatcher{
		entries:    append([]config.TaskEntry(nil), entries...),
		byID:       make(map[string]config.TaskEntry, len(entries)),
		processors: make(map[string]Processor),
	}
	for _, e := range entries {
		d.byID[e.ID] = e
	}
	return d
}

// Register binds a processor name used by catalog entries
func (d *Dispatcher) Register(name string, p Processor) {
	d.processors[name] = p
}

// Validate checks that every catalog entry refers to a registered processor
func (d *Dispatcher) Validate() error {
	for _, e := range d.entries {
		if _, ok := d.processors[e.Processor]; !ok {
			return taskerrors.NewInvalidCatalogError(e.ID, e.Processor)
		}
	}
	return nil
}

// Entries lists the catalog in configured order
func (d *Dispatcher) Entries() []config.TaskEntry {
	return append([]config.TaskEntry(nil), d.entries...)
}

// Dispatch validates params for taskID and returns a new idle task
func (d *Dispatcher) Dispatch(taskID string, params Params) (*task.Task, error) {
	entry, ok := d.byID[taskID]
	if !ok {
		return nil, taskerrors.NewUnknownTaskError(taskID, d.ids())
	}

	proc, ok := d.processors[entry.Processor]
	if !ok {
		return nil, taskerrors.NewInvalidCatalogError(entry.ID, entry.Processor)
	}

	merged := make(map[string]interface{}, len(entry.Defaults)+len(params))
	for k, v := range entry.Defaults {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range params {
		merged[strings.ToLower(k)] = v
	}

	if missing := missingKeys(entry.Required, merged); len(missing) > 0 {
		return nil, taskerrors.NewMissingParameterError(taskID, missing)
	}

	typed := proc.NewParams()
	var meta mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &meta,
		Result:           typed,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create parameter decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, taskerrors.NewInvalidParameterError(taskID, err)
	}
	if len(meta.Unused) > 0 {
		sort.Strings(meta.Unused)
		logger.Op.WithFields(map[string]interface{}{
			"task":   taskID,
			"unused": strings.Join(meta.Unused, ","),
		}).Warn("Ignoring unknown task parameters")
	}

	body, err := proc.NewBody(typed)
	if err != nil {
		return nil, taskerrors.NewInvalidParameterError(taskID, err)
	}

	t := task.New(entry.ID, typed, body)
	logger.Op.WithFields(map[string]interface{}{
		"task":      entry.ID,
		"id":        t.ID(),
		"processor": entry.Processor,
	}).Debug("Task dispatched")
	return t, nil
}

func (d *Dispatcher) ids() []string {
	ids := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func missingKeys(required []string, params map[string]interface{}) []string {
	var missing []string
	for _, key := range required {
		v, ok := params[strings.ToLower(key)]
		if !ok || v == nil {
			missing = append(missing, key)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
