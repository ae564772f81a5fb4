package jobs

import (
	"fmt"
	"strings"

	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/micromine"
	"github.com/maxkimambo/geotask/internal/task"
)

// ConvertTableParams configures the convert-table processor
type ConvertTableParams struct {
	Input     string `mapstructure:"input"`
	Output    string `mapstructure:"output"`
	SkipEmpty bool   `mapstructure:"skip_empty"`
}

// ConvertTable rewrites one Micromine table with cleaned values
type ConvertTable struct{}

func (ConvertTable) NewParams() interface{} {
	return &ConvertTableParams{}
}

func (ConvertTable) NewBody(params interface{}) (task.Body, error) {
	p, ok := params.(*ConvertTableParams)
	if !ok {
		return nil, fmt.Errorf("unexpected parameters %T", params)
	}
	if p.Input == p.Output {
		return nil, fmt.Errorf("input and output must be different files")
	}
	return OneFile[map[string]string](&convertJob{params: *p}), nil
}

type convertJob struct {
	params  ConvertTableParams
	title   []string
	rows    []map[string]string
	skipped int
}

func (j *convertJob) Name() string   { return "convert-table" }
func (j *convertJob) Source() string { return j.params.Input }

func (j *convertJob) Intro() string {
	return fmt.Sprintf("Converting %s to %s", j.params.Input, j.params.Output)
}

func (j *convertJob) ReadTable() ([]map[string]string, error) {
	table, err := micromine.ReadTable(j.params.Input)
	if err != nil {
		return nil, err
	}
	j.title = table.Title
	return table.Rows, nil
}

func (j *convertJob) Perform(row map[string]string) error {
	if len(row) != len(j.title) {
		return fmt.Errorf("row has %d attributes, title has %d", len(row), len(j.title))
	}
	clean := make(map[string]string, len(row))
	empty := true
	for k, v := range row {
		v = strings.TrimSpace(v)
		if v != "" {
			empty = false
		}
		clean[k] = v
	}
	if empty && j.params.SkipEmpty {
		j.skipped++
		return nil
	}
	j.rows = append(j.rows, clean)
	return nil
}

func (j *convertJob) Write() error {
	w, err := micromine.Create(j.params.Output)
	if err != nil {
		return taskerrors.NewWriteOutputError(j.params.Output, err)
	}
	if err := w.WriteTitle(j.title); err != nil {
		w.Close()
		return taskerrors.NewWriteOutputError(j.params.Output, err)
	}
	if len(j.rows) > 0 {
		if err := w.WriteRows(j.rows); err != nil {
			w.Close()
			return taskerrors.NewWriteOutputError(j.params.Output, err)
		}
	}
	if err := w.Close(); err != nil {
		return taskerrors.NewWriteOutputError(j.params.Output, err)
	}
	return nil
}

func (j *convertJob) Report() string {
	if j.skipped > 0 {
		return fmt.Sprintf("Rows written: %d, empty rows skipped: %d", len(j.rows), j.skipped)
	}
	return fmt.Sprintf("Rows written: %d", len(j.rows))
}
