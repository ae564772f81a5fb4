package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/micromine"
	"github.com/maxkimambo/geotask/internal/task"
)

// MergeTablesParams configures the merge-tables processor
type MergeTablesParams struct {
	Folder    string `mapstructure:"folder"`
	Output    string `mapstructure:"output"`
	Extension string `mapstructure:"extension"`
}

// MergeTables unions every table of a folder into one file. Attributes a
// table lacks are written as zero.
type MergeTables struct{}

func (MergeTables) NewParams() interface{} {
	return &MergeTablesParams{Extension: ".txt"}
}

func (MergeTables) NewBody(params interface{}) (task.Body, error) {
	p, ok := params.(*MergeTablesParams)
	if !ok {
		return nil, fmt.Errorf("unexpected parameters %T", params)
	}
	if !strings.HasPrefix(p.Extension, ".") {
		p.Extension = "." + p.Extension
	}
	return ManyFiles(&mergeJob{params: *p, seen: make(map[string]bool)}), nil
}

type mergeJob struct {
	params MergeTablesParams
	title  []string
	seen   map[string]bool
	rows   []map[string]string
	files  int
	failed int
}

func (j *mergeJob) Name() string   { return "merge-tables" }
func (j *mergeJob) Source() string { return j.params.Folder }

func (j *mergeJob) Intro() string {
	return fmt.Sprintf("Merging %s tables of %s into %s", j.params.Extension, j.params.Folder, j.params.Output)
}

func (j *mergeJob) InputFiles() ([]string, error) {
	entries, err := os.ReadDir(j.params.Folder)
	if err != nil {
		return nil, err
	}
	outAbs, _ := filepath.Abs(j.params.Output)

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), j.params.Extension) {
			continue
		}
		path := filepath.Join(j.params.Folder, e.Name())
		if abs, _ := filepath.Abs(path); abs == outAbs {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func (j *mergeJob) Perform(path string) error {
	table, err := micromine.ReadTable(path)
	if err != nil {
		j.failed++
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	for _, name := range table.Title {
		if !j.seen[name] {
			j.seen[name] = true
			j.title = append(j.title, name)
		}
	}
	j.rows = append(j.rows, table.Rows...)
	j.files++
	return nil
}

func (j *mergeJob) Finish() error {
	if j.files == 0 {
		return taskerrors.NewNoInputError(j.params.Folder)
	}
	w, err := micromine.Create(j.params.Output)
	if err != nil {
		return taskerrors.NewWriteOutputError(j.params.Output, err)
	}
	if err := w.WriteTitle(j.title); err != nil {
		w.Close()
		return taskerrors.NewWriteOutputError(j.params.Output, err)
	}
	if err := w.WriteRowsFillMissing(j.rows); err != nil {
		w.Close()
		return taskerrors.NewWriteOutputError(j.params.Output, err)
	}
	if err := w.Close(); err != nil {
		return taskerrors.NewWriteOutputError(j.params.Output, err)
	}
	return nil
}

func (j *mergeJob) Report() string {
	msg := fmt.Sprintf("Tables merged: %d, rows: %d, attributes: %d", j.files, len(j.rows), len(j.title))
	if j.failed > 0 {
		msg += fmt.Sprintf(", unreadable files: %d", j.failed)
	}
	return msg
}
