package jobs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/logger"
	"github.com/maxkimambo/geotask/internal/micromine"
	"github.com/maxkimambo/geotask/internal/progress"
	"github.com/maxkimambo/geotask/internal/task"
)

func init() {
	logger.Setup(false, false, true)
}

// inline delivers snapshots synchronously
type inline struct{}

func (inline) Post(fn func()) bool {
	fn()
	return true
}

func execute(t *testing.T, tk *task.Task) []progress.Snapshot {
	t.Helper()
	var seen []progress.Snapshot
	tk.Progress().Subscribe(func(s progress.Snapshot) { seen = append(seen, s) }, inline{})
	require.True(t, tk.MarkRunning())
	tk.Execute()
	return seen
}

func titles(snaps []progress.Snapshot) []string {
	var out []string
	last := ""
	for _, s := range snaps {
		if s.Title != "" && s.Title != last {
			out = append(out, s.Title)
			last = s.Title
		}
	}
	return out
}

type fakeTable struct {
	rows      []int
	readErr   error
	failAt    int
	writeErr  error
	performed []int
	onPerform func(row int)
}

func (f *fakeTable) Name() string   { return "fake" }
func (f *fakeTable) Intro() string  { return "intro" }
func (f *fakeTable) Source() string { return "input.txt" }
func (f *fakeTable) Report() string { return "report" }
func (f *fakeTable) Write() error   { return f.writeErr }

func (f *fakeTable) ReadTable() ([]int, error) {
	return f.rows, f.readErr
}

func (f *fakeTable) Perform(row int) error {
	if f.onPerform != nil {
		f.onPerform(row)
	}
	if row == f.failAt {
		return errors.New("bad row")
	}
	f.performed = append(f.performed, row)
	return nil
}

func TestOneFileProgress(t *testing.T) {
	job := &fakeTable{rows: []int{1, 2, 3}}
	tk := task.New("fake", nil, OneFile[int](job))

	snaps := execute(t, tk)

	assert.Equal(t, task.StateSucceeded, tk.State())
	assert.Equal(t, []int{1, 2, 3}, job.performed)
	assert.Equal(t, []string{"10%", "40%", "70%", "100%"}, titles(snaps))
	assert.Equal(t, []string{"intro", "Reading input file", "Computing...", "Writing results", "report"}, tk.Console())
}

func TestOneFileRowErrorFails(t *testing.T) {
	job := &fakeTable{rows: []int{1, 2, 3}, failAt: 2}
	tk := task.New("fake", nil, OneFile[int](job))

	execute(t, tk)

	assert.Equal(t, task.StateFailed, tk.State())
	assert.Equal(t, []int{1}, job.performed)
	assert.Equal(t, "0%", tk.Progress().Latest().Title)
}

func TestOneFileReadErrorFails(t *testing.T) {
	job := &fakeTable{readErr: os.ErrNotExist}
	tk := task.New("fake", nil, OneFile[int](job))

	execute(t, tk)

	require.Equal(t, task.StateFailed, tk.State())
	assert.ErrorIs(t, tk.Err(), os.ErrNotExist)
	assert.Contains(t, tk.Console(), "Could not read the input file")
}

func TestOneFileWriteErrorFails(t *testing.T) {
	job := &fakeTable{rows: []int{1}, writeErr: errors.New("disk full")}
	tk := task.New("fake", nil, OneFile[int](job))

	execute(t, tk)
	assert.Equal(t, task.StateFailed, tk.State())
}

func TestOneFileStopsBetweenRows(t *testing.T) {
	job := &fakeTable{rows: []int{1, 2, 3}}
	tk := task.New("fake", nil, OneFile[int](job))
	job.onPerform = func(row int) {
		if row == 1 {
			tk.RequestCancellation()
		}
	}

	execute(t, tk)

	assert.Equal(t, task.StateCancelled, tk.State())
	assert.Equal(t, []int{1}, job.performed)
	assert.Contains(t, tk.Console(), "Task stopped")
	assert.Equal(t, "0%", tk.Progress().Latest().Title)
}

func TestOneFileEmptyTable(t *testing.T) {
	tk := task.New("fake", nil, OneFile[int](&fakeTable{}))
	execute(t, tk)
	assert.Equal(t, task.StateSucceeded, tk.State())
	assert.Equal(t, "100%", tk.Progress().Latest().Title)
}

type fakeFolder struct {
	files     []string
	listErr   error
	bad       map[string]bool
	performed []string
	onPerform func(path string)
}

func (f *fakeFolder) Name() string   { return "fake" }
func (f *fakeFolder) Intro() string  { return "intro" }
func (f *fakeFolder) Source() string { return "/data" }
func (f *fakeFolder) Report() string { return "report" }
func (f *fakeFolder) Finish() error  { return nil }

func (f *fakeFolder) InputFiles() ([]string, error) {
	return f.files, f.listErr
}

func (f *fakeFolder) Perform(path string) error {
	if f.onPerform != nil {
		f.onPerform(path)
	}
	if f.bad[path] {
		return errors.New(path + " is unreadable")
	}
	f.performed = append(f.performed, path)
	return nil
}

func TestManyFilesContinuesAfterFileError(t *testing.T) {
	job := &fakeFolder{
		files: []string{"/data/a.txt", "/data/b.txt", "/data/c.txt", "/data/d.txt"},
		bad:   map[string]bool{"/data/b.txt": true},
	}
	tk := task.New("fake", nil, ManyFiles(job))

	snaps := execute(t, tk)

	assert.Equal(t, task.StateSucceeded, tk.State())
	assert.Equal(t, []string{"/data/a.txt", "/data/c.txt", "/data/d.txt"}, job.performed)
	assert.Contains(t, tk.Console(), "/data/b.txt is unreadable")
	assert.Contains(t, tk.Console(), "Reading file: c.txt")
	assert.Equal(t, []string{"25%", "50%", "75%", "100%"}, titles(snaps))
}

func TestManyFilesEmptyFolderFails(t *testing.T) {
	tk := task.New("fake", nil, ManyFiles(&fakeFolder{}))

	execute(t, tk)

	require.Equal(t, task.StateFailed, tk.State())
	assert.Equal(t, "IO-003", taskerrors.GetErrorCode(errors.Unwrap(tk.Err())))
	assert.Equal(t, []string{"The folder contains no suitable files"}, tk.Console())
}

func TestManyFilesStopsBetweenFiles(t *testing.T) {
	job := &fakeFolder{files: []string{"a", "b", "c"}}
	tk := task.New("fake", nil, ManyFiles(job))
	job.onPerform = func(string) { tk.RequestCancellation() }

	execute(t, tk)

	assert.Equal(t, task.StateCancelled, tk.State())
	assert.Equal(t, []string{"a"}, job.performed)
}

func writeTable(t *testing.T, path string, title []string, rows []map[string]string) {
	t.Helper()
	w, err := micromine.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteTitle(title))
	if len(rows) > 0 {
		require.NoError(t, w.WriteRows(rows))
	}
	require.NoError(t, w.Close())
}

func TestConvertTable(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(in, []byte("ID;east;north\n 1 ; 10 ;20\n;;\n2;11;21\n"), 0o644))

	body, err := ConvertTable{}.NewBody(&ConvertTableParams{Input: in, Output: out, SkipEmpty: true})
	require.NoError(t, err)
	tk := task.New("convert-table", nil, body)
	execute(t, tk)

	require.Equal(t, task.StateSucceeded, tk.State(), "%v", tk.Err())
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID;east;north\n1;10;20\n2;11;21\n", string(raw))
	assert.Contains(t, tk.Console(), "Rows written: 2, empty rows skipped: 1")
}

func TestConvertTableRejectsSameFile(t *testing.T) {
	_, err := ConvertTable{}.NewBody(&ConvertTableParams{Input: "a.txt", Output: "a.txt"})
	assert.Error(t, err)
}

func TestConvertTableMissingInputFails(t *testing.T) {
	dir := t.TempDir()
	body, err := ConvertTable{}.NewBody(&ConvertTableParams{
		Input:  filepath.Join(dir, "missing.txt"),
		Output: filepath.Join(dir, "out.txt"),
	})
	require.NoError(t, err)
	tk := task.New("convert-table", nil, body)
	execute(t, tk)

	require.Equal(t, task.StateFailed, tk.State())
	assert.Equal(t, "TASK-001", taskerrors.GetErrorCode(tk.Err()))
}

func TestMergeTablesFillsMissingAttributes(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, filepath.Join(dir, "a.txt"), []string{"ID", "Au"}, []map[string]string{{"ID": "1", "Au": "0.5"}})
	writeTable(t, filepath.Join(dir, "b.txt"), []string{"ID", "Ag"}, []map[string]string{{"ID": "2", "Ag": "3"}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o644))
	out := filepath.Join(dir, "merged.txt")

	proc := MergeTables{}
	params := proc.NewParams().(*MergeTablesParams)
	params.Folder = dir
	params.Output = out
	body, err := proc.NewBody(params)
	require.NoError(t, err)

	tk := task.New("merge-tables", nil, body)
	execute(t, tk)
	require.Equal(t, task.StateSucceeded, tk.State(), "%v", tk.Err())

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID;Au;Ag\n1;0.5;0\n2;0;3\n", string(raw))

	// a second run must not pick up its own output
	body, err = proc.NewBody(params)
	require.NoError(t, err)
	tk = task.New("merge-tables", nil, body)
	execute(t, tk)
	require.Equal(t, task.StateSucceeded, tk.State())
	raw, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID;Au;Ag\n1;0.5;0\n2;0;3\n", string(raw))
}

func TestMergeTablesEmptyFolder(t *testing.T) {
	dir := t.TempDir()
	body, err := MergeTables{}.NewBody(&MergeTablesParams{Folder: dir, Output: filepath.Join(dir, "m.txt"), Extension: "txt"})
	require.NoError(t, err)

	tk := task.New("merge-tables", nil, body)
	execute(t, tk)
	assert.Equal(t, task.StateFailed, tk.State())
}

func TestSleepCompletes(t *testing.T) {
	body, err := Sleep{}.NewBody(&SleepParams{Duration: 10 * time.Millisecond, Steps: 5})
	require.NoError(t, err)

	tk := task.New("sleep", nil, body)
	snaps := execute(t, tk)

	assert.Equal(t, task.StateSucceeded, tk.State())
	assert.Equal(t, []string{"20%", "40%", "60%", "80%", "100%"}, titles(snaps))
	assert.True(t, strings.HasPrefix(tk.Console()[0], "Sleeping"))
}

func TestSleepFailAt(t *testing.T) {
	body, err := Sleep{}.NewBody(&SleepParams{Duration: 5 * time.Millisecond, Steps: 5, FailAt: 3})
	require.NoError(t, err)

	tk := task.New("sleep", nil, body)
	execute(t, tk)
	assert.Equal(t, task.StateFailed, tk.State())
}

func TestSleepCancelled(t *testing.T) {
	body, err := Sleep{}.NewBody(&SleepParams{Duration: time.Hour, Steps: 2})
	require.NoError(t, err)

	tk := task.New("sleep", nil, body)
	require.True(t, tk.MarkRunning())
	done := make(chan task.State)
	go func() { done <- tk.Execute() }()

	time.Sleep(10 * time.Millisecond)
	tk.RequestCancellation()

	select {
	case s := <-done:
		assert.Equal(t, task.StateCancelled, s)
	case <-time.After(2 * time.Second):
		t.Fatal("sleep did not stop")
	}
}

func TestSleepRejectsBadParams(t *testing.T) {
	_, err := Sleep{}.NewBody(&SleepParams{Steps: 0})
	assert.Error(t, err)
	_, err = Sleep{}.NewBody("nope")
	assert.Error(t, err)
}

func TestBuiltins(t *testing.T) {
	b := Builtins()
	assert.Len(t, b, 3)
	for _, name := range []string{"convert-table", "merge-tables", "sleep"} {
		assert.Contains(t, b, name)
	}
}
