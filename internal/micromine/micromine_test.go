package micromine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"X", "east"},
		{"X факт.", "east"},
		{"Y", "north"},
		{"Y факт.", "north"},
		{"Глубина ТН", "depth"},
		{"Номер пробы", "Номер_пробы"},
		{"a;b c", "a_b_c"},
		{"Z", "Z"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AttributeName(tt.in), tt.in)
	}
}

func TestSanitizeValue(t *testing.T) {
	assert.Equal(t, "a, b", SanitizeValue("a;b"))
	assert.Equal(t, "line1_line2", SanitizeValue("line1\nline2"))
	assert.Equal(t, "plain", SanitizeValue("plain"))
}

func newWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.txt")
	w, err := Create(path)
	require.NoError(t, err)
	return w, path
}

func TestWriteTitleAndRows(t *testing.T) {
	w, path := newWriter(t)

	require.NoError(t, w.WriteTitle([]string{"ID", "X факт.", "Y факт.", "Порода"}))
	require.NoError(t, w.WriteRows([]map[string]string{
		{"ID": "1", "X факт.": "10.5", "Y факт.": "20", "Порода": "гранит;кварц"},
		{"ID": "2", "X факт.": "11", "Y факт.": "21", "Порода": "базальт"},
	}))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// 'П' is 0xCF in Windows-1251
	assert.True(t, bytes.Contains(raw, []byte{0xCF}), "file must be Windows-1251 encoded")

	table, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "east", "north", "Порода"}, table.Title)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, map[string]string{"ID": "1", "east": "10.5", "north": "20", "Порода": "гранит, кварц"}, table.Rows[0])
	assert.Equal(t, "базальт", table.Rows[1]["Порода"])
}

func TestWriteRowsRejectsMismatchedRows(t *testing.T) {
	w, _ := newWriter(t)
	defer w.Close()
	require.NoError(t, w.WriteTitle([]string{"a", "b"}))

	err := w.WriteRows([]map[string]string{{"a": "1"}})
	assert.ErrorIs(t, err, ErrTitleMismatch)

	err = w.WriteRows([]map[string]string{{"a": "1", "b": "2", "c": "3"}})
	assert.ErrorIs(t, err, ErrTitleMismatch)

	assert.ErrorIs(t, w.WriteRows(nil), ErrNoRows)
}

func TestWriteRequiresTitle(t *testing.T) {
	w, _ := newWriter(t)
	defer w.Close()

	assert.ErrorIs(t, w.WriteTitle(nil), ErrEmptyTitle)
	assert.ErrorIs(t, w.WriteRows([]map[string]string{{"a": "1"}}), ErrNoTitle)
	assert.ErrorIs(t, w.WriteRowsFillMissing([]map[string]string{{"a": "1"}}), ErrNoTitle)
}

func TestWriteRowsFillMissing(t *testing.T) {
	w, path := newWriter(t)
	require.NoError(t, w.WriteTitle([]string{"a", "b", "c"}))
	require.NoError(t, w.WriteRowsFillMissing([]map[string]string{
		{"a": "1"},
		{"b": "2", "c": "3", "extra": "x"},
	}))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a;b;c\n1;0;0\n0;2;3\n", string(raw))
}

func TestCreateTruncatesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("old;content\n1;2\n"), 0o644))

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteTitle([]string{"new"}))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(raw))
}

func TestReadSkipsBlankLinesAndPadsShortRows(t *testing.T) {
	table, err := Read(bytes.NewBufferString("a;b;c\r\n\r\n1;2\r\n4;5;6\n"))
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": ""}, table.Rows[0])
	assert.Equal(t, "6", table.Rows[1]["c"])
}

func TestReadRejectsLongRows(t *testing.T) {
	_, err := Read(bytes.NewBufferString("a;b\n1;2;3\n"))
	assert.Error(t, err)
}

func TestReadEmptyInput(t *testing.T) {
	_, err := Read(bytes.NewBufferString("\n\n"))
	assert.ErrorIs(t, err, ErrEmptyTitle)
}
