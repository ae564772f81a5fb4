// Package micromine reads and writes the ';'-separated text tables that
// Micromine imports as .DAT files. Files are encoded in Windows-1251.
package micromine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Separator between attributes on a line
const Separator = ";"

// MissingValue is written for attributes a row does not carry
const MissingValue = "0"

var (
	ErrEmptyTitle    = errors.New("attribute list for the title is empty")
	ErrNoTitle       = errors.New("title has not been written")
	ErrNoRows        = errors.New("no rows to write")
	ErrTitleMismatch = errors.New("row attributes do not match the title")
)

// Coordinate and depth attributes get the names Micromine expects
var renamed = map[string]string{
	"X":          "east",
	"X факт.":    "east",
	"Y":          "north",
	"Y факт.":    "north",
	"Глубина ТН": "depth",
}

// AttributeName returns the title form of an attribute name
func AttributeName(name string) string {
	if r, ok := renamed[name]; ok {
		return r
	}
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ReplaceAll(name, ";", "_")
}

// SanitizeValue makes a value safe to place between separators
func SanitizeValue(value string) string {
	value = strings.ReplaceAll(value, ";", ", ")
	return strings.ReplaceAll(value, "\n", "_")
}

// Writer writes one table. The title must be written before any rows.
type Writer struct {
	path  string
	file  *os.File
	out   *bufio.Writer
	title []string
}

// Create truncates or creates path
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc := encoding.ReplaceUnsupported(charmap.Windows1251.NewEncoder())
	return &Writer{
		path: path,
		file: f,
		out:  bufio.NewWriter(transform.NewWriter(f, enc)),
	}, nil
}

// Path returns the file being written
func (w *Writer) Path() string {
	return w.path
}

// Title returns the attribute names as given to WriteTitle
func (w *Writer) Title() []string {
	return append([]string(nil), w.title...)
}

// WriteTitle writes the header line. Rows are later keyed by the names
// given here, not by their renamed forms.
func (w *Writer) WriteTitle(names []string) error {
	if len(names) == 0 {
		return ErrEmptyTitle
	}
	w.title = append([]string(nil), names...)

	header := make([]string, len(names))
	for i, n := range names {
		header[i] = AttributeName(n)
	}
	return w.writeLine(header)
}

// WriteRows writes rows that carry exactly the title attributes
func (w *Writer) WriteRows(rows []map[string]string) error {
	if w.title == nil {
		return ErrNoTitle
	}
	if len(rows) == 0 {
		return ErrNoRows
	}
	for i, row := range rows {
		if !sameKeys(w.title, row) {
			return fmt.Errorf("row %d: %w", i+1, ErrTitleMismatch)
		}
	}
	return w.write(rows)
}

// WriteRowsFillMissing writes rows that may lack some title attributes;
// absent values are written as MissingValue. Extra keys are ignored.
func (w *Writer) WriteRowsFillMissing(rows []map[string]string) error {
	if w.title == nil {
		return ErrNoTitle
	}
	return w.write(rows)
}

func (w *Writer) write(rows []map[string]string) error {
	cells := make([]string, len(w.title))
	for _, row := range rows {
		for i, name := range w.title {
			if v, ok := row[name]; ok {
				cells[i] = SanitizeValue(v)
			} else {
				cells[i] = MissingValue
			}
		}
		if err := w.writeLine(cells); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeLine(cells []string) error {
	if _, err := w.out.WriteString(strings.Join(cells, Separator)); err != nil {
		return err
	}
	return w.out.WriteByte('\n')
}

// Close flushes and closes the file
func (w *Writer) Close() error {
	flushErr := w.out.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func sameKeys(title []string, row map[string]string) bool {
	if len(row) != len(title) {
		return false
	}
	for _, name := range title {
		if _, ok := row[name]; !ok {
			return false
		}
	}
	return true
}

// Table is a table read back from a file
type Table struct {
	Title []string
	Rows  []map[string]string
}

// ReadTable reads a Windows-1251 table from path
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a Windows-1251 table from r. Empty lines are skipped; a
// short row leaves its trailing attributes empty.
func Read(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(transform.NewReader(r, charmap.Windows1251.NewDecoder()))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	table := &Table{}
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		cells := strings.Split(text, Separator)

		if table.Title == nil {
			table.Title = cells
			continue
		}
		if len(cells) > len(table.Title) {
			return nil, fmt.Errorf("line %d: %d values for %d attributes", line, len(cells), len(table.Title))
		}
		row := make(map[string]string, len(table.Title))
		for i, name := range table.Title {
			if i < len(cells) {
				row[name] = cells[i]
			} else {
				row[name] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if table.Title == nil {
		return nil, ErrEmptyTitle
	}
	return table, nil
}
