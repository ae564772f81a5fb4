package logger

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// FileFormatter writes every entry on one line with a timestamp, the log
// type and sorted fields. It backs the optional log file.
type FileFormatter struct {
	TimestampFormat string
}

// NewFileFormatter creates a formatter with the default timestamp layout
func NewFileFormatter() *FileFormatter {
	return &FileFormatter{TimestampFormat: "2006-01-02 15:04:05"}
}

// Format implements logrus.Formatter
func (f *FileFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	b.WriteString(entry.Time.Format(f.TimestampFormat))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(entry.Level.String()))

	logType, _ := entry.Data["log_type"].(string)
	if logType == "" {
		logType = string(OpLog)
	}
	b.WriteString(" [")
	b.WriteString(logType)
	b.WriteString("] ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == "log_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(" %s=%v", k, entry.Data[k]))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}
