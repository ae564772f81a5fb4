package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// MessageType defines the type of message box to render.
type MessageType int

const (
	// InfoMessage represents an informational message.
	InfoMessage MessageType = iota
	// SuccessMessage represents a finished task.
	SuccessMessage
	// WarningMessage represents a cancelled task or an aborted action.
	WarningMessage
	// ErrorMessage represents a failed task.
	ErrorMessage
	// QuestionMessage represents a confirmation prompt.
	QuestionMessage
)

const (
	defaultWidth = 80
	minWidth     = 24
	margin       = 8
)

type boxStyle struct {
	colour lipgloss.Color
	prefix string
}

var boxStyles = map[MessageType]boxStyle{
	InfoMessage:     {colour: "86", prefix: "ℹ"},
	SuccessMessage:  {colour: "42", prefix: "✓"},
	WarningMessage:  {colour: "178", prefix: "⚠"},
	ErrorMessage:    {colour: "196", prefix: "✗"},
	QuestionMessage: {colour: "99", prefix: "?"},
}

// Box is a builder for framed terminal messages.
type Box struct {
	messageType MessageType
	title       string
	lines       []string
	width       int
}

// NewBox creates a message box sized to the terminal.
func NewBox(messageType MessageType, title string) *Box {
	return &Box{
		messageType: messageType,
		title:       title,
		width:       TerminalWidth(os.Stdout) - margin,
	}
}

// WithWidth overrides the outer width of the box.
func (b *Box) WithWidth(width int) *Box {
	b.width = width
	return b
}

// AddLine adds a line of text to the box.
func (b *Box) AddLine(text string) *Box {
	b.lines = append(b.lines, text)
	return b
}

// AddBullet adds a bulleted line.
func (b *Box) AddBullet(text string) *Box {
	return b.AddLine("• " + text)
}

// AddField adds an aligned "key: value" line.
func (b *Box) AddField(key string, value interface{}) *Box {
	return b.AddLine(fmt.Sprintf("%-10s %v", key+":", value))
}

// Render returns the framed message.
func (b *Box) Render() string {
	st, ok := boxStyles[b.messageType]
	if !ok {
		st = boxStyles[InfoMessage]
	}

	width := b.width
	if width < minWidth {
		width = minWidth
	}
	// border and padding take two columns on each side
	contentWidth := width - 4

	header := lipgloss.NewStyle().Bold(true).Foreground(st.colour).
		Render(st.prefix + " " + b.title)

	body := []string{header}
	for _, line := range b.lines {
		body = append(body, wrapText(line, contentWidth)...)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(st.colour).
		Padding(0, 1).
		Render(strings.Join(body, "\n"))
}

// Info renders an informational box.
func Info(title string, lines ...string) string {
	return render(InfoMessage, title, lines)
}

// Success renders a success box.
func Success(title string, lines ...string) string {
	return render(SuccessMessage, title, lines)
}

// Warning renders a warning box.
func Warning(title string, lines ...string) string {
	return render(WarningMessage, title, lines)
}

// Error renders an error box.
func Error(title string, lines ...string) string {
	return render(ErrorMessage, title, lines)
}

// Question renders a prompt box.
func Question(title string, lines ...string) string {
	return render(QuestionMessage, title, lines)
}

func render(mt MessageType, title string, lines []string) string {
	box := NewBox(mt, title)
	for _, line := range lines {
		box.AddLine(line)
	}
	return box.Render()
}

// TerminalWidth returns the width of w when it is a terminal, 80 otherwise.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// wrapText splits text into lines no wider than maxWidth runes. Words
// longer than maxWidth are kept whole.
func wrapText(text string, maxWidth int) []string {
	if utf8.RuneCountInString(text) <= maxWidth {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := words[0]
	currentWidth := utf8.RuneCountInString(current)
	for _, word := range words[1:] {
		w := utf8.RuneCountInString(word)
		if currentWidth+w+1 <= maxWidth {
			current += " " + word
			currentWidth += w + 1
			continue
		}
		lines = append(lines, current)
		current = word
		currentWidth = w
	}
	return append(lines, current)
}
