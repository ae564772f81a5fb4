package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/maxkimambo/geotask/internal/coordinator"
	"github.com/maxkimambo/geotask/internal/logger"
)

type answer int

const (
	answerUnknown answer = iota
	answerYes
	answerNo
)

func parseAnswer(line string) answer {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return answerYes
	case "", "n", "no":
		return answerNo
	default:
		return answerUnknown
	}
}

// PromptForConfirmation asks a yes/no question on out and reads the reply
// from in. If autoApprove is true, it returns true without prompting.
func PromptForConfirmation(in io.Reader, out io.Writer, autoApprove bool, action, details string) (bool, error) {
	if autoApprove {
		return true, nil
	}

	box := NewBox(QuestionMessage, "About to "+action).WithWidth(TerminalWidth(out) - margin)
	if details != "" {
		box.AddField("Details", details)
	}
	box.AddLine("Are you sure you want to continue? (yes/no)")
	fmt.Fprintln(out, box.Render())

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		return false, fmt.Errorf("failed to read user confirmation: %w", err)
	}
	return parseAnswer(input) == answerYes, nil
}

// ReadLines scans r on a single goroutine and delivers trimmed lines until
// EOF, when the channel is closed.
func ReadLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			logger.Op.WithFields(map[string]interface{}{
				"error": err.Error(),
			}).Debug("Input reader stopped")
		}
	}()
	return lines
}

type openPrompt struct {
	req            coordinator.Request
	answer         func(bool)
	acceptDisabled bool
}

// TerminalPrompter asks for cancellation confirmation on a terminal.
// Answers arrive as lines through Answer or Serve.
type TerminalPrompter struct {
	out io.Writer

	mu      sync.Mutex
	pending *openPrompt
}

// NewTerminalPrompter creates a prompter writing its questions to out
func NewTerminalPrompter(out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{out: out}
}

// Ask shows the question and returns without waiting for the reply
func (p *TerminalPrompter) Ask(req coordinator.Request, answer func(bool)) {
	p.mu.Lock()
	if p.pending != nil {
		logger.Op.WithFields(map[string]interface{}{
			"request": p.pending.req.ID,
		}).Warn("Replacing an unanswered confirmation prompt")
	}
	p.pending = &openPrompt{req: req, answer: answer}
	p.mu.Unlock()

	box := p.box(QuestionMessage, "Cancel the running task?").
		AddField("Task", req.TaskName)
	if req.ExitAfter {
		box.AddLine("The application will close once the task has stopped.")
	}
	box.AddLine("Type 'y' to cancel the task or 'n' to keep it running.")
	fmt.Fprintln(p.out, box.Render())
}

// DisableAccept tells the user the task has already finished. Any reply
// after this closes the prompt without cancelling.
func (p *TerminalPrompter) DisableAccept(req coordinator.Request) {
	p.mu.Lock()
	if p.pending == nil || p.pending.req.ID != req.ID {
		p.mu.Unlock()
		return
	}
	p.pending.acceptDisabled = true
	p.mu.Unlock()

	fmt.Fprintln(p.out, p.box(InfoMessage, "Task "+req.TaskName+" has already finished").
		AddLine("Press Enter to dismiss.").
		Render())
}

// Pending reports whether a prompt is waiting for an answer
func (p *TerminalPrompter) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

// Answer feeds one line of user input to the open prompt. It returns false
// when no prompt is open and the line was not consumed.
func (p *TerminalPrompter) Answer(line string) bool {
	p.mu.Lock()
	pr := p.pending
	if pr == nil {
		p.mu.Unlock()
		return false
	}

	accepted := false
	if !pr.acceptDisabled {
		switch parseAnswer(line) {
		case answerYes:
			accepted = true
		case answerUnknown:
			p.mu.Unlock()
			fmt.Fprintln(p.out, "Please answer 'y' or 'n'.")
			return true
		}
	}
	p.pending = nil
	p.mu.Unlock()

	pr.answer(accepted)
	return true
}

// Serve routes lines to the open prompt and everything else to fallback
// until ctx is done or lines is closed.
func (p *TerminalPrompter) Serve(ctx context.Context, lines <-chan string, fallback func(string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !p.Answer(line) && fallback != nil {
				fallback(line)
			}
		}
	}
}

func (p *TerminalPrompter) box(mt MessageType, title string) *Box {
	return NewBox(mt, title).WithWidth(TerminalWidth(p.out) - margin)
}
