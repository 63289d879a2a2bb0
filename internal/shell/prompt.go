package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
)

// ErrInterrupted is returned by a Prompter when the user presses Ctrl-C.
var ErrInterrupted = errors.New("interrupted")

// Prompter reads user input. At end of input it returns io.EOF.
type Prompter interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// LinerPrompter is the terminal Prompter, with line editing and a history
// file.
type LinerPrompter struct {
	state       *liner.State
	historyPath string
}

// NewLinerPrompter takes over the terminal. historyPath may be empty.
func NewLinerPrompter(historyPath string) *LinerPrompter {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	p := &LinerPrompter{state: state, historyPath: historyPath}
	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			_, _ = state.ReadHistory(f)
			f.Close()
		}
	}
	return p
}

func (p *LinerPrompter) Prompt(prompt string) (string, error) {
	line, err := p.state.Prompt(prompt)
	return line, translate(err)
}

func (p *LinerPrompter) PasswordPrompt(prompt string) (string, error) {
	pw, err := p.state.PasswordPrompt(prompt)
	return pw, translate(err)
}

func (p *LinerPrompter) AppendHistory(line string) {
	p.state.AppendHistory(line)
}

// Close restores the terminal and saves the history.
func (p *LinerPrompter) Close() error {
	if p.historyPath != "" {
		if f, err := os.OpenFile(p.historyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = p.state.WriteHistory(f)
			f.Close()
		}
	}
	return p.state.Close()
}

func translate(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) {
		return ErrInterrupted
	}
	return err
}

// choose lists choices and asks for an index until it gets a valid one.
// It returns -1 when the user quits.
func choose(p Prompter, w io.Writer, choices []string) (int, error) {
	for {
		for i, c := range choices {
			fmt.Fprintf(w, "%d: %s\n", i, c)
		}
		answer, err := p.Prompt("Enter one of the choices above: ")
		if errors.Is(err, io.EOF) || errors.Is(err, ErrInterrupted) {
			return -1, nil
		}
		if err != nil {
			return -1, err
		}
		answer = strings.TrimSpace(answer)
		if idx, err := strconv.Atoi(answer); err == nil && idx >= 0 && idx < len(choices) {
			return idx, nil
		}
		switch answer {
		case "q", "quit", "exit":
			return -1, nil
		}
	}
}
