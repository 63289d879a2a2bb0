package shell

import (
	"fmt"
	"io"
)

// Result is the outcome of one command.
type Result interface {
	Print(w io.Writer)
	IsExit() bool
}

// ErrorResult is logged rather than printed.
type ErrorResult struct {
	Err error
}

func (e ErrorResult) Print(w io.Writer) {
	fmt.Fprintln(w, e.Err)
}

func (e ErrorResult) IsExit() bool {
	return false
}

type ExitResult struct{}

func (ExitResult) Print(w io.Writer) {
	fmt.Fprintln(w, "Bye!")
}

func (ExitResult) IsExit() bool {
	return true
}

// TextResult prints a message verbatim.
type TextResult struct {
	Text string
}

func (t TextResult) Print(w io.Writer) {
	if t.Text != "" {
		fmt.Fprintln(w, t.Text)
	}
}

func (t TextResult) IsExit() bool {
	return false
}

// JSONResult prints a value through the shell's Printer.
type JSONResult struct {
	Value   any
	printer *Printer
}

func (j JSONResult) Print(w io.Writer) {
	if err := j.printer.JSON(w, j.Value); err != nil {
		fmt.Fprintln(w, err)
	}
}

func (j JSONResult) IsExit() bool {
	return false
}
