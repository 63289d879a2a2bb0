package vault

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
)

// Command is one invocation of the op executable.
type Command struct {
	Args  []string
	Env   []string // KEY=VALUE pairs added to the inherited environment
	Stdin string
}

// Name is the op subcommand, used as a metrics label.
func (c Command) Name() string {
	if len(c.Args) == 0 {
		return "op"
	}
	return strings.TrimLeft(c.Args[0], "-")
}

// Result is what the executable printed.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes op commands. The error reports failure to run or a
// non-zero exit; the Result is filled in either way.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs a real binary through os/exec.
type ExecRunner struct {
	Binary string
}

func (r ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, r.Binary, cmd.Args...)
	c.Env = append(os.Environ(), cmd.Env...)
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := c.Run()
	return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}
