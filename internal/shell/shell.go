// Package shell is oppy's interactive command loop: a prompt that logs the
// user in, then searches, lists and prints vault items.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/avoiney/oppy/internal/audit"
	"github.com/avoiney/oppy/internal/catalog"
	"github.com/avoiney/oppy/internal/records"
	"github.com/avoiney/oppy/internal/session"
	"github.com/avoiney/oppy/internal/vault"
	apperrors "github.com/avoiney/oppy/pkg/errors"
	"github.com/avoiney/oppy/pkg/logger"
)

// Prompt is shown before every command.
const Prompt = "(op ➜) "

const loginAttempts = 3

// VaultClient is the part of *vault.Client the shell calls directly.
type VaultClient interface {
	SignIn(ctx context.Context, domain, password string) (string, error)
	GetItem(ctx context.Context, s vault.Session, vaultName, ref string) (records.Record, error)
	Version(ctx context.Context) (string, error)
	Update(ctx context.Context) (string, error)
}

// HistorySource serves the history command.
type HistorySource interface {
	Recent(ctx context.Context, profile string, limit int) ([]audit.Event, error)
}

// Deps are the shell's collaborators. Stats and History may be nil, which
// disables the matching commands.
type Deps struct {
	Catalog  *catalog.Catalog
	Vault    VaultClient
	Sessions session.Store
	Stats    *audit.Aggregator
	History  HistorySource
	Prompter Prompter
	Printer  *Printer
	Out      io.Writer
}

// Command is one parsed input line.
type Command struct {
	Name string
	Arg  string
}

// ParseCommand splits line into a command name and the rest of the line.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	name, arg, _ := strings.Cut(line, " ")
	if name == "?" {
		name = "help"
	}
	return Command{Name: name, Arg: strings.TrimSpace(arg)}
}

type Shell struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps) *Shell {
	if deps.Printer == nil {
		deps.Printer = NewPrinter(false, "")
	}
	return &Shell{
		deps:   deps,
		logger: logger.WithComponent("shell"),
	}
}

// Run greets the user, logs in and reads commands until bye or end of input.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.deps.Out, "Welcome to oppy!")
	if err := s.login(ctx); err != nil {
		return err
	}
	for {
		line, err := s.deps.Prompter.Prompt(Prompt)
		switch {
		case errors.Is(err, io.EOF):
			fmt.Fprintln(s.deps.Out)
			line = "EOF"
		case errors.Is(err, ErrInterrupted):
			continue
		case err != nil:
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line != "EOF" {
			s.deps.Prompter.AppendHistory(line)
		}
		res := s.Execute(ctx, ParseCommand(line))
		if e, ok := res.(ErrorResult); ok {
			s.logger.Error(e.Err.Error())
			continue
		}
		res.Print(s.deps.Out)
		if res.IsExit() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Execute runs one command. Every command but login and the exit commands
// first makes sure a session exists, logging in when it does not.
func (s *Shell) Execute(ctx context.Context, cmd Command) Result {
	switch cmd.Name {
	case "login", "bye", "EOF":
	default:
		if err := s.ensureSession(ctx); err != nil {
			return ErrorResult{Err: err}
		}
	}
	switch cmd.Name {
	case "login":
		if err := s.login(ctx); err != nil {
			return ErrorResult{Err: err}
		}
		return TextResult{}
	case "session":
		return s.session(ctx)
	case "version":
		return s.passthrough(ctx, s.deps.Vault.Version)
	case "update":
		return s.passthrough(ctx, s.deps.Vault.Update)
	case "refresh":
		return s.refresh(ctx)
	case "list":
		return s.list(ctx)
	case "get":
		return s.get(ctx, cmd.Arg)
	case "search":
		return s.search(ctx, cmd.Arg)
	case "explain":
		return s.explain(cmd.Arg)
	case "setvault":
		return s.setVault(cmd.Arg)
	case "setdebug":
		return s.setDebug(cmd.Arg)
	case "getconf":
		return s.getConf()
	case "history":
		return s.history(ctx, cmd.Arg)
	case "stats":
		return s.stats()
	case "help":
		return helpResult{}
	case "bye", "EOF":
		return ExitResult{}
	default:
		return ErrorResult{Err: fmt.Errorf("unknown command: %s", cmd.Name)}
	}
}

func (s *Shell) ensureSession(ctx context.Context) error {
	_, err := s.deps.Catalog.Session(ctx)
	if errors.Is(err, apperrors.ErrNotLoggedIn) {
		return s.login(ctx)
	}
	return err
}

// login asks for the master password and stores the new session. A wrong
// password is reported and asked for again, up to loginAttempts times.
func (s *Shell) login(ctx context.Context) error {
	domain := s.deps.Catalog.Profile().Domain
	var lastErr error
	for attempt := 0; attempt < loginAttempts; attempt++ {
		password, err := s.deps.Prompter.PasswordPrompt(fmt.Sprintf("1password master for %s: ", domain))
		if err != nil {
			return apperrors.Newf(apperrors.ErrNotLoggedIn, apperrors.ExitAuth, "login aborted: %v", err)
		}
		fmt.Fprint(s.deps.Out, "Waiting for authentication checks...")
		token, err := s.deps.Vault.SignIn(ctx, domain, password)
		fmt.Fprintln(s.deps.Out)
		if err != nil {
			s.logger.Error("sign-in failed", "domain", domain, "error", err)
			lastErr = err
			continue
		}
		if err := s.deps.Sessions.Set(ctx, domain, token); err != nil {
			return fmt.Errorf("storing session: %w", err)
		}
		s.logger.Debug("session stored", "domain", domain)
		fmt.Fprintln(s.deps.Out, "Login successful")
		return nil
	}
	return fmt.Errorf("login failed after %d attempts: %w", loginAttempts, lastErr)
}
