package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/ggonzalez94/wallet-cli/internal/command"
	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/grammar"
	"github.com/ggonzalez94/wallet-cli/internal/out"
	"github.com/ggonzalez94/wallet-cli/internal/prompt"
)

// Session is the per-account prompt. One line is one dispatch; a failed
// command is reported and the loop keeps going.
type Session struct {
	Reader     prompt.LineReader
	Printer    *out.Printer
	Dispatcher *Dispatcher
	Logger     *slog.Logger
}

// Run reads commands for acc until exit or end of input.
func (s *Session) Run(ctx context.Context, acc Account) error {
	s.Reader.SetCompletions(grammar.Account().Names())
	for {
		label := fmt.Sprintf("Account `%s` command (h for help)", acc.Alias())
		line, err := s.Reader.ReadLine(s.Printer.Prompt(label))
		switch {
		case errors.Is(err, prompt.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return clierr.Wrap(clierr.CodeInternal, "read input", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cmd, err := command.ParseAccount(line)
		if err != nil {
			s.report("account", err)
			continue
		}
		switch cmd.(type) {
		case command.Help:
			s.help(grammar.Account())
			continue
		case command.Clear:
			if err := s.Reader.Clear(); err != nil {
				s.report("account clear", err)
			}
			continue
		case command.Exit:
			return nil
		}
		s.dispatch(ctx, acc, cmd)
	}
}

func (s *Session) dispatch(ctx context.Context, acc Account, cmd command.AccountCommand) {
	path := "account " + accountCommandName(cmd)
	defer func() {
		if r := recover(); r != nil {
			s.logger().Error("command panicked", "command", path, "panic", r, "stack", string(debug.Stack()))
			s.report(path, clierr.Newf(clierr.CodeInternal, "%s failed unexpectedly", path))
		}
	}()
	s.logger().Debug("dispatch", "command", path, "account", acc.Alias())
	if err := s.Dispatcher.Dispatch(ctx, acc, cmd); err != nil {
		s.report(path, err)
	}
}

func (s *Session) help(g *grammar.Grammar) {
	_, _ = fmt.Fprint(s.Printer.Stdout(), g.Help())
}

func (s *Session) report(path string, err error) {
	s.logger().Debug("command failed", "command", path, "code", int(clierr.CodeOf(err)), "err", err)
	_ = s.Printer.Error(path, err)
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
