package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ggonzalez94/wallet-cli/internal/command"
	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/grammar"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/ggonzalez94/wallet-cli/internal/out"
	"github.com/ggonzalez94/wallet-cli/internal/policy"
	"github.com/ggonzalez94/wallet-cli/internal/prompt"
)

// Outcome tells the caller what a manager command asks for next.
type Outcome struct {
	// Enter is the account whose session should start, if any.
	Enter Account
	// Done ends the manager session; init is one-shot.
	Done bool
}

// ManagerSession is the multi-account prompt. Entering an account runs a
// nested Session; leaving it comes back here.
type ManagerSession struct {
	Manager   Manager
	Account   *Session
	Menu      prompt.Menu
	Secrets   Secrets
	Allowlist []string
	// Reopen rebuilds the engine after restore or a password change. An
	// empty password keeps the current one.
	Reopen func(ctx context.Context, password string) (Manager, error)
}

func (m *ManagerSession) printer() *out.Printer { return m.Account.Printer }

// Run enters the account named by identifier, or lets the user pick one,
// then serves the manager prompt until exit.
func (m *ManagerSession) Run(ctx context.Context, identifier string) error {
	if identifier != "" {
		acc, err := m.Manager.Account(identifier)
		if err != nil {
			m.Account.report("select", err)
		} else if err := m.Enter(ctx, acc); err != nil {
			return err
		}
	} else if acc, ok, err := m.pick(); err != nil {
		return err
	} else if ok {
		if err := m.Enter(ctx, acc); err != nil {
			return err
		}
	}
	return m.loop(ctx)
}

// pick runs the account selector over the known accounts.
func (m *ManagerSession) pick() (Account, bool, error) {
	summaries := m.Manager.Accounts()
	chosen, ok, err := prompt.Select(m.Menu, summaries, func(a model.AccountSummary) string {
		return fmt.Sprintf("%d: %s", a.Index, a.Alias)
	})
	if err != nil || !ok {
		return nil, false, err
	}
	acc, err := m.Manager.Account(chosen.Alias)
	if err != nil {
		return nil, false, err
	}
	return acc, true, nil
}

// Enter runs account sessions. With several accounts the selector is offered
// again after each exit so the user can switch without restarting.
func (m *ManagerSession) Enter(ctx context.Context, acc Account) error {
	for acc != nil {
		if err := m.Account.Run(ctx, acc); err != nil {
			return err
		}
		if len(m.Manager.Accounts()) < 2 {
			return nil
		}
		next, ok, err := m.pick()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		acc = next
	}
	return nil
}

func (m *ManagerSession) loop(ctx context.Context) error {
	reader := m.Account.Reader
	for {
		reader.SetCompletions(grammar.Manager().Names())
		line, err := reader.ReadLine(m.printer().Prompt("Account manager command (h for help)"))
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

		cmd, err := command.ParseManager(line)
		if err != nil {
			m.Account.report("manager", err)
			continue
		}
		switch cmd.(type) {
		case command.Help:
			m.Account.help(grammar.Manager())
			continue
		case command.Clear:
			if err := reader.Clear(); err != nil {
				m.Account.report("manager clear", err)
			}
			continue
		case command.Exit:
			return nil
		}

		outcome, err := m.Execute(ctx, cmd)
		if err != nil {
			m.Account.report("manager "+managerCommandName(cmd), err)
			continue
		}
		if outcome.Enter != nil {
			if err := m.Enter(ctx, outcome.Enter); err != nil {
				return err
			}
		}
		if outcome.Done {
			return nil
		}
	}
}

// Execute runs one manager command. It is also the entry for one-shot
// commands given on the process command line.
func (m *ManagerSession) Execute(ctx context.Context, cmd command.ManagerCommand) (Outcome, error) {
	path := "manager " + managerCommandName(cmd)
	if err := policy.CheckCommandAllowed(m.Allowlist, path); err != nil {
		return Outcome{}, err
	}
	p := m.printer()

	switch c := cmd.(type) {
	case command.Help, command.Clear, command.Exit:
		return Outcome{}, nil

	case command.Init:
		if m.Manager.HasMnemonic() {
			return Outcome{}, clierr.New(clierr.CodeUsage, "the vault already holds a mnemonic")
		}
		if c.NodeURL != "" {
			if err := m.Manager.SetNode(ctx, c.NodeURL); err != nil {
				return Outcome{}, err
			}
		}
		mnemonic := c.Mnemonic
		if mnemonic == "" {
			var err error
			if mnemonic, err = m.Manager.GenerateMnemonic(); err != nil {
				return Outcome{}, err
			}
		}
		if err := m.Manager.StoreMnemonic(mnemonic); err != nil {
			return Outcome{}, err
		}
		// Shown whether given or generated.
		return Outcome{Done: true}, p.Result(path, out.MnemonicView{Mnemonic: mnemonic})

	case command.New:
		acc, err := m.Manager.CreateAccount(ctx, c.Alias)
		if err != nil {
			return Outcome{}, err
		}
		if err := p.Message(path, "Created account `%s`", acc.Alias()); err != nil {
			return Outcome{}, err
		}
		return Outcome{Enter: acc}, nil

	case command.Select:
		acc, err := m.Manager.Account(c.Identifier)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Enter: acc}, nil

	case command.Accounts:
		accounts := m.Manager.Accounts()
		if len(accounts) == 0 {
			return Outcome{}, p.Message(path, "No accounts found")
		}
		return Outcome{}, p.Result(path, out.AccountList(accounts))

	case command.SetNode:
		if err := m.Manager.SetNode(ctx, c.URL); err != nil {
			return Outcome{}, err
		}
		return Outcome{}, p.Message(path, "Node set to %s", c.URL)

	case command.SyncAll:
		bal, err := m.Manager.SyncAll(ctx, model.SyncOptions{})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{}, p.Result(path, out.SyncView{BalanceView: out.BalanceView{Balance: bal, Unit: m.Account.Dispatcher.Unit}})

	case command.Backup:
		if err := m.Manager.Backup(ctx, c.Path); err != nil {
			return Outcome{}, err
		}
		return Outcome{}, p.Message(path, "Backup written to %s", c.Path)

	case command.Restore:
		password, err := m.Secrets.BackupPassword()
		if err != nil {
			return Outcome{}, err
		}
		if err := m.Manager.Restore(ctx, c.Path, password); err != nil {
			return Outcome{}, err
		}
		if err := m.reopen(ctx, ""); err != nil {
			return Outcome{}, err
		}
		return Outcome{}, p.Message(path, "Restored %d accounts from %s", len(m.Manager.Accounts()), c.Path)

	case command.ChangePassword:
		current, err := m.Secrets.ReadSecret("Current stronghold password")
		if err != nil {
			return Outcome{}, err
		}
		next, err := m.Secrets.NewPassword()
		if err != nil {
			return Outcome{}, err
		}
		if err := m.Manager.ChangePassword(current, next); err != nil {
			return Outcome{}, err
		}
		if err := m.reopen(ctx, next); err != nil {
			return Outcome{}, err
		}
		return Outcome{}, p.Message(path, "Password changed")
	}
	return Outcome{}, clierr.Newf(clierr.CodeInternal, "no handler for %T", cmd)
}

func (m *ManagerSession) reopen(ctx context.Context, password string) error {
	if m.Reopen == nil {
		return nil
	}
	next, err := m.Reopen(ctx, password)
	if err != nil {
		return err
	}
	m.Manager = next
	return nil
}

func managerCommandName(cmd command.ManagerCommand) string {
	switch cmd.(type) {
	case command.Help:
		return grammar.CmdHelp
	case command.Clear:
		return grammar.CmdClear
	case command.Exit:
		return grammar.CmdExit
	case command.Init:
		return grammar.CmdInit
	case command.New:
		return grammar.CmdNew
	case command.Select:
		return grammar.CmdSelect
	case command.Accounts:
		return grammar.CmdAccounts
	case command.SetNode:
		return grammar.CmdSetNode
	case command.SyncAll:
		return grammar.CmdSync
	case command.Backup:
		return grammar.CmdBackup
	case command.Restore:
		return grammar.CmdRestore
	case command.ChangePassword:
		return grammar.CmdChangePassword
	}
	return "unknown"
}
