package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ggonzalez94/wallet-cli/internal/command"
	"github.com/ggonzalez94/wallet-cli/internal/config"
	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/out"
	"github.com/ggonzalez94/wallet-cli/internal/policy"
	"github.com/ggonzalez94/wallet-cli/internal/prompt"
	"github.com/ggonzalez94/wallet-cli/internal/registry"
	"github.com/ggonzalez94/wallet-cli/internal/schema"
	"github.com/ggonzalez94/wallet-cli/internal/shell"
	"github.com/ggonzalez94/wallet-cli/internal/vault"
	"github.com/ggonzalez94/wallet-cli/internal/version"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// managerAnnotation marks cobra commands that run a manager shell command.
const managerAnnotation = "manager"

type secretSource interface {
	shell.Secrets
	AcquirePassword(vaultExists bool) (string, error)
	Interactive() bool
}

type Runner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	menu         prompt.Menu
	newReader    func(historyLimit int) (prompt.LineReader, error)
	newSecrets   func() secretSource
	vaultOptions []vault.Option
}

func NewRunner() *Runner {
	return NewRunnerWithIO(os.Stdin, os.Stdout, os.Stderr)
}

func NewRunnerWithIO(stdin io.Reader, stdout, stderr io.Writer) *Runner {
	r := &Runner{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
		menu:   prompt.HuhMenu{},
	}
	// readline drains stdin in the background, so piped input goes through
	// one buffered reader shared by passwords and shell lines.
	var piped *bufio.Reader
	if !isTerminal(stdin) {
		piped = bufio.NewReader(stdin)
	}
	r.newReader = func(historyLimit int) (prompt.LineReader, error) {
		if piped != nil {
			return prompt.NewLines(piped, r.stdout), nil
		}
		in, ok := r.stdin.(io.ReadCloser)
		if !ok {
			in = io.NopCloser(r.stdin)
		}
		return prompt.NewReadline(in, r.stdout, historyLimit)
	}
	r.newSecrets = func() secretSource {
		if piped != nil {
			return prompt.NewSecretPrompt(piped, r.stderr)
		}
		return prompt.NewSecretPrompt(r.stdin, r.stderr)
	}
	return r
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	root        *cobra.Command
	lastCommand string

	printer  *out.Printer
	logger   *slog.Logger
	closeLog func() error
	secrets  secretSource
	reader   prompt.LineReader
	wallet   *wallet
}

func (r *Runner) Run(args []string) int {
	return r.run(context.Background(), args)
}

func (r *Runner) run(ctx context.Context, args []string) int {
	state := &runtimeState{runner: r, logger: slog.New(slog.DiscardHandler)}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetIn(r.stdin)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(ctx)
	err = normalizeRunError(err)
	if err != nil {
		state.renderError(err)
	}
	state.close()
	if err == nil {
		return 0
	}
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName + " [identifier]",
		Short: "Interactive wallet shell",
		Long: "Without arguments, opens the wallet and enters the only account, offers a selector for several,\n" +
			"or starts at the account manager prompt. An identifier (alias or index) enters that account directly.",
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			return s.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			identifier := ""
			if len(args) == 1 {
				identifier = strings.TrimSpace(args[0])
			}
			return s.runInteractive(cmd.Context(), identifier)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	flags.StringVar(&s.flags.StoragePath, "storage", "", "Storage directory (default "+config.DefaultStorage+")")
	flags.StringVar(&s.flags.VaultPath, "vault", "", "Vault file (default "+config.DefaultVault+")")
	flags.StringVar(&s.flags.Network, "network", "", "Network name ("+strings.Join(registry.Names(), ", ")+")")
	flags.StringVar(&s.flags.NodeURL, "node", "", "Node URL, overrides the stored node")
	flags.BoolVar(&s.flags.JSON, "json", false, "Output JSON")
	flags.BoolVar(&s.flags.Plain, "plain", false, "Output plain text (default)")
	flags.BoolVar(&s.flags.NoColor, "no-color", false, "Disable colored output")
	flags.StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	flags.StringVar(&s.flags.Timeout, "timeout", "", "Node and faucet request timeout")
	flags.IntVar(&s.flags.Retries, "retries", -1, "Retries per node request")
	flags.StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(s.newInitCommand())
	cmd.AddCommand(s.managerCommand("new [alias]", "Create an account and enter it", cobra.MaximumNArgs(1), func(args []string) command.ManagerCommand {
		return command.New{Alias: optionalArg(args)}
	}))
	cmd.AddCommand(s.managerCommand("select <identifier>", "Enter an account by alias or index", cobra.ExactArgs(1), func(args []string) command.ManagerCommand {
		return command.Select{Identifier: args[0]}
	}))
	cmd.AddCommand(s.managerCommand("accounts", "List accounts", cobra.NoArgs, func([]string) command.ManagerCommand {
		return command.Accounts{}
	}))
	cmd.AddCommand(s.managerCommand("set-node <url>", "Set the node used by all accounts", cobra.ExactArgs(1), func(args []string) command.ManagerCommand {
		return command.SetNode{URL: args[0]}
	}))
	cmd.AddCommand(s.managerCommand("sync", "Synchronize all accounts", cobra.NoArgs, func([]string) command.ManagerCommand {
		return command.SyncAll{}
	}))
	cmd.AddCommand(s.managerCommand("backup <path>", "Write an encrypted backup", cobra.ExactArgs(1), func(args []string) command.ManagerCommand {
		return command.Backup{Path: args[0]}
	}))
	cmd.AddCommand(s.managerCommand("restore <path>", "Restore accounts and mnemonic from a backup", cobra.ExactArgs(1), func(args []string) command.ManagerCommand {
		return command.Restore{Path: args[0]}
	}))
	cmd.AddCommand(s.managerCommand("change-password", "Change the vault password", cobra.NoArgs, func([]string) command.ManagerCommand {
		return command.ChangePassword{}
	}))
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// prepare loads settings and sets up output and logging before any command runs.
func (s *runtimeState) prepare(cmd *cobra.Command) error {
	settings, err := config.Load(s.flags)
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
	}
	s.settings = settings
	s.printer = out.NewPrinter(s.runner.stdout, s.runner.stderr, settings.OutputMode, settings.Color && isTerminal(s.runner.stdout))

	logger, closeLog, err := newLogger(s.runner.stderr, settings.LogLevel, settings.LogFile)
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "configure logging", err)
	}
	s.logger, s.closeLog = logger, closeLog

	path := trimRootPath(cmd.CommandPath())
	s.lastCommand = path
	if cmd != s.root && cmd.Annotations[managerAnnotation] == "" {
		if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
			return err
		}
	}
	return nil
}

func (s *runtimeState) newInitCommand() *cobra.Command {
	var mnemonic string
	cmd := s.managerCommand("init", "Store a mnemonic, generating one when none is given", cobra.NoArgs, func([]string) command.ManagerCommand {
		return command.Init{Mnemonic: strings.TrimSpace(mnemonic), NodeURL: s.flags.NodeURL}
	})
	cmd.Flags().StringVarP(&mnemonic, "mnemonic", "m", "", "Recovery phrase to store")
	return cmd
}

// managerCommand exposes one manager shell command on the process command line.
func (s *runtimeState) managerCommand(use, short string, args cobra.PositionalArgs, build func([]string) command.ManagerCommand) *cobra.Command {
	return &cobra.Command{
		Use:         use,
		Short:       short,
		Args:        args,
		Annotations: map[string]string{managerAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runOneShot(cmd.Context(), build(args))
		},
	}
}

func (s *runtimeState) runInteractive(ctx context.Context, identifier string) error {
	session, err := s.managerSession(ctx)
	if err != nil {
		return err
	}
	return session.Run(ctx, identifier)
}

// runOneShot executes a manager command and, for new and select, enters the
// resulting account's session.
func (s *runtimeState) runOneShot(ctx context.Context, cmd command.ManagerCommand) error {
	session, err := s.managerSession(ctx)
	if err != nil {
		return err
	}
	outcome, err := session.Execute(ctx, cmd)
	if err != nil {
		return err
	}
	if outcome.Enter != nil {
		return session.Enter(ctx, outcome.Enter)
	}
	return nil
}

func (s *runtimeState) managerSession(ctx context.Context) (*shell.ManagerSession, error) {
	if s.secrets == nil {
		s.secrets = s.runner.newSecrets()
	}
	w, err := s.openWallet(ctx)
	if err != nil {
		return nil, err
	}
	s.wallet = w

	reader, err := s.runner.newReader(s.settings.HistoryLimit)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open line editor", err)
	}
	s.reader = reader
	network := w.engine.Network()
	account := &shell.Session{
		Reader:  reader,
		Printer: s.printer,
		Dispatcher: &shell.Dispatcher{
			Printer:   s.printer,
			Unit:      out.Unit{Ticker: network.TickerSymbol, Decimals: network.Decimals},
			FaucetURL: s.settings.FaucetURL,
			Allowlist: s.settings.EnableCommands,
		},
		Logger: s.logger,
	}
	return &shell.ManagerSession{
		Manager:   managerAdapter{w.engine},
		Account:   account,
		Menu:      s.runner.menu,
		Secrets:   s.secrets,
		Allowlist: s.settings.EnableCommands,
		Reopen:    w.reopen,
	}, nil
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema; \"account\" and \"manager\" describe the shell grammars",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.printer.Result(trimRootPath(cmd.CommandPath()), data)
		},
	}
	return cmd
}

func (s *runtimeState) renderError(err error) {
	commandPath := s.lastCommand
	if commandPath == "" {
		commandPath = version.CLIName
	}
	printer := s.printer
	if printer == nil {
		printer = out.NewPrinter(s.runner.stdout, s.runner.stderr, out.ModePlain, false)
	}
	_ = printer.Error(commandPath, err)
}

func (s *runtimeState) close() {
	if s.reader != nil {
		_ = s.reader.Close()
	}
	if s.wallet != nil {
		s.wallet.close()
		s.wallet = nil
	}
	if s.closeLog != nil {
		_ = s.closeLog()
	}
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"flag needs an argument",
		"requires at least",
		"accepts ",
		"invalid argument",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
