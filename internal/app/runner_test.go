package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/ggonzalez94/wallet-cli/internal/node/nodetest"
	"github.com/ggonzalez94/wallet-cli/internal/prompt"
	"github.com/ggonzalez94/wallet-cli/internal/vault"
	"github.com/ggonzalez94/wallet-cli/internal/version"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

type lineScript struct{ lines []string }

func (s *lineScript) ReadLine(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *lineScript) SetCompletions([]string) {}
func (s *lineScript) Clear() error            { return nil }
func (s *lineScript) Close() error            { return nil }

type firstChoice struct{}

func (firstChoice) Choose(string, []string) (int, error) { return 0, nil }

type env struct {
	t       *testing.T
	dir     string
	ledger  *nodetest.Ledger
	base    []string
	lastOut string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv(prompt.EnvPassword, "correct horse")
	ledger := nodetest.Start()
	t.Cleanup(ledger.Close)
	return &env{
		t:      t,
		dir:    dir,
		ledger: ledger,
		base: []string{
			"--storage", filepath.Join(dir, "db"),
			"--vault", filepath.Join(dir, "wallet.stronghold"),
			"--node", ledger.URL(),
			"--no-color",
		},
	}
}

// run executes the CLI with the given arguments; lines feed the shell prompts.
func (e *env) run(args []string, lines ...string) (int, string, string) {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithIO(strings.NewReader(""), &stdout, &stderr)
	r.menu = firstChoice{}
	r.vaultOptions = []vault.Option{vault.WithScryptParams(1<<10, 8, 1)}
	script := &lineScript{lines: lines}
	r.newReader = func(int) (prompt.LineReader, error) { return script, nil }
	code := r.Run(append(append([]string{}, e.base...), args...))
	return code, stdout.String(), stderr.String()
}

// runPiped executes the CLI with the default line reader and password prompt
// reading from stdin.
func (e *env) runPiped(stdin string, args ...string) (int, string, string) {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithIO(strings.NewReader(stdin), &stdout, &stderr)
	r.menu = firstChoice{}
	r.vaultOptions = []vault.Option{vault.WithScryptParams(1<<10, 8, 1)}
	code := r.Run(append(append([]string{}, e.base...), args...))
	return code, stdout.String(), stderr.String()
}

func (e *env) mustRun(args []string, lines ...string) string {
	e.t.Helper()
	code, stdout, stderr := e.run(args, lines...)
	if code != 0 {
		e.t.Fatalf("%v: expected exit 0, got %d stderr=%s", args, code, stderr)
	}
	return stdout
}

func TestTrimRootPath(t *testing.T) {
	if got := trimRootPath("wallet set-node"); got != "set-node" {
		t.Fatalf("unexpected trim result: %s", got)
	}
	if got := trimRootPath("wallet"); got != "wallet" {
		t.Fatalf("unexpected trim result: %s", got)
	}
}

func TestRunnerVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := NewRunnerWithIO(strings.NewReader(""), &stdout, &stderr).Run([]string{"version"})
	if code != 0 || stdout.String() != version.CLIVersion+"\n" {
		t.Fatalf("unexpected version output: %d %q", code, stdout.String())
	}
}

func TestRunnerSchemaDescribesAccountGrammar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	code := NewRunnerWithIO(strings.NewReader(""), &stdout, &stderr).Run([]string{"--json", "schema", "account", "send"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Path string `json:"path"`
			Args []struct {
				Name string `json:"name"`
			} `json:"args"`
		} `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	if !env.Success || env.Data.Path != "account send" || len(env.Data.Args) != 2 {
		t.Fatalf("unexpected schema: %+v", env)
	}
}

func TestRunnerUnknownFlagIsUsageError(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	code := NewRunnerWithIO(strings.NewReader(""), &stdout, &stderr).Run([]string{"--bogus"})
	if code != 2 {
		t.Fatalf("expected exit 2, got %d stderr=%s", code, stderr.String())
	}
	if !strings.HasPrefix(stderr.String(), "ERROR: ") {
		t.Fatalf("expected an error line, got %q", stderr.String())
	}
}

func TestRunnerAllowlistBlocksSchema(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	code := NewRunnerWithIO(strings.NewReader(""), &stdout, &stderr).Run([]string{"--json", "--enable-commands", "manager sync", "schema"})
	if code != 16 {
		t.Fatalf("expected exit 16, got %d stderr=%s", code, stderr.String())
	}
	var env map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse error envelope: %v output=%s", err, stderr.String())
	}
	if env["success"] != false {
		t.Fatalf("expected success=false, got %v", env["success"])
	}
}

func TestRunnerInitNewAndAccounts(t *testing.T) {
	e := newEnv(t)
	stdout := e.mustRun([]string{"init", "--mnemonic", testMnemonic})
	if !strings.Contains(stdout, "Mnemonic stored successfully") || !strings.Contains(stdout, testMnemonic) {
		t.Fatalf("expected the stored mnemonic between banners, got %q", stdout)
	}

	code, _, stderr := e.run([]string{"init"})
	if code != 2 || !strings.Contains(stderr, "already holds a mnemonic") {
		t.Fatalf("expected a second init to fail, got %d %q", code, stderr)
	}

	code, stdout, stderr = e.run([]string{"new", "main"}, "addresses", "exit")
	if code != 0 || !strings.Contains(stdout, "Created account `main`") || !strings.Contains(stdout, "ADDRESS rms1") {
		t.Fatalf("unexpected new output %d %q", code, stdout)
	}
	if stderr != "" {
		t.Fatalf("expected no log lines at the default level, got %q", stderr)
	}

	stdout = e.mustRun([]string{"accounts"})
	if strings.TrimSpace(stdout) != "Account 0: main" {
		t.Fatalf("unexpected accounts output %q", stdout)
	}
}

func TestRunnerEntersAccountAndSyncs(t *testing.T) {
	e := newEnv(t)
	e.mustRun([]string{"init", "--mnemonic", testMnemonic})
	stdout := e.mustRun([]string{"new", "main"}, "addresses", "exit")
	address := regexp.MustCompile(`ADDRESS (rms1\w+)`).FindStringSubmatch(stdout)
	if address == nil {
		t.Fatalf("no address in %q", stdout)
	}
	e.ledger.Credit(model.Output{Kind: model.OutputBasic, Amount: 2_000_000, Address: address[1]})

	stdout = e.mustRun([]string{"main"}, "sync", "balance", "exit", "exit")
	if !strings.Contains(stdout, "Synced:") || !strings.Contains(stdout, "Total: 2 SMR") {
		t.Fatalf("unexpected session output %q", stdout)
	}

	// A single account is entered without an identifier.
	stdout = e.mustRun(nil, "balance", "exit", "accounts", "exit")
	if !strings.Contains(stdout, "Available: 2 SMR") || !strings.Contains(stdout, "Account 0: main") {
		t.Fatalf("unexpected interactive output %q", stdout)
	}
}

func TestRunnerReadsPasswordAndCommandsFromOneStdin(t *testing.T) {
	e := newEnv(t)
	e.mustRun([]string{"init", "--mnemonic", testMnemonic})
	e.mustRun([]string{"new", "main"}, "exit")
	t.Setenv(prompt.EnvPassword, "")

	code, stdout, stderr := e.runPiped("correct horse\nbalance\nexit\naccounts\nexit\n")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr)
	}
	if !strings.Contains(stdout, "Available: 0 SMR") || !strings.Contains(stdout, "Account 0: main") {
		t.Fatalf("expected piped commands to run after the password, got %q", stdout)
	}
	if !strings.Contains(stderr, "What's the stronghold password?") {
		t.Fatalf("expected the password prompt on stderr, got %q", stderr)
	}
}

func TestRunnerWrongPasswordFails(t *testing.T) {
	e := newEnv(t)
	e.mustRun([]string{"init", "--mnemonic", testMnemonic})
	t.Setenv(prompt.EnvPassword, "wrong")
	code, _, stderr := e.run([]string{"accounts"})
	if code != 10 {
		t.Fatalf("expected exit 10, got %d stderr=%s", code, stderr)
	}
}

func TestRunnerAllowlistBlocksManagerCommand(t *testing.T) {
	e := newEnv(t)
	e.mustRun([]string{"init", "--mnemonic", testMnemonic})
	code, _, stderr := e.run([]string{"--enable-commands", "manager accounts", "sync"})
	if code != 16 {
		t.Fatalf("expected exit 16, got %d stderr=%s", code, stderr)
	}
	e.mustRun([]string{"--enable-commands", "manager accounts", "accounts"})
}

func TestNewLoggerWritesFile(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "wallet.log")
	logger, closeLog, err := newLogger(&stderr, "warn", path)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	logger.Debug("sync round", "account", 0)
	logger.Warn("node unreachable")
	if err := closeLog(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if strings.Contains(stderr.String(), "sync round") || !strings.Contains(stderr.String(), "node unreachable") {
		t.Fatalf("unexpected stderr log %q", stderr.String())
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(buf), `"msg":"sync round"`) {
		t.Fatalf("expected debug records in the file, got %s", buf)
	}

	if _, _, err := newLogger(&stderr, "loud", ""); err == nil {
		t.Fatal("expected an unknown level to be rejected")
	}
	if lvl, err := parseLevel(""); err != nil || lvl != slog.LevelWarn {
		t.Fatalf("expected warn by default, got %v %v", lvl, err)
	}
}
