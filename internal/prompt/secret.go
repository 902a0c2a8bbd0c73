// Package prompt holds the interactive terminal pieces: masked password entry,
// the account menu and the line editor used by the shell loops.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"golang.org/x/term"
)

// EnvPassword supplies the vault password to non-interactive runs.
const EnvPassword = "WALLET_PASSWORD"

var (
	ErrPasswordMismatch = clierr.New(clierr.CodeAuth, "password mismatch")
	ErrEmptyPassword    = clierr.New(clierr.CodeAuth, "password must not be empty")
)

// SecretPrompt reads secrets without echo when attached to a terminal and
// falls back to plain line reads otherwise.
type SecretPrompt struct {
	out      io.Writer
	fd       int
	terminal bool
	reader   *bufio.Reader
	getenv   func(string) string
}

// NewSecretPrompt reads from in. Pass the *bufio.Reader shared with the
// line reader when stdin is piped; it is used as is.
func NewSecretPrompt(in io.Reader, out io.Writer) *SecretPrompt {
	p := &SecretPrompt{out: out, getenv: os.Getenv}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.terminal = true
		return p
	}
	p.reader = bufio.NewReader(in)
	return p
}

// Interactive reports whether a failed unlock may be retried by asking again.
func (p *SecretPrompt) Interactive() bool {
	return p.terminal && p.getenv(EnvPassword) == ""
}

func (p *SecretPrompt) ReadSecret(label string) (string, error) {
	_, _ = fmt.Fprintf(p.out, "%s: ", label)
	if p.terminal {
		buf, err := term.ReadPassword(p.fd)
		_, _ = fmt.Fprintln(p.out)
		if err != nil {
			return "", clierr.Wrap(clierr.CodeAuth, "read password", err)
		}
		return string(buf), nil
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", clierr.Wrap(clierr.CodeAuth, "read password", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// AcquirePassword asks for the vault password, with confirmation when no vault exists yet.
// A mismatch is returned as ErrPasswordMismatch; the caller decides whether to ask again.
func (p *SecretPrompt) AcquirePassword(vaultExists bool) (string, error) {
	if v := p.getenv(EnvPassword); v != "" {
		return v, nil
	}
	password, err := p.ReadSecret("What's the stronghold password?")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", ErrEmptyPassword
	}
	if vaultExists {
		return password, nil
	}
	confirm, err := p.ReadSecret("Confirm password")
	if err != nil {
		return "", err
	}
	if confirm != password {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

// NewPassword always asks twice.
func (p *SecretPrompt) NewPassword() (string, error) {
	password, err := p.ReadSecret("New stronghold password")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", ErrEmptyPassword
	}
	confirm, err := p.ReadSecret("Confirm password")
	if err != nil {
		return "", err
	}
	if confirm != password {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

func (p *SecretPrompt) BackupPassword() (string, error) {
	password, err := p.ReadSecret("What's the backup password?")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", ErrEmptyPassword
	}
	return password, nil
}
