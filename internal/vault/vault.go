// Package vault keeps the wallet mnemonic in a password-protected file and
// produces encrypted backups of the whole wallet.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/model"
)

const (
	kindVault  = "vault"
	kindBackup = "backup"
)

type secret struct {
	Mnemonic string `json:"mnemonic,omitempty"`
}

// Backup is the decrypted content of a backup file.
type Backup struct {
	Mnemonic     string               `json:"mnemonic"`
	NodeURL      string               `json:"nodeUrl,omitempty"`
	Accounts     []model.AccountState `json:"accounts"`
	Transactions []model.Transaction  `json:"transactions"`
	CreatedAt    time.Time            `json:"createdAt"`
}

type Vault struct {
	mu       sync.Mutex
	path     string
	password string
	secret   secret
	params   kdfParams
}

type Option func(*Vault)

// WithScryptParams overrides the key derivation cost, mainly for tests.
func WithScryptParams(n, r, p int) Option {
	return func(v *Vault) { v.params = kdfParams{N: n, R: r, P: p} }
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Open unlocks the vault at path, creating an empty one when the file is missing.
// A wrong password yields an auth-coded error.
func Open(path, password string, opts ...Option) (*Vault, error) {
	if password == "" {
		return nil, clierr.New(clierr.CodeAuth, "password must not be empty")
	}
	v := &Vault{path: path, password: password, params: defaultParams()}
	for _, opt := range opts {
		opt(v)
	}

	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := v.persist(); err != nil {
			return nil, err
		}
		return v, nil
	}
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeStorage, "read vault", err)
	}
	raw, err := open(password, kindVault, buf)
	if err != nil {
		return nil, authError(err)
	}
	defer wipe(raw)
	if err := json.Unmarshal(raw, &v.secret); err != nil {
		return nil, clierr.Wrap(clierr.CodeStorage, "decode vault content", err)
	}
	return v, nil
}

func (v *Vault) Path() string { return v.path }

func (v *Vault) HasMnemonic() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.secret.Mnemonic != ""
}

func (v *Vault) Mnemonic() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.secret.Mnemonic == "" {
		return "", clierr.New(clierr.CodeAuth, "no mnemonic stored, run init first")
	}
	return v.secret.Mnemonic, nil
}

// StoreMnemonic saves the mnemonic once; replacing an existing one is refused.
func (v *Vault) StoreMnemonic(mnemonic string) error {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.secret.Mnemonic != "" {
		return clierr.New(clierr.CodeUsage, "a mnemonic is already stored in this vault")
	}
	v.secret.Mnemonic = mnemonic
	if err := v.persistLocked(); err != nil {
		v.secret.Mnemonic = ""
		return err
	}
	return nil
}

func (v *Vault) ChangePassword(current, next string) error {
	if next == "" {
		return clierr.New(clierr.CodeAuth, "password must not be empty")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if current != v.password {
		return clierr.New(clierr.CodeAuth, "current password is incorrect")
	}
	previous := v.password
	v.password = next
	if err := v.persistLocked(); err != nil {
		v.password = previous
		return err
	}
	return nil
}

// WriteBackup encrypts b with the vault password and writes it to path.
func (v *Vault) WriteBackup(path string, b Backup) error {
	v.mu.Lock()
	password := v.password
	params := v.params
	v.mu.Unlock()

	raw, err := json.Marshal(b)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encode backup", err)
	}
	defer wipe(raw)
	sealed, err := seal(password, kindBackup, raw, params)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encrypt backup", err)
	}
	return writeAtomic(path, sealed)
}

// ReadBackup decrypts a backup file written by WriteBackup.
func ReadBackup(path, password string) (Backup, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Backup{}, clierr.Newf(clierr.CodeNotFound, "backup file not found: %s", path)
		}
		return Backup{}, clierr.Wrap(clierr.CodeStorage, "read backup", err)
	}
	raw, err := open(password, kindBackup, buf)
	if err != nil {
		return Backup{}, authError(err)
	}
	defer wipe(raw)
	var b Backup
	if err := json.Unmarshal(raw, &b); err != nil {
		return Backup{}, clierr.Wrap(clierr.CodeStorage, "decode backup", err)
	}
	return b, nil
}

// ReplaceMnemonic overwrites the stored mnemonic, used when restoring a backup.
func (v *Vault) ReplaceMnemonic(mnemonic string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	previous := v.secret.Mnemonic
	v.secret.Mnemonic = mnemonic
	if err := v.persistLocked(); err != nil {
		v.secret.Mnemonic = previous
		return err
	}
	return nil
}

// Close drops the in-memory secrets.
func (v *Vault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.password = ""
	v.secret = secret{}
}

func (v *Vault) persist() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.persistLocked()
}

func (v *Vault) persistLocked() error {
	raw, err := json.Marshal(v.secret)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encode vault", err)
	}
	defer wipe(raw)
	sealed, err := seal(v.password, kindVault, raw, v.params)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encrypt vault", err)
	}
	return writeAtomic(v.path, sealed)
}

func authError(err error) error {
	if errors.Is(err, errWrongPassword) {
		return clierr.Wrap(clierr.CodeAuth, "unlock vault", err)
	}
	return clierr.Wrap(clierr.CodeStorage, "open vault", err)
}

// writeAtomic writes via a temp file in the same directory, then renames.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return clierr.Wrap(clierr.CodeStorage, "create vault directory", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return clierr.Wrap(clierr.CodeStorage, "create temp file", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return clierr.Wrap(clierr.CodeStorage, "chmod temp file", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return clierr.Wrap(clierr.CodeStorage, "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return clierr.Wrap(clierr.CodeStorage, "close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return clierr.Wrap(clierr.CodeStorage, fmt.Sprintf("replace %s", filepath.Base(path)), err)
	}
	return nil
}
