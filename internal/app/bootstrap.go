package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ggonzalez94/wallet-cli/internal/cache"
	"github.com/ggonzalez94/wallet-cli/internal/engine"
	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/faucet"
	"github.com/ggonzalez94/wallet-cli/internal/httpx"
	"github.com/ggonzalez94/wallet-cli/internal/node"
	"github.com/ggonzalez94/wallet-cli/internal/prompt"
	"github.com/ggonzalez94/wallet-cli/internal/registry"
	"github.com/ggonzalez94/wallet-cli/internal/shell"
	"github.com/ggonzalez94/wallet-cli/internal/storage"
	"github.com/ggonzalez94/wallet-cli/internal/vault"
)

const maxUnlockAttempts = 3

// wallet is everything opened for one run: storage, cache, the unlocked
// vault and the engine on top of them.
type wallet struct {
	state    *runtimeState
	store    *storage.Store
	cache    *cache.Store
	engine   *engine.Manager
	password string
}

func (s *runtimeState) openWallet(ctx context.Context) (*wallet, error) {
	settings := s.settings
	if err := os.MkdirAll(settings.StoragePath, 0o700); err != nil {
		return nil, clierr.Wrap(clierr.CodeStorage, "create storage directory", err)
	}
	store, err := storage.Open(settings.DatabasePath(), settings.LockPath())
	if err != nil {
		return nil, err
	}
	w := &wallet{state: s, store: store}

	cacheStore, err := cache.Open(settings.CachePath(), settings.CacheLockPath())
	if err != nil {
		s.logger.Warn("node info cache disabled", "err", err)
	} else {
		w.cache = cacheStore
	}

	v, password, err := s.unlockVault()
	if err != nil {
		w.close()
		return nil, err
	}
	w.password = password
	if err := w.openEngine(ctx, v); err != nil {
		w.close()
		return nil, err
	}
	return w, nil
}

// unlockVault asks for the password, retrying interactive mistakes a few times.
func (s *runtimeState) unlockVault() (*vault.Vault, string, error) {
	path := s.settings.VaultPath
	exists := vault.Exists(path)
	var lastErr error
	for attempt := 0; attempt < maxUnlockAttempts; attempt++ {
		password, err := s.secrets.AcquirePassword(exists)
		if err == nil {
			var v *vault.Vault
			v, err = vault.Open(path, password, s.runner.vaultOptions...)
			if err == nil {
				s.logger.Debug("vault unlocked", "path", path)
				return v, password, nil
			}
		}
		if !clierr.Is(err, clierr.CodeAuth) || !s.secrets.Interactive() {
			return nil, "", err
		}
		lastErr = err
		_ = s.printer.Error("unlock", err)
	}
	return nil, "", clierr.Wrap(clierr.CodeAuth, fmt.Sprintf("vault still locked after %d attempts", maxUnlockAttempts), lastErr)
}

func (w *wallet) openEngine(ctx context.Context, v *vault.Vault) error {
	settings := w.state.settings
	network, ok := registry.Lookup(settings.Network)
	if !ok {
		return clierr.Newf(clierr.CodeUsage, "unknown network %q", settings.Network)
	}
	nodeHTTP := httpx.New("node", settings.Timeout, settings.Retries)
	faucetHTTP := httpx.New("faucet", settings.Timeout, settings.Retries)
	m, err := engine.Open(engine.Options{
		Store:   w.store,
		Vault:   v,
		Network: network,
		NodeURL: settings.NodeURL,
		NewNode: func(url string) engine.Node {
			return node.New(url, nodeHTTP, w.cache, settings.NodeInfoTTL)
		},
		Faucet:         faucet.New(faucetHTTP),
		Logger:         w.state.logger,
		Now:            w.state.runner.now,
		PollInterval:   settings.PollInterval,
		ConfirmTimeout: settings.ConfirmTimeout,
		SyncInterval:   settings.SyncInterval,
	})
	if err != nil {
		v.Close()
		return err
	}
	w.engine = m
	return nil
}

// reopen rebuilds the engine over a freshly unlocked vault. An empty password
// keeps the current one.
func (w *wallet) reopen(ctx context.Context, password string) (shell.Manager, error) {
	if password == "" {
		password = w.password
	}
	if w.engine != nil {
		w.engine.Close()
		w.engine = nil
	}
	v, err := vault.Open(w.state.settings.VaultPath, password, w.state.runner.vaultOptions...)
	if err != nil {
		return nil, err
	}
	w.password = password
	if err := w.openEngine(ctx, v); err != nil {
		return nil, err
	}
	return managerAdapter{w.engine}, nil
}

func (w *wallet) close() {
	var errs []error
	if w.engine != nil {
		w.engine.Close()
	}
	if w.cache != nil {
		errs = append(errs, w.cache.Close())
	}
	if w.store != nil {
		errs = append(errs, w.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		w.state.logger.Warn("close wallet", "err", err)
	}
}

// managerAdapter narrows the engine's concrete account handles to the shell's interface.
type managerAdapter struct {
	*engine.Manager
}

func (a managerAdapter) Account(identifier string) (shell.Account, error) {
	acc, err := a.Manager.Account(identifier)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (a managerAdapter) CreateAccount(ctx context.Context, alias string) (shell.Account, error) {
	acc, err := a.Manager.CreateAccount(ctx, alias)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

var (
	_ shell.Manager = managerAdapter{}
	_ shell.Account = (*engine.Account)(nil)
	_ shell.Secrets = (*prompt.SecretPrompt)(nil)
)
