// Package engine is the wallet engine the shell drives: it owns the accounts,
// derives keys, builds and signs transactions and keeps local state in sync
// with the node.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/keys"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/ggonzalez94/wallet-cli/internal/node"
	"github.com/ggonzalez94/wallet-cli/internal/registry"
	"github.com/ggonzalez94/wallet-cli/internal/storage"
	"github.com/ggonzalez94/wallet-cli/internal/vault"
)

// Node is the subset of the node API the engine uses.
type Node interface {
	URL() string
	Info(ctx context.Context) (model.NodeInfo, error)
	OutputIDs(ctx context.Context, kind model.OutputKind, address string) ([]model.OutputID, error)
	ExpiringOutputIDs(ctx context.Context, address string) ([]model.OutputID, error)
	Output(ctx context.Context, id model.OutputID) (model.OutputRecord, error)
	SubmitTransaction(ctx context.Context, tx model.SignedTransaction) (model.BlockID, error)
	BlockMetadata(ctx context.Context, id model.BlockID) (node.BlockMetadata, error)
}

type Faucet interface {
	RequestFunds(ctx context.Context, url, address string) (string, error)
}

type Options struct {
	Store   *storage.Store
	Vault   *vault.Vault
	Network registry.Network
	// NodeURL overrides the stored node; empty falls back to the stored one,
	// then to the network default.
	NodeURL        string
	NewNode        func(url string) Node
	Faucet         Faucet
	Logger         *slog.Logger
	Now            func() time.Time
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	SyncInterval   time.Duration
}

// Manager owns every account of one wallet.
type Manager struct {
	mu       sync.RWMutex
	store    *storage.Store
	vault    *vault.Vault
	network  registry.Network
	node     Node
	newNode  func(string) Node
	faucet   Faucet
	log      *slog.Logger
	now      func() time.Time
	accounts []*Account
	keychain *keys.Keychain

	pollInterval   time.Duration
	confirmTimeout time.Duration

	stopSync context.CancelFunc
	syncDone chan struct{}
}

func Open(opts Options) (*Manager, error) {
	if opts.Store == nil || opts.Vault == nil || opts.NewNode == nil {
		return nil, clierr.New(clierr.CodeInternal, "engine needs a store, a vault and a node factory")
	}
	m := &Manager{
		store:          opts.Store,
		vault:          opts.Vault,
		network:        opts.Network,
		newNode:        opts.NewNode,
		faucet:         opts.Faucet,
		log:            opts.Logger,
		now:            opts.Now,
		pollInterval:   opts.PollInterval,
		confirmTimeout: opts.ConfirmTimeout,
	}
	if m.log == nil {
		m.log = slog.New(slog.DiscardHandler)
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.pollInterval <= 0 {
		m.pollInterval = time.Second
	}
	if m.confirmTimeout <= 0 {
		m.confirmTimeout = time.Minute
	}

	nodeURL, err := m.resolveNodeURL(opts.NodeURL)
	if err != nil {
		return nil, err
	}
	m.node = m.newNode(nodeURL)

	if m.vault.HasMnemonic() {
		if err := m.loadKeychain(); err != nil {
			return nil, err
		}
	}
	if err := m.loadAccounts(); err != nil {
		return nil, err
	}
	if opts.SyncInterval > 0 {
		m.StartBackgroundSync(opts.SyncInterval)
	}
	m.log.Debug("engine ready", "accounts", len(m.accounts), "node", nodeURL, "network", m.network.Name)
	return m, nil
}

func (m *Manager) resolveNodeURL(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, nil
	}
	stored, ok, err := m.store.Setting(storage.SettingNodeURL)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeStorage, "read node setting", err)
	}
	if ok && stored != "" {
		return stored, nil
	}
	if m.network.NodeURL != "" {
		return m.network.NodeURL, nil
	}
	return registry.DefaultNodeURL, nil
}

func (m *Manager) loadKeychain() error {
	mnemonic, err := m.vault.Mnemonic()
	if err != nil {
		return err
	}
	kc, err := keys.NewKeychain(mnemonic, m.network.CoinType)
	if err != nil {
		return clierr.Wrap(clierr.CodeAuth, "load stored mnemonic", err)
	}
	m.mu.Lock()
	m.keychain = kc
	m.mu.Unlock()
	return nil
}

func (m *Manager) loadAccounts() error {
	states, err := m.store.LoadAccounts()
	if err != nil {
		return clierr.Wrap(clierr.CodeStorage, "load accounts", err)
	}
	accounts := make([]*Account, 0, len(states))
	for _, st := range states {
		accounts = append(accounts, newAccount(m, st))
	}
	m.mu.Lock()
	m.accounts = accounts
	m.mu.Unlock()
	return nil
}

func (m *Manager) Network() registry.Network { return m.network }

func (m *Manager) HRP() string { return m.network.Bech32HRP }

func (m *Manager) nodeClient() Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.node
}

func (m *Manager) NodeURL() string { return m.nodeClient().URL() }

func (m *Manager) keys() (*keys.Keychain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.keychain == nil {
		return nil, clierr.New(clierr.CodeAuth, "no mnemonic stored, run init first")
	}
	return m.keychain, nil
}

func (m *Manager) HasMnemonic() bool { return m.vault.HasMnemonic() }

// Accounts lists accounts ordered by index.
func (m *Manager) Accounts() []model.AccountSummary {
	m.mu.RLock()
	accounts := append([]*Account(nil), m.accounts...)
	m.mu.RUnlock()
	out := make([]model.AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, model.AccountSummary{Index: a.Index(), Alias: a.Alias()})
	}
	return out
}

// Account resolves an alias, falling back to a numeric index.
func (m *Manager) Account(identifier string) (*Account, error) {
	identifier = strings.TrimSpace(identifier)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.Alias() == identifier {
			return a, nil
		}
	}
	if idx, err := strconv.ParseUint(identifier, 10, 32); err == nil {
		for _, a := range m.accounts {
			if a.Index() == uint32(idx) {
				return a, nil
			}
		}
	}
	return nil, clierr.Newf(clierr.CodeNotFound, "account %q not found", identifier)
}

// CreateAccount adds an account with its first address. An empty alias
// defaults to the account index.
func (m *Manager) CreateAccount(ctx context.Context, alias string) (*Account, error) {
	kc, err := m.keys()
	if err != nil {
		return nil, err
	}
	alias = strings.TrimSpace(alias)

	m.mu.Lock()
	defer m.mu.Unlock()
	index := uint32(len(m.accounts))
	if alias == "" {
		alias = strconv.FormatUint(uint64(index), 10)
	}
	for _, a := range m.accounts {
		if a.Alias() == alias {
			return nil, clierr.Newf(clierr.CodeUsage, "an account with alias %q already exists", alias)
		}
	}
	first, err := kc.Address(m.network.Bech32HRP, index, 0, false)
	if err != nil {
		return nil, err
	}
	st := model.AccountState{
		Index:     index,
		Alias:     alias,
		CoinType:  kc.CoinType(),
		Addresses: []model.Address{{Bech32: first, Index: 0}},
		Unspent:   map[model.OutputID]model.OutputRecord{},
	}
	if err := m.store.SaveAccount(st); err != nil {
		return nil, clierr.Wrap(clierr.CodeStorage, "save account", err)
	}
	acc := newAccount(m, st)
	m.accounts = append(m.accounts, acc)
	m.log.Debug("account created", "index", index, "alias", alias)
	return acc, nil
}

func (m *Manager) GenerateMnemonic() (string, error) {
	return keys.GenerateMnemonic()
}

// StoreMnemonic validates and persists the mnemonic, then enables key derivation.
func (m *Manager) StoreMnemonic(mnemonic string) error {
	if err := keys.ValidateMnemonic(mnemonic); err != nil {
		return err
	}
	if err := m.vault.StoreMnemonic(keys.NormalizeMnemonic(mnemonic)); err != nil {
		return err
	}
	return m.loadKeychain()
}

// SetNode switches every account to the node at url and remembers it.
func (m *Manager) SetNode(ctx context.Context, url string) error {
	url = registry.NormalizeNodeURL(strings.TrimSpace(url))
	if !registry.IsAllowedEndpoint(url) {
		return clierr.Newf(clierr.CodeUsage, "node url %q must use https (http is only allowed for localhost)", url)
	}
	if err := m.store.SetSetting(storage.SettingNodeURL, url); err != nil {
		return clierr.Wrap(clierr.CodeStorage, "save node setting", err)
	}
	client := m.newNode(url)
	m.mu.Lock()
	m.node = client
	m.mu.Unlock()
	m.log.Debug("node changed", "node", url)
	return nil
}

// SyncAll synchronizes every account and returns the combined balance.
func (m *Manager) SyncAll(ctx context.Context, opts model.SyncOptions) (model.Balance, error) {
	m.mu.RLock()
	accounts := append([]*Account(nil), m.accounts...)
	m.mu.RUnlock()

	total := model.Balance{
		NativeTokens:      []model.NativeToken{},
		Nfts:              []model.NftID{},
		Foundries:         []model.TokenID{},
		PotentiallyLocked: []model.OutputID{},
	}
	for _, a := range accounts {
		bal, err := a.Sync(ctx, opts)
		if err != nil {
			return model.Balance{}, fmt.Errorf("sync account %q: %w", a.Alias(), err)
		}
		total = addBalances(total, bal)
	}
	return total, nil
}

// Backup writes every account, transaction and the mnemonic to an encrypted file.
func (m *Manager) Backup(ctx context.Context, path string) error {
	mnemonic, err := m.vault.Mnemonic()
	if err != nil {
		return err
	}
	m.mu.RLock()
	accounts := append([]*Account(nil), m.accounts...)
	m.mu.RUnlock()

	b := vault.Backup{Mnemonic: mnemonic, NodeURL: m.NodeURL(), CreatedAt: m.now().UTC()}
	for _, a := range accounts {
		b.Accounts = append(b.Accounts, a.snapshot())
	}
	txs, err := m.store.AllTransactions()
	if err != nil {
		return clierr.Wrap(clierr.CodeStorage, "read transactions", err)
	}
	b.Transactions = txs
	if err := m.vault.WriteBackup(path, b); err != nil {
		return err
	}
	m.log.Debug("backup written", "path", path, "accounts", len(b.Accounts))
	return nil
}

// Restore replaces the wallet with the content of a backup file.
func (m *Manager) Restore(ctx context.Context, path, password string) error {
	b, err := vault.ReadBackup(path, password)
	if err != nil {
		return err
	}
	if err := keys.ValidateMnemonic(b.Mnemonic); err != nil {
		return clierr.Wrap(clierr.CodeStorage, "backup holds an invalid mnemonic", err)
	}
	m.StopBackgroundSync()
	if err := m.store.ReplaceAll(b.Accounts, b.Transactions); err != nil {
		return clierr.Wrap(clierr.CodeStorage, "restore accounts", err)
	}
	if err := m.vault.ReplaceMnemonic(b.Mnemonic); err != nil {
		return err
	}
	if b.NodeURL != "" {
		if err := m.SetNode(ctx, b.NodeURL); err != nil {
			m.log.Warn("backup node url ignored", "node", b.NodeURL, "err", err)
		}
	}
	if err := m.loadKeychain(); err != nil {
		return err
	}
	if err := m.loadAccounts(); err != nil {
		return err
	}
	m.log.Debug("backup restored", "path", path, "accounts", len(b.Accounts))
	return nil
}

func (m *Manager) ChangePassword(current, next string) error {
	return m.vault.ChangePassword(current, next)
}

// Close stops background work and drops secrets. The store stays open for its owner.
func (m *Manager) Close() {
	m.StopBackgroundSync()
	m.vault.Close()
}

func addBalances(a, b model.Balance) model.Balance {
	a.BaseCoin.Total += b.BaseCoin.Total
	a.BaseCoin.Available += b.BaseCoin.Available
	a.RequiredStorageDeposit += b.RequiredStorageDeposit
	a.NativeTokens = mergeTokens(a.NativeTokens, b.NativeTokens)
	a.Nfts = append(a.Nfts, b.Nfts...)
	a.Foundries = append(a.Foundries, b.Foundries...)
	a.PotentiallyLocked = append(a.PotentiallyLocked, b.PotentiallyLocked...)
	return a
}
