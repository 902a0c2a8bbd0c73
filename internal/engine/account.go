package engine

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/id"
	"github.com/ggonzalez94/wallet-cli/internal/keys"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/holiman/uint256"
)

// Account is a handle on one account. Operations that touch the ledger are
// serialized per account; state reads take a short read lock and never hold
// it across network calls.
type Account struct {
	m    *Manager
	opMu sync.Mutex

	mu    sync.RWMutex
	state model.AccountState
}

func newAccount(m *Manager, st model.AccountState) *Account {
	if st.Unspent == nil {
		st.Unspent = map[model.OutputID]model.OutputRecord{}
	}
	return &Account{m: m, state: st}
}

func (a *Account) Index() uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Index
}

func (a *Account) Alias() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Alias
}

// SetAlias renames the account. Aliases stay unique across the manager.
func (a *Account) SetAlias(alias string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return clierr.New(clierr.CodeUsage, "alias must not be empty")
	}
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	for _, other := range a.m.accounts {
		if other != a && other.Alias() == alias {
			return clierr.Newf(clierr.CodeUsage, "an account with alias %q already exists", alias)
		}
	}
	old := a.Alias()
	if err := a.update(func(st *model.AccountState) { st.Alias = alias }); err != nil {
		return err
	}
	a.m.log.Debug("account renamed", "index", a.Index(), "from", old, "to", alias)
	return nil
}

// snapshot returns a deep enough copy of the state to read without locks.
func (a *Account) snapshot() model.AccountState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := a.state
	st.Addresses = append([]model.Address(nil), a.state.Addresses...)
	st.Unspent = make(map[model.OutputID]model.OutputRecord, len(a.state.Unspent))
	for k, v := range a.state.Unspent {
		st.Unspent[k] = v
	}
	return st
}

func (a *Account) update(fn func(st *model.AccountState)) error {
	a.mu.Lock()
	fn(&a.state)
	st := a.state
	a.mu.Unlock()
	if err := a.m.store.SaveAccount(st); err != nil {
		return clierr.Wrap(clierr.CodeStorage, "save account", err)
	}
	return nil
}

func (a *Account) Addresses() []model.Address {
	return a.snapshot().Addresses
}

// LatestAddress returns the most recently generated public address.
func (a *Account) LatestAddress() (model.Address, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i := len(a.state.Addresses) - 1; i >= 0; i-- {
		if !a.state.Addresses[i].Internal {
			return a.state.Addresses[i], true
		}
	}
	return model.Address{}, false
}

// GenerateAddress derives and stores the next public address.
func (a *Account) GenerateAddress(ctx context.Context) (model.Address, error) {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	kc, err := a.m.keys()
	if err != nil {
		return model.Address{}, err
	}
	st := a.snapshot()
	var next uint32
	for _, addr := range st.Addresses {
		if !addr.Internal && addr.Index >= next {
			next = addr.Index + 1
		}
	}
	bech, err := kc.Address(a.m.HRP(), st.Index, next, false)
	if err != nil {
		return model.Address{}, err
	}
	addr := model.Address{Bech32: bech, Index: next}
	if err := a.update(func(st *model.AccountState) { st.Addresses = append(st.Addresses, addr) }); err != nil {
		return model.Address{}, err
	}
	a.m.log.Debug("address generated", "account", st.Alias, "index", next)
	return addr, nil
}

func (a *Account) Transactions() ([]model.Transaction, error) {
	txs, err := a.m.store.ListTransactions(a.Index(), "", 0)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeStorage, "list transactions", err)
	}
	return txs, nil
}

func (a *Account) Transaction(txID model.TransactionID) (model.Transaction, error) {
	return a.m.store.GetTransaction(a.Index(), txID)
}

// UnspentOutputs lists the outputs the account currently holds, ordered by id.
func (a *Account) UnspentOutputs() []model.OutputRecord {
	return sortedRecords(a.snapshot().Unspent)
}

// Balance is computed from local state; call Sync first for fresh numbers.
func (a *Account) Balance() model.Balance {
	st := a.snapshot()
	minDeposit := a.m.network.MinStorageDeposit
	bal := model.Balance{
		NativeTokens:      []model.NativeToken{},
		Nfts:              []model.NftID{},
		Foundries:         []model.TokenID{},
		PotentiallyLocked: []model.OutputID{},
	}
	tokens := map[model.TokenID]*uint256.Int{}
	for _, rec := range sortedRecords(st.Unspent) {
		out := rec.Output
		bal.BaseCoin.Total += out.Amount
		// Outputs with unlock conditions only become spendable once claimed.
		if out.HasUnlockConditions() {
			bal.PotentiallyLocked = append(bal.PotentiallyLocked, rec.OutputID)
			continue
		}
		switch out.Kind {
		case model.OutputNft:
			nftID := out.NftID
			if nftID.IsZero() {
				nftID = model.NftIDFromOutputID(rec.OutputID)
			}
			bal.Nfts = append(bal.Nfts, nftID)
			bal.RequiredStorageDeposit += out.Amount
		case model.OutputFoundry:
			bal.Foundries = append(bal.Foundries, out.TokenID)
			bal.RequiredStorageDeposit += out.Amount
		default:
			if len(out.NativeTokens) > 0 {
				locked := min(out.Amount, minDeposit)
				bal.RequiredStorageDeposit += locked
				bal.BaseCoin.Available += out.Amount - locked
			} else {
				bal.BaseCoin.Available += out.Amount
			}
		}
		addTokens(tokens, out.NativeTokens)
	}
	bal.NativeTokens = tokenList(tokens)
	return bal
}

// RequestFunds asks the faucet at url to fund address, which must belong to
// the configured network.
func (a *Account) RequestFunds(ctx context.Context, url, address string) (string, error) {
	if a.m.faucet == nil {
		return "", clierr.New(clierr.CodeUnsupported, "no faucet configured")
	}
	if _, err := keys.ParseAddress(a.m.HRP(), address); err != nil {
		return "", err
	}
	return a.m.faucet.RequestFunds(ctx, url, address)
}

// addressOf finds the account address with the given bech32 form.
func addressOf(st model.AccountState, bech32 string) (model.Address, bool) {
	for _, addr := range st.Addresses {
		if addr.Bech32 == bech32 {
			return addr, true
		}
	}
	return model.Address{}, false
}

func owns(st model.AccountState, bech32 string) bool {
	_, ok := addressOf(st, bech32)
	return ok
}

// ownerAt is the address allowed to unlock out at unix time now.
func ownerAt(out model.Output, now int64) string {
	if out.Expiration != nil && now >= out.Expiration.UnixTime {
		return out.Expiration.ReturnAddress
	}
	return out.Address
}

func sortedRecords(set map[model.OutputID]model.OutputRecord) []model.OutputRecord {
	out := make([]model.OutputRecord, 0, len(set))
	for _, rec := range set {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].OutputID[:], out[j].OutputID[:]) < 0
	})
	return out
}

func addTokens(into map[model.TokenID]*uint256.Int, tokens []model.NativeToken) {
	for _, t := range tokens {
		cur, ok := into[t.ID]
		if !ok {
			cur = new(uint256.Int)
			into[t.ID] = cur
		}
		cur.Add(cur, id.MustU256(t.Amount))
	}
}

// tokenList flattens a token map into a list ordered by token id, dropping zeros.
func tokenList(tokens map[model.TokenID]*uint256.Int) []model.NativeToken {
	out := make([]model.NativeToken, 0, len(tokens))
	for tokenID, amount := range tokens {
		if amount.IsZero() {
			continue
		}
		out = append(out, model.NativeToken{ID: tokenID, Amount: amount.Dec()})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out
}

func mergeTokens(a, b []model.NativeToken) []model.NativeToken {
	all := map[model.TokenID]*uint256.Int{}
	addTokens(all, a)
	addTokens(all, b)
	return tokenList(all)
}
