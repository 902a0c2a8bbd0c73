// Package shell runs the interactive manager and account prompts on top of
// the wallet engine.
package shell

import (
	"context"

	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/holiman/uint256"
)

// Account is the engine account handle the account session drives. It is
// shared with background sync, so every call takes its own short guard.
type Account interface {
	Alias() string
	SetAlias(alias string) error
	Index() uint32
	GenerateAddress(ctx context.Context) (model.Address, error)
	Addresses() []model.Address
	LatestAddress() (model.Address, bool)
	Balance() model.Balance
	Transactions() ([]model.Transaction, error)
	Transaction(id model.TransactionID) (model.Transaction, error)
	UnspentOutputs() []model.OutputRecord
	Send(ctx context.Context, address string, amount uint64) (model.Transaction, error)
	SendMicro(ctx context.Context, address string, amount uint64) (model.Transaction, error)
	SendNativeToken(ctx context.Context, address string, tokenID model.TokenID, amount *uint256.Int) (model.Transaction, error)
	SendNft(ctx context.Context, address string, nftID model.NftID) (model.Transaction, error)
	MintNativeToken(ctx context.Context, maxSupply *uint256.Int, metadata []byte) (model.MintResult, error)
	MintNft(ctx context.Context, opts model.NftOptions) (model.MintResult, error)
	BurnNativeToken(ctx context.Context, tokenID model.TokenID, amount *uint256.Int) (model.Transaction, error)
	BurnNft(ctx context.Context, nftID model.NftID) (model.Transaction, error)
	Claim(ctx context.Context, outputID *model.OutputID) ([]model.Transaction, error)
	Consolidate(ctx context.Context) ([]model.Transaction, error)
	Sync(ctx context.Context, opts model.SyncOptions) (model.Balance, error)
	RequestFunds(ctx context.Context, url, address string) (string, error)
}

// Manager is the multi-account side of the engine.
type Manager interface {
	Accounts() []model.AccountSummary
	Account(identifier string) (Account, error)
	CreateAccount(ctx context.Context, alias string) (Account, error)
	HasMnemonic() bool
	GenerateMnemonic() (string, error)
	StoreMnemonic(mnemonic string) error
	SetNode(ctx context.Context, url string) error
	SyncAll(ctx context.Context, opts model.SyncOptions) (model.Balance, error)
	Backup(ctx context.Context, path string) error
	Restore(ctx context.Context, path, password string) error
	ChangePassword(current, next string) error
}

// Secrets asks for passwords outside the startup unlock.
type Secrets interface {
	ReadSecret(label string) (string, error)
	NewPassword() (string, error)
	BackupPassword() (string, error)
}
