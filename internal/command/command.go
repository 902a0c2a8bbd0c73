// Package command turns shell input into typed, validated commands.
package command

import (
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/holiman/uint256"
)

// AccountCommand is one of the per-account variants below. The set is closed:
// only types in this package implement it.
type AccountCommand interface {
	accountCommand()
}

// ManagerCommand is one of the multi-account variants below.
type ManagerCommand interface {
	managerCommand()
}

// Meta commands are valid in both grammars.
type (
	Help  struct{}
	Clear struct{}
	Exit  struct{}
)

type (
	NewAddress   struct{}
	Balance      struct{}
	Addresses    struct{}
	Transactions struct{}
	Transaction  struct{ ID model.TransactionID }
	Outputs      struct{}

	Send struct {
		Address string
		Amount  uint64
	}
	SendMicro struct {
		Address string
		Amount  uint64
	}
	SendNativeToken struct {
		Address string
		TokenID model.TokenID
		Amount  *uint256.Int
	}
	SendNft struct {
		Address string
		NftID   model.NftID
	}
	MintNativeToken struct {
		MaxSupply *uint256.Int
		Metadata  []byte
	}
	MintNft struct {
		Address           string
		ImmutableMetadata []byte
		Metadata          []byte
	}
	BurnNativeToken struct {
		TokenID model.TokenID
		Amount  *uint256.Int
	}
	BurnNft struct{ NftID model.NftID }
	// Claim with a nil OutputID claims every eligible output.
	Claim       struct{ OutputID *model.OutputID }
	Consolidate struct{}
	// Faucet falls back to the configured URL and the latest address when fields are empty.
	Faucet struct {
		URL     string
		Address string
	}
	Sync     struct{}
	SetAlias struct{ Alias string }
)

type (
	Init struct {
		Mnemonic string
		NodeURL  string
	}
	New            struct{ Alias string }
	Select         struct{ Identifier string }
	Accounts       struct{}
	SetNode        struct{ URL string }
	SyncAll        struct{}
	Backup         struct{ Path string }
	Restore        struct{ Path string }
	ChangePassword struct{}
)

func (Help) accountCommand()            {}
func (Clear) accountCommand()           {}
func (Exit) accountCommand()            {}
func (NewAddress) accountCommand()      {}
func (Balance) accountCommand()         {}
func (Addresses) accountCommand()       {}
func (Transactions) accountCommand()    {}
func (Transaction) accountCommand()     {}
func (Outputs) accountCommand()         {}
func (Send) accountCommand()            {}
func (SendMicro) accountCommand()       {}
func (SendNativeToken) accountCommand() {}
func (SendNft) accountCommand()         {}
func (MintNativeToken) accountCommand() {}
func (MintNft) accountCommand()         {}
func (BurnNativeToken) accountCommand() {}
func (BurnNft) accountCommand()         {}
func (Claim) accountCommand()           {}
func (Consolidate) accountCommand()     {}
func (Faucet) accountCommand()          {}
func (Sync) accountCommand()            {}
func (SetAlias) accountCommand()        {}

func (Help) managerCommand()           {}
func (Clear) managerCommand()          {}
func (Exit) managerCommand()           {}
func (Init) managerCommand()           {}
func (New) managerCommand()            {}
func (Select) managerCommand()         {}
func (Accounts) managerCommand()       {}
func (SetNode) managerCommand()        {}
func (SyncAll) managerCommand()        {}
func (Backup) managerCommand()         {}
func (Restore) managerCommand()        {}
func (ChangePassword) managerCommand() {}
