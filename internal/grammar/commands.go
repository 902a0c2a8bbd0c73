package grammar

// Command names shared by both grammars.
const (
	CmdHelp  = "help"
	CmdClear = "clear"
	CmdExit  = "exit"
)

// Account-level command names.
const (
	CmdNewAddress      = "address"
	CmdBalance         = "balance"
	CmdAddresses       = "addresses"
	CmdTransactions    = "transactions"
	CmdTransaction     = "transaction"
	CmdOutputs         = "outputs"
	CmdSend            = "send"
	CmdSendMicro       = "send-micro"
	CmdSendNativeToken = "send-native-token"
	CmdSendNft         = "send-nft"
	CmdMintNativeToken = "mint-native-token"
	CmdMintNft         = "mint-nft"
	CmdBurnNativeToken = "burn-native-token"
	CmdBurnNft         = "burn-nft"
	CmdClaim           = "claim"
	CmdConsolidate     = "consolidate"
	CmdFaucet          = "faucet"
	CmdSync            = "sync"
	CmdSetAlias        = "set-alias"
)

// Manager-level command names.
const (
	CmdInit           = "init"
	CmdNew            = "new"
	CmdSelect         = "select"
	CmdAccounts       = "accounts"
	CmdSetNode        = "set-node"
	CmdBackup         = "backup"
	CmdRestore        = "restore"
	CmdChangePassword = "change-password"
)

func metaSpecs() []*Spec {
	return []*Spec{
		{Name: CmdHelp, Aliases: []string{"h"}, Short: "Print this help"},
		{Name: CmdClear, Short: "Clear the terminal"},
		{Name: CmdExit, Short: "Leave this prompt"},
	}
}

var accountGrammar = New("account", append([]*Spec{
	{Name: CmdNewAddress, Aliases: []string{"new-address"}, Short: "Generate a new address"},
	{Name: CmdBalance, Short: "Print the account balance"},
	{Name: CmdAddresses, Short: "List the account addresses"},
	{Name: CmdTransactions, Short: "List the account transactions"},
	{Name: CmdTransaction, Args: []Arg{{Name: "transaction_id", Kind: TransactionID}}, Short: "Show one transaction"},
	{Name: CmdOutputs, Short: "List the unspent outputs"},
	{
		Name:  CmdSend,
		Args:  []Arg{{Name: "address", Kind: Address}, {Name: "amount", Kind: Uint, NonZero: true}},
		Short: "Send base coins to an address",
	},
	{
		Name:  CmdSendMicro,
		Args:  []Arg{{Name: "address", Kind: Address}, {Name: "amount", Kind: Uint, NonZero: true}},
		Short: "Send an amount below the storage deposit, returned after expiration",
	},
	{
		Name: CmdSendNativeToken,
		Args: []Arg{
			{Name: "address", Kind: Address},
			{Name: "token_id", Kind: TokenID},
			{Name: "amount", Kind: U256, NonZero: true},
		},
		Short: "Send native tokens to an address",
	},
	{
		Name:  CmdSendNft,
		Args:  []Arg{{Name: "address", Kind: Address}, {Name: "nft_id", Kind: NftID}},
		Short: "Send an NFT to an address",
	},
	{
		Name:  CmdMintNativeToken,
		Args:  []Arg{{Name: "max_supply", Kind: U256, NonZero: true}, {Name: "metadata", Kind: Bytes, Optional: true}},
		Short: "Create a foundry and mint its full supply",
	},
	{
		Name: CmdMintNft,
		Args: []Arg{
			{Name: "address", Kind: Address, Optional: true},
			{Name: "immutable_metadata", Kind: Bytes, Optional: true},
			{Name: "metadata", Kind: Bytes, Optional: true},
		},
		Short: "Mint an NFT",
	},
	{
		Name:  CmdBurnNativeToken,
		Args:  []Arg{{Name: "token_id", Kind: TokenID}, {Name: "amount", Kind: U256, NonZero: true}},
		Short: "Burn native tokens",
	},
	{Name: CmdBurnNft, Args: []Arg{{Name: "nft_id", Kind: NftID}}, Short: "Burn an NFT"},
	{Name: CmdClaim, Args: []Arg{{Name: "output_id", Kind: OutputID, Optional: true}}, Short: "Claim outputs with unlock conditions"},
	{Name: CmdConsolidate, Short: "Merge basic outputs into one"},
	{
		Name:  CmdFaucet,
		Args:  []Arg{{Name: "url", Kind: URL, Optional: true}, {Name: "address", Kind: Address, Optional: true}},
		Short: "Request funds from the faucet",
	},
	{Name: CmdSync, Short: "Synchronize the account with the node"},
	{Name: CmdSetAlias, Args: []Arg{{Name: "alias", Kind: String}}, Short: "Rename the account"},
}, metaSpecs()...)...)

var managerGrammar = New("manager", append([]*Spec{
	{
		Name: CmdInit,
		Flags: []Flag{
			{Name: "mnemonic", Shorthand: "m", Placeholder: "M", Usage: "Recovery phrase to store; generated when omitted"},
			{Name: "node", Shorthand: "n", Placeholder: "URL", Usage: "Node to use"},
		},
		Short: "Store a recovery phrase in the vault",
	},
	{Name: CmdNew, Args: []Arg{{Name: "alias", Kind: String, Optional: true}}, Short: "Create an account and enter it"},
	{Name: CmdSelect, Args: []Arg{{Name: "identifier", Kind: String}}, Short: "Enter an account by alias or index"},
	{Name: CmdAccounts, Short: "List the accounts"},
	{Name: CmdSetNode, Args: []Arg{{Name: "url", Kind: URL}}, Short: "Set the node used by all accounts"},
	{Name: CmdSync, Short: "Synchronize all accounts"},
	{Name: CmdBackup, Args: []Arg{{Name: "path", Kind: Path}}, Short: "Write an encrypted backup"},
	{Name: CmdRestore, Args: []Arg{{Name: "path", Kind: Path}}, Short: "Restore accounts and vault from a backup"},
	{Name: CmdChangePassword, Short: "Change the vault password"},
}, metaSpecs()...)...)

// Account returns the per-account grammar. Callers must not modify it.
func Account() *Grammar { return accountGrammar }

// Manager returns the multi-account grammar. Callers must not modify it.
func Manager() *Grammar { return managerGrammar }
