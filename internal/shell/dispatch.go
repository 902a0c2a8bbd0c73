package shell

import (
	"context"

	"github.com/ggonzalez94/wallet-cli/internal/command"
	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/grammar"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/ggonzalez94/wallet-cli/internal/out"
	"github.com/ggonzalez94/wallet-cli/internal/policy"
)

// Dispatcher runs one parsed account command against an account and prints
// the outcome. It keeps no state between calls.
type Dispatcher struct {
	Printer   *out.Printer
	Unit      out.Unit
	FaucetURL string
	Allowlist []string
}

// Dispatch maps cmd to exactly one engine operation. Errors are returned for
// the session to report; nothing is retried here.
func (d *Dispatcher) Dispatch(ctx context.Context, acc Account, cmd command.AccountCommand) error {
	name := accountCommandName(cmd)
	path := "account " + name
	if err := policy.CheckCommandAllowed(d.Allowlist, path); err != nil {
		return err
	}
	p := d.Printer

	switch c := cmd.(type) {
	case command.Help, command.Clear, command.Exit:
		// Session-level; nothing reaches the engine.
		return nil

	case command.NewAddress:
		addr, err := acc.GenerateAddress(ctx)
		if err != nil {
			return err
		}
		return p.Result(path, out.AddressView(addr))

	case command.Balance:
		return p.Result(path, out.BalanceView{Balance: acc.Balance(), Unit: d.Unit})

	case command.Addresses:
		addrs := acc.Addresses()
		if len(addrs) == 0 {
			return p.Message(path, "No addresses found")
		}
		return p.Result(path, out.AddressList(addrs))

	case command.Transactions:
		txs, err := acc.Transactions()
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			return p.Message(path, "No transactions found")
		}
		return p.Result(path, out.TransactionList(txs))

	case command.Transaction:
		tx, err := acc.Transaction(c.ID)
		if err != nil {
			return err
		}
		return p.Result(path, out.TransactionView{Transaction: tx, Unit: d.Unit})

	case command.Outputs:
		outputs := acc.UnspentOutputs()
		if len(outputs) == 0 {
			return p.Message(path, "No outputs found")
		}
		return p.Result(path, out.OutputList{Items: outputs, Unit: d.Unit})

	case command.Send:
		if c.Amount == 0 {
			return zeroAmount()
		}
		tx, err := acc.Send(ctx, c.Address, c.Amount)
		return d.sent(path, "Transaction created", tx, err)

	case command.SendMicro:
		if c.Amount == 0 {
			return zeroAmount()
		}
		tx, err := acc.SendMicro(ctx, c.Address, c.Amount)
		return d.sent(path, "Micro transaction created", tx, err)

	case command.SendNativeToken:
		if c.Amount == nil || c.Amount.IsZero() {
			return zeroAmount()
		}
		tx, err := acc.SendNativeToken(ctx, c.Address, c.TokenID, c.Amount)
		return d.sent(path, "Transaction created", tx, err)

	case command.SendNft:
		tx, err := acc.SendNft(ctx, c.Address, c.NftID)
		return d.sent(path, "Transaction created", tx, err)

	case command.MintNativeToken:
		if c.MaxSupply == nil || c.MaxSupply.IsZero() {
			return zeroAmount()
		}
		res, err := acc.MintNativeToken(ctx, c.MaxSupply, c.Metadata)
		if err != nil {
			return err
		}
		return p.Result(path, out.MintView{MintResult: res})

	case command.MintNft:
		res, err := acc.MintNft(ctx, model.NftOptions{
			Address:           c.Address,
			ImmutableMetadata: c.ImmutableMetadata,
			Metadata:          c.Metadata,
		})
		if err != nil {
			return err
		}
		return p.Result(path, out.MintView{MintResult: res})

	case command.BurnNativeToken:
		if c.Amount == nil || c.Amount.IsZero() {
			return zeroAmount()
		}
		tx, err := acc.BurnNativeToken(ctx, c.TokenID, c.Amount)
		return d.sent(path, "Burn transaction created", tx, err)

	case command.BurnNft:
		tx, err := acc.BurnNft(ctx, c.NftID)
		return d.sent(path, "Burn transaction created", tx, err)

	case command.Claim:
		txs, err := acc.Claim(ctx, c.OutputID)
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			return p.Message(path, "No outputs available to claim")
		}
		return d.sentAll(path, "Claim transaction created", txs)

	case command.Consolidate:
		txs, err := acc.Consolidate(ctx)
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			return p.Message(path, "No outputs to consolidate")
		}
		return d.sentAll(path, "Consolidation transaction created", txs)

	case command.Faucet:
		url := c.URL
		if url == "" {
			url = d.FaucetURL
		}
		address := c.Address
		if address == "" {
			latest, ok := acc.LatestAddress()
			if !ok {
				return clierr.New(clierr.CodeNoAddress, "Generate an address first!")
			}
			address = latest.Bech32
		}
		msg, err := acc.RequestFunds(ctx, url, address)
		if err != nil {
			return err
		}
		return p.Message(path, "%s", msg)

	case command.Sync:
		bal, err := acc.Sync(ctx, model.SyncOptions{TryCollectOutputs: true})
		if err != nil {
			return err
		}
		return p.Result(path, out.SyncView{BalanceView: out.BalanceView{Balance: bal, Unit: d.Unit}})

	case command.SetAlias:
		if err := acc.SetAlias(c.Alias); err != nil {
			return err
		}
		return p.Message(path, "Alias set to `%s`", acc.Alias())
	}
	return clierr.Newf(clierr.CodeInternal, "no handler for %T", cmd)
}

func (d *Dispatcher) sent(path, headline string, tx model.Transaction, err error) error {
	if err != nil {
		return err
	}
	return d.Printer.Result(path, out.Sent{Headline: headline, Transaction: tx})
}

func (d *Dispatcher) sentAll(path, headline string, txs []model.Transaction) error {
	for _, tx := range txs {
		if err := d.sent(path, headline, tx, nil); err != nil {
			return err
		}
	}
	return nil
}

func zeroAmount() error {
	return clierr.New(clierr.CodeUsage, "amount must be greater than zero")
}

// accountCommandName is the grammar name of cmd, used for allowlists and envelopes.
func accountCommandName(cmd command.AccountCommand) string {
	switch cmd.(type) {
	case command.Help:
		return grammar.CmdHelp
	case command.Clear:
		return grammar.CmdClear
	case command.Exit:
		return grammar.CmdExit
	case command.NewAddress:
		return grammar.CmdNewAddress
	case command.Balance:
		return grammar.CmdBalance
	case command.Addresses:
		return grammar.CmdAddresses
	case command.Transactions:
		return grammar.CmdTransactions
	case command.Transaction:
		return grammar.CmdTransaction
	case command.Outputs:
		return grammar.CmdOutputs
	case command.Send:
		return grammar.CmdSend
	case command.SendMicro:
		return grammar.CmdSendMicro
	case command.SendNativeToken:
		return grammar.CmdSendNativeToken
	case command.SendNft:
		return grammar.CmdSendNft
	case command.MintNativeToken:
		return grammar.CmdMintNativeToken
	case command.MintNft:
		return grammar.CmdMintNft
	case command.BurnNativeToken:
		return grammar.CmdBurnNativeToken
	case command.BurnNft:
		return grammar.CmdBurnNft
	case command.Claim:
		return grammar.CmdClaim
	case command.Consolidate:
		return grammar.CmdConsolidate
	case command.Faucet:
		return grammar.CmdFaucet
	case command.Sync:
		return grammar.CmdSync
	case command.SetAlias:
		return grammar.CmdSetAlias
	}
	return "unknown"
}
