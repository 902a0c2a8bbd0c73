package out

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ggonzalez94/wallet-cli/internal/id"
	"github.com/ggonzalez94/wallet-cli/internal/model"
)

const mnemonicBanner = "////////////////////////////"

// Unit describes how base-unit amounts are displayed.
type Unit struct {
	Ticker   string
	Decimals int32
}

func (u Unit) Format(amount uint64) string {
	if u.Ticker == "" {
		return fmt.Sprintf("%d", amount)
	}
	return fmt.Sprintf("%s %s", id.FormatAmount(amount, u.Decimals), u.Ticker)
}

type Message struct {
	Text string `json:"message"`
}

func (m Message) PlainLines() []string { return []string{m.Text} }

type BalanceView struct {
	model.Balance
	Unit Unit `json:"-"`
}

func (b BalanceView) PlainLines() []string {
	lines := []string{
		"Total: " + b.Unit.Format(b.BaseCoin.Total),
		"Available: " + b.Unit.Format(b.BaseCoin.Available),
		"Required storage deposit: " + b.Unit.Format(b.RequiredStorageDeposit),
	}
	if len(b.NativeTokens) == 0 {
		lines = append(lines, "Native tokens: none")
	}
	for _, token := range b.NativeTokens {
		lines = append(lines, fmt.Sprintf("Native token %s: %s", token.ID, id.FormatTokenAmount(token.Amount)))
	}
	if len(b.Nfts) == 0 {
		lines = append(lines, "NFTs: none")
	}
	for _, nft := range b.Nfts {
		lines = append(lines, "NFT "+nft.String())
	}
	for _, foundry := range b.Foundries {
		lines = append(lines, "Foundry "+foundry.String())
	}
	for _, output := range b.PotentiallyLocked {
		lines = append(lines, "Potentially locked output "+output.String())
	}
	return lines
}

// SyncView is the balance reported after a synchronization pass.
type SyncView struct {
	BalanceView
}

func (s SyncView) PlainLines() []string {
	return append([]string{"Synced:"}, s.BalanceView.PlainLines()...)
}

type AddressList []model.Address

func (l AddressList) PlainLines() []string {
	lines := make([]string, 0, len(l)*2)
	for _, address := range l {
		lines = append(lines, AddressView(address).PlainLines()...)
	}
	return lines
}

type AddressView model.Address

func (a AddressView) MarshalJSON() ([]byte, error) { return json.Marshal(model.Address(a)) }

func (a AddressView) PlainLines() []string {
	lines := []string{
		"ADDRESS " + a.Bech32,
		fmt.Sprintf("--- Index: %d", a.Index),
	}
	if a.Internal {
		lines = append(lines, "--- Change address: true")
	}
	return lines
}

type TransactionList []model.Transaction

func (l TransactionList) PlainLines() []string {
	lines := make([]string, 0, len(l))
	for _, tx := range l {
		lines = append(lines, transactionLine(tx))
	}
	return lines
}

func transactionLine(tx model.Transaction) string {
	direction := "outgoing"
	if tx.Incoming {
		direction = "incoming"
	}
	return fmt.Sprintf("TRANSACTION %s %s %s %s %s", tx.ID, tx.Kind, direction, tx.Status, tx.CreatedAt.UTC().Format(time.RFC3339))
}

type TransactionView struct {
	model.Transaction
	Unit Unit `json:"-"`
}

func (t TransactionView) PlainLines() []string {
	lines := []string{
		transactionLine(t.Transaction),
		"--- Block: " + t.BlockID.String(),
		fmt.Sprintf("--- Inputs: %d", len(t.Payload.Essence.Inputs)),
	}
	for i, output := range t.Payload.Essence.Outputs {
		lines = append(lines, fmt.Sprintf("--- Output %d: %s %s to %s", i, output.Kind, t.Unit.Format(output.Amount), output.Address))
	}
	if t.Conflict != "" {
		lines = append(lines, "--- Conflict: "+t.Conflict)
	}
	return lines
}

// Sent reports a submitted transaction with the given headline.
type Sent struct {
	Headline    string            `json:"-"`
	Transaction model.Transaction `json:"transaction"`
}

func (s Sent) PlainLines() []string {
	return []string{fmt.Sprintf("%s: %s (block %s, %s)", s.Headline, s.Transaction.ID, s.Transaction.BlockID, s.Transaction.Status)}
}

type MintView struct {
	model.MintResult
}

func (m MintView) PlainLines() []string {
	tx := m.Transaction
	line := fmt.Sprintf("Minting transaction sent: %s (block %s, %s)", tx.ID, tx.BlockID, tx.Status)
	lines := []string{line}
	if m.TokenID != nil {
		lines = append(lines, "--- Token ID: "+m.TokenID.String())
	}
	if m.NftID != nil {
		lines = append(lines, "--- NFT ID: "+m.NftID.String())
	}
	return lines
}

type OutputList struct {
	Items []model.OutputRecord
	Unit  Unit
}

func (l OutputList) MarshalJSON() ([]byte, error) { return json.Marshal(l.Items) }

func (l OutputList) PlainLines() []string {
	lines := make([]string, 0, len(l.Items))
	for _, record := range l.Items {
		line := fmt.Sprintf("OUTPUT %s %s %s", record.OutputID, record.Output.Kind, l.Unit.Format(record.Output.Amount))
		if record.Output.HasUnlockConditions() {
			line += " (claimable)"
		}
		lines = append(lines, line)
	}
	return lines
}

type AccountList []model.AccountSummary

func (l AccountList) PlainLines() []string {
	lines := make([]string, 0, len(l))
	for _, account := range l {
		lines = append(lines, fmt.Sprintf("Account %d: %s", account.Index, account.Alias))
	}
	return lines
}

// MnemonicView prints a freshly stored mnemonic between banner lines.
type MnemonicView struct {
	Mnemonic string `json:"mnemonic"`
}

func (m MnemonicView) PlainLines() []string {
	return []string{
		"**Important** write this mnemonic phrase in a safe place.",
		"It is the only way to recover your account if you ever forget your password or lose the vault file.",
		mnemonicBanner,
		"",
		m.Mnemonic,
		"",
		mnemonicBanner,
		"Mnemonic stored successfully",
	}
}
