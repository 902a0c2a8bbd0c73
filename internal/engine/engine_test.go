package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/faucet"
	"github.com/ggonzalez94/wallet-cli/internal/httpx"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/ggonzalez94/wallet-cli/internal/node"
	"github.com/ggonzalez94/wallet-cli/internal/node/nodetest"
	"github.com/ggonzalez94/wallet-cli/internal/registry"
	"github.com/ggonzalez94/wallet-cli/internal/storage"
	"github.com/ggonzalez94/wallet-cli/internal/vault"
	"github.com/holiman/uint256"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

var fastScrypt = vault.WithScryptParams(1<<10, 8, 1)

type harness struct {
	dir    string
	ledger *nodetest.Ledger
	store  *storage.Store
	vault  *vault.Vault
}

func newHarness(t *testing.T, opts ...nodetest.Option) *harness {
	t.Helper()
	ledger := nodetest.Start(opts...)
	t.Cleanup(ledger.Close)
	return openHarness(t, t.TempDir(), ledger)
}

func openHarness(t *testing.T, dir string, ledger *nodetest.Ledger) *harness {
	t.Helper()
	store, err := storage.Open(filepath.Join(dir, "wallet.db"), filepath.Join(dir, "wallet.lock"))
	if err != nil {
		t.Fatalf("storage.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	v, err := vault.Open(filepath.Join(dir, "wallet.stronghold"), "secret", fastScrypt)
	if err != nil {
		t.Fatalf("vault.Open failed: %v", err)
	}
	return &harness{dir: dir, ledger: ledger, store: store, vault: v}
}

func (h *harness) options(nodeURL string) Options {
	network, _ := registry.Lookup("testnet")
	client := httpx.New("node", 5*time.Second, 0)
	return Options{
		Store:          h.store,
		Vault:          h.vault,
		Network:        network,
		NodeURL:        nodeURL,
		NewNode:        func(url string) Node { return node.New(url, client, nil, 0) },
		Faucet:         faucet.New(client),
		PollInterval:   5 * time.Millisecond,
		ConfirmTimeout: 2 * time.Second,
	}
}

func (h *harness) manager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(h.options(h.ledger.URL()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(m.Close)
	if !m.HasMnemonic() {
		if err := m.StoreMnemonic(testMnemonic); err != nil {
			t.Fatalf("StoreMnemonic failed: %v", err)
		}
	}
	return m
}

func newAccountT(t *testing.T, m *Manager, alias string) *Account {
	t.Helper()
	acc, err := m.CreateAccount(context.Background(), alias)
	if err != nil {
		t.Fatalf("CreateAccount(%q) failed: %v", alias, err)
	}
	return acc
}

func fund(t *testing.T, h *harness, acc *Account, amount uint64) {
	t.Helper()
	addr, ok := acc.LatestAddress()
	if !ok {
		t.Fatal("account has no address")
	}
	h.ledger.Credit(model.Output{Kind: model.OutputBasic, Amount: amount, Address: addr.Bech32})
	if _, err := acc.Sync(context.Background(), model.SyncOptions{}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
}

func firstAddress(t *testing.T, acc *Account) string {
	t.Helper()
	addrs := acc.Addresses()
	if len(addrs) == 0 {
		t.Fatal("account has no address")
	}
	return addrs[0].Bech32
}

func TestCreateAccountWithoutMnemonic(t *testing.T) {
	h := newHarness(t)
	m, err := Open(h.options(h.ledger.URL()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(m.Close)
	if _, err := m.CreateAccount(context.Background(), "main"); !clierr.Is(err, clierr.CodeAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestCreateAndResolveAccounts(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)

	first := newAccountT(t, m, "")
	if first.Alias() != "0" || first.Index() != 0 {
		t.Fatalf("unexpected default alias/index: %q %d", first.Alias(), first.Index())
	}
	if len(first.Addresses()) != 1 {
		t.Fatalf("expected the first address to be generated, got %+v", first.Addresses())
	}
	newAccountT(t, m, "savings")
	if _, err := m.CreateAccount(context.Background(), "savings"); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected duplicate alias error, got %v", err)
	}

	byAlias, err := m.Account("savings")
	if err != nil || byAlias.Index() != 1 {
		t.Fatalf("resolve by alias: %v %+v", err, byAlias)
	}
	byIndex, err := m.Account("1")
	if err != nil || byIndex.Alias() != "savings" {
		t.Fatalf("resolve by index: %v", err)
	}
	if _, err := m.Account("missing"); !clierr.Is(err, clierr.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	summaries := m.Accounts()
	if len(summaries) != 2 || summaries[1].Alias != "savings" {
		t.Fatalf("unexpected accounts: %+v", summaries)
	}
}

func TestSetAliasRejectsDuplicatesAndPersists(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	acc := newAccountT(t, m, "main")
	newAccountT(t, m, "savings")

	if err := acc.SetAlias("savings"); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected duplicate alias error, got %v", err)
	}
	if err := acc.SetAlias("  "); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected empty alias error, got %v", err)
	}
	if err := acc.SetAlias("main"); err != nil {
		t.Fatalf("keeping the same alias failed: %v", err)
	}
	if err := acc.SetAlias("spending"); err != nil {
		t.Fatalf("SetAlias failed: %v", err)
	}
	if _, err := m.Account("main"); !clierr.Is(err, clierr.CodeNotFound) {
		t.Fatalf("expected the old alias to be gone, got %v", err)
	}
	m.StopBackgroundSync()

	reopened, err := Open(h.options(h.ledger.URL()))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	t.Cleanup(reopened.Close)
	again, err := reopened.Account("spending")
	if err != nil || again.Index() != 0 {
		t.Fatalf("expected the new alias to persist: %v", err)
	}
}

func TestAccountsSurviveReopen(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	acc := newAccountT(t, m, "main")
	if _, err := acc.GenerateAddress(context.Background()); err != nil {
		t.Fatalf("GenerateAddress failed: %v", err)
	}
	m.StopBackgroundSync()

	reopened, err := Open(h.options(h.ledger.URL()))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	again, err := reopened.Account("main")
	if err != nil {
		t.Fatalf("Account failed: %v", err)
	}
	addrs := again.Addresses()
	if len(addrs) != 2 || addrs[1].Index != 1 {
		t.Fatalf("unexpected addresses after reopen: %+v", addrs)
	}
	latest, _ := again.LatestAddress()
	if latest.Bech32 != addrs[1].Bech32 {
		t.Fatalf("latest address mismatch: %+v", latest)
	}
}

func TestSendAndSync(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	bob := newAccountT(t, m, "bob")
	fund(t, h, alice, 1_000_000)

	if got := alice.Balance().BaseCoin.Available; got != 1_000_000 {
		t.Fatalf("expected funded balance, got %d", got)
	}
	tx, err := alice.Send(context.Background(), firstAddress(t, bob), 100_000)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if tx.Status != model.TxConfirmed || tx.Kind != KindSend {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if got := alice.Balance().BaseCoin.Total; got != 900_000 {
		t.Fatalf("expected local balance to reflect the send, got %d", got)
	}
	if got := h.ledger.Balance(firstAddress(t, bob)); got != 100_000 {
		t.Fatalf("ledger did not credit bob: %d", got)
	}

	bal, err := bob.Sync(context.Background(), model.SyncOptions{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if bal.BaseCoin.Available != 100_000 {
		t.Fatalf("unexpected bob balance: %+v", bal)
	}
	txs, err := bob.Transactions()
	if err != nil {
		t.Fatalf("Transactions failed: %v", err)
	}
	if len(txs) != 1 || !txs[0].Incoming || txs[0].ID != tx.ID {
		t.Fatalf("expected one incoming transaction, got %+v", txs)
	}

	stored, err := alice.Transaction(tx.ID)
	if err != nil || stored.Status != model.TxConfirmed {
		t.Fatalf("stored transaction: %v %+v", err, stored)
	}
}

func TestSendRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	bob := newAccountT(t, m, "bob")
	fund(t, h, alice, 100_000)
	ctx := context.Background()

	if _, err := alice.Send(ctx, firstAddress(t, bob), 0); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error for zero amount, got %v", err)
	}
	if _, err := alice.Send(ctx, "rms1notanaddress", 50_000); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error for bad address, got %v", err)
	}
	if _, err := alice.Send(ctx, firstAddress(t, bob), 10); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error below storage deposit, got %v", err)
	}
	if _, err := alice.Send(ctx, firstAddress(t, bob), 500_000); !clierr.Is(err, clierr.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	// 100_000 - 80_000 leaves a remainder below the storage deposit.
	if _, err := alice.Send(ctx, firstAddress(t, bob), 80_000); !clierr.Is(err, clierr.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds for dust remainder, got %v", err)
	}
	if len(h.ledger.Submitted()) != 0 {
		t.Fatal("nothing should have been submitted")
	}
}

func TestSendMicroAndClaim(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	bob := newAccountT(t, m, "bob")
	fund(t, h, alice, 1_000_000)
	fund(t, h, bob, 100_000)
	ctx := context.Background()

	if _, err := alice.SendMicro(ctx, firstAddress(t, bob), 10); err != nil {
		t.Fatalf("SendMicro failed: %v", err)
	}
	bal, err := bob.Sync(ctx, model.SyncOptions{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(bal.PotentiallyLocked) != 1 {
		t.Fatalf("expected the micro output to be locked until claimed: %+v", bal)
	}

	claimed, err := bob.Claim(ctx, nil)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].Status != model.TxConfirmed {
		t.Fatalf("unexpected claim result: %+v", claimed)
	}
	if got := h.ledger.Balance(firstAddress(t, bob)); got != 100_010 {
		t.Fatalf("bob should keep the micro amount, got %d", got)
	}
	if got := h.ledger.Balance(firstAddress(t, alice)); got != 999_990 {
		t.Fatalf("alice should get the deposit back, got %d", got)
	}

	again, err := bob.Claim(ctx, nil)
	if err != nil || len(again) != 0 {
		t.Fatalf("expected nothing left to claim: %v %+v", err, again)
	}
}

func TestClaimSpecificOutput(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	fund(t, h, alice, 100_000)
	ctx := context.Background()

	locked := h.ledger.Credit(model.Output{
		Kind:         model.OutputBasic,
		Amount:       50_000,
		Address:      firstAddress(t, alice),
		TimelockUnix: time.Now().Add(time.Hour).Unix(),
	})
	if _, err := alice.Sync(ctx, model.SyncOptions{}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if _, err := alice.Claim(ctx, &locked); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected timelocked output to be refused, got %v", err)
	}
	unknown := model.NewOutputID(model.TransactionID{1}, 3)
	if _, err := alice.Claim(ctx, &unknown); !clierr.Is(err, clierr.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	claimed, err := alice.Claim(ctx, nil)
	if err != nil || len(claimed) != 0 {
		t.Fatalf("timelocked outputs are not claimable yet: %v %+v", err, claimed)
	}
}

func TestSyncCollectsOutputs(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	fund(t, h, alice, 100_000)
	h.ledger.Credit(model.Output{
		Kind:         model.OutputBasic,
		Amount:       60_000,
		Address:      firstAddress(t, alice),
		TimelockUnix: time.Now().Add(-time.Minute).Unix(),
	})
	bal, err := alice.Sync(context.Background(), model.SyncOptions{TryCollectOutputs: true})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if bal.BaseCoin.Available != 160_000 || len(bal.PotentiallyLocked) != 0 {
		t.Fatalf("expected the expired timelock to be collected: %+v", bal)
	}
}

func TestNativeTokenLifecycle(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	bob := newAccountT(t, m, "bob")
	fund(t, h, alice, 1_000_000)
	ctx := context.Background()

	minted, err := alice.MintNativeToken(ctx, uint256.NewInt(1000), []byte("meta"))
	if err != nil {
		t.Fatalf("MintNativeToken failed: %v", err)
	}
	if minted.TokenID == nil {
		t.Fatal("expected a token id")
	}
	tokenID := *minted.TokenID
	bal := alice.Balance()
	if len(bal.Foundries) != 1 || len(bal.NativeTokens) != 1 || bal.NativeTokens[0].Amount != "1000" {
		t.Fatalf("unexpected balance after mint: %+v", bal)
	}

	if _, err := alice.SendNativeToken(ctx, firstAddress(t, bob), tokenID, uint256.NewInt(400)); err != nil {
		t.Fatalf("SendNativeToken failed: %v", err)
	}
	if _, err := alice.BurnNativeToken(ctx, tokenID, uint256.NewInt(100)); err != nil {
		t.Fatalf("BurnNativeToken failed: %v", err)
	}
	if got := alice.Balance().NativeTokens; len(got) != 1 || got[0].Amount != "500" {
		t.Fatalf("unexpected token balance: %+v", got)
	}
	if _, err := alice.BurnNativeToken(ctx, tokenID, uint256.NewInt(10_000)); !clierr.Is(err, clierr.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient token balance, got %v", err)
	}

	bobBal, err := bob.Sync(ctx, model.SyncOptions{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(bobBal.NativeTokens) != 1 || bobBal.NativeTokens[0].Amount != "400" || bobBal.NativeTokens[0].ID != tokenID {
		t.Fatalf("unexpected bob tokens: %+v", bobBal.NativeTokens)
	}

	second, err := alice.MintNativeToken(ctx, uint256.NewInt(5), nil)
	if err != nil {
		t.Fatalf("second mint failed: %v", err)
	}
	if *second.TokenID == tokenID {
		t.Fatal("each foundry must get a new token id")
	}
}

func TestNftLifecycle(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	bob := newAccountT(t, m, "bob")
	fund(t, h, alice, 1_000_000)
	ctx := context.Background()

	minted, err := alice.MintNft(ctx, model.NftOptions{ImmutableMetadata: []byte("art"), Metadata: []byte("v1")})
	if err != nil {
		t.Fatalf("MintNft failed: %v", err)
	}
	nftID := *minted.NftID
	if nfts := alice.Balance().Nfts; len(nfts) != 1 || nfts[0] != nftID {
		t.Fatalf("unexpected nfts after mint: %+v", nfts)
	}

	if _, err := alice.SendNft(ctx, firstAddress(t, bob), nftID); err != nil {
		t.Fatalf("SendNft failed: %v", err)
	}
	if nfts := alice.Balance().Nfts; len(nfts) != 0 {
		t.Fatalf("nft should have left alice: %+v", nfts)
	}
	if _, err := alice.SendNft(ctx, firstAddress(t, bob), nftID); !clierr.Is(err, clierr.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	bal, err := bob.Sync(ctx, model.SyncOptions{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(bal.Nfts) != 1 || bal.Nfts[0] != nftID {
		t.Fatalf("bob should own the nft: %+v", bal.Nfts)
	}
	if _, err := bob.BurnNft(ctx, nftID); err != nil {
		t.Fatalf("BurnNft failed: %v", err)
	}
	if got := h.ledger.Balance(firstAddress(t, bob)); got != h.ledger.MinStorageDeposit() {
		t.Fatalf("burning should release the deposit, got %d", got)
	}
}

func TestConsolidate(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	ctx := context.Background()

	fund(t, h, alice, 100_000)
	if txs, err := alice.Consolidate(ctx); err != nil || len(txs) != 0 {
		t.Fatalf("a single output needs no consolidation: %v %+v", err, txs)
	}
	fund(t, h, alice, 50_000)
	fund(t, h, alice, 70_000)
	txs, err := alice.Consolidate(ctx)
	if err != nil || len(txs) != 1 {
		t.Fatalf("Consolidate failed: %v %+v", err, txs)
	}
	outputs := alice.UnspentOutputs()
	if len(outputs) != 1 || outputs[0].Output.Amount != 220_000 {
		t.Fatalf("expected one merged output, got %+v", outputs)
	}
}

func TestPendingTransactionSettledBySync(t *testing.T) {
	h := newHarness(t, nodetest.WithPendingBlocks())
	opts := h.options(h.ledger.URL())
	opts.ConfirmTimeout = 30 * time.Millisecond
	m, err := Open(opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(m.Close)
	if err := m.StoreMnemonic(testMnemonic); err != nil {
		t.Fatalf("StoreMnemonic failed: %v", err)
	}
	alice := newAccountT(t, m, "alice")
	bob := newAccountT(t, m, "bob")
	fund(t, h, alice, 1_000_000)
	ctx := context.Background()

	tx, err := alice.Send(ctx, firstAddress(t, bob), 100_000)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if tx.Status != model.TxPending {
		t.Fatalf("expected pending transaction, got %s", tx.Status)
	}
	h.ledger.Confirm()
	if _, err := alice.Sync(ctx, model.SyncOptions{}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	stored, err := alice.Transaction(tx.ID)
	if err != nil || stored.Status != model.TxConfirmed {
		t.Fatalf("expected sync to confirm the transaction: %v %+v", err, stored)
	}
}

func TestSyncKeepsPendingTransactionEffects(t *testing.T) {
	h := newHarness(t, nodetest.WithLaggingIndexer())
	opts := h.options(h.ledger.URL())
	opts.ConfirmTimeout = 30 * time.Millisecond
	m, err := Open(opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(m.Close)
	if err := m.StoreMnemonic(testMnemonic); err != nil {
		t.Fatalf("StoreMnemonic failed: %v", err)
	}
	alice := newAccountT(t, m, "alice")
	bob := newAccountT(t, m, "bob")
	fund(t, h, alice, 1_000_000)
	ctx := context.Background()
	to := firstAddress(t, bob)

	first, err := alice.Send(ctx, to, 100_000)
	if err != nil {
		t.Fatalf("first Send failed: %v", err)
	}
	if first.Status != model.TxPending {
		t.Fatalf("expected pending transaction, got %s", first.Status)
	}
	balance, err := alice.Sync(ctx, model.SyncOptions{})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if balance.BaseCoin.Total != 900_000 {
		t.Fatalf("expected sync to keep the pending remainder, got %d", balance.BaseCoin.Total)
	}

	second, err := alice.Send(ctx, to, 100_000)
	if err != nil {
		t.Fatalf("second Send after sync failed: %v", err)
	}
	h.ledger.Confirm()
	if _, err := alice.Sync(ctx, model.SyncOptions{}); err != nil {
		t.Fatalf("Sync after confirm failed: %v", err)
	}
	for _, tx := range []model.Transaction{first, second} {
		stored, err := alice.Transaction(tx.ID)
		if err != nil || stored.Status != model.TxConfirmed {
			t.Fatalf("expected %s confirmed: %v %+v", tx.ID, err, stored)
		}
	}
	if got := alice.Balance().BaseCoin.Total; got != 800_000 {
		t.Fatalf("expected 800000 after both sends, got %d", got)
	}
	if got := h.ledger.Balance(to); got != 200_000 {
		t.Fatalf("expected bob to hold 200000 on the ledger, got %d", got)
	}
}

func TestRequestFunds(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	ctx := context.Background()

	if _, err := alice.RequestFunds(ctx, h.ledger.FaucetURL(), "smr1qqqqqq"); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected address validation error, got %v", err)
	}
	msg, err := alice.RequestFunds(ctx, h.ledger.FaucetURL(), firstAddress(t, alice))
	if err != nil {
		t.Fatalf("RequestFunds failed: %v", err)
	}
	if msg == "" {
		t.Fatal("expected a faucet message")
	}
	if got := h.ledger.Balance(firstAddress(t, alice)); got != nodetest.DefaultFaucetAmount {
		t.Fatalf("faucet did not fund the address: %d", got)
	}
}

func TestSyncAllAggregates(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	bob := newAccountT(t, m, "bob")
	h.ledger.Credit(model.Output{Kind: model.OutputBasic, Amount: 100_000, Address: firstAddress(t, alice)})
	h.ledger.Credit(model.Output{Kind: model.OutputBasic, Amount: 200_000, Address: firstAddress(t, bob)})

	total, err := m.SyncAll(context.Background(), model.SyncOptions{})
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if total.BaseCoin.Total != 300_000 || total.Nfts == nil {
		t.Fatalf("unexpected aggregate: %+v", total)
	}
}

func TestSetNode(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	ctx := context.Background()

	if err := m.SetNode(ctx, "http://example.com"); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected plain http to be refused, got %v", err)
	}
	if err := m.SetNode(ctx, "http://localhost:9999/"); err != nil {
		t.Fatalf("SetNode failed: %v", err)
	}
	if m.NodeURL() != "http://localhost:9999" {
		t.Fatalf("unexpected node url: %s", m.NodeURL())
	}

	reopened, err := Open(h.options(""))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.NodeURL() != "http://localhost:9999" {
		t.Fatalf("stored node url not used: %s", reopened.NodeURL())
	}
}

func TestBackupAndRestore(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	newAccountT(t, m, "bob")
	fund(t, h, alice, 100_000)
	ctx := context.Background()

	backupPath := filepath.Join(t.TempDir(), "wallet.backup")
	if err := m.Backup(ctx, backupPath); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	fresh := openHarness(t, t.TempDir(), h.ledger)
	restored, err := Open(fresh.options(h.ledger.URL()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(restored.Close)
	if err := restored.Restore(ctx, backupPath, "wrong"); !clierr.Is(err, clierr.CodeAuth) {
		t.Fatalf("expected auth error for wrong password, got %v", err)
	}
	if err := restored.Restore(ctx, backupPath, "secret"); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !restored.HasMnemonic() || len(restored.Accounts()) != 2 {
		t.Fatalf("restore incomplete: %+v", restored.Accounts())
	}
	again, err := restored.Account("alice")
	if err != nil {
		t.Fatalf("Account failed: %v", err)
	}
	if again.Balance().BaseCoin.Total != 100_000 {
		t.Fatalf("restored state lost outputs: %+v", again.Balance())
	}
	if firstAddress(t, again) != firstAddress(t, alice) {
		t.Fatal("restored keys must derive the same addresses")
	}
}

func TestBackgroundSync(t *testing.T) {
	h := newHarness(t)
	m := h.manager(t)
	alice := newAccountT(t, m, "alice")
	h.ledger.Credit(model.Output{Kind: model.OutputBasic, Amount: 100_000, Address: firstAddress(t, alice)})

	m.StartBackgroundSync(5 * time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for alice.Balance().BaseCoin.Total != 100_000 {
		if time.Now().After(deadline) {
			t.Fatal("background sync never picked up the output")
		}
		time.Sleep(5 * time.Millisecond)
	}
	m.StopBackgroundSync()
}
