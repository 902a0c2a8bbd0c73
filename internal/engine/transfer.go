package engine

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/keys"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/holiman/uint256"
)

// microExpiration is how long a recipient has to claim a micro transfer
// before it returns to the sender.
const microExpiration = 24 * time.Hour

func (a *Account) checkRecipient(address string) error {
	_, err := keys.ParseAddress(a.m.HRP(), address)
	return err
}

// Send transfers base coin. The amount must cover the minimum storage
// deposit; smaller amounts go through SendMicro.
func (a *Account) Send(ctx context.Context, address string, amount uint64) (model.Transaction, error) {
	if amount == 0 {
		return model.Transaction{}, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	if err := a.checkRecipient(address); err != nil {
		return model.Transaction{}, err
	}
	a.opMu.Lock()
	defer a.opMu.Unlock()

	b, err := a.newBuilder(ctx, a.snapshot())
	if err != nil {
		return model.Transaction{}, err
	}
	if amount < b.minDeposit() {
		return model.Transaction{}, clierr.Newf(clierr.CodeUsage,
			"amount %d is below the minimum storage deposit of %d, use send-micro", amount, b.minDeposit())
	}
	b.addOutput(model.Output{Kind: model.OutputBasic, Amount: amount, Address: address})
	return a.submit(ctx, KindSend, b)
}

// SendMicro transfers an amount below the storage deposit. The output
// carries amount plus the deposit; the recipient returns the deposit when
// claiming, and the whole output falls back to the sender if unclaimed.
func (a *Account) SendMicro(ctx context.Context, address string, amount uint64) (model.Transaction, error) {
	if amount == 0 {
		return model.Transaction{}, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	if err := a.checkRecipient(address); err != nil {
		return model.Transaction{}, err
	}
	a.opMu.Lock()
	defer a.opMu.Unlock()

	st := a.snapshot()
	b, err := a.newBuilder(ctx, st)
	if err != nil {
		return model.Transaction{}, err
	}
	returnAddress := st.Addresses[0].Bech32
	out := model.Output{
		Kind:          model.OutputBasic,
		Amount:        amount + b.minDeposit(),
		Address:       address,
		StorageReturn: &model.StorageReturn{ReturnAddress: returnAddress, Amount: b.minDeposit()},
		Expiration: &model.Expiration{
			ReturnAddress: returnAddress,
			UnixTime:      b.now.Add(microExpiration).Unix(),
		},
	}
	b.addOutput(out)
	return a.submit(ctx, KindSendMicro, b)
}

// SendNativeToken moves native tokens along with the storage deposit the
// carrying output needs.
func (a *Account) SendNativeToken(ctx context.Context, address string, tokenID model.TokenID, amount *uint256.Int) (model.Transaction, error) {
	if amount == nil || amount.IsZero() {
		return model.Transaction{}, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	if err := a.checkRecipient(address); err != nil {
		return model.Transaction{}, err
	}
	a.opMu.Lock()
	defer a.opMu.Unlock()

	b, err := a.newBuilder(ctx, a.snapshot())
	if err != nil {
		return model.Transaction{}, err
	}
	b.addOutput(model.Output{
		Kind:         model.OutputBasic,
		Amount:       b.minDeposit(),
		Address:      address,
		NativeTokens: []model.NativeToken{{ID: tokenID, Amount: amount.Dec()}},
	})
	return a.submit(ctx, KindSendToken, b)
}

// findNft locates the output holding nftID.
func findNft(st model.AccountState, nftID model.NftID) (model.OutputRecord, bool) {
	for _, rec := range sortedRecords(st.Unspent) {
		if rec.Output.Kind != model.OutputNft {
			continue
		}
		current := rec.Output.NftID
		if current.IsZero() {
			current = model.NftIDFromOutputID(rec.OutputID)
		}
		if current == nftID {
			return rec, true
		}
	}
	return model.OutputRecord{}, false
}

func (a *Account) SendNft(ctx context.Context, address string, nftID model.NftID) (model.Transaction, error) {
	if err := a.checkRecipient(address); err != nil {
		return model.Transaction{}, err
	}
	a.opMu.Lock()
	defer a.opMu.Unlock()

	st := a.snapshot()
	rec, ok := findNft(st, nftID)
	if !ok {
		return model.Transaction{}, clierr.Newf(clierr.CodeNotFound, "nft %s not found in account %q", nftID, st.Alias)
	}
	b, err := a.newBuilder(ctx, st)
	if err != nil {
		return model.Transaction{}, err
	}
	moved := rec.Output
	moved.NftID = nftID
	moved.Address = address
	b.addInput(rec)
	b.addOutput(moved)
	return a.submit(ctx, KindSendNft, b)
}

// MintNativeToken creates a foundry and mints the whole supply into the account.
func (a *Account) MintNativeToken(ctx context.Context, maxSupply *uint256.Int, metadata []byte) (model.MintResult, error) {
	if maxSupply == nil || maxSupply.IsZero() {
		return model.MintResult{}, clierr.New(clierr.CodeUsage, "maximum supply must be greater than zero")
	}
	a.opMu.Lock()
	defer a.opMu.Unlock()

	st := a.snapshot()
	b, err := a.newBuilder(ctx, st)
	if err != nil {
		return model.MintResult{}, err
	}
	controller := st.Addresses[0].Bech32
	var controllerID [32]byte
	copy(controllerID[:], crypto.Keccak256([]byte(controller)))
	serial := st.FoundrySerial + 1
	tokenID := model.NewTokenID(controllerID, serial)
	supply := maxSupply.Dec()

	b.mint(tokenID, maxSupply)
	b.addOutput(model.Output{
		Kind:         model.OutputFoundry,
		Amount:       b.minDeposit(),
		Address:      controller,
		TokenID:      tokenID,
		SerialNumber: serial,
		TokenScheme: &model.TokenScheme{
			MintedTokens:  supply,
			MeltedTokens:  "0",
			MaximumSupply: supply,
		},
		ImmutableMetadata: metadata,
	})
	b.addOutput(model.Output{
		Kind:         model.OutputBasic,
		Amount:       b.minDeposit(),
		Address:      controller,
		NativeTokens: []model.NativeToken{{ID: tokenID, Amount: supply}},
	})
	tx, err := a.submit(ctx, KindMintToken, b)
	if tx.BlockID != (model.BlockID{}) {
		if uerr := a.update(func(st *model.AccountState) { st.FoundrySerial = max(st.FoundrySerial, serial) }); uerr != nil && err == nil {
			err = uerr
		}
	}
	if err != nil {
		return model.MintResult{Transaction: tx}, err
	}
	return model.MintResult{TokenID: &tokenID, Transaction: tx}, nil
}

// MintNft mints one NFT to opts.Address, or to the account itself when empty.
func (a *Account) MintNft(ctx context.Context, opts model.NftOptions) (model.MintResult, error) {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	st := a.snapshot()
	owner := opts.Address
	if owner == "" && len(st.Addresses) > 0 {
		owner = st.Addresses[0].Bech32
	}
	if err := a.checkRecipient(owner); err != nil {
		return model.MintResult{}, err
	}
	b, err := a.newBuilder(ctx, st)
	if err != nil {
		return model.MintResult{}, err
	}
	b.addOutput(model.Output{
		Kind:              model.OutputNft,
		Amount:            b.minDeposit(),
		Address:           owner,
		ImmutableMetadata: opts.ImmutableMetadata,
		Metadata:          opts.Metadata,
	})
	tx, err := a.submit(ctx, KindMintNft, b)
	if err != nil {
		return model.MintResult{Transaction: tx}, err
	}
	// The NFT is the first output; its id derives from the output id.
	nftID := model.NftIDFromOutputID(model.NewOutputID(tx.ID, 0))
	return model.MintResult{NftID: &nftID, Transaction: tx}, nil
}

func (a *Account) BurnNativeToken(ctx context.Context, tokenID model.TokenID, amount *uint256.Int) (model.Transaction, error) {
	if amount == nil || amount.IsZero() {
		return model.Transaction{}, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	a.opMu.Lock()
	defer a.opMu.Unlock()

	b, err := a.newBuilder(ctx, a.snapshot())
	if err != nil {
		return model.Transaction{}, err
	}
	b.burnTokens(tokenID, amount)
	return a.submit(ctx, KindBurnToken, b)
}

func (a *Account) BurnNft(ctx context.Context, nftID model.NftID) (model.Transaction, error) {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	st := a.snapshot()
	rec, ok := findNft(st, nftID)
	if !ok {
		return model.Transaction{}, clierr.Newf(clierr.CodeNotFound, "nft %s not found in account %q", nftID, st.Alias)
	}
	b, err := a.newBuilder(ctx, st)
	if err != nil {
		return model.Transaction{}, err
	}
	b.addInput(rec)
	b.burnNft(nftID)
	return a.submit(ctx, KindBurnNft, b)
}

// Claim collects outputs carrying unlock conditions the account can satisfy
// now. A nil outputID claims all of them. No eligible output yields no
// transactions and no error.
func (a *Account) Claim(ctx context.Context, outputID *model.OutputID) ([]model.Transaction, error) {
	a.opMu.Lock()
	defer a.opMu.Unlock()
	return a.claimLocked(ctx, outputID)
}

func (a *Account) claimLocked(ctx context.Context, outputID *model.OutputID) ([]model.Transaction, error) {
	st := a.snapshot()
	now := a.m.now().Unix()
	var claimable []model.OutputRecord
	for _, rec := range sortedRecords(st.Unspent) {
		if canClaim(st, rec.Output, now) {
			claimable = append(claimable, rec)
		}
	}
	if outputID != nil {
		rec, held := st.Unspent[*outputID]
		if !held {
			return nil, clierr.Newf(clierr.CodeNotFound, "output %s not found in account %q", *outputID, st.Alias)
		}
		if !canClaim(st, rec.Output, now) {
			return nil, clierr.Newf(clierr.CodeUsage, "output %s cannot be claimed now", *outputID)
		}
		claimable = []model.OutputRecord{rec}
	}
	if len(claimable) == 0 {
		return nil, nil
	}
	if len(claimable) > maxInputs {
		claimable = claimable[:maxInputs]
	}

	b, err := a.newBuilder(ctx, st)
	if err != nil {
		return nil, err
	}
	for _, rec := range claimable {
		b.addInput(rec)
		out := rec.Output
		expired := out.Expiration != nil && now >= out.Expiration.UnixTime
		if out.StorageReturn != nil && !expired {
			b.addOutput(model.Output{
				Kind:    model.OutputBasic,
				Amount:  out.StorageReturn.Amount,
				Address: out.StorageReturn.ReturnAddress,
			})
		}
	}
	tx, err := a.submit(ctx, KindClaim, b)
	if err != nil {
		if tx.BlockID != (model.BlockID{}) {
			return []model.Transaction{tx}, err
		}
		return nil, err
	}
	return []model.Transaction{tx}, nil
}

// canClaim reports whether out carries unlock conditions the account can
// satisfy at unix time now.
func canClaim(st model.AccountState, out model.Output, now int64) bool {
	if out.Kind != model.OutputBasic || !out.HasUnlockConditions() {
		return false
	}
	if out.TimelockUnix > now {
		return false
	}
	return owns(st, ownerAt(out, now))
}

// Consolidate merges every plain basic output into one. Fewer than two
// outputs leave nothing to do.
func (a *Account) Consolidate(ctx context.Context) ([]model.Transaction, error) {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	st := a.snapshot()
	var inputs []model.OutputRecord
	for _, rec := range sortedRecords(st.Unspent) {
		if spendable(st, rec.Output) {
			inputs = append(inputs, rec)
		}
	}
	if len(inputs) < 2 {
		return nil, nil
	}
	if len(inputs) > maxInputs {
		inputs = inputs[:maxInputs]
	}
	b, err := a.newBuilder(ctx, st)
	if err != nil {
		return nil, err
	}
	for _, rec := range inputs {
		b.addInput(rec)
	}
	tx, err := a.submit(ctx, KindConsolidate, b)
	if err != nil {
		return nil, err
	}
	return []model.Transaction{tx}, nil
}
