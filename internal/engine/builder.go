package engine

import (
	"bytes"
	"context"
	"sort"
	"time"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/holiman/uint256"
)

// maxInputs bounds how many outputs a single transaction consumes.
const maxInputs = 128

// builder selects inputs and balances a transaction. Requested outputs are
// added first; build then pulls spendable basic outputs, largest first, until
// base coin and native tokens balance and any remainder can carry its own
// storage deposit.
type builder struct {
	info       model.NodeInfo
	now        time.Time
	remainder  string
	candidates []model.OutputRecord
	inputs     []model.OutputRecord
	used       map[model.OutputID]bool
	outputs    []model.Output
	minted     map[model.TokenID]*uint256.Int
	burn       model.Burn
}

// newBuilder fetches node info and checks it serves the wallet's network.
func (a *Account) newBuilder(ctx context.Context, st model.AccountState) (*builder, error) {
	info, err := a.m.nodeClient().Info(ctx)
	if err != nil {
		return nil, err
	}
	if info.Network.Bech32HRP != a.m.HRP() {
		return nil, clierr.Newf(clierr.CodeUnsupported, "node serves network %q (%s), wallet uses %q",
			info.Network.Name, info.Network.Bech32HRP, a.m.HRP())
	}
	if len(st.Addresses) == 0 {
		return nil, clierr.New(clierr.CodeNoAddress, "account has no address")
	}
	now := a.m.now()
	b := &builder{
		info:      info,
		now:       now,
		remainder: st.Addresses[0].Bech32,
		used:      map[model.OutputID]bool{},
		minted:    map[model.TokenID]*uint256.Int{},
	}
	for _, rec := range sortedRecords(st.Unspent) {
		if spendable(st, rec.Output) {
			b.candidates = append(b.candidates, rec)
		}
	}
	sort.SliceStable(b.candidates, func(i, j int) bool {
		return b.candidates[i].Output.Amount > b.candidates[j].Output.Amount
	})
	return b, nil
}

// spendable reports whether out is a plain basic output the account controls.
func spendable(st model.AccountState, out model.Output) bool {
	return out.Kind == model.OutputBasic && !out.HasUnlockConditions() && owns(st, out.Address)
}

func (b *builder) minDeposit() uint64 { return b.info.Network.MinStorageDeposit }

func (b *builder) addInput(rec model.OutputRecord) {
	if b.used[rec.OutputID] {
		return
	}
	b.used[rec.OutputID] = true
	b.inputs = append(b.inputs, rec)
}

func (b *builder) addOutput(out model.Output) {
	b.outputs = append(b.outputs, out)
}

func (b *builder) mint(tokenID model.TokenID, amount *uint256.Int) {
	b.minted[tokenID] = new(uint256.Int).Set(amount)
}

func (b *builder) burnTokens(tokenID model.TokenID, amount *uint256.Int) {
	b.burn.NativeTokens = append(b.burn.NativeTokens, model.NativeToken{ID: tokenID, Amount: amount.Dec()})
}

func (b *builder) burnNft(nftID model.NftID) {
	b.burn.Nfts = append(b.burn.Nfts, nftID)
}

// tokenDelta returns what the inputs lack and what they carry in excess,
// per token, after minting and burning.
func (b *builder) tokenDelta() (deficit, excess map[model.TokenID]*uint256.Int) {
	left := map[model.TokenID]*uint256.Int{}
	right := map[model.TokenID]*uint256.Int{}
	for _, in := range b.inputs {
		addTokens(left, in.Output.NativeTokens)
	}
	for tokenID, amount := range b.minted {
		addTokens(left, []model.NativeToken{{ID: tokenID, Amount: amount.Dec()}})
	}
	for _, out := range b.outputs {
		addTokens(right, out.NativeTokens)
	}
	addTokens(right, b.burn.NativeTokens)

	deficit = map[model.TokenID]*uint256.Int{}
	excess = map[model.TokenID]*uint256.Int{}
	for tokenID, have := range left {
		need := right[tokenID]
		if need == nil {
			need = new(uint256.Int)
		}
		if have.Gt(need) {
			excess[tokenID] = new(uint256.Int).Sub(have, need)
		}
	}
	for tokenID, need := range right {
		have := left[tokenID]
		if have == nil {
			have = new(uint256.Int)
		}
		if need.Gt(have) {
			deficit[tokenID] = new(uint256.Int).Sub(need, have)
		}
	}
	return deficit, excess
}

func (b *builder) nextCandidate(holding *model.TokenID) (model.OutputRecord, bool) {
	for _, rec := range b.candidates {
		if b.used[rec.OutputID] {
			continue
		}
		if holding == nil {
			return rec, true
		}
		for _, t := range rec.Output.NativeTokens {
			if t.ID == *holding {
				return rec, true
			}
		}
	}
	return model.OutputRecord{}, false
}

func (b *builder) build() (model.TransactionEssence, []model.OutputRecord, error) {
	for {
		if len(b.inputs) > maxInputs {
			return model.TransactionEssence{}, nil, clierr.Newf(clierr.CodeInsufficientFunds, "transaction would need more than %d inputs, consolidate first", maxInputs)
		}
		deficit, excess := b.tokenDelta()
		if len(deficit) > 0 {
			tokenID := firstToken(deficit)
			rec, ok := b.nextCandidate(&tokenID)
			if !ok {
				return model.TransactionEssence{}, nil, clierr.Newf(clierr.CodeInsufficientFunds,
					"insufficient balance of native token %s: missing %s", tokenID, deficit[tokenID].Dec())
			}
			b.addInput(rec)
			continue
		}

		var inBase, outBase uint64
		for _, in := range b.inputs {
			inBase += in.Output.Amount
		}
		for _, out := range b.outputs {
			outBase += out.Amount
		}
		if inBase >= outBase {
			rem := inBase - outBase
			if rem == 0 && len(excess) == 0 && len(b.outputs) > 0 {
				return b.essence(), b.inputs, nil
			}
			if rem >= b.minDeposit() {
				b.addOutput(model.Output{
					Kind:         model.OutputBasic,
					Amount:       rem,
					Address:      b.remainder,
					NativeTokens: tokenList(excess),
				})
				return b.essence(), b.inputs, nil
			}
		}

		rec, ok := b.nextCandidate(nil)
		if !ok {
			if inBase < outBase {
				return model.TransactionEssence{}, nil, clierr.Newf(clierr.CodeInsufficientFunds,
					"insufficient funds: need %d, available %d", outBase, inBase)
			}
			return model.TransactionEssence{}, nil, clierr.Newf(clierr.CodeInsufficientFunds,
				"insufficient funds: the remainder of %d is below the minimum storage deposit of %d", inBase-outBase, b.minDeposit())
		}
		b.addInput(rec)
	}
}

func (b *builder) essence() model.TransactionEssence {
	ids := make([]model.OutputID, 0, len(b.inputs))
	for _, in := range b.inputs {
		ids = append(ids, in.OutputID)
	}
	e := model.TransactionEssence{
		NetworkID:    b.info.Network.NetworkID,
		CreationTime: b.now.UnixNano(),
		Inputs:       ids,
		Outputs:      b.outputs,
	}
	if len(b.burn.NativeTokens) > 0 || len(b.burn.Nfts) > 0 {
		burn := b.burn
		e.Burn = &burn
	}
	return e
}

func firstToken(set map[model.TokenID]*uint256.Int) model.TokenID {
	ids := make([]model.TokenID, 0, len(set))
	for tokenID := range set {
		ids = append(ids, tokenID)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids[0]
}
