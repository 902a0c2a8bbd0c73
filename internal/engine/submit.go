package engine

import (
	"context"
	"time"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/keys"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/ggonzalez94/wallet-cli/internal/node"
)

// Transaction kinds recorded with each submission.
const (
	KindSend        = "send"
	KindSendMicro   = "send-micro"
	KindSendToken   = "send-native-token"
	KindSendNft     = "send-nft"
	KindMintToken   = "mint-native-token"
	KindMintNft     = "mint-nft"
	KindBurnToken   = "burn-native-token"
	KindBurnNft     = "burn-nft"
	KindClaim       = "claim"
	KindConsolidate = "consolidate"
	KindIncoming    = "incoming"
)

// submit signs, submits and records a transaction, then waits for the node
// to include it. A transaction still pending when the confirmation window
// closes is returned without error and settled by a later sync.
func (a *Account) submit(ctx context.Context, kind string, b *builder) (model.Transaction, error) {
	essence, inputs, err := b.build()
	if err != nil {
		return model.Transaction{}, err
	}
	txID, err := essence.ID()
	if err != nil {
		return model.Transaction{}, clierr.Wrap(clierr.CodeInternal, "hash transaction", err)
	}
	kc, err := a.m.keys()
	if err != nil {
		return model.Transaction{}, err
	}

	st := a.snapshot()
	now := b.now.Unix()
	unlocks := make([]model.Unlock, 0, len(inputs))
	for _, in := range inputs {
		owner := ownerAt(in.Output, now)
		addr, ok := addressOf(st, owner)
		if !ok {
			return model.Transaction{}, clierr.Newf(clierr.CodeInternal, "input %s is owned by %s, which is not an account address", in.OutputID, owner)
		}
		key, err := kc.Key(st.Index, addr.Index, addr.Internal)
		if err != nil {
			return model.Transaction{}, err
		}
		unlock, err := keys.Sign(key, txID[:])
		if err != nil {
			return model.Transaction{}, err
		}
		unlocks = append(unlocks, unlock)
	}

	signed := model.SignedTransaction{Essence: essence, Unlocks: unlocks}
	blockID, err := a.m.nodeClient().SubmitTransaction(ctx, signed)
	if err != nil {
		return model.Transaction{}, err
	}

	created := a.m.now().UTC()
	tx := model.Transaction{
		ID:           txID,
		BlockID:      blockID,
		AccountIndex: st.Index,
		Kind:         kind,
		Status:       model.TxPending,
		Payload:      signed,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if err := a.m.store.SaveTransaction(tx); err != nil {
		return tx, clierr.Wrap(clierr.CodeStorage, "record transaction", err)
	}
	if err := a.update(func(st *model.AccountState) { applyLocal(st, signed, txID, blockID) }); err != nil {
		return tx, err
	}
	a.m.log.Debug("transaction submitted", "account", st.Alias, "kind", kind, "tx", txID.String(), "block", blockID.String(), "inputs", len(inputs))
	return a.awaitInclusion(ctx, tx)
}

// applyLocal spends the inputs and adds the outputs the account owns, so
// balances reflect the transaction before the next sync.
func applyLocal(st *model.AccountState, tx model.SignedTransaction, txID model.TransactionID, blockID model.BlockID) {
	for _, in := range tx.Essence.Inputs {
		delete(st.Unspent, in)
	}
	for i, out := range tx.Essence.Outputs {
		// Outputs returning to us on expiry are picked up by a later sync.
		if !owns(*st, out.Address) {
			continue
		}
		outputID := model.NewOutputID(txID, uint16(i))
		st.Unspent[outputID] = model.OutputRecord{
			OutputID: outputID,
			Metadata: model.OutputMetadata{BlockID: blockID, TransactionID: txID, OutputIndex: uint16(i)},
			Output:   out,
		}
	}
}

func (a *Account) awaitInclusion(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	waitCtx, cancel := context.WithTimeout(ctx, a.m.confirmTimeout)
	defer cancel()
	ticker := time.NewTicker(a.m.pollInterval)
	defer ticker.Stop()

	client := a.m.nodeClient()
	for {
		meta, err := client.BlockMetadata(waitCtx, tx.BlockID)
		if err == nil {
			settled, done, err := a.settle(tx, meta)
			if done {
				return settled, err
			}
		} else if waitCtx.Err() == nil {
			a.m.log.Debug("block metadata unavailable", "block", tx.BlockID.String(), "err", err)
		}

		select {
		case <-waitCtx.Done():
			a.m.log.Warn("transaction still pending", "tx", tx.ID.String(), "block", tx.BlockID.String())
			return tx, nil
		case <-ticker.C:
		}
	}
}

// settle records the inclusion state reported for tx. done is false while
// the block is still pending.
func (a *Account) settle(tx model.Transaction, meta node.BlockMetadata) (model.Transaction, bool, error) {
	switch meta.LedgerInclusionState {
	case node.StateIncluded:
		tx.Status = model.TxConfirmed
	case node.StateConflicting:
		tx.Status = model.TxConflicting
		tx.Conflict = meta.ConflictReason
	default:
		return tx, false, nil
	}
	tx.UpdatedAt = a.m.now().UTC()
	if err := a.m.store.SaveTransaction(tx); err != nil {
		return tx, true, clierr.Wrap(clierr.CodeStorage, "record transaction", err)
	}
	if tx.Status == model.TxConflicting {
		a.m.log.Warn("transaction conflicting", "tx", tx.ID.String(), "reason", tx.Conflict)
		return tx, true, clierr.Newf(clierr.CodeEngine, "transaction %s was rejected by the ledger: %s", tx.ID, conflictText(tx.Conflict))
	}
	a.m.log.Debug("transaction confirmed", "tx", tx.ID.String())
	return tx, true, nil
}

func conflictText(reason string) string {
	if reason == "" {
		return "conflicting"
	}
	return reason
}
