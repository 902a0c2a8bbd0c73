package engine

import (
	"context"
	"time"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/model"
)

var syncedKinds = []model.OutputKind{model.OutputBasic, model.OutputNft, model.OutputFoundry}

// Sync refreshes unspent outputs and pending transactions from the node and
// returns the resulting balance. With TryCollectOutputs set, claimable
// outputs are collected afterwards.
func (a *Account) Sync(ctx context.Context, opts model.SyncOptions) (model.Balance, error) {
	a.opMu.Lock()
	defer a.opMu.Unlock()
	return a.syncLocked(ctx, opts)
}

func (a *Account) syncLocked(ctx context.Context, opts model.SyncOptions) (model.Balance, error) {
	client := a.m.nodeClient()
	st := a.snapshot()
	now := a.m.now()

	ids := map[model.OutputID]bool{}
	for _, addr := range st.Addresses {
		for _, kind := range syncedKinds {
			found, err := client.OutputIDs(ctx, kind, addr.Bech32)
			if err != nil {
				return model.Balance{}, err
			}
			for _, outputID := range found {
				ids[outputID] = true
			}
		}
		expiring, err := client.ExpiringOutputIDs(ctx, addr.Bech32)
		if err != nil {
			return model.Balance{}, err
		}
		for _, outputID := range expiring {
			ids[outputID] = true
		}
	}

	unspent := make(map[model.OutputID]model.OutputRecord, len(ids))
	fresh := map[model.TransactionID][]model.OutputRecord{}
	for outputID := range ids {
		rec, known := st.Unspent[outputID]
		if !known {
			var err error
			if rec, err = client.Output(ctx, outputID); err != nil {
				return model.Balance{}, err
			}
		}
		if rec.Metadata.IsSpent || !owns(st, ownerAt(rec.Output, now.Unix())) {
			continue
		}
		unspent[outputID] = rec
		if !known {
			fresh[rec.Metadata.TransactionID] = append(fresh[rec.Metadata.TransactionID], rec)
		}
	}

	if err := a.recordIncoming(st, fresh, now); err != nil {
		return model.Balance{}, err
	}
	if err := a.settlePending(ctx, st.Index); err != nil {
		return model.Balance{}, err
	}
	// The indexer may not reflect transactions still pending, so their
	// inputs stay spent and their outputs stay ours until they settle.
	pending, err := a.m.store.ListTransactions(st.Index, model.TxPending, 0)
	if err != nil {
		return model.Balance{}, clierr.Wrap(clierr.CodeStorage, "list pending transactions", err)
	}
	view := st
	view.Unspent = unspent
	for _, tx := range pending {
		if tx.Incoming {
			continue
		}
		applyLocal(&view, tx.Payload, tx.ID, tx.BlockID)
	}
	if err := a.update(func(s *model.AccountState) {
		s.Unspent = unspent
		s.LastSyncedUnix = now.Unix()
	}); err != nil {
		return model.Balance{}, err
	}
	a.m.log.Debug("account synced", "account", st.Alias, "outputs", len(unspent))

	if opts.TryCollectOutputs {
		if _, err := a.claimLocked(ctx, nil); err != nil {
			return a.Balance(), err
		}
	}
	return a.Balance(), nil
}

// recordIncoming stores a transaction entry for outputs created by
// transactions this account did not send.
func (a *Account) recordIncoming(st model.AccountState, fresh map[model.TransactionID][]model.OutputRecord, now time.Time) error {
	for txID, records := range fresh {
		if _, err := a.m.store.GetTransaction(st.Index, txID); err == nil {
			continue
		} else if !clierr.Is(err, clierr.CodeNotFound) {
			return err
		}
		outputs := make([]model.Output, 0, len(records))
		for _, rec := range records {
			outputs = append(outputs, rec.Output)
		}
		tx := model.Transaction{
			ID:           txID,
			BlockID:      records[0].Metadata.BlockID,
			AccountIndex: st.Index,
			Kind:         KindIncoming,
			Status:       model.TxConfirmed,
			Incoming:     true,
			Payload:      model.SignedTransaction{Essence: model.TransactionEssence{Outputs: outputs}},
			CreatedAt:    now.UTC(),
			UpdatedAt:    now.UTC(),
		}
		if err := a.m.store.SaveTransaction(tx); err != nil {
			return clierr.Wrap(clierr.CodeStorage, "record incoming transaction", err)
		}
	}
	return nil
}

// settlePending asks the node about every transaction still pending.
func (a *Account) settlePending(ctx context.Context, index uint32) error {
	pending, err := a.m.store.ListTransactions(index, model.TxPending, 0)
	if err != nil {
		return clierr.Wrap(clierr.CodeStorage, "list pending transactions", err)
	}
	client := a.m.nodeClient()
	for _, tx := range pending {
		meta, err := client.BlockMetadata(ctx, tx.BlockID)
		if err != nil {
			if clierr.Is(err, clierr.CodeNotFound) {
				continue
			}
			return err
		}
		if _, _, err := a.settle(tx, meta); err != nil && !clierr.Is(err, clierr.CodeEngine) {
			return err
		}
	}
	return nil
}
