// Package nodetest runs an in-memory ledger node and faucet over httptest for
// tests of the node client, the engine and the shell.
package nodetest

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ggonzalez94/wallet-cli/internal/keys"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/holiman/uint256"
)

const (
	FaucetPath          = "/api/plugins/faucet/v1/enqueue"
	DefaultFaucetAmount = 1_000_000_000
)

type entry struct {
	record model.OutputRecord
	spent  bool
	// reserved inputs and unbooked outputs belong to a block that is still
	// pending under WithLaggingIndexer. The indexer does not see either yet.
	reserved bool
	unbooked bool
}

type block struct {
	state   string
	reason  string
	inputs  []model.OutputID
	outputs []model.OutputID
}

// Ledger is a fake node. It validates signatures, ownership, amounts and
// native token and NFT conservation the way a real node would reject them.
type Ledger struct {
	mu           sync.Mutex
	srv          *httptest.Server
	info         model.NodeInfo
	outputs      map[model.OutputID]*entry
	order        []model.OutputID
	blocks       map[model.BlockID]*block
	now          func() time.Time
	holdPending  bool
	lagIndexer   bool
	faucetAmount uint64
	genesis      uint32
	submitted    []model.SignedTransaction
	infoRequests int
}

type Option func(*Ledger)

// WithPendingBlocks leaves submitted blocks pending until Confirm is called.
func WithPendingBlocks() Option { return func(l *Ledger) { l.holdPending = true } }

// WithLaggingIndexer holds blocks pending like WithPendingBlocks and keeps
// their effects out of the indexer and the output endpoint until Confirm.
// Inputs of a pending block still count as unspent there, and its outputs
// do not exist yet.
func WithLaggingIndexer() Option {
	return func(l *Ledger) { l.holdPending, l.lagIndexer = true, true }
}

func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func Start(opts ...Option) *Ledger {
	l := &Ledger{
		info: model.NodeInfo{
			Name:    "nodetest",
			Version: "2.0.0",
			Network: model.NetworkInfo{Name: "testnet", NetworkID: "8342982141227064571", Bech32HRP: "rms", MinStorageDeposit: 42600},
			BaseToken: model.BaseTokenInfo{
				Name: "Shimmer", TickerSymbol: "SMR", Unit: "SMR", Decimals: 6,
			},
		},
		outputs:      map[model.OutputID]*entry{},
		blocks:       map[model.BlockID]*block{},
		now:          time.Now,
		faucetAmount: DefaultFaucetAmount,
	}
	for _, opt := range opts {
		opt(l)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/core/v2/info", l.handleInfo)
	mux.HandleFunc("GET /api/core/v2/outputs/{id}", l.handleOutput)
	mux.HandleFunc("GET /api/indexer/v1/outputs/{kind}", l.handleIndexer)
	mux.HandleFunc("POST /api/core/v2/blocks", l.handleSubmit)
	mux.HandleFunc("GET /api/core/v2/blocks/{id}/metadata", l.handleBlockMetadata)
	mux.HandleFunc("POST "+FaucetPath, l.handleFaucet)
	l.srv = httptest.NewServer(mux)
	return l
}

func (l *Ledger) URL() string       { return l.srv.URL }
func (l *Ledger) FaucetURL() string { return l.srv.URL + FaucetPath }
func (l *Ledger) Close()            { l.srv.Close() }
func (l *Ledger) HRP() string       { return l.info.Network.Bech32HRP }

func (l *Ledger) MinStorageDeposit() uint64 { return l.info.Network.MinStorageDeposit }

// Credit creates an unspent output out of thin air.
func (l *Ledger) Credit(out model.Output) model.OutputID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.genesis++
	var txID model.TransactionID
	binary.BigEndian.PutUint32(txID[:4], l.genesis)
	copy(txID[4:], "genesis")
	id := model.NewOutputID(txID, 0)
	l.addOutput(id, out)
	return id
}

// Balance sums the unspent base coin owned by address.
func (l *Ledger) Balance(address string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total uint64
	for _, e := range l.outputs {
		if !e.spent && !e.unbooked && e.record.Output.Address == address {
			total += e.record.Output.Amount
		}
	}
	return total
}

// Unspent returns the unspent outputs owned by address.
func (l *Ledger) Unspent(address string) []model.OutputRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.OutputRecord
	for _, id := range l.order {
		e := l.outputs[id]
		if !e.spent && !e.unbooked && e.record.Output.Address == address {
			out = append(out, e.record)
		}
	}
	return out
}

func (l *Ledger) Submitted() []model.SignedTransaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.SignedTransaction(nil), l.submitted...)
}

func (l *Ledger) InfoRequests() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.infoRequests
}

// Confirm marks every pending block as included and books its effects.
func (l *Ledger) Confirm() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.blocks {
		if b.state != "pending" {
			continue
		}
		b.state = "included"
		for _, id := range b.inputs {
			e := l.outputs[id]
			e.spent, e.reserved = true, false
		}
		for _, id := range b.outputs {
			l.outputs[id].unbooked = false
		}
		b.inputs, b.outputs = nil, nil
	}
}

func (l *Ledger) addOutput(id model.OutputID, out model.Output) {
	l.outputs[id] = &entry{record: model.OutputRecord{
		OutputID: id,
		Metadata: model.OutputMetadata{TransactionID: id.TransactionID(), OutputIndex: id.Index()},
		Output:   out,
	}}
	l.order = append(l.order, id)
}

func (l *Ledger) handleInfo(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	l.infoRequests++
	info := l.info
	l.mu.Unlock()
	writeJSON(w, http.StatusOK, info)
}

func (l *Ledger) handleOutput(w http.ResponseWriter, r *http.Request) {
	var id model.OutputID
	if err := id.UnmarshalText([]byte(r.PathValue("id"))); err != nil {
		writeError(w, http.StatusBadRequest, "invalid output id")
		return
	}
	l.mu.Lock()
	e, ok := l.outputs[id]
	if ok && e.unbooked {
		ok = false
	}
	var rec model.OutputRecord
	if ok {
		rec = e.record
		rec.Metadata.IsSpent = e.spent
	}
	l.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "output not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metadata": rec.Metadata, "output": rec.Output})
}

func (l *Ledger) handleIndexer(w http.ResponseWriter, r *http.Request) {
	kind := model.OutputKind(r.PathValue("kind"))
	address := r.URL.Query().Get("address")
	returnAddress := r.URL.Query().Get("expirationReturnAddress")
	l.mu.Lock()
	items := make([]model.OutputID, 0)
	for _, id := range l.order {
		e := l.outputs[id]
		out := e.record.Output
		if e.spent || e.unbooked || out.Kind != kind {
			continue
		}
		if address != "" && out.Address == address {
			items = append(items, id)
			continue
		}
		if returnAddress != "" && out.Expiration != nil && out.Expiration.ReturnAddress == returnAddress {
			items = append(items, id)
		}
	}
	l.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (l *Ledger) handleBlockMetadata(w http.ResponseWriter, r *http.Request) {
	var id model.BlockID
	if err := id.UnmarshalText([]byte(r.PathValue("id"))); err != nil {
		writeError(w, http.StatusBadRequest, "invalid block id")
		return
	}
	l.mu.Lock()
	b, ok := l.blocks[id]
	var state, reason string
	if ok {
		state, reason = b.state, b.reason
	}
	l.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blockId": id, "ledgerInclusionState": state, "conflictReason": reason})
}

func (l *Ledger) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := keys.ParseAddress(l.HRP(), req.Address); err != nil {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	l.Credit(model.Output{Kind: model.OutputBasic, Amount: l.faucetAmount, Address: req.Address})
	writeJSON(w, http.StatusAccepted, map[string]any{"address": req.Address, "waitingRequests": 0})
}

func (l *Ledger) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload model.SignedTransaction `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid block payload: "+err.Error())
		return
	}
	blockID, err := l.apply(req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"blockId": blockID})
}

func (l *Ledger) apply(tx model.SignedTransaction) (model.BlockID, error) {
	essence := tx.Essence
	txID, err := essence.ID()
	if err != nil {
		return model.BlockID{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if essence.NetworkID != l.info.Network.NetworkID {
		return model.BlockID{}, fmt.Errorf("network id mismatch")
	}
	if len(essence.Inputs) == 0 || len(essence.Outputs) == 0 {
		return model.BlockID{}, fmt.Errorf("transaction needs inputs and outputs")
	}
	if len(tx.Unlocks) != len(essence.Inputs) {
		return model.BlockID{}, fmt.Errorf("expected %d unlocks, got %d", len(essence.Inputs), len(tx.Unlocks))
	}

	now := l.now().Unix()
	var inAmount, outAmount uint64
	inTokens := map[model.TokenID]*uint256.Int{}
	outTokens := map[model.TokenID]*uint256.Int{}
	inNfts := map[model.NftID]bool{}
	inFoundries := map[model.TokenID]*model.TokenScheme{}
	requiredReturns := map[string]uint64{}
	seen := map[model.OutputID]bool{}

	for i, inputID := range essence.Inputs {
		if seen[inputID] {
			return model.BlockID{}, fmt.Errorf("input %s used twice", inputID)
		}
		seen[inputID] = true
		e, ok := l.outputs[inputID]
		if !ok {
			return model.BlockID{}, fmt.Errorf("input %s not found", inputID)
		}
		if e.spent || e.reserved {
			return model.BlockID{}, fmt.Errorf("input %s already spent", inputID)
		}
		out := e.record.Output
		if out.TimelockUnix > now {
			return model.BlockID{}, fmt.Errorf("input %s is timelocked", inputID)
		}
		owner := out.Address
		expired := out.Expiration != nil && now >= out.Expiration.UnixTime
		if expired {
			owner = out.Expiration.ReturnAddress
		}
		signer, err := keys.VerifyUnlock(l.HRP(), tx.Unlocks[i], txID[:])
		if err != nil {
			return model.BlockID{}, fmt.Errorf("unlock %d: %v", i, err)
		}
		if signer != owner {
			return model.BlockID{}, fmt.Errorf("unlock %d is not signed by the owner of %s", i, inputID)
		}
		if out.StorageReturn != nil && !expired {
			requiredReturns[out.StorageReturn.ReturnAddress] += out.StorageReturn.Amount
		}
		inAmount += out.Amount
		addTokens(inTokens, out.NativeTokens)
		switch out.Kind {
		case model.OutputNft:
			nftID := out.NftID
			if nftID.IsZero() {
				nftID = model.NftIDFromOutputID(inputID)
			}
			inNfts[nftID] = true
		case model.OutputFoundry:
			inFoundries[out.TokenID] = out.TokenScheme
		}
	}

	outNfts := map[model.NftID]bool{}
	outFoundries := map[model.TokenID]*model.TokenScheme{}
	for i, out := range essence.Outputs {
		if out.Amount < l.info.Network.MinStorageDeposit {
			return model.BlockID{}, fmt.Errorf("output %d is below the minimum storage deposit", i)
		}
		if _, err := keys.ParseAddress(l.HRP(), out.Address); err != nil {
			return model.BlockID{}, fmt.Errorf("output %d: %v", i, err)
		}
		outAmount += out.Amount
		addTokens(outTokens, out.NativeTokens)
		if ret, ok := requiredReturns[out.Address]; ok && ret > 0 && out.Kind == model.OutputBasic && !out.HasUnlockConditions() && len(out.NativeTokens) == 0 {
			if out.Amount >= ret {
				requiredReturns[out.Address] = 0
			} else {
				requiredReturns[out.Address] = ret - out.Amount
			}
		}
		switch out.Kind {
		case model.OutputNft:
			if !out.NftID.IsZero() {
				if !inNfts[out.NftID] {
					return model.BlockID{}, fmt.Errorf("output %d moves unknown nft %s", i, out.NftID)
				}
				outNfts[out.NftID] = true
			}
		case model.OutputFoundry:
			if out.TokenScheme == nil {
				return model.BlockID{}, fmt.Errorf("output %d: foundry without token scheme", i)
			}
			outFoundries[out.TokenID] = out.TokenScheme
		}
	}
	if inAmount != outAmount {
		return model.BlockID{}, fmt.Errorf("base coin mismatch: inputs %d, outputs %d", inAmount, outAmount)
	}
	for addr, missing := range requiredReturns {
		if missing > 0 {
			return model.BlockID{}, fmt.Errorf("storage deposit return to %s missing %d", addr, missing)
		}
	}

	burned := map[model.NftID]bool{}
	burnedTokens := map[model.TokenID]*uint256.Int{}
	if essence.Burn != nil {
		for _, nft := range essence.Burn.Nfts {
			burned[nft] = true
		}
		addTokens(burnedTokens, essence.Burn.NativeTokens)
	}
	for nft := range inNfts {
		if !outNfts[nft] && !burned[nft] {
			return model.BlockID{}, fmt.Errorf("nft %s is neither moved nor burned", nft)
		}
	}

	// in + minted - melted == out + burned, per token.
	supplyDelta := map[model.TokenID]*uint256.Int{}
	for id, scheme := range outFoundries {
		delta := new(uint256.Int).Sub(parse(scheme.MintedTokens), parse(scheme.MeltedTokens))
		if before, ok := inFoundries[id]; ok {
			delta.Sub(delta, new(uint256.Int).Sub(parse(before.MintedTokens), parse(before.MeltedTokens)))
		}
		supplyDelta[id] = delta
	}
	ids := map[model.TokenID]bool{}
	for _, m := range []map[model.TokenID]*uint256.Int{inTokens, outTokens, burnedTokens, supplyDelta} {
		for id := range m {
			ids[id] = true
		}
	}
	for id := range ids {
		left := new(uint256.Int).Add(get(inTokens, id), get(supplyDelta, id))
		right := new(uint256.Int).Add(get(outTokens, id), get(burnedTokens, id))
		if !left.Eq(right) {
			return model.BlockID{}, fmt.Errorf("native token %s amounts do not balance", id)
		}
	}

	blockID := blockIDFor(txID)
	b := &block{state: "included"}
	if l.holdPending {
		b.state = "pending"
	}
	for _, inputID := range essence.Inputs {
		if l.lagIndexer {
			l.outputs[inputID].reserved = true
			b.inputs = append(b.inputs, inputID)
			continue
		}
		l.outputs[inputID].spent = true
	}
	for i, out := range essence.Outputs {
		id := model.NewOutputID(txID, uint16(i))
		l.addOutput(id, out)
		e := l.outputs[id]
		e.record.Metadata.BlockID = blockID
		if l.lagIndexer {
			e.unbooked = true
			b.outputs = append(b.outputs, id)
		}
	}
	l.blocks[blockID] = b
	l.submitted = append(l.submitted, tx)
	return blockID, nil
}

func blockIDFor(txID model.TransactionID) model.BlockID {
	var id model.BlockID
	copy(id[:], crypto.Keccak256([]byte("block"), txID[:]))
	return id
}

func addTokens(into map[model.TokenID]*uint256.Int, tokens []model.NativeToken) {
	for _, t := range tokens {
		into[t.ID] = new(uint256.Int).Add(get(into, t.ID), parse(t.Amount))
	}
}

func get(m map[model.TokenID]*uint256.Int, id model.TokenID) *uint256.Int {
	if v, ok := m[id]; ok {
		return v
	}
	return new(uint256.Int)
}

func parse(v string) *uint256.Int {
	n, err := uint256.FromDecimal(strings.TrimSpace(v))
	if err != nil {
		return new(uint256.Int)
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"code": fmt.Sprint(status), "message": message}})
}
