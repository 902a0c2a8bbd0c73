package model

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const EnvelopeVersion = "v1"

type Envelope struct {
	Version string     `json:"version"`
	Success bool       `json:"success"`
	Command string     `json:"command"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type OutputKind string

const (
	OutputBasic   OutputKind = "basic"
	OutputNft     OutputKind = "nft"
	OutputFoundry OutputKind = "foundry"
)

// NativeToken amounts are decimal strings of up to 256 bits.
type NativeToken struct {
	ID     TokenID `json:"id"`
	Amount string  `json:"amount"`
}

type StorageReturn struct {
	ReturnAddress string `json:"returnAddress"`
	Amount        uint64 `json:"amount"`
}

type Expiration struct {
	ReturnAddress string `json:"returnAddress"`
	UnixTime      int64  `json:"unixTime"`
}

type TokenScheme struct {
	MintedTokens  string `json:"mintedTokens"`
	MeltedTokens  string `json:"meltedTokens"`
	MaximumSupply string `json:"maximumSupply"`
}

// Output is a ledger output. Address is the bech32 owner.
type Output struct {
	Kind              OutputKind     `json:"kind"`
	Amount            uint64         `json:"amount"`
	Address           string         `json:"address"`
	NativeTokens      []NativeToken  `json:"nativeTokens,omitempty"`
	NftID             NftID          `json:"nftId,omitempty"`
	TokenID           TokenID        `json:"tokenId,omitempty"`
	SerialNumber      uint32         `json:"serialNumber,omitempty"`
	TokenScheme       *TokenScheme   `json:"tokenScheme,omitempty"`
	Metadata          hexutil.Bytes  `json:"metadata,omitempty"`
	ImmutableMetadata hexutil.Bytes  `json:"immutableMetadata,omitempty"`
	Tag               hexutil.Bytes  `json:"tag,omitempty"`
	StorageReturn     *StorageReturn `json:"storageDepositReturn,omitempty"`
	Expiration        *Expiration    `json:"expiration,omitempty"`
	TimelockUnix      int64          `json:"timelock,omitempty"`
}

// HasUnlockConditions reports whether the output needs claiming before it can be spent freely.
func (o Output) HasUnlockConditions() bool {
	return o.StorageReturn != nil || o.Expiration != nil || o.TimelockUnix > 0
}

type Burn struct {
	NativeTokens []NativeToken `json:"nativeTokens,omitempty"`
	Nfts         []NftID       `json:"nfts,omitempty"`
}

type TransactionEssence struct {
	NetworkID    string     `json:"networkId"`
	CreationTime int64      `json:"creationTime"`
	Inputs       []OutputID `json:"inputs"`
	Outputs      []Output   `json:"outputs"`
	Burn         *Burn      `json:"burn,omitempty"`
}

// ID hashes the canonical JSON form of the essence.
func (e TransactionEssence) ID() (TransactionID, error) {
	buf, err := json.Marshal(e)
	if err != nil {
		return TransactionID{}, err
	}
	var id TransactionID
	copy(id[:], crypto.Keccak256(buf))
	return id, nil
}

type Unlock struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type SignedTransaction struct {
	Essence TransactionEssence `json:"essence"`
	Unlocks []Unlock           `json:"unlocks"`
}

type OutputMetadata struct {
	BlockID       BlockID       `json:"blockId"`
	TransactionID TransactionID `json:"transactionId"`
	OutputIndex   uint16        `json:"outputIndex"`
	IsSpent       bool          `json:"isSpent"`
}

// OutputRecord is an output as the account tracks it.
type OutputRecord struct {
	OutputID OutputID       `json:"outputId"`
	Metadata OutputMetadata `json:"metadata"`
	Output   Output         `json:"output"`
}

type Address struct {
	Bech32   string `json:"address"`
	Index    uint32 `json:"keyIndex"`
	Internal bool   `json:"internal"`
}

type TransactionStatus string

const (
	TxPending     TransactionStatus = "pending"
	TxConfirmed   TransactionStatus = "confirmed"
	TxConflicting TransactionStatus = "conflicting"
)

type Transaction struct {
	ID           TransactionID     `json:"transactionId"`
	BlockID      BlockID           `json:"blockId"`
	AccountIndex uint32            `json:"accountIndex"`
	Kind         string            `json:"kind"`
	Status       TransactionStatus `json:"status"`
	Incoming     bool              `json:"incoming"`
	Payload      SignedTransaction `json:"payload"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	Conflict     string            `json:"conflictReason,omitempty"`
}

// AccountState is the persisted part of an account.
type AccountState struct {
	Index          uint32                    `json:"index"`
	Alias          string                    `json:"alias"`
	CoinType       uint32                    `json:"coinType"`
	Addresses      []Address                 `json:"publicAddresses"`
	Unspent        map[OutputID]OutputRecord `json:"unspentOutputs"`
	FoundrySerial  uint32                    `json:"foundrySerial"`
	LastSyncedUnix int64                     `json:"lastSynced,omitempty"`
}

type BaseCoinBalance struct {
	Total     uint64 `json:"total"`
	Available uint64 `json:"available"`
}

type Balance struct {
	BaseCoin               BaseCoinBalance `json:"baseCoin"`
	RequiredStorageDeposit uint64          `json:"requiredStorageDeposit"`
	NativeTokens           []NativeToken   `json:"nativeTokens"`
	Nfts                   []NftID         `json:"nfts"`
	Foundries              []TokenID       `json:"foundries"`
	PotentiallyLocked      []OutputID      `json:"potentiallyLockedOutputs"`
}

// SyncOptions control a single synchronization pass.
type SyncOptions struct {
	TryCollectOutputs bool `json:"tryCollectOutputs"`
}

// NftOptions describe an NFT to mint. Empty Address mints to the account's first address.
type NftOptions struct {
	Address           string `json:"address,omitempty"`
	ImmutableMetadata []byte `json:"immutableMetadata,omitempty"`
	Metadata          []byte `json:"metadata,omitempty"`
}

// MintResult carries the minted asset id with the transaction that created it.
type MintResult struct {
	TokenID     *TokenID    `json:"tokenId,omitempty"`
	NftID       *NftID      `json:"nftId,omitempty"`
	Transaction Transaction `json:"transaction"`
}

type NodeInfo struct {
	Name      string        `json:"name"`
	Version   string        `json:"version"`
	Network   NetworkInfo   `json:"network"`
	BaseToken BaseTokenInfo `json:"baseToken"`
}

type NetworkInfo struct {
	Name              string `json:"name"`
	NetworkID         string `json:"networkId"`
	Bech32HRP         string `json:"bech32Hrp"`
	MinStorageDeposit uint64 `json:"minStorageDeposit"`
}

type BaseTokenInfo struct {
	Name         string `json:"name"`
	TickerSymbol string `json:"tickerSymbol"`
	Unit         string `json:"unit"`
	Decimals     int32  `json:"decimals"`
}

type AccountSummary struct {
	Index uint32 `json:"index"`
	Alias string `json:"alias"`
}
