package model

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	TokenIDLength       = 38
	NftIDLength         = 32
	OutputIDLength      = 34
	TransactionIDLength = 32
	BlockIDLength       = 32
)

// TokenID identifies a native token by the foundry that minted it.
type TokenID [TokenIDLength]byte

// NftID identifies an NFT. The zero value marks a not-yet-minted NFT output.
type NftID [NftIDLength]byte

// OutputID is a transaction id followed by the little-endian output index.
type OutputID [OutputIDLength]byte

type TransactionID [TransactionIDLength]byte

type BlockID [BlockIDLength]byte

func (id TokenID) String() string       { return hexutil.Encode(id[:]) }
func (id NftID) String() string         { return hexutil.Encode(id[:]) }
func (id OutputID) String() string      { return hexutil.Encode(id[:]) }
func (id TransactionID) String() string { return hexutil.Encode(id[:]) }
func (id BlockID) String() string       { return hexutil.Encode(id[:]) }

func (id NftID) IsZero() bool { return id == NftID{} }

func (id TokenID) MarshalText() ([]byte, error)       { return hexutil.Bytes(id[:]).MarshalText() }
func (id NftID) MarshalText() ([]byte, error)         { return hexutil.Bytes(id[:]).MarshalText() }
func (id OutputID) MarshalText() ([]byte, error)      { return hexutil.Bytes(id[:]).MarshalText() }
func (id TransactionID) MarshalText() ([]byte, error) { return hexutil.Bytes(id[:]).MarshalText() }
func (id BlockID) MarshalText() ([]byte, error)       { return hexutil.Bytes(id[:]).MarshalText() }

func (id *TokenID) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("TokenID", input, id[:])
}

func (id *NftID) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("NftID", input, id[:])
}

func (id *OutputID) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("OutputID", input, id[:])
}

func (id *TransactionID) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("TransactionID", input, id[:])
}

func (id *BlockID) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("BlockID", input, id[:])
}

// NewOutputID builds the id of the output at index within transaction txID.
func NewOutputID(txID TransactionID, index uint16) OutputID {
	var id OutputID
	copy(id[:], txID[:])
	binary.LittleEndian.PutUint16(id[TransactionIDLength:], index)
	return id
}

func (id OutputID) TransactionID() TransactionID {
	var tx TransactionID
	copy(tx[:], id[:TransactionIDLength])
	return tx
}

func (id OutputID) Index() uint16 {
	return binary.LittleEndian.Uint16(id[TransactionIDLength:])
}

// NftIDFromOutputID derives the id of an NFT minted by the given output.
func NftIDFromOutputID(id OutputID) NftID {
	var nft NftID
	copy(nft[:], crypto.Keccak256(id[:]))
	return nft
}

// NewTokenID builds a token id from the controlling address hash and foundry serial.
func NewTokenID(controller [32]byte, serial uint32) TokenID {
	var id TokenID
	id[0] = 0x08
	copy(id[1:33], controller[:])
	binary.LittleEndian.PutUint32(id[33:37], serial)
	id[37] = 0x00
	return id
}
