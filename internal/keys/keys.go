// Package keys derives account keys from a BIP-39 mnemonic, encodes their
// bech32 addresses and signs transaction essences.
package keys

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/tyler-smith/go-bip39"
)

const (
	addressType    = 0x00
	addressPayload = 33
	maxKeyAttempts = 16
)

// GenerateMnemonic returns a fresh 24-word phrase.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "generate entropy", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "generate mnemonic", err)
	}
	return mnemonic, nil
}

func NormalizeMnemonic(m string) string {
	return strings.Join(strings.Fields(strings.ToLower(m)), " ")
}

func ValidateMnemonic(m string) error {
	if !bip39.IsMnemonicValid(NormalizeMnemonic(m)) {
		return clierr.New(clierr.CodeUsage, "invalid mnemonic")
	}
	return nil
}

// Keychain derives per-account keys from a seed.
type Keychain struct {
	seed     []byte
	coinType uint32
}

func NewKeychain(mnemonic string, coinType uint32) (*Keychain, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	return &Keychain{seed: bip39.NewSeed(NormalizeMnemonic(mnemonic), ""), coinType: coinType}, nil
}

func (k *Keychain) CoinType() uint32 { return k.coinType }

// Path renders the hardened derivation path for a key.
func (k *Keychain) Path(account, index uint32, internal bool) string {
	change := 0
	if internal {
		change = 1
	}
	return fmt.Sprintf("m/44'/%d'/%d'/%d'/%d'", k.coinType, account, change, index)
}

// Key deterministically derives the private key at the given position.
func (k *Keychain) Key(account, index uint32, internal bool) (*ecdsa.PrivateKey, error) {
	path := []byte(k.Path(account, index, internal))
	var counter [4]byte
	for attempt := uint32(0); attempt < maxKeyAttempts; attempt++ {
		binary.BigEndian.PutUint32(counter[:], attempt)
		key, err := crypto.ToECDSA(crypto.Keccak256(k.seed, path, counter[:]))
		if err == nil {
			return key, nil
		}
	}
	return nil, clierr.Newf(clierr.CodeInternal, "derive key %s", path)
}

func (k *Keychain) Address(hrp string, account, index uint32, internal bool) (string, error) {
	key, err := k.Key(account, index, internal)
	if err != nil {
		return "", err
	}
	return AddressFromPublicKey(hrp, &key.PublicKey)
}

// AddressFromPublicKey encodes type byte ‖ keccak256(compressed pubkey) as bech32.
func AddressFromPublicKey(hrp string, pub *ecdsa.PublicKey) (string, error) {
	payload := append([]byte{addressType}, crypto.Keccak256(crypto.CompressPubkey(pub))...)
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "encode address", err)
	}
	addr, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "encode address", err)
	}
	return addr, nil
}

// ParseAddress checks the checksum, the network prefix and the payload shape.
func ParseAddress(hrp, address string) ([]byte, error) {
	gotHRP, data, err := bech32.Decode(strings.TrimSpace(address))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid address %q", address), err)
	}
	if gotHRP != hrp {
		return nil, clierr.Newf(clierr.CodeUsage, "address %q belongs to network %q, expected %q", address, gotHRP, hrp)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid address %q", address), err)
	}
	if len(payload) != addressPayload || payload[0] != addressType {
		return nil, clierr.Newf(clierr.CodeUsage, "unsupported address %q", address)
	}
	return payload, nil
}

// Sign produces an unlock over the essence hash.
func Sign(key *ecdsa.PrivateKey, hash []byte) (model.Unlock, error) {
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return model.Unlock{}, clierr.Wrap(clierr.CodeInternal, "sign transaction", err)
	}
	return model.Unlock{
		PublicKey: hexutil.Encode(crypto.CompressPubkey(&key.PublicKey)),
		Signature: hexutil.Encode(sig),
	}, nil
}

// VerifyUnlock checks the signature and returns the address that produced it.
func VerifyUnlock(hrp string, unlock model.Unlock, hash []byte) (string, error) {
	pubBytes, err := hexutil.Decode(unlock.PublicKey)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	sig, err := hexutil.Decode(unlock.Signature)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	pub, err := crypto.DecompressPubkey(pubBytes)
	if err != nil {
		return "", fmt.Errorf("decompress public key: %w", err)
	}
	if !crypto.VerifySignature(pubBytes, hash, sig[:64]) {
		return "", fmt.Errorf("signature does not match")
	}
	return AddressFromPublicKey(hrp, pub)
}
