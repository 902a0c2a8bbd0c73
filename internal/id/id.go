package id

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/model"
)

// ParseHex decodes a hex string, with or without the 0x prefix, into exactly size bytes.
func ParseHex(input string, size int, what string) ([]byte, error) {
	clean := strings.ToLower(strings.TrimSpace(input))
	if clean == "" {
		return nil, clierr.Newf(clierr.CodeUsage, "%s is required", what)
	}
	if !strings.HasPrefix(clean, "0x") {
		clean = "0x" + clean
	}
	buf, err := hexutil.Decode(clean)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "invalid "+what+" hex", err)
	}
	if size > 0 && len(buf) != size {
		return nil, clierr.Newf(clierr.CodeUsage, "%s must be %d bytes, got %d", what, size, len(buf))
	}
	return buf, nil
}

func ParseTokenID(input string) (model.TokenID, error) {
	var out model.TokenID
	buf, err := ParseHex(input, model.TokenIDLength, "token id")
	if err != nil {
		return out, err
	}
	copy(out[:], buf)
	return out, nil
}

func ParseNftID(input string) (model.NftID, error) {
	var out model.NftID
	buf, err := ParseHex(input, model.NftIDLength, "nft id")
	if err != nil {
		return out, err
	}
	copy(out[:], buf)
	return out, nil
}

func ParseOutputID(input string) (model.OutputID, error) {
	var out model.OutputID
	buf, err := ParseHex(input, model.OutputIDLength, "output id")
	if err != nil {
		return out, err
	}
	copy(out[:], buf)
	return out, nil
}

func ParseTransactionID(input string) (model.TransactionID, error) {
	var out model.TransactionID
	buf, err := ParseHex(input, model.TransactionIDLength, "transaction id")
	if err != nil {
		return out, err
	}
	copy(out[:], buf)
	return out, nil
}

// ParseBytes turns a metadata argument into bytes: 0x-prefixed input is hex, anything else is UTF-8 text.
func ParseBytes(input string) ([]byte, error) {
	if input == "" {
		return nil, nil
	}
	if strings.HasPrefix(strings.ToLower(input), "0x") {
		buf, err := hexutil.Decode(strings.ToLower(input))
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "invalid hex metadata", err)
		}
		return buf, nil
	}
	return []byte(input), nil
}
