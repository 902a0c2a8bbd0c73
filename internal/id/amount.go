package id

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var unsignedPattern = regexp.MustCompile(`^[0-9]+$`)

// ParseAmount parses a base-unit amount that fits in 64 bits.
func ParseAmount(input string) (uint64, error) {
	clean := strings.TrimSpace(input)
	if !unsignedPattern.MatchString(clean) {
		return 0, clierr.Newf(clierr.CodeUsage, "amount %q must be an unsigned integer in base units", input)
	}
	v, err := strconv.ParseUint(clean, 10, 64)
	if err != nil {
		return 0, clierr.Newf(clierr.CodeUsage, "amount %q does not fit in 64 bits", input)
	}
	return v, nil
}

// ParseU256 parses an unsigned decimal amount of up to 256 bits.
func ParseU256(input string) (*uint256.Int, error) {
	clean := strings.TrimSpace(input)
	if !unsignedPattern.MatchString(clean) {
		return nil, clierr.Newf(clierr.CodeUsage, "amount %q must be an unsigned integer", input)
	}
	v, err := uint256.FromDecimal(clean)
	if err != nil {
		return nil, clierr.Newf(clierr.CodeUsage, "amount %q does not fit in 256 bits", input)
	}
	return v, nil
}

// MustU256 parses a decimal string already validated by the ledger; malformed input yields zero.
func MustU256(v string) *uint256.Int {
	out, err := uint256.FromDecimal(strings.TrimSpace(v))
	if err != nil {
		return new(uint256.Int)
	}
	return out
}

// FormatAmount renders base units as a decimal string with the token's decimals.
func FormatAmount(baseUnits uint64, decimals int32) string {
	return formatDecimal(new(big.Int).SetUint64(baseUnits), decimals)
}

// FormatTokenAmount renders a 256-bit decimal amount, assuming no token decimals.
func FormatTokenAmount(amount string) string {
	return MustU256(amount).Dec()
}

func formatDecimal(n *big.Int, decimals int32) string {
	if decimals <= 0 {
		return n.String()
	}
	return decimal.NewFromBigInt(n, -decimals).String()
}
