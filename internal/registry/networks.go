package registry

import (
	"sort"
	"strings"
)

// Network describes a ledger network the wallet knows how to talk to.
type Network struct {
	Name              string
	Bech32HRP         string
	NodeURL           string
	FaucetURL         string
	TokenName         string
	TickerSymbol      string
	Decimals          int32
	CoinType          uint32
	MinStorageDeposit uint64
}

const (
	DefaultNetwork   = "testnet"
	DefaultNodeURL   = "http://localhost:14265"
	DefaultFaucetURL = "http://localhost:14265/api/plugins/faucet/v1/enqueue"
)

var networks = map[string]Network{
	"testnet": {
		Name:              "testnet",
		Bech32HRP:         "rms",
		NodeURL:           DefaultNodeURL,
		FaucetURL:         DefaultFaucetURL,
		TokenName:         "Shimmer",
		TickerSymbol:      "SMR",
		Decimals:          6,
		CoinType:          4219,
		MinStorageDeposit: 42600,
	},
	"shimmer": {
		Name:              "shimmer",
		Bech32HRP:         "smr",
		NodeURL:           "https://api.shimmer.network",
		TokenName:         "Shimmer",
		TickerSymbol:      "SMR",
		Decimals:          6,
		CoinType:          4219,
		MinStorageDeposit: 42600,
	},
	"iota": {
		Name:              "iota",
		Bech32HRP:         "iota",
		NodeURL:           "https://api.stardust-mainnet.iotaledger.net",
		TokenName:         "IOTA",
		TickerSymbol:      "MIOTA",
		Decimals:          6,
		CoinType:          4218,
		MinStorageDeposit: 42600,
	},
}

// Lookup resolves a network by name or bech32 prefix.
func Lookup(nameOrHRP string) (Network, bool) {
	key := strings.ToLower(strings.TrimSpace(nameOrHRP))
	if n, ok := networks[key]; ok {
		return n, true
	}
	for _, n := range networks {
		if n.Bech32HRP == key {
			return n, true
		}
	}
	return Network{}, false
}

func Names() []string {
	out := make([]string, 0, len(networks))
	for name := range networks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
