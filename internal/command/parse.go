package command

import (
	"fmt"
	"net/url"
	"strings"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/grammar"
	"github.com/ggonzalez94/wallet-cli/internal/id"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/holiman/uint256"
)

// ParseError names the offending token and why it was rejected.
type ParseError struct {
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Token)
}

// Unwrap exposes the usage code so callers can treat parse failures like any CLI usage error.
func (e *ParseError) Unwrap() error {
	return clierr.New(clierr.CodeUsage, e.Reason)
}

type invocation struct {
	spec  *grammar.Spec
	args  []any
	flags map[string]string
}

// ParseAccount parses one line against the account grammar.
func ParseAccount(line string) (AccountCommand, error) {
	inv, err := parse(grammar.Account(), line)
	if err != nil {
		return nil, err
	}
	return buildAccount(inv)
}

// ParseManager parses one line against the manager grammar.
func ParseManager(line string) (ManagerCommand, error) {
	inv, err := parse(grammar.Manager(), line)
	if err != nil {
		return nil, err
	}
	return buildManager(inv)
}

// ParseManagerArgs parses an already split argument vector, as handed over by the process entry.
func ParseManagerArgs(args []string) (ManagerCommand, error) {
	inv, err := parseTokens(grammar.Manager(), args)
	if err != nil {
		return nil, err
	}
	return buildManager(inv)
}

func parse(g *grammar.Grammar, line string) (*invocation, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return nil, err
	}
	return parseTokens(g, tokens)
}

func parseTokens(g *grammar.Grammar, tokens []string) (*invocation, error) {
	if len(tokens) == 0 {
		return nil, &ParseError{Reason: "empty input"}
	}
	spec, ok := g.Lookup(tokens[0])
	if !ok {
		return nil, &ParseError{Token: tokens[0], Reason: fmt.Sprintf("unknown %s command", g.Name)}
	}

	rest := tokens[1:]
	flags := map[string]string{}
	if len(spec.Flags) > 0 {
		fs := spec.FlagSet()
		if err := fs.Parse(rest); err != nil {
			return nil, &ParseError{Token: offendingFlag(rest, err), Reason: err.Error()}
		}
		for _, f := range spec.Flags {
			if fs.Changed(f.Name) {
				flags[f.Name], _ = fs.GetString(f.Name)
			}
		}
		rest = fs.Args()
	}

	if len(rest) < spec.RequiredArgs() {
		missing := spec.Args[len(rest)]
		return nil, &ParseError{Token: missing.Name, Reason: fmt.Sprintf("%s: missing required argument", spec.Name)}
	}
	if len(rest) > len(spec.Args) {
		return nil, &ParseError{Token: rest[len(spec.Args)], Reason: fmt.Sprintf("%s: unexpected argument", spec.Name)}
	}

	values := make([]any, len(spec.Args))
	for i, tok := range rest {
		arg := spec.Args[i]
		if tok == "" && arg.Optional {
			continue
		}
		v, err := coerce(arg, tok)
		if err != nil {
			reason := err.Error()
			if cErr, ok := clierr.As(err); ok {
				reason = cErr.Message
			}
			return nil, &ParseError{Token: tok, Reason: fmt.Sprintf("invalid %s: %s", arg.Name, reason)}
		}
		values[i] = v
	}
	return &invocation{spec: spec, args: values, flags: flags}, nil
}

func coerce(arg grammar.Arg, tok string) (any, error) {
	if tok == "" {
		return nil, fmt.Errorf("must not be empty")
	}
	switch arg.Kind {
	case grammar.Uint:
		v, err := id.ParseAmount(tok)
		if err != nil {
			return nil, err
		}
		if arg.NonZero && v == 0 {
			return nil, fmt.Errorf("amount must be greater than zero")
		}
		return v, nil
	case grammar.U256:
		v, err := id.ParseU256(tok)
		if err != nil {
			return nil, err
		}
		if arg.NonZero && v.IsZero() {
			return nil, fmt.Errorf("amount must be greater than zero")
		}
		return v, nil
	case grammar.TokenID:
		return id.ParseTokenID(tok)
	case grammar.NftID:
		return id.ParseNftID(tok)
	case grammar.OutputID:
		return id.ParseOutputID(tok)
	case grammar.TransactionID:
		return id.ParseTransactionID(tok)
	case grammar.Bytes:
		return id.ParseBytes(tok)
	case grammar.URL:
		u, err := url.Parse(tok)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("expected an http(s) URL")
		}
		return tok, nil
	default:
		return tok, nil
	}
}

func offendingFlag(tokens []string, err error) string {
	msg := err.Error()
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "-") {
			continue
		}
		name := strings.TrimLeft(strings.SplitN(tok, "=", 2)[0], "-")
		if name != "" && strings.Contains(msg, name) {
			return tok
		}
	}
	return ""
}

func (inv *invocation) str(i int) string {
	if v, ok := inv.args[i].(string); ok {
		return v
	}
	return ""
}

func (inv *invocation) u64(i int) uint64 {
	v, _ := inv.args[i].(uint64)
	return v
}

func (inv *invocation) u256(i int) *uint256.Int {
	if v, ok := inv.args[i].(*uint256.Int); ok {
		return v
	}
	return new(uint256.Int)
}

func (inv *invocation) bytes(i int) []byte {
	v, _ := inv.args[i].([]byte)
	return v
}

func (inv *invocation) tokenID(i int) model.TokenID {
	v, _ := inv.args[i].(model.TokenID)
	return v
}

func (inv *invocation) nftID(i int) model.NftID {
	v, _ := inv.args[i].(model.NftID)
	return v
}

func buildAccount(inv *invocation) (AccountCommand, error) {
	switch inv.spec.Name {
	case grammar.CmdHelp:
		return Help{}, nil
	case grammar.CmdClear:
		return Clear{}, nil
	case grammar.CmdExit:
		return Exit{}, nil
	case grammar.CmdNewAddress:
		return NewAddress{}, nil
	case grammar.CmdBalance:
		return Balance{}, nil
	case grammar.CmdAddresses:
		return Addresses{}, nil
	case grammar.CmdTransactions:
		return Transactions{}, nil
	case grammar.CmdTransaction:
		txID, _ := inv.args[0].(model.TransactionID)
		return Transaction{ID: txID}, nil
	case grammar.CmdOutputs:
		return Outputs{}, nil
	case grammar.CmdSend:
		return Send{Address: inv.str(0), Amount: inv.u64(1)}, nil
	case grammar.CmdSendMicro:
		return SendMicro{Address: inv.str(0), Amount: inv.u64(1)}, nil
	case grammar.CmdSendNativeToken:
		return SendNativeToken{Address: inv.str(0), TokenID: inv.tokenID(1), Amount: inv.u256(2)}, nil
	case grammar.CmdSendNft:
		return SendNft{Address: inv.str(0), NftID: inv.nftID(1)}, nil
	case grammar.CmdMintNativeToken:
		return MintNativeToken{MaxSupply: inv.u256(0), Metadata: inv.bytes(1)}, nil
	case grammar.CmdMintNft:
		return MintNft{Address: inv.str(0), ImmutableMetadata: inv.bytes(1), Metadata: inv.bytes(2)}, nil
	case grammar.CmdBurnNativeToken:
		return BurnNativeToken{TokenID: inv.tokenID(0), Amount: inv.u256(1)}, nil
	case grammar.CmdBurnNft:
		return BurnNft{NftID: inv.nftID(0)}, nil
	case grammar.CmdClaim:
		if outputID, ok := inv.args[0].(model.OutputID); ok {
			return Claim{OutputID: &outputID}, nil
		}
		return Claim{}, nil
	case grammar.CmdConsolidate:
		return Consolidate{}, nil
	case grammar.CmdFaucet:
		return Faucet{URL: inv.str(0), Address: inv.str(1)}, nil
	case grammar.CmdSync:
		return Sync{}, nil
	case grammar.CmdSetAlias:
		return SetAlias{Alias: inv.str(0)}, nil
	}
	return nil, &ParseError{Token: inv.spec.Name, Reason: "account command has no variant"}
}

func buildManager(inv *invocation) (ManagerCommand, error) {
	switch inv.spec.Name {
	case grammar.CmdHelp:
		return Help{}, nil
	case grammar.CmdClear:
		return Clear{}, nil
	case grammar.CmdExit:
		return Exit{}, nil
	case grammar.CmdInit:
		mnemonic := strings.Join(strings.Fields(inv.flags["mnemonic"]), " ")
		node := inv.flags["node"]
		if node != "" {
			if _, err := coerce(grammar.Arg{Name: "node", Kind: grammar.URL}, node); err != nil {
				return nil, &ParseError{Token: node, Reason: "invalid node: " + err.Error()}
			}
		}
		return Init{Mnemonic: mnemonic, NodeURL: node}, nil
	case grammar.CmdNew:
		return New{Alias: inv.str(0)}, nil
	case grammar.CmdSelect:
		return Select{Identifier: inv.str(0)}, nil
	case grammar.CmdAccounts:
		return Accounts{}, nil
	case grammar.CmdSetNode:
		return SetNode{URL: inv.str(0)}, nil
	case grammar.CmdSync:
		return SyncAll{}, nil
	case grammar.CmdBackup:
		return Backup{Path: inv.str(0)}, nil
	case grammar.CmdRestore:
		return Restore{Path: inv.str(0)}, nil
	case grammar.CmdChangePassword:
		return ChangePassword{}, nil
	}
	return nil, &ParseError{Token: inv.spec.Name, Reason: "manager command has no variant"}
}
