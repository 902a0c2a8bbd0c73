// Package grammar declares the shell's command names, argument schemas and help text.
// It is the single source the parser, the help output, completion and the schema
// command read from.
package grammar

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

type Kind int

const (
	String Kind = iota
	// Address is passed through untouched; the engine validates it against the network.
	Address
	Uint
	U256
	TokenID
	NftID
	OutputID
	TransactionID
	// Bytes is hex when 0x-prefixed and UTF-8 text otherwise.
	Bytes
	URL
	Path
)

func (k Kind) String() string {
	switch k {
	case Address:
		return "address"
	case Uint:
		return "u64"
	case U256:
		return "u256"
	case TokenID:
		return "token_id"
	case NftID:
		return "nft_id"
	case OutputID:
		return "output_id"
	case TransactionID:
		return "transaction_id"
	case Bytes:
		return "bytes"
	case URL:
		return "url"
	case Path:
		return "path"
	default:
		return "string"
	}
}

type Arg struct {
	Name     string
	Kind     Kind
	Optional bool
	// NonZero rejects a zero amount at parse time.
	NonZero bool
}

type Flag struct {
	Name        string
	Shorthand   string
	Placeholder string
	Usage       string
}

type Spec struct {
	Name    string
	Aliases []string
	Args    []Arg
	Flags   []Flag
	Short   string
}

// Usage renders the one-line synopsis, e.g. `send <address> <amount>`.
func (s *Spec) Usage() string {
	parts := []string{s.Name}
	for _, f := range s.Flags {
		parts = append(parts, fmt.Sprintf("[--%s %s]", f.Name, f.Placeholder))
	}
	for _, a := range s.Args {
		if a.Optional {
			parts = append(parts, "["+a.Name+"]")
		} else {
			parts = append(parts, "<"+a.Name+">")
		}
	}
	return strings.Join(parts, " ")
}

// RequiredArgs counts the leading non-optional positionals.
func (s *Spec) RequiredArgs() int {
	n := 0
	for _, a := range s.Args {
		if !a.Optional {
			n++
		}
	}
	return n
}

// FlagSet builds a fresh string-valued flag set for one parse.
func (s *Spec) FlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(s.Name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(true)
	for _, f := range s.Flags {
		fs.StringP(f.Name, f.Shorthand, "", f.Usage)
	}
	return fs
}

// Grammar is an immutable set of command specs.
type Grammar struct {
	Name     string
	Commands []*Spec
	index    map[string]*Spec
}

func New(name string, specs ...*Spec) *Grammar {
	g := &Grammar{Name: name, Commands: specs, index: make(map[string]*Spec, len(specs)*2)}
	for _, s := range specs {
		g.index[s.Name] = s
		for _, alias := range s.Aliases {
			g.index[alias] = s
		}
	}
	return g
}

func (g *Grammar) Lookup(name string) (*Spec, bool) {
	s, ok := g.index[name]
	return s, ok
}

// Names lists every command name and alias, sorted.
func (g *Grammar) Names() []string {
	out := make([]string, 0, len(g.index))
	for name := range g.index {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (g *Grammar) Help() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s commands:\n", strings.ToUpper(g.Name[:1])+g.Name[1:])
	tw := tabwriter.NewWriter(&buf, 0, 4, 3, ' ', 0)
	for _, s := range g.Commands {
		desc := s.Short
		if len(s.Aliases) > 0 {
			desc = fmt.Sprintf("%s (alias: %s)", desc, strings.Join(s.Aliases, ", "))
		}
		fmt.Fprintf(tw, "  %s\t%s\n", s.Usage(), desc)
	}
	_ = tw.Flush()
	return buf.String()
}
