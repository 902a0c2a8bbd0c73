package schema

import (
	"fmt"
	"strings"

	"github.com/ggonzalez94/wallet-cli/internal/grammar"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type CommandSchema struct {
	Path        string          `json:"path"`
	Use         string          `json:"use"`
	Short       string          `json:"short"`
	Aliases     []string        `json:"aliases,omitempty"`
	Args        []ArgSchema     `json:"args,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

type ArgSchema struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
	NonZero  bool   `json:"nonZero,omitempty"`
}

type FlagSchema struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
}

// Build resolves commandPath against the CLI tree. The first segment may name
// one of the shell grammars ("account", "manager"), whose commands are then
// described instead.
func Build(root *cobra.Command, commandPath string) (CommandSchema, error) {
	parts := strings.Fields(strings.TrimSpace(commandPath))
	if len(parts) > 0 {
		if g := shellGrammar(parts[0]); g != nil {
			return BuildGrammar(g, strings.Join(parts[1:], " "))
		}
	}
	cmd := root
	for _, p := range parts {
		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == p || contains(c.Aliases, p) {
				cmd = c
				found = true
				break
			}
		}
		if !found {
			return CommandSchema{}, fmt.Errorf("command not found: %s", commandPath)
		}
	}
	return serialize(cmd), nil
}

// BuildGrammar describes a shell grammar, or a single command of it when name is set.
func BuildGrammar(g *grammar.Grammar, name string) (CommandSchema, error) {
	if name != "" {
		spec, ok := g.Lookup(name)
		if !ok {
			return CommandSchema{}, fmt.Errorf("command not found: %s %s", g.Name, name)
		}
		return serializeSpec(g.Name, spec), nil
	}
	s := CommandSchema{Path: g.Name, Use: g.Name, Short: g.Name + " shell commands"}
	for _, spec := range g.Commands {
		s.Subcommands = append(s.Subcommands, serializeSpec(g.Name, spec))
	}
	return s, nil
}

func shellGrammar(name string) *grammar.Grammar {
	switch name {
	case "account":
		return grammar.Account()
	case "manager":
		return grammar.Manager()
	}
	return nil
}

func serialize(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Path:    strings.TrimSpace(cmd.CommandPath()),
		Use:     cmd.Use,
		Short:   cmd.Short,
		Aliases: cmd.Aliases,
		Flags:   collectFlags(cmd.NonInheritedFlags()),
	}

	subs := cmd.Commands()
	for _, sub := range subs {
		if sub.Hidden {
			continue
		}
		s.Subcommands = append(s.Subcommands, serialize(sub))
	}

	return s
}

func serializeSpec(grammarName string, spec *grammar.Spec) CommandSchema {
	s := CommandSchema{
		Path:    grammarName + " " + spec.Name,
		Use:     spec.Usage(),
		Short:   spec.Short,
		Aliases: spec.Aliases,
		Flags:   collectFlags(spec.FlagSet()),
	}
	for _, arg := range spec.Args {
		s.Args = append(s.Args, ArgSchema{Name: arg.Name, Type: arg.Kind.String(), Optional: arg.Optional, NonZero: arg.NonZero})
	}
	return s
}

func collectFlags(fs *pflag.FlagSet) []FlagSchema {
	items := []FlagSchema{}
	fs.VisitAll(func(f *pflag.Flag) {
		item := FlagSchema{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
		}
		items = append(items, item)
	})
	return items
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
