package prompt

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// ErrInterrupt is returned by ReadLine on ctrl-C; the shell keeps running.
var ErrInterrupt = errors.New("interrupted")

// LineReader is what the shell loops read from. ReadLine returns io.EOF on ctrl-D.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	SetCompletions(names []string)
	Clear() error
	Close() error
}

// Readline is the chzyer/readline backed LineReader with de-duplicated history.
type Readline struct {
	rl      *readline.Instance
	out     io.Writer
	history *History
}

func NewReadline(in io.ReadCloser, out io.Writer, historyLimit int) (*Readline, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 "> ",
		HistoryLimit:           historyLimit,
		DisableAutoSaveHistory: true,
		HistorySearchFold:      true,
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
		Stdin:                  in,
		Stdout:                 out,
	})
	if err != nil {
		return nil, fmt.Errorf("init line editor: %w", err)
	}
	return &Readline{rl: rl, out: out, history: NewHistory(historyLimit)}, nil
}

func (r *Readline) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupt
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		if r.history.Add(line) {
			r.rl.ResetHistory()
			for _, entry := range r.history.Entries() {
				_ = r.rl.SaveHistory(entry)
			}
		} else {
			_ = r.rl.SaveHistory(strings.TrimSpace(line))
		}
	}
	return line, nil
}

// SetCompletions replaces the tab-completion candidates with the given command names.
func (r *Readline) SetCompletions(names []string) {
	items := make([]readline.PrefixCompleterInterface, 0, len(names))
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	r.rl.Config.AutoComplete = readline.NewPrefixCompleter(items...)
}

func (r *Readline) Clear() error {
	_, err := fmt.Fprint(r.out, "\033[H\033[2J")
	return err
}

func (r *Readline) Close() error {
	return r.rl.Close()
}
