package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Lines is the LineReader used when stdin is not a terminal. It reads from
// the same buffered reader as the SecretPrompt so piped passwords and
// commands are consumed in order.
type Lines struct {
	in  *bufio.Reader
	out io.Writer
}

func NewLines(in *bufio.Reader, out io.Writer) *Lines {
	return &Lines{in: in, out: out}
}

func (l *Lines) ReadLine(prompt string) (string, error) {
	_, _ = fmt.Fprint(l.out, prompt)
	line, err := l.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (l *Lines) SetCompletions([]string) {}

func (l *Lines) Clear() error { return nil }

func (l *Lines) Close() error { return nil }
