package out

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Printer writes results to stdout and errors to stderr in the configured mode.
type Printer struct {
	stdout io.Writer
	stderr io.Writer
	mode   string
	errTag *color.Color
	accent *color.Color
}

func NewPrinter(stdout, stderr io.Writer, mode string, colored bool) *Printer {
	if mode != ModeJSON {
		mode = ModePlain
	}
	errTag := color.New(color.FgRed, color.Bold)
	accent := color.New(color.FgCyan)
	if !colored {
		errTag.DisableColor()
		accent.DisableColor()
	} else {
		errTag.EnableColor()
		accent.EnableColor()
	}
	return &Printer{stdout: stdout, stderr: stderr, mode: mode, errTag: errTag, accent: accent}
}

func (p *Printer) Mode() string { return p.mode }

func (p *Printer) Stdout() io.Writer { return p.stdout }

func (p *Printer) Result(command string, data any) error {
	return Render(p.stdout, Success(command, data), p.mode)
}

// Message prints a one-line notice; in JSON mode it becomes {"message": ...}.
func (p *Printer) Message(command, format string, args ...any) error {
	return p.Result(command, Message{Text: fmt.Sprintf(format, args...)})
}

func (p *Printer) Error(command string, err error) error {
	env := Failure(command, err)
	if p.mode == ModeJSON {
		return Render(p.stderr, env, p.mode)
	}
	_, werr := fmt.Fprintf(p.stderr, "%s %s\n", p.errTag.Sprint("ERROR:"), env.Error.Message)
	return werr
}

// Prompt styles an input prompt.
func (p *Printer) Prompt(text string) string {
	return p.accent.Sprint(text) + ": "
}
