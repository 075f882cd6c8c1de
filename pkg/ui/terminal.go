package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ANSI styles
const (
	cyan    = "\033[36m%s\033[0m"
	yellow  = "\033[33m%s\033[0m"
	red     = "\033[31m%s\033[0m"
	green   = "\033[32m%s\033[0m"
	magenta = "\033[35m%s\033[0m"
	dim     = "\033[2m%s\033[0m"
)

// Printer writes human-facing status lines. Colors are used only when
// enabled and the output is a terminal.
type Printer struct {
	out   io.Writer
	color bool
	quiet bool
}

// NewPrinter creates a printer on out
func NewPrinter(out io.Writer, noColor, quiet bool) *Printer {
	return &Printer{out: out, color: !noColor && isTerminal(out), quiet: quiet}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *Printer) paint(style, text string) string {
	if !p.color {
		return text
	}
	return fmt.Sprintf(style, text)
}

// Error prints an error line; it is shown even in quiet mode
func (p *Printer) Error(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(p.out, p.paint(red, msg))
}

// Success prints a success line
func (p *Printer) Success(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(green, msg))
}

// Info prints a label/value pair
func (p *Printer) Info(label, value string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s: %s\n", p.paint(cyan, label), p.paint(yellow, value))
}

// Warning prints a warning line
func (p *Printer) Warning(msg string, args ...interface{}) {
	if p.quiet {
		return
	}
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(p.out, p.paint(yellow, msg))
}

// Highlight prints a heading line
func (p *Printer) Highlight(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(magenta, msg))
}

// Dim prints a secondary line
func (p *Printer) Dim(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(dim, msg))
}
