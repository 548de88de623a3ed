package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

type LineType int8

const (
	Full  LineType = 0
	Elide LineType = 1
)

// LinePrinter prints single-line progress on smart terminals by
// overwriting the current line, and plain scrolling output everywhere
// else. While the console is locked, output is buffered and replayed on
// unlock.
type LinePrinter struct {
	smartTerminal bool
	supportsColor bool

	// Whether the caret sits at the start of a blank line.
	haveBlankLine bool

	consoleLocked bool
	lineBuffer    string
	lineType      LineType
	outputBuffer  string
}

func NewLinePrinter() *LinePrinter {
	p := &LinePrinter{haveBlankLine: true}
	term := os.Getenv("TERM")
	p.smartTerminal = isatty.IsTerminal(os.Stdout.Fd()) && term != "" && term != "dumb"
	p.supportsColor = p.smartTerminal
	if !p.supportsColor {
		force := os.Getenv("CLICOLOR_FORCE")
		p.supportsColor = force != "" && force != "0"
	}
	return p
}

func (p *LinePrinter) IsSmartTerminal() bool    { return p.smartTerminal }
func (p *LinePrinter) SetSmartTerminal(on bool) { p.smartTerminal = on }
func (p *LinePrinter) SupportsColor() bool      { return p.supportsColor }

// Print overwrites the current line. With Elide, text is shortened in the
// middle to fit the terminal width.
func (p *LinePrinter) Print(text string, lt LineType) {
	if p.consoleLocked {
		p.lineBuffer = text
		p.lineType = lt
		return
	}

	if p.smartTerminal {
		// Print over the previous status line, if any.
		fmt.Fprint(os.Stdout, "\r")
	}

	if p.smartTerminal && lt == Elide {
		if width := terminalWidth(); width > 0 {
			text = elideMiddle(text, width)
		}
		// Clear to end of line so a shorter status leaves no residue.
		fmt.Fprintf(os.Stdout, "%s\x1b[K", text)
		p.haveBlankLine = false
		return
	}

	fmt.Fprintf(os.Stdout, "%s\n", text)
	p.haveBlankLine = true
}

// PrintOnNewLine prints without overwriting previous output.
func (p *LinePrinter) PrintOnNewLine(text string) {
	if p.consoleLocked && p.lineBuffer != "" {
		p.outputBuffer += p.lineBuffer + "\n"
		p.lineBuffer = ""
	}
	if !p.haveBlankLine {
		p.printOrBuffer("\n")
	}
	if text != "" {
		p.printOrBuffer(text)
	}
	p.haveBlankLine = text == "" || text[len(text)-1] == '\n'
}

// SetConsoleLocked buffers output while locked and replays it on unlock.
func (p *LinePrinter) SetConsoleLocked(locked bool) {
	if locked == p.consoleLocked {
		return
	}
	if locked {
		p.PrintOnNewLine("")
	}
	p.consoleLocked = locked
	if !locked {
		p.PrintOnNewLine(p.outputBuffer)
		if p.lineBuffer != "" {
			p.Print(p.lineBuffer, p.lineType)
		}
		p.outputBuffer = ""
		p.lineBuffer = ""
	}
}

func (p *LinePrinter) printOrBuffer(data string) {
	if p.consoleLocked {
		p.outputBuffer += data
	} else {
		fmt.Fprint(os.Stdout, data)
	}
}

func terminalWidth() int {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0
	}
	return int(ws.Col)
}

// elideMiddle shortens s to fit width by replacing its middle with "...".
func elideMiddle(s string, width int) string {
	const mark = "..."
	switch {
	case width <= 0:
		return ""
	case len(s) <= width:
		return s
	case width <= len(mark):
		return s[:width]
	}
	keep := (width - len(mark)) / 2
	return s[:width-len(mark)-keep] + mark + s[len(s)-keep:]
}
