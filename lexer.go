package main

import (
	"strings"

	"github.com/nickwells/location.mod/location"
)

// Lexer is a character cursor over one document with line tracking. The
// grammar mixes line-structured chunk blocks with character-structured
// macro forms, so the parser drives the cursor directly instead of
// consuming a flat token stream.
type Lexer struct {
	src     string
	off     int
	loc     *location.L
	atStart bool
}

func NewLexer(name, src string) *Lexer {
	l := &Lexer{src: src, loc: location.New(name), atStart: true}
	l.loc.Incr()
	return l
}

// Pos snapshots the current source location.
func (l *Lexer) Pos() *location.L {
	p := *l.loc
	return &p
}

func (l *Lexer) EOF() bool { return l.off >= len(l.src) }

// AtLineStart reports whether the cursor sits at the beginning of a line.
func (l *Lexer) AtLineStart() bool { return l.atStart }

func (l *Lexer) Peek() byte {
	if l.EOF() {
		return 0
	}
	return l.src[l.off]
}

// PeekAt looks k bytes ahead of the cursor without consuming.
func (l *Lexer) PeekAt(k int) byte {
	if l.off+k >= len(l.src) {
		return 0
	}
	return l.src[l.off+k]
}

func (l *Lexer) Advance() byte {
	if l.EOF() {
		return 0
	}
	c := l.src[l.off]
	l.off++
	if c == '\n' {
		l.loc.Incr()
		l.atStart = true
	} else {
		l.atStart = false
	}
	return c
}

// LookingAt reports whether the input at the cursor begins with s.
func (l *Lexer) LookingAt(s string) bool {
	return strings.HasPrefix(l.src[l.off:], s)
}

// Consume advances past s if the input begins with it.
func (l *Lexer) Consume(s string) bool {
	if !l.LookingAt(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		l.Advance()
	}
	return true
}

// ScanIdent consumes an identifier ([A-Za-z_][A-Za-z0-9_]*), returning ""
// when the cursor is not at one.
func (l *Lexer) ScanIdent() string {
	start := l.off
	if l.EOF() || !isIdentStart(l.src[l.off]) {
		return ""
	}
	for !l.EOF() && isIdentByte(l.src[l.off]) {
		l.Advance()
	}
	return l.src[start:l.off]
}

// PeekLine returns the remainder of the current line without consuming it.
func (l *Lexer) PeekLine() string {
	if l.EOF() {
		return ""
	}
	rest := l.src[l.off:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		return strings.TrimSuffix(rest[:i], "\r")
	}
	return strings.TrimSuffix(rest, "\r")
}

// ConsumeLine consumes through the end of the current line, returning its
// text without the trailing newline.
func (l *Lexer) ConsumeLine() string {
	text := l.PeekLine()
	for !l.EOF() {
		if l.Advance() == '\n' {
			break
		}
	}
	return text
}

// SkipHSpace consumes horizontal whitespace.
func (l *Lexer) SkipHSpace() {
	for !l.EOF() {
		c := l.src[l.off]
		if c != ' ' && c != '\t' && c != '\r' {
			return
		}
		l.Advance()
	}
}

// SkipSpace consumes whitespace including newlines. Macro-definition
// headers may wrap across lines.
func (l *Lexer) SkipSpace() {
	for !l.EOF() {
		c := l.src[l.off]
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			return
		}
		l.Advance()
	}
}

// SkipToEOL consumes up to, and including, the next newline.
func (l *Lexer) SkipToEOL() {
	for !l.EOF() {
		if l.Advance() == '\n' {
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// isIdentifier reports whether s is a whole well-formed identifier.
func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

// leadingIndent splits a line into its leading whitespace and the rest.
func leadingIndent(line string) (indent, rest string) {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[:i], line[i:]
}
