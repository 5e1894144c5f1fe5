// Package template finds $$NAME placeholders in job documents.
//
// A placeholder is "$$" followed by one or more characters from
// [A-Za-z0-9_]. Everything else is literal text.
package template

import (
	"strings"
)

// Sigil introduces a placeholder.
const Sigil = "$$"

// Position tracks source location for diagnostics.
type Position struct {
	File   string
	Line   int
	Column int
}

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for document token types.
const (
	TokenText     TokenType = iota // Literal document text
	TokenVariable                  // $$NAME placeholder
	TokenEOF                       // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenVariable:
		return "VARIABLE"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token. For TokenVariable, Value holds the
// variable name without the sigil.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// Lexer tokenizes a document.
type Lexer struct {
	input    string
	file     string
	pos      int // current position in input
	line     int // current line number (1-based)
	col      int // current column number (1-based)
	lastLine int // line at start of current token
	lastCol  int // column at start of current token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{
		input: input,
		file:  file,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens ending with TokenEOF.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

// Next returns the next token from the input.
func (l *Lexer) Next() Token {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.position()}
	}
	if l.atVariable() {
		return l.scanVariable()
	}
	return l.scanText()
}

// scanText scans literal text until a placeholder or EOF.
func (l *Lexer) scanText() Token {
	l.markStart()
	start := l.pos

	for l.pos < len(l.input) && !l.atVariable() {
		l.advance()
	}

	return Token{
		Type:  TokenText,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}
}

// scanVariable scans a $$NAME placeholder. The caller has checked atVariable.
func (l *Lexer) scanVariable() Token {
	l.markStart()

	l.pos += len(Sigil)
	l.col += len(Sigil)

	start := l.pos
	for l.pos < len(l.input) && IsNameByte(l.input[l.pos]) {
		l.pos++
		l.col++
	}

	return Token{
		Type:  TokenVariable,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}
}

// atVariable reports whether a placeholder starts at the current position.
func (l *Lexer) atVariable() bool {
	if !strings.HasPrefix(l.input[l.pos:], Sigil) {
		return false
	}
	next := l.pos + len(Sigil)
	return next < len(l.input) && IsNameByte(l.input[next])
}

// advance moves one byte forward, updating position tracking. Placeholders
// are ASCII, so multi-byte runes are only ever skipped over as text.
func (l *Lexer) advance() {
	if l.input[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

// markStart records the start position for the current token.
func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

// startPosition returns the position where the current token started.
func (l *Lexer) startPosition() Position {
	return Position{File: l.file, Line: l.lastLine, Column: l.lastCol}
}

// IsNameByte reports whether b may appear in a variable name.
func IsNameByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// IsValidName reports whether name is a non-empty run of name characters.
func IsValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !IsNameByte(name[i]) {
			return false
		}
	}
	return true
}
