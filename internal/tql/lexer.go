package tql

import (
	"strconv"
	"unicode/utf8"
)

// IllegalFunc is told about every character the lexer cannot use.
type IllegalFunc func(ch rune, line, column int)

// Lexer turns query text into tokens one at a time. It cannot be rewound;
// once the input is exhausted every call to Next returns an EOF token.
type Lexer struct {
	input     string
	pos       int
	line      int
	column    int
	lenient   bool
	onIllegal IllegalFunc
}

// NewLexer returns a strict lexer unless WithLenient is given.
func NewLexer(input string, opts ...Option) *Lexer {
	o := buildOptions(opts)
	return &Lexer{
		input:     input,
		line:      1,
		column:    1,
		lenient:   o.lenient,
		onIllegal: o.onIllegal,
	}
}

// Line returns the current line, starting at 1.
func (l *Lexer) Line() int {
	return l.line
}

// Next returns the next token. In strict mode an unusable character yields
// a *SyntaxError; in lenient mode it is reported and skipped.
func (l *Lexer) Next() (Token, error) {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t':
			l.advance(1)
		case ch == '\n':
			l.pos++
			l.line++
			l.column = 1
		case isLetter(ch) || ch == '.':
			return l.scan(TokenName, func(c byte) bool { return isLetter(c) || c == '.' }), nil
		case isDigit(ch):
			tok := l.scan(TokenNumber, isDigit)
			tok.Int, _ = strconv.ParseInt(tok.Lexeme, 10, 64)
			return tok, nil
		case ch == '"':
			if tok, ok := l.scanString(); ok {
				return tok, nil
			}
			if err := l.illegal(); err != nil {
				return Token{}, err
			}
		default:
			if kind, ok := punctuation[ch]; ok {
				tok := l.token(kind, l.input[l.pos:l.pos+1])
				l.advance(1)
				return tok, nil
			}
			if err := l.illegal(); err != nil {
				return Token{}, err
			}
		}
	}
	return l.token(TokenEOF, ""), nil
}

var punctuation = map[byte]TokenKind{
	'=': TokenEquals,
	'&': TokenAnd,
	'|': TokenOr,
	'(': TokenLParen,
	')': TokenRParen,
}

func (l *Lexer) token(kind TokenKind, lexeme string) Token {
	return Token{Kind: kind, Lexeme: lexeme, Line: l.line, Column: l.column}
}

func (l *Lexer) advance(n int) {
	l.pos += n
	l.column += n
}

func (l *Lexer) scan(kind TokenKind, accept func(byte) bool) Token {
	end := l.pos
	for end < len(l.input) && accept(l.input[end]) {
		end++
	}
	tok := l.token(kind, l.input[l.pos:end])
	l.advance(end - l.pos)
	return tok
}

// scanString matches a double-quoted, non-empty run of string characters.
// Nothing is consumed when the run is empty or not closed by a quote.
func (l *Lexer) scanString() (Token, bool) {
	end := l.pos + 1
	for end < len(l.input) && isStringChar(l.input[end]) {
		end++
	}
	if end == l.pos+1 || end >= len(l.input) || l.input[end] != '"' {
		return Token{}, false
	}
	tok := l.token(TokenString, l.input[l.pos+1:end])
	l.advance(end + 1 - l.pos)
	return tok, true
}

func (l *Lexer) illegal() error {
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	line, column := l.line, l.column
	if !l.lenient {
		return &SyntaxError{
			Token:   Token{Lexeme: string(r), Line: line, Column: column},
			Illegal: true,
		}
	}
	if l.onIllegal != nil {
		l.onIllegal(r, line, column)
	}
	// Columns count runes, not bytes.
	l.pos += size
	l.column++
	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isStringChar(c byte) bool {
	switch c {
	case ' ', '-', '*', ':', '/', '.':
		return true
	}
	return isLetter(c) || isDigit(c)
}
