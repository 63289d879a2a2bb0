package tql

import "fmt"

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenName
	TokenString
	TokenNumber
	TokenEquals
	TokenAnd
	TokenOr
	TokenLParen
	TokenRParen
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenName:
		return "NAME"
	case TokenString:
		return "STRING"
	case TokenNumber:
		return "NUMBER"
	case TokenEquals:
		return "EQUALS"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is one lexeme of a query. Lexeme has quotes stripped for strings;
// Int carries the value of a number.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Int    int64
	Line   int
	Column int
}

func (t Token) String() string {
	if t.Kind == TokenEOF {
		return "EOF"
	}
	return fmt.Sprintf("%s(%q)", t.Kind, t.Lexeme)
}
