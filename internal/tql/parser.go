package tql

import (
	"strings"
)

// TokenSource is anything that yields tokens until EOF; *Lexer is one.
type TokenSource interface {
	Next() (Token, error)
}

// Parser builds a Query from a token stream. AND and OR share one
// precedence level and group left to right, so a&b|c is (a&b)|c and
// a|b&c is (a|b)&c. Only parentheses change grouping.
type Parser struct {
	src TokenSource
	tok Token
}

// NewParser reads tokens from src.
func NewParser(src TokenSource) *Parser {
	return &Parser{src: src}
}

// Parse lexes and parses input. Empty input yields a Query with a nil Expr.
func Parse(input string, opts ...Option) (*Query, error) {
	return NewParser(NewLexer(input, opts...)).Parse()
}

// MustParse is like Parse but panics on error.
func MustParse(input string, opts ...Option) *Query {
	q, err := Parse(input, opts...)
	if err != nil {
		panic(err)
	}
	return q
}

// Parse consumes the whole token stream.
func (p *Parser) Parse() (*Query, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.Kind == TokenEOF {
		return &Query{}, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != TokenEOF {
		return nil, unexpected(p.tok)
	}
	return &Query{Expr: expr}, nil
}

func (p *Parser) next() error {
	tok, err := p.src.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// parseExpr := primary (('&' | '|') primary)*
func (p *Parser) parseExpr() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == TokenAnd || p.tok.Kind == TokenOr {
		op := p.tok.Kind
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if op == TokenAnd {
			left = &Intersection{Left: left, Right: right}
		} else {
			left = &Union{Left: left, Right: right}
		}
	}
	return left, nil
}

// parsePrimary := '(' expr ')' | NAME '=' (STRING | NUMBER) | STRING | NAME | NUMBER
func (p *Parser) parsePrimary() (Expr, error) {
	switch p.tok.Kind {
	case TokenLParen:
		if err := p.next(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.Kind != TokenRParen {
			return nil, unexpected(p.tok)
		}
		return expr, p.next()

	case TokenName:
		name := p.tok
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.Kind != TokenEquals {
			return &Fuzzy{Pattern: NewPattern(name.Lexeme, true)}, nil
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.Kind != TokenString && p.tok.Kind != TokenNumber {
			return nil, unexpected(p.tok)
		}
		path, err := splitPath(name)
		if err != nil {
			return nil, err
		}
		value := literal(p.tok)
		return &Filter{Path: path, Pattern: NewPattern(value, false)}, p.next()

	case TokenString, TokenNumber:
		value := literal(p.tok)
		return &Fuzzy{Pattern: NewPattern(value, true)}, p.next()

	default:
		return nil, unexpected(p.tok)
	}
}

// literal returns the pattern text of a STRING or NUMBER token. Numbers are
// used by their integer value, so 007 matches "7".
func literal(tok Token) string {
	if tok.Kind != TokenNumber {
		return tok.Lexeme
	}
	digits := strings.TrimLeft(tok.Lexeme, "0")
	if digits == "" {
		return "0"
	}
	return digits
}

func splitPath(name Token) ([]string, error) {
	path := strings.Split(name.Lexeme, ".")
	for _, key := range path {
		if key == "" {
			return nil, &SyntaxError{Token: name, Reason: "empty key in field path"}
		}
	}
	return path, nil
}
