package tql

import (
	"fmt"

	apperrors "github.com/avoiney/oppy/pkg/errors"
)

// SyntaxError aborts a query. EOF is set when input ended early and Illegal
// when the lexer met a character it cannot use.
type SyntaxError struct {
	Token   Token
	EOF     bool
	Illegal bool
	Reason  string
}

func (e *SyntaxError) Error() string {
	switch {
	case e.EOF:
		return `syntax error near "EOL"`
	case e.Illegal:
		return fmt.Sprintf("illegal character %q at line %d, column %d", e.Token.Lexeme, e.Token.Line, e.Token.Column)
	case e.Reason != "":
		return fmt.Sprintf("syntax error near %q: %s", e.Token.Lexeme, e.Reason)
	default:
		return fmt.Sprintf("syntax error near %q", e.Token.Lexeme)
	}
}

func (e *SyntaxError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

func unexpected(tok Token) *SyntaxError {
	if tok.Kind == TokenEOF {
		return &SyntaxError{Token: tok, EOF: true}
	}
	return &SyntaxError{Token: tok}
}
