package tql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, input string, opts ...Option) []Token {
	t.Helper()
	lx := NewLexer(input, opts...)
	var toks []Token
	for {
		tok, err := lx.Next()
		require.NoError(t, err)
		if tok.Kind == TokenEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestLexerTokenKinds(t *testing.T) {
	toks := lexAll(t, `overview.title = "Git *:/-.9" & (42|name)`)
	assert.Equal(t, []TokenKind{
		TokenName, TokenEquals, TokenString, TokenAnd,
		TokenLParen, TokenNumber, TokenOr, TokenName, TokenRParen,
	}, kinds(toks))

	assert.Equal(t, "overview.title", toks[0].Lexeme)
	assert.Equal(t, "Git *:/-.9", toks[2].Lexeme)
	assert.Equal(t, int64(42), toks[5].Int)
}

func TestLexerNameStopsAtDigits(t *testing.T) {
	toks := lexAll(t, "abc123")
	require.Len(t, toks, 2)
	assert.Equal(t, "abc", toks[0].Lexeme)
	assert.Equal(t, "123", toks[1].Lexeme)
}

func TestLexerTracksLines(t *testing.T) {
	lx := NewLexer("a\n\n  b")
	tok, err := lx.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, tok.Line)

	tok, err = lx.Next()
	require.NoError(t, err)
	assert.Equal(t, 3, tok.Line)
	assert.Equal(t, 3, tok.Column)
	assert.Equal(t, 3, lx.Line())
}

func TestLexerEOFIsSticky(t *testing.T) {
	lx := NewLexer("a")
	_, _ = lx.Next()
	for i := 0; i < 3; i++ {
		tok, err := lx.Next()
		require.NoError(t, err)
		assert.Equal(t, TokenEOF, tok.Kind)
	}
}

func TestLexerStrictRejectsIllegalCharacters(t *testing.T) {
	tests := []struct {
		input string
		char  string
		col   int
	}{
		{"title=Git*", "*", 10},
		{"a_b", "_", 2},
		{`""`, `"`, 1},
		{`"unterminated`, `"`, 1},
		{`"bad_char"`, `"`, 1},
		{"é", "é", 1},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lx := NewLexer(tt.input)
			var err error
			for err == nil {
				var tok Token
				tok, err = lx.Next()
				if tok.Kind == TokenEOF && err == nil {
					t.Fatal("expected an illegal character error")
				}
			}
			var synErr *SyntaxError
			require.ErrorAs(t, err, &synErr)
			assert.True(t, synErr.Illegal)
			assert.Equal(t, tt.char, synErr.Token.Lexeme)
			assert.Equal(t, tt.col, synErr.Token.Column)
		})
	}
}

func TestLexerLenientSkipsIllegalCharacters(t *testing.T) {
	var skipped []string
	handler := WithIllegalHandler(func(ch rune, line, column int) {
		skipped = append(skipped, string(ch))
	})

	toks := lexAll(t, `a_b "x_y"`, WithLenient(true), handler)
	assert.Equal(t, []string{"_", `"`, "_", `"`}, skipped)

	var lexemes []string
	for _, tok := range toks {
		lexemes = append(lexemes, tok.Lexeme)
	}
	assert.Equal(t, []string{"a", "b", "x", "y"}, lexemes)
}

func TestLexerColumnsCountRunes(t *testing.T) {
	var columns []int
	handler := WithIllegalHandler(func(_ rune, _, column int) {
		columns = append(columns, column)
	})
	lx := NewLexer("é€ é a", WithLenient(true), handler)
	tok, err := lx.Next()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, columns)
	assert.Equal(t, "a", tok.Lexeme)
	assert.Equal(t, 6, tok.Column)

	_, err = NewLexer("é€").Next()
	assert.EqualError(t, err, `illegal character "é" at line 1, column 1`)
}
