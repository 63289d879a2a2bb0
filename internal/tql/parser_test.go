package tql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/avoiney/oppy/pkg/errors"
)

func TestParseEmpty(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t"} {
		q, err := Parse(input)
		require.NoError(t, err)
		assert.Nil(t, q.Expr)
		assert.Equal(t, "", q.String())
	}
}

func TestParseLeaves(t *testing.T) {
	t.Run("filter with string", func(t *testing.T) {
		q := MustParse(`overview.title="Git*"`)
		f, ok := q.Expr.(*Filter)
		require.True(t, ok)
		assert.Equal(t, []string{"overview", "title"}, f.Path)
		assert.Equal(t, "overview.title", f.Field())
		assert.Equal(t, "Git*", f.Pattern.Literal())
		assert.Equal(t, "^Git.*$", f.Pattern.String())
		assert.False(t, f.Pattern.FoldCase())
	})

	t.Run("filter with number", func(t *testing.T) {
		q := MustParse(`count=007`)
		f, ok := q.Expr.(*Filter)
		require.True(t, ok)
		assert.Equal(t, "7", f.Pattern.Literal())
		assert.Equal(t, "^7$", f.Pattern.String())
	})

	for _, input := range []string{`"Git hub"`, `github`, `12`, `example.com`} {
		t.Run("fuzzy "+input, func(t *testing.T) {
			q := MustParse(input)
			f, ok := q.Expr.(*Fuzzy)
			require.True(t, ok)
			assert.True(t, f.Pattern.FoldCase())
		})
	}
}

func TestParseGroupsLeftToRight(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`a&b|c`, `(("a"&"b")|"c")`},
		{`a|b&c`, `(("a"|"b")&"c")`},
		{`name="a"|name="b"&name="c"`, `((name="a"|name="b")&name="c")`},
		{`a|(b&c)`, `("a"|("b"&"c"))`},
		{`((a))`, `"a"`},
		{`a & b & c`, `(("a"&"b")&"c")`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.String())
		})
	}
}

func TestParseOperatorNodes(t *testing.T) {
	q := MustParse(`title="x"|y&z`)
	inter, ok := q.Expr.(*Intersection)
	require.True(t, ok)
	union, ok := inter.Left.(*Union)
	require.True(t, ok)
	_, ok = union.Left.(*Filter)
	assert.True(t, ok)
	_, ok = inter.Right.(*Fuzzy)
	assert.True(t, ok)
}

func TestParseRoundTrip(t *testing.T) {
	inputs := []string{
		`title="Git*"|title="Email"`,
		`(a|b)&(c.d="x y"|42)`,
		`overview.url="https://*.example.com/*"&"*mail*"`,
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first := MustParse(input)
			second, err := Parse(first.String())
			require.NoError(t, err)
			assert.Equal(t, first.String(), second.String())

			a, b := Leaves(first), Leaves(second)
			require.Len(t, b, len(a))
			for i := range a {
				assert.Equal(t, patternOf(a[i]).String(), patternOf(b[i]).String())
			}
		})
	}
}

func patternOf(e Expr) Pattern {
	switch n := e.(type) {
	case *Filter:
		return n.Pattern
	case *Fuzzy:
		return n.Pattern
	}
	return Pattern{}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{`title=`, `syntax error near "EOL"`},
		{`a&`, `syntax error near "EOL"`},
		{`(a|b`, `syntax error near "EOL"`},
		{`title=Github`, `syntax error near "Github"`},
		{`a)`, `syntax error near ")"`},
		{`a "b"`, `syntax error near "b"`},
		{`&a`, `syntax error near "&"`},
		{`()`, `syntax error near ")"`},
		{`=x`, `syntax error near "="`},
		{`a..b="x"`, `syntax error near "a..b": empty key in field path`},
		{`title="Git*`, `illegal character "\"" at line 1, column 7`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q, err := Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, q)
			assert.Equal(t, tt.msg, err.Error())

			var synErr *SyntaxError
			assert.True(t, errors.As(err, &synErr))
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestParseLenientDropsIllegalCharacters(t *testing.T) {
	q, err := Parse(`title="Github"_`, WithLenient(true), WithIllegalHandler(func(rune, int, int) {}))
	require.NoError(t, err)
	assert.Equal(t, `title="Github"`, q.String())

	_, err = Parse(`title=Git*`, WithLenient(true), WithIllegalHandler(func(rune, int, int) {}))
	assert.EqualError(t, err, `syntax error near "Git"`)
}

func TestPatternMatching(t *testing.T) {
	tests := []struct {
		literal string
		fold    bool
		value   string
		want    bool
	}{
		{"Git*", false, "Github", true},
		{"Git*", false, "github", false},
		{"Git*", true, "github", true},
		{"Git", false, "Github", false},
		{"*hub", false, "Github", true},
		{"G*b", false, "Github", true},
		{"*", false, "", true},
		{"a.b", false, "axb", false},
		{"a.b", false, "a.b", true},
		{"5", false, "5", true},
		{"5", false, "50", false},
		{"*note*", true, "line one\nNOTE two", true},
	}
	for _, tt := range tests {
		p := NewPattern(tt.literal, tt.fold)
		assert.Equal(t, tt.want, p.Match(tt.value), "%q fold=%v against %q", tt.literal, tt.fold, tt.value)
	}
}
