package tql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoiney/oppy/internal/records"
)

const listing = `[
  {"uuid": "a1", "templateUuid": "001", "trashed": "N", "version": 3,
   "overview": {"title": "Github", "url": "https://github.com", "tags": ["dev", "work"]}},
  {"uuid": "b2", "templateUuid": "001", "trashed": "N",
   "overview": {"title": "Gitlab", "url": "https://gitlab.com", "tags": ["dev"]}},
  {"uuid": "c3", "templateUuid": "005", "trashed": "N", "favorite": true,
   "overview": {"title": "Email", "url": "https://mail.example.com"}}
]`

func sample(t *testing.T) *records.Collection {
	t.Helper()
	c, err := records.Decode(strings.NewReader(listing))
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())
	return c
}

func titles(c *records.Collection) []string {
	var out []string
	for _, r := range c.All() {
		v, _ := records.Lookup(r, []string{"overview", "title"})
		s, _ := records.Stringify(v)
		out = append(out, s)
	}
	return out
}

func TestRunQueries(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{``, []string{"Github", "Gitlab", "Email"}},
		{`overview.title="Git*"`, []string{"Github", "Gitlab"}},
		{`overview.title="git*"`, nil},
		{`overview.title="Git"`, nil},
		{`"git*"`, []string{"Github", "Gitlab"}},
		{`github`, []string{"Github"}},
		{`"*github*"`, []string{"Github"}},
		{`dev`, []string{"Github", "Gitlab"}},
		{`overview.title="Git*"|overview.title="Email"`, []string{"Email", "Github", "Gitlab"}},
		{`overview.title="Email"|overview.title="Git*"`, []string{"Github", "Gitlab", "Email"}},
		{`overview.title="Git*"&"*lab*"`, []string{"Gitlab"}},
		{`templateUuid=1`, nil},
		{`version=3`, []string{"Github"}},
		{`version=03`, []string{"Github"}},
		{`templateUuid="001"`, []string{"Github", "Gitlab"}},
		{`templateUuid="005"|favorite="true"`, []string{"Email"}},
		{`(overview.title="Github"|overview.title="Email")&trashed="N"`, []string{"Email", "Github"}},
		{`overview.title="Git*"&templateUuid=5`, nil},
		{`missing.path="*"`, nil},
		{`overview="*"`, nil},
		{`overview.tags="*"`, nil},
	}
	all := sample(t)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := Run(tt.query, all)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestEvaluateLeavesInputUntouched(t *testing.T) {
	all := sample(t)
	before := records.Fingerprint(all.Records())

	got := Evaluate(MustParse(`overview.title="Git*"&dev`), all)
	require.Equal(t, 2, got.Len())
	got.At(0)["overview"].(map[string]any)["title"] = "changed"

	assert.Equal(t, before, records.Fingerprint(all.Records()))
	assert.Equal(t, 3, all.Len())
}

func TestEvaluateEmptyQueryCopies(t *testing.T) {
	all := sample(t)
	got := Evaluate(&Query{}, all)
	require.Equal(t, all.Len(), got.Len())
	got.Add(records.Record{"uuid": "z9"})
	assert.Equal(t, 3, all.Len())
	assert.Equal(t, 4, got.Len())
}

func TestRunReportsSyntaxErrors(t *testing.T) {
	tests := []struct {
		input   string
		illegal bool
		msg     string
	}{
		{`title=Git*`, false, `syntax error near "Git"`},
		{`title="Git"*`, true, `illegal character "*" at line 1, column 12`},
		{`a@b`, true, `illegal character "@" at line 1, column 2`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Run(tt.input, sample(t))
			assert.Nil(t, got)
			var synErr *SyntaxError
			require.ErrorAs(t, err, &synErr)
			assert.Equal(t, tt.illegal, synErr.Illegal)
			assert.EqualError(t, err, tt.msg)
		})
	}
}

func TestLeavesInOrder(t *testing.T) {
	leaves := Leaves(MustParse(`(a|b.c="x")&7`))
	require.Len(t, leaves, 3)
	assert.Equal(t, `"a"`, leaves[0].String())
	assert.Equal(t, `b.c="x"`, leaves[1].String())
	assert.Equal(t, `"7"`, leaves[2].String())
	assert.Nil(t, Leaves(&Query{}))
}
