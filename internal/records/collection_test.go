package records

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(c *Collection) []string {
	out := make([]string, 0, c.Len())
	for _, r := range c.All() {
		out = append(out, r["title"].(string))
	}
	return out
}

func rec(title string) Record {
	return Record{"title": title}
}

func TestAddDeduplicatesStructurally(t *testing.T) {
	c := New()
	c.Add(Record{"title": "a", "tags": []any{"x", "y"}})
	c.Add(Record{"tags": []any{"x", "y"}, "title": "a"})
	c.Add(Record{"title": "a", "tags": []any{"y", "x"}})

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Contains(Record{"title": "a", "tags": []any{"y", "x"}}))
	assert.False(t, c.Contains(Record{"title": "a"}))
}

func TestFingerprintDistinguishesTypes(t *testing.T) {
	assert.NotEqual(t, Fingerprint(Record{"v": "5"}), Fingerprint(Record{"v": json.Number("5")}))
	assert.Equal(t, Fingerprint(Record{"v": json.Number("5")}), Fingerprint(Record{"v": 5}))
	assert.NotEqual(t, Fingerprint(Record{"v": nil}), Fingerprint(Record{"v": "null"}))
}

func TestNumbersCompareByValue(t *testing.T) {
	c, err := Decode(strings.NewReader(`[{"a":1},{"a":1.0},{"a":1e0},{"a":"1"},{"a":2},{"a":0.5},{"a":5e-1}]`))
	require.NoError(t, err)
	require.Equal(t, 4, c.Len())
	assert.Equal(t, json.Number("1"), c.At(0)["a"])
	assert.Equal(t, "1", c.At(1)["a"])
	assert.Equal(t, json.Number("2"), c.At(2)["a"])
	assert.Equal(t, json.Number("0.5"), c.At(3)["a"])

	assert.True(t, c.Contains(Record{"a": 1.0}))
	assert.Equal(t, Fingerprint(Record{"a": json.Number("1.0")}), Fingerprint(Record{"a": 1}))

	got := c.FilterByPath([]string{"a"}, func(s string) bool { return s == "1" })
	assert.Equal(t, 2, got.Len(), "matching still uses the number's text")
}

func TestFilterByPath(t *testing.T) {
	c := New(
		Record{"overview": Record{"title": "Github"}},
		Record{"overview": Record{"url": "x"}},
		Record{"overview": "flat"},
		Record{"other": 1},
		Record{"overview": Record{"title": Record{"nested": "Github"}}},
	)
	got := c.FilterByPath([]string{"overview", "title"}, func(s string) bool { return s == "Github" })
	require.Equal(t, 1, got.Len())
	assert.Equal(t, Record{"overview": Record{"title": "Github"}}, got.At(0))
}

func TestFilterByPathMissingEverywhere(t *testing.T) {
	c := New(rec("a"), rec("b"))
	got := c.FilterByPath([]string{"nope"}, func(string) bool { return true })
	assert.Equal(t, 0, got.Len())
}

func TestFilterByPathStringifiesNumbers(t *testing.T) {
	c := New(Record{"n": json.Number("5")}, Record{"n": json.Number("50")}, Record{"n": true})
	got := c.FilterByPath([]string{"n"}, func(s string) bool { return s == "5" })
	assert.Equal(t, 1, got.Len())

	got = c.FilterByPath([]string{"n"}, func(s string) bool { return s == "true" })
	assert.Equal(t, 1, got.Len())
}

func TestFuzzyScanRecursesIntoNestedValues(t *testing.T) {
	c := New(
		Record{"title": "a", "details": Record{"fields": []any{Record{"value": "needle"}}}},
		Record{"title": "b", "tags": []any{[]any{"deep", "needle"}}},
		Record{"title": "c", "details": Record{"fields": []any{}}},
		Record{"title": "d", "n": json.Number("42"), "nil": nil},
	)
	got := c.FuzzyScan(func(s string) bool { return s == "needle" })
	assert.Equal(t, []string{"a", "b"}, titles(got))

	got = c.FuzzyScan(func(s string) bool { return s == "42" })
	assert.Equal(t, []string{"d"}, titles(got))
}

func TestIntersectFollowsLeftOrder(t *testing.T) {
	a := New(rec("1"), rec("2"), rec("3"), rec("4"))
	b := New(rec("4"), rec("2"), rec("9"))

	got := Intersect(a, b)
	assert.Equal(t, []string{"2", "4"}, titles(got))
}

func TestIntersectCopies(t *testing.T) {
	shared := Record{"title": "x", "nested": Record{"k": "v"}}
	got := Intersect(New(shared), New(shared))
	require.Equal(t, 1, got.Len())

	got.At(0)["nested"].(Record)["k"] = "changed"
	assert.Equal(t, "v", shared["nested"].(Record)["k"])
}

func TestUnionIsRightBiased(t *testing.T) {
	a := New(rec("1"), rec("2"), rec("3"))
	b := New(rec("3"), rec("5"), rec("1"))

	got := Union(a, b)
	assert.Equal(t, []string{"3", "5", "1", "2"}, titles(got))
}

func TestUnionCopiesSharedRecordsOnly(t *testing.T) {
	shared := Record{"title": "s", "nested": Record{"k": "v"}}
	onlyRight := Record{"title": "r", "nested": Record{"k": "v"}}
	got := Union(New(shared), New(shared, onlyRight))
	require.Equal(t, 2, got.Len())

	got.At(0)["nested"].(Record)["k"] = "changed"
	assert.Equal(t, "v", shared["nested"].(Record)["k"])

	got.At(1)["nested"].(Record)["k"] = "changed"
	assert.Equal(t, "changed", onlyRight["nested"].(Record)["k"])
}

func TestCopyIsIndependent(t *testing.T) {
	c := New(rec("1"))
	cp := c.Copy()
	cp.Add(rec("2"))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 2, cp.Len())
}

func TestDecode(t *testing.T) {
	c, err := Decode(strings.NewReader(`[
		{"uuid": "u1", "overview": {"title": "Github"}, "n": 5},
		{"uuid": "u1", "overview": {"title": "Github"}, "n": 5},
		{"uuid": "u2", "overview": {"title": "Gitlab"}}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, json.Number("5"), c.At(0)["n"])

	_, err = Decode(strings.NewReader(`[1, 2]`))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`{"not": "a list"}`))
	assert.Error(t, err)

	empty, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestLookup(t *testing.T) {
	r := Record{"a": Record{"b": Record{"c": "leaf"}}, "list": []any{"x"}}
	v, ok := Lookup(r, []string{"a", "b", "c"})
	assert.True(t, ok)
	assert.Equal(t, "leaf", v)

	_, ok = Lookup(r, []string{"a", "x"})
	assert.False(t, ok)

	_, ok = Lookup(r, []string{"list", "0"})
	assert.False(t, ok)
}
