package tql

import (
	"fmt"
	"testing"

	"github.com/avoiney/oppy/internal/records"
)

func benchCollection(n int) *records.Collection {
	c := records.New()
	for i := 0; i < n; i++ {
		c.Add(records.Record{
			"uuid":         fmt.Sprintf("item-%d", i),
			"templateUuid": fmt.Sprintf("%03d", i%7),
			"overview": map[string]any{
				"title": fmt.Sprintf("Account %d", i),
				"url":   fmt.Sprintf("https://host%d.example.com", i%50),
				"tags":  []any{"bench", fmt.Sprintf("group%d", i%10)},
			},
		})
	}
	return c
}

// BenchmarkParse measures parsing latency for queries of varying complexity.
func BenchmarkParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"fuzzy", `account`},
		{"filter", `overview.title="Account 1*"`},
		{"union", `overview.title="Account 1*"|overview.title="Account 2*"`},
		{"nested", `(overview.title="Account 1*"|"group3")&(overview.url="*host4*"|templateUuid="002")`},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Parse(q.query); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEvaluate measures evaluation over 5 000 records.
func BenchmarkEvaluate(b *testing.B) {
	all := benchCollection(5000)
	queries := []struct {
		name  string
		query string
	}{
		{"filter", `overview.title="Account 1*"`},
		{"fuzzy", `"group3"`},
		{"union", `overview.title="Account 1*"|"group3"`},
		{"intersection", `overview.url="*host4*"&templateUuid="002"`},
	}
	for _, q := range queries {
		parsed := MustParse(q.query)
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = Evaluate(parsed, all)
			}
		})
	}
}
