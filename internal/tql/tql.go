// Package tql implements the Tag Query Language used to filter vault items.
//
// A query combines leaves with & (intersection) and | (union):
//
//	title="Git*"                field match, case-sensitive
//	overview.url="*.example.*"  dotted path into nested objects
//	"git*"                      fuzzy match on any value, case-insensitive
//	(title="Github"|title="Email")&templateUuid=1
//
// Patterns are anchored: '*' matches any sequence and the whole value must
// match. & and | have the same precedence and group left to right.
package tql

import (
	"github.com/avoiney/oppy/internal/records"
)

// Run parses query and evaluates it against all.
func Run(query string, all *records.Collection, opts ...Option) (*records.Collection, error) {
	q, err := Parse(query, opts...)
	if err != nil {
		return nil, err
	}
	return Evaluate(q, all), nil
}

// Leaves returns the Filter and Fuzzy nodes of q from left to right.
func Leaves(q *Query) []Expr {
	if q == nil || q.Expr == nil {
		return nil
	}
	c := &leafCollector{}
	q.Expr.Accept(c)
	return c.leaves
}

type leafCollector struct {
	leaves []Expr
}

func (c *leafCollector) VisitFilter(f *Filter) { c.leaves = append(c.leaves, f) }
func (c *leafCollector) VisitFuzzy(f *Fuzzy)   { c.leaves = append(c.leaves, f) }

func (c *leafCollector) VisitUnion(u *Union) {
	u.Left.Accept(c)
	u.Right.Accept(c)
}

func (c *leafCollector) VisitIntersection(i *Intersection) {
	i.Left.Accept(c)
	i.Right.Accept(c)
}
