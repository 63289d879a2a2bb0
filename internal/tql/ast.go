package tql

import (
	"fmt"
	"strings"
)

// Query is a parsed TQL query. A nil Expr matches every record.
type Query struct {
	Expr Expr
}

// String renders the query as TQL text that parses back to the same tree.
func (q *Query) String() string {
	if q == nil || q.Expr == nil {
		return ""
	}
	return q.Expr.String()
}

// Expr is a node of the query tree. The set of implementations is closed:
// *Filter, *Fuzzy, *Union and *Intersection.
type Expr interface {
	fmt.Stringer
	Accept(v Visitor)
	expr()
}

// Visitor has one method per node kind.
type Visitor interface {
	VisitFilter(f *Filter)
	VisitFuzzy(f *Fuzzy)
	VisitUnion(u *Union)
	VisitIntersection(i *Intersection)
}

// Filter matches the value found at Path against a case-sensitive pattern.
type Filter struct {
	Path    []string
	Pattern Pattern
}

// Fuzzy matches any scalar value of a record against a case-insensitive pattern.
type Fuzzy struct {
	Pattern Pattern
}

// Union is written left | right.
type Union struct {
	Left, Right Expr
}

// Intersection is written left & right.
type Intersection struct {
	Left, Right Expr
}

func (f *Filter) Accept(v Visitor)       { v.VisitFilter(f) }
func (f *Fuzzy) Accept(v Visitor)        { v.VisitFuzzy(f) }
func (u *Union) Accept(v Visitor)        { v.VisitUnion(u) }
func (i *Intersection) Accept(v Visitor) { v.VisitIntersection(i) }

func (*Filter) expr()       {}
func (*Fuzzy) expr()        {}
func (*Union) expr()        {}
func (*Intersection) expr() {}

// Field returns the dotted field path.
func (f *Filter) Field() string {
	return strings.Join(f.Path, ".")
}

func (f *Filter) String() string {
	return fmt.Sprintf("%s=%s", f.Field(), quote(f.Pattern.Literal()))
}

func (f *Fuzzy) String() string {
	return quote(f.Pattern.Literal())
}

func (u *Union) String() string {
	return fmt.Sprintf("(%s|%s)", u.Left, u.Right)
}

func (i *Intersection) String() string {
	return fmt.Sprintf("(%s&%s)", i.Left, i.Right)
}

func quote(literal string) string {
	return `"` + literal + `"`
}
