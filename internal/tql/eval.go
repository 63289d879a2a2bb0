package tql

import (
	"github.com/avoiney/oppy/internal/records"
)

// Evaluate runs q against all and returns the matching records. all is only
// read; every result is a new Collection. Both sides of a binary node are
// evaluated against all, not against each other.
func Evaluate(q *Query, all *records.Collection) *records.Collection {
	if q == nil || q.Expr == nil {
		return all.Copy()
	}
	e := &evaluator{all: all}
	return e.eval(q.Expr)
}

type evaluator struct {
	all    *records.Collection
	result *records.Collection
}

func (e *evaluator) eval(x Expr) *records.Collection {
	x.Accept(e)
	return e.result
}

func (e *evaluator) VisitFilter(f *Filter) {
	e.result = e.all.FilterByPath(f.Path, f.Pattern.Match)
}

func (e *evaluator) VisitFuzzy(f *Fuzzy) {
	e.result = e.all.FuzzyScan(f.Pattern.Match)
}

func (e *evaluator) VisitUnion(u *Union) {
	left := e.eval(u.Left)
	right := e.eval(u.Right)
	e.result = records.Union(left, right)
}

func (e *evaluator) VisitIntersection(i *Intersection) {
	left := e.eval(i.Left)
	right := e.eval(i.Right)
	e.result = records.Intersect(left, right)
}
