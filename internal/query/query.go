package query

import (
	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/errs"
)

// Query is a conjunction of filters, an optional date range, optional
// grouping and an optional group limit.
type Query struct {
	Filters []Filter
	Range   *datespec.Range
	GroupBy []string
	Limit   int
}

// Matches reports whether every filter holds for r and, for dated records,
// whether r's date falls within the range.
func (q Query) Matches(r Record) (bool, error) {
	for _, f := range q.Filters {
		ok, err := Evaluate(r, f)
		if err != nil || !ok {
			return false, err
		}
	}
	if q.Range != nil {
		if d, dated := r.Date(); dated && !q.Range.Contains(d) {
			return false, nil
		}
	}
	return true, nil
}

// Check rejects filters and group-by fields that records of k do not have,
// so an empty record set still reports a bad field.
func (q Query) Check(k Kind) error {
	for _, f := range q.Filters {
		if !k.HasField(f.Field) {
			return errs.Newf(errs.UnknownField, "check query", "%s has no field %q", k, f.Field)
		}
	}
	for _, g := range q.GroupBy {
		if !k.HasField(g) {
			return errs.Newf(errs.UnknownField, "check query", "%s has no field %q", k, g)
		}
	}
	return nil
}

// Result is the sorted and limited groups of a query, with totals taken
// before the limit.
type Result struct {
	Kind    Kind
	Domain  Domain
	GroupBy []string
	Groups  []*Group
	Total   Totals
	// Omitted counts groups dropped by the limit.
	Omitted int
}

// Run filters records, groups them, orders the groups for the kind's domain,
// totals them and applies the limit.
func Run(k Kind, records []Record, q Query) (*Result, error) {
	if err := q.Check(k); err != nil {
		return nil, err
	}
	var matched []Record
	for _, r := range records {
		ok, err := q.Matches(r)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, r)
		}
	}

	groups, err := GroupBy(matched, q.GroupBy...)
	if err != nil {
		return nil, err
	}
	domain := k.Domain(q.GroupBy)
	Sort(groups, domain)
	limited := Limit(groups, q.Limit)

	return &Result{
		Kind:    k,
		Domain:  domain,
		GroupBy: q.GroupBy,
		Groups:  limited,
		Total:   Total(groups),
		Omitted: len(groups) - len(limited),
	}, nil
}
