// Package query filters and aggregates ledger records: sessions, intents,
// logs and plans all expose named string fields that filter expressions such
// as "role=engineer" or "objective~revenue" are evaluated against.
package query

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sadopc/faff/internal/errs"
)

// Op is a filter operator.
type Op string

const (
	Equals    Op = "="
	Contains  Op = "~"
	NotEquals Op = "!="
)

// Filter is one field/operator/value predicate.
type Filter struct {
	Field string
	Op    Op
	Value string
}

func (f Filter) String() string {
	return f.Field + string(f.Op) + f.Value
}

// Parse reads "field<op>value". "!=" is looked for first, then "~", then
// "=", so neither of the longer operators is split as "=".
func Parse(expr string) (Filter, error) {
	for _, op := range []Op{NotEquals, Contains, Equals} {
		k := strings.Index(expr, string(op))
		if k < 0 {
			continue
		}
		field := strings.TrimSpace(expr[:k])
		if field == "" {
			return Filter{}, errs.Newf(errs.MalformedFilter, "parse filter", "%q has no field", expr)
		}
		return Filter{Field: field, Op: op, Value: expr[k+len(op):]}, nil
	}
	return Filter{}, errs.Newf(errs.MalformedFilter, "parse filter", "%q has no operator (=, ~ or !=)", expr)
}

// ParseAll parses every expression, stopping at the first bad one.
func ParseAll(exprs []string) ([]Filter, error) {
	out := make([]Filter, 0, len(exprs))
	for _, e := range exprs {
		f, err := Parse(e)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Evaluate applies f to r. A field r does not have is UnknownField, not a
// non-match.
func Evaluate(r Record, f Filter) (bool, error) {
	v, ok := r.Field(f.Field)
	if !ok {
		return false, errs.New(errs.UnknownField, "evaluate filter", f.Field)
	}
	switch f.Op {
	case Equals:
		return v == f.Value, nil
	case NotEquals:
		return v != f.Value, nil
	case Contains:
		fold := cases.Fold()
		return strings.Contains(fold.String(v), fold.String(f.Value)), nil
	}
	return false, errs.Newf(errs.MalformedFilter, "evaluate filter", "unknown operator %q", f.Op)
}
