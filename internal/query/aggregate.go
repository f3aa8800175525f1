package query

import (
	"sort"
	"strings"
	"time"

	"github.com/sadopc/faff/internal/errs"
)

// KeySeparator joins the values of multiple group-by fields.
const KeySeparator = " / "

// Domain decides how groups are ordered.
type Domain int

const (
	// Chronological orders by key ascending; keys are ISO dates.
	Chronological Domain = iota
	// Usage orders by total duration, then item count, descending.
	Usage
	// Alphabetical orders by key ascending.
	Alphabetical
)

func (d Domain) String() string {
	switch d {
	case Chronological:
		return "chronological"
	case Usage:
		return "usage"
	case Alphabetical:
		return "alphabetical"
	}
	return "unknown"
}

// Group is the records sharing one key.
type Group struct {
	Key      string
	Values   []string // one per group-by field
	Items    []Record
	Duration time.Duration
	Count    int
}

// GroupBy partitions records by the values of fields, in order of first
// appearance. With no fields every record lands in one group with an empty
// key.
func GroupBy(records []Record, fields ...string) ([]*Group, error) {
	var groups []*Group
	index := make(map[string]*Group)
	for _, r := range records {
		values := make([]string, len(fields))
		for k, f := range fields {
			v, ok := r.Field(f)
			if !ok {
				return nil, errs.New(errs.UnknownField, "group records", f)
			}
			values[k] = v
		}
		key := strings.Join(values, KeySeparator)
		g, ok := index[key]
		if !ok {
			g = &Group{Key: key, Values: values}
			index[key] = g
			groups = append(groups, g)
		}
		g.Items = append(g.Items, r)
		g.Duration += r.Duration()
		g.Count++
	}
	return groups, nil
}

// Sort orders groups in place for domain.
func Sort(groups []*Group, domain Domain) {
	sort.SliceStable(groups, func(a, b int) bool {
		ga, gb := groups[a], groups[b]
		if domain == Usage {
			if ga.Duration != gb.Duration {
				return ga.Duration > gb.Duration
			}
			if ga.Count != gb.Count {
				return ga.Count > gb.Count
			}
		}
		return ga.Key < gb.Key
	})
}

// Limit returns the first n groups. n <= 0 means all of them.
func Limit(groups []*Group, n int) []*Group {
	if n <= 0 || n >= len(groups) {
		return groups
	}
	return groups[:n]
}

// Totals is the aggregate over every group.
type Totals struct {
	Duration time.Duration
	Count    int
}

// Total sums duration and count across groups.
func Total(groups []*Group) Totals {
	var t Totals
	for _, g := range groups {
		t.Duration += g.Duration
		t.Count += g.Count
	}
	return t
}
