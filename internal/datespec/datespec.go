// Package datespec resolves date expressions ("2025-01-10", "yesterday",
// "last friday", "3 days ago") into calendar dates and inclusive ranges.
package datespec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sadopc/faff/internal/errs"
)

// Layout is the ISO calendar date layout used for every date in the ledger.
const Layout = "2006-01-02"

// Range is an inclusive span of calendar dates. A zero bound is open.
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether d falls within the range.
func (r Range) Contains(d time.Time) bool {
	d = Truncate(d)
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// IsOpen reports whether neither bound is set.
func (r Range) IsOpen() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Days lists every date in the range. Both bounds must be set.
func (r Range) Days() []time.Time {
	if r.From.IsZero() || r.To.IsZero() {
		return nil
	}
	var out []time.Time
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Resolver turns expressions into dates relative to Now.
type Resolver struct {
	Now      func() time.Time
	Location *time.Location
}

// New returns a resolver using the wall clock in loc. A nil loc means local time.
func New(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{Now: time.Now, Location: loc}
}

// Today returns the current calendar date in the resolver's location.
func (r *Resolver) Today() time.Time {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return Truncate(now().In(loc))
}

// Truncate drops the clock part of t, keeping its calendar date in UTC so that
// dates from different locations compare equal.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Parse parses an ISO calendar date.
func Parse(s string) (time.Time, error) {
	d, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errs.Wrap(errs.InvalidDate, "parse date", s, err)
	}
	return d, nil
}

// Format renders d in ISO form.
func Format(d time.Time) string {
	return d.Format(Layout)
}

var (
	agoPattern  = regexp.MustCompile(`^(\d+)\s+(day|days|week|weeks)\s+ago$`)
	inPattern   = regexp.MustCompile(`^in\s+(\d+)\s+(day|days|week|weeks)$`)
	lastPattern = regexp.MustCompile(`^last\s+([a-z]+)$`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday, "sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// Resolve converts expr to a calendar date. An empty expr is today.
func (r *Resolver) Resolve(expr string) (time.Time, error) {
	today := r.Today()
	e := strings.ToLower(strings.TrimSpace(expr))

	switch e {
	case "", "today", "now":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}

	if d, err := time.Parse(Layout, e); err == nil {
		return d, nil
	}

	// Weekday names resolve to the most recent such day, today included.
	if wd, ok := weekdays[e]; ok {
		back := (int(today.Weekday()) - int(wd) + 7) % 7
		return today.AddDate(0, 0, -back), nil
	}
	if m := lastPattern.FindStringSubmatch(e); m != nil {
		if m[1] == "week" {
			return today.AddDate(0, 0, -7), nil
		}
		if wd, ok := weekdays[m[1]]; ok {
			back := (int(today.Weekday()) - int(wd) + 7) % 7
			if back == 0 {
				back = 7
			}
			return today.AddDate(0, 0, -back), nil
		}
	}
	if m := agoPattern.FindStringSubmatch(e); m != nil {
		n, err := days(m[1], m[2])
		if err != nil {
			return time.Time{}, errs.Wrap(errs.InvalidDate, "resolve date", expr, err)
		}
		return today.AddDate(0, 0, -n), nil
	}
	if m := inPattern.FindStringSubmatch(e); m != nil {
		n, err := days(m[1], m[2])
		if err != nil {
			return time.Time{}, errs.Wrap(errs.InvalidDate, "resolve date", expr, err)
		}
		return today.AddDate(0, 0, n), nil
	}

	return time.Time{}, errs.New(errs.InvalidDate, "resolve date", expr)
}

// maxOffsetDays bounds relative expressions to about a century.
const maxOffsetDays = 36600

func days(n, unit string) (int, error) {
	v, err := strconv.Atoi(n)
	if err != nil {
		return 0, fmt.Errorf("offset %s: %w", n, err)
	}
	if strings.HasPrefix(unit, "week") {
		if v > maxOffsetDays/7 {
			return 0, fmt.Errorf("offset of %s weeks is too large", n)
		}
		return v * 7, nil
	}
	if v > maxOffsetDays {
		return 0, fmt.Errorf("offset of %s days is too large", n)
	}
	return v, nil
}

// RangeArgs are the four bound expressions accepted by ResolveRange. Earliest
// is the first known date, used as the start of an "until" range.
type RangeArgs struct {
	From     string
	To       string
	Since    string
	Until    string
	Earliest time.Time
}

// ResolveRange resolves query bounds into an inclusive Range.
func (r *Resolver) ResolveRange(a RangeArgs) (Range, error) {
	if a.From != "" && a.Since != "" {
		return Range{}, errs.New(errs.ConflictingRangeArguments, "resolve range", "from and since")
	}
	if a.To != "" && a.Until != "" {
		return Range{}, errs.New(errs.ConflictingRangeArguments, "resolve range", "to and until")
	}

	var rng Range
	var err error

	switch {
	case a.Since != "":
		if rng.From, err = r.Resolve(a.Since); err != nil {
			return Range{}, err
		}
		if a.To == "" && a.Until == "" {
			rng.To = r.Today()
		}
	case a.From != "":
		if rng.From, err = r.Resolve(a.From); err != nil {
			return Range{}, err
		}
	}

	switch {
	case a.Until != "":
		if rng.To, err = r.Resolve(a.Until); err != nil {
			return Range{}, err
		}
		if a.From == "" && a.Since == "" {
			rng.From = Truncate(a.Earliest)
		}
	case a.To != "":
		if rng.To, err = r.Resolve(a.To); err != nil {
			return Range{}, err
		}
	}

	if !rng.From.IsZero() && !rng.To.IsZero() && rng.From.After(rng.To) {
		return Range{}, errs.Newf(errs.InvalidDate, "resolve range", "%s is after %s", Format(rng.From), Format(rng.To))
	}
	return rng, nil
}
