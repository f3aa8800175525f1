// Package plan stores the intents made available by each plan source and
// resolves which of them are effective on a date.
package plan

import (
	"sort"
	"time"

	"github.com/sadopc/faff/internal/intent"
)

// LocalSource is the source name for intents created in this ledger.
const LocalSource = "local"

// Plan is the set of intents a source makes available from ValidFrom on.
type Plan struct {
	Source     string
	ValidFrom  time.Time
	ValidUntil *time.Time

	// Vocabulary offered by the source for new intents.
	Roles      []string
	Objectives []string
	Actions    []string
	Subjects   []string

	Intents []intent.Intent
}

// ValidOn reports whether the plan window covers d.
func (p *Plan) ValidOn(d time.Time) bool {
	d = day(d)
	if day(p.ValidFrom).After(d) {
		return false
	}
	if p.ValidUntil != nil && day(*p.ValidUntil).Before(d) {
		return false
	}
	return true
}

// Clone returns a deep copy with a new window start.
func (p *Plan) Clone(validFrom time.Time) *Plan {
	out := &Plan{
		Source:     p.Source,
		ValidFrom:  day(validFrom),
		Roles:      append([]string(nil), p.Roles...),
		Objectives: append([]string(nil), p.Objectives...),
		Actions:    append([]string(nil), p.Actions...),
		Subjects:   append([]string(nil), p.Subjects...),
		Intents:    append([]intent.Intent(nil), p.Intents...),
	}
	if p.ValidUntil != nil {
		u := *p.ValidUntil
		out.ValidUntil = &u
	}
	return out
}

// Vocabulary returns the plan-level list for an axis, or nil.
func (p *Plan) Vocabulary(f intent.Field) *[]string {
	switch f {
	case intent.FieldRole:
		return &p.Roles
	case intent.FieldObjective:
		return &p.Objectives
	case intent.FieldAction:
		return &p.Actions
	case intent.FieldSubject:
		return &p.Subjects
	}
	return nil
}

// Find returns the intent with id.
func (p *Plan) Find(id string) (intent.Intent, bool) {
	for _, i := range p.Intents {
		if i.ID == id {
			return i, true
		}
	}
	return intent.Intent{}, false
}

// Effective picks, per source, the plan with the latest ValidFrom that is
// valid on d.
func Effective(plans []*Plan, d time.Time) map[string]*Plan {
	out := make(map[string]*Plan)
	for _, p := range plans {
		if !p.ValidOn(d) {
			continue
		}
		cur, ok := out[p.Source]
		if !ok || cur.ValidFrom.Before(p.ValidFrom) {
			out[p.Source] = p
		}
	}
	return out
}

// Sources returns the keys of a plan map in alphabetical order.
func Sources(m map[string]*Plan) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
