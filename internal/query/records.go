package query

import (
	"strconv"
	"time"

	"github.com/sadopc/faff/internal/errs"
	"github.com/sadopc/faff/internal/intent"
	"github.com/sadopc/faff/internal/plan"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02T15:04:05"
)

// Record is anything a query can run over.
type Record interface {
	// Field returns the named value and whether the record has that field.
	Field(name string) (string, bool)
	// Date returns the calendar date of a dated record.
	Date() (time.Time, bool)
	// Duration is the time the record contributes to its group.
	Duration() time.Duration
}

// Kind names a record type at the query boundary.
type Kind string

const (
	Sessions Kind = "sessions"
	Intents  Kind = "intents"
	Logs     Kind = "logs"
	Plans    Kind = "plans"
)

// Kinds lists every record kind.
var Kinds = []Kind{Sessions, Intents, Logs, Plans}

// ParseKind validates a record kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errs.Newf(errs.UnknownField, "parse kind", "record kind %q", s)
}

var kindFields = map[Kind][]string{
	Sessions: {"date", "intent_id", "alias", "role", "objective", "action", "subject", "tracker", "note", "reflection", "start", "end"},
	Intents:  {"id", "alias", "role", "objective", "action", "subject", "tracker", "derived_from", "valid_from", "valid_until"},
	Logs:     {"date", "weekday", "timezone", "sessions"},
	Plans:    {"source", "valid_from", "valid_until", "intents"},
}

// Fields lists the fields records of k expose.
func (k Kind) Fields() []string { return kindFields[k] }

// HasField reports whether records of k expose name.
func (k Kind) HasField(name string) bool {
	for _, f := range kindFields[k] {
		if f == name {
			return true
		}
	}
	return false
}

// Domain returns how groups of k are ordered when grouped by groupBy.
func (k Kind) Domain(groupBy []string) Domain {
	switch k {
	case Sessions:
		if len(groupBy) > 0 && groupBy[0] == "date" {
			return Chronological
		}
		return Usage
	case Intents:
		return Usage
	case Logs:
		return Chronological
	}
	return Alphabetical
}

// SessionRecord is a timeline entry joined with its intent.
type SessionRecord struct {
	Day        time.Time
	Start      time.Time
	End        *time.Time
	Note       string
	Reflection *int
	Length     time.Duration
	Intent     intent.Intent
}

func (r SessionRecord) Field(name string) (string, bool) {
	switch name {
	case "date":
		return r.Day.Format(dateLayout), true
	case "intent_id":
		return r.Intent.ID, true
	case "note":
		return r.Note, true
	case "reflection":
		if r.Reflection == nil {
			return "", true
		}
		return strconv.Itoa(*r.Reflection), true
	case "start":
		return r.Start.Format(timeLayout), true
	case "end":
		if r.End == nil {
			return "", true
		}
		return r.End.Format(timeLayout), true
	case string(intent.FieldID), string(intent.FieldDerivedFrom):
		return "", false
	}
	return r.Intent.Field(intent.Field(name))
}

func (r SessionRecord) Date() (time.Time, bool) { return r.Day, true }
func (r SessionRecord) Duration() time.Duration { return r.Length }

// IntentRecord is an intent with the time logged against it.
type IntentRecord struct {
	Intent   intent.Intent
	Sessions int
	Logged   time.Duration
}

func (r IntentRecord) Field(name string) (string, bool) {
	switch name {
	case "valid_from":
		if r.Intent.ValidFrom.IsZero() {
			return "", true
		}
		return r.Intent.ValidFrom.Format(dateLayout), true
	case "valid_until":
		if r.Intent.ValidUntil == nil {
			return "", true
		}
		return r.Intent.ValidUntil.Format(dateLayout), true
	}
	return r.Intent.Field(intent.Field(name))
}

func (r IntentRecord) Date() (time.Time, bool) { return time.Time{}, false }
func (r IntentRecord) Duration() time.Duration { return r.Logged }

// LogRecord summarises one date's log.
type LogRecord struct {
	Day      time.Time
	Timezone string
	Count    int
	Length   time.Duration
}

func (r LogRecord) Field(name string) (string, bool) {
	switch name {
	case "date":
		return r.Day.Format(dateLayout), true
	case "weekday":
		return r.Day.Weekday().String(), true
	case "timezone":
		return r.Timezone, true
	case "sessions":
		return strconv.Itoa(r.Count), true
	}
	return "", false
}

func (r LogRecord) Date() (time.Time, bool) { return r.Day, true }
func (r LogRecord) Duration() time.Duration { return r.Length }

// PlanRecord is one plan document.
type PlanRecord struct {
	Plan *plan.Plan
}

func (r PlanRecord) Field(name string) (string, bool) {
	switch name {
	case "source":
		return r.Plan.Source, true
	case "valid_from":
		return r.Plan.ValidFrom.Format(dateLayout), true
	case "valid_until":
		if r.Plan.ValidUntil == nil {
			return "", true
		}
		return r.Plan.ValidUntil.Format(dateLayout), true
	case "intents":
		return strconv.Itoa(len(r.Plan.Intents)), true
	}
	return "", false
}

func (r PlanRecord) Date() (time.Time, bool) { return r.Plan.ValidFrom, true }
func (r PlanRecord) Duration() time.Duration { return 0 }
