// Package intent models ROAST work descriptors: who (role), why (objective),
// what (action), for what (subject) and where it is tracked (tracker).
package intent

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/faff/internal/errs"
)

// Field names a descriptor axis or attribute that filters and groupings can
// refer to.
type Field string

const (
	FieldID          Field = "id"
	FieldAlias       Field = "alias"
	FieldRole        Field = "role"
	FieldObjective   Field = "objective"
	FieldAction      Field = "action"
	FieldSubject     Field = "subject"
	FieldTracker     Field = "tracker"
	FieldDerivedFrom Field = "derived_from"
)

// Axes are the four ROAST axes that a template may leave blank.
var Axes = []Field{FieldRole, FieldObjective, FieldAction, FieldSubject}

// Fields lists every field an Intent exposes.
var Fields = []Field{FieldID, FieldAlias, FieldRole, FieldObjective, FieldAction, FieldSubject, FieldTracker, FieldDerivedFrom}

// LocalPrefix marks intents created in this ledger rather than pulled from a remote.
const LocalPrefix = "local:"

// Intent is a uniquely identified descriptor of a category of work.
type Intent struct {
	ID        string
	Alias     string
	Role      string
	Objective string
	Action    string
	Subject   string
	// Trackers holds external work-item references. Only the first one is
	// interpreted as the tracker axis.
	Trackers    []string
	ValidFrom   time.Time
	ValidUntil  *time.Time
	DerivedFrom string
}

// NewID returns a fresh local intent id.
func NewID() string {
	return LocalPrefix + uuid.NewString()
}

// IsLocal reports whether the intent was created in this ledger.
func (i Intent) IsLocal() bool {
	return strings.HasPrefix(i.ID, LocalPrefix)
}

// Tracker returns the primary tracker reference or "".
func (i Intent) Tracker() string {
	if len(i.Trackers) == 0 {
		return ""
	}
	return i.Trackers[0]
}

// EffectiveOn reports whether d is inside the validity window.
func (i Intent) EffectiveOn(d time.Time) bool {
	d = truncate(d)
	if !i.ValidFrom.IsZero() && d.Before(truncate(i.ValidFrom)) {
		return false
	}
	if i.ValidUntil != nil && d.After(truncate(*i.ValidUntil)) {
		return false
	}
	return true
}

// Field returns the value of name. ok is false for names an intent does not have.
func (i Intent) Field(name Field) (value string, ok bool) {
	switch name {
	case FieldID:
		return i.ID, true
	case FieldAlias:
		return i.Alias, true
	case FieldRole:
		return i.Role, true
	case FieldObjective:
		return i.Objective, true
	case FieldAction:
		return i.Action, true
	case FieldSubject:
		return i.Subject, true
	case FieldTracker:
		return i.Tracker(), true
	case FieldDerivedFrom:
		return i.DerivedFrom, true
	}
	return "", false
}

// With returns a copy of i with name set to value.
func (i Intent) With(name Field, value string) (Intent, error) {
	out := i.clone()
	switch name {
	case FieldAlias:
		out.Alias = value
	case FieldRole:
		out.Role = value
	case FieldObjective:
		out.Objective = value
	case FieldAction:
		out.Action = value
	case FieldSubject:
		out.Subject = value
	case FieldTracker:
		if value == "" {
			out.Trackers = nil
		} else if len(out.Trackers) == 0 {
			out.Trackers = []string{value}
		} else {
			out.Trackers[0] = value
		}
	default:
		return Intent{}, errs.New(errs.UnknownField, "set intent field", string(name))
	}
	return out, nil
}

func (i Intent) clone() Intent {
	out := i
	if i.Trackers != nil {
		out.Trackers = append([]string(nil), i.Trackers...)
	}
	if i.ValidUntil != nil {
		u := *i.ValidUntil
		out.ValidUntil = &u
	}
	return out
}

// Validate checks the window ordering and that at most one axis is blank.
func (i Intent) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return errs.New(errs.InvalidIntent, "validate intent", "missing id")
	}
	if i.ValidUntil != nil && !i.ValidFrom.IsZero() && truncate(*i.ValidUntil).Before(truncate(i.ValidFrom)) {
		return errs.Newf(errs.InvalidIntent, "validate intent", "%s: valid_until before valid_from", i.ID)
	}
	blanks := 0
	for _, f := range Axes {
		if v, _ := i.Field(f); v == BlankMarker {
			blanks++
		}
	}
	if blanks > 1 {
		return errs.Newf(errs.InvalidIntent, "validate intent", "%s: more than one blank axis", i.ID)
	}
	return nil
}

// ROAST is the resolved descriptor tuple used to detect equivalent intents.
type ROAST struct {
	Role      string
	Objective string
	Action    string
	Subject   string
	Tracker   string
}

// Tuple returns the ROAST tuple of i.
func (i Intent) Tuple() ROAST {
	return ROAST{Role: i.Role, Objective: i.Objective, Action: i.Action, Subject: i.Subject, Tracker: i.Tracker()}
}

// Key is a stable string form of the tuple, suitable as an index key.
func (r ROAST) Key() string {
	return strings.Join([]string{r.Role, r.Objective, r.Action, r.Subject, r.Tracker}, "\x1f")
}

// DisplayName is the alias when set, otherwise a readable ROAST summary.
func (i Intent) DisplayName() string {
	if i.Alias != "" {
		return i.Alias
	}
	var parts []string
	for _, v := range []string{i.Role, i.Action, i.Objective, i.Subject} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return i.ID
	}
	return strings.Join(parts, " / ")
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
