// Package timelog models the per-date activity log: an ordered timeline of
// sessions, each attributing a span of time to an intent.
package timelog

import (
	"strings"
	"time"

	"github.com/sadopc/faff/internal/errs"
)

// Reflection scores are 1 (poor) to 5 (great).
const (
	MinReflection = 1
	MaxReflection = 5
)

// Session is one span of work on an intent. A nil End means the session is
// still running.
type Session struct {
	IntentID   string
	Start      time.Time
	End        *time.Time
	Note       string
	Reflection *int
}

// Active reports whether the session is still running.
func (s Session) Active() bool { return s.End == nil }

// Duration returns End-Start, or now-Start for a running session.
func (s Session) Duration(now time.Time) time.Duration {
	end := now
	if s.End != nil {
		end = *s.End
	}
	if end.Before(s.Start) {
		return 0
	}
	return end.Sub(s.Start)
}

// Stopped returns a copy of s ended at t.
func (s Session) Stopped(t time.Time, reflection *int) Session {
	out := s.clone()
	out.End = &t
	if reflection != nil {
		r := *reflection
		out.Reflection = &r
	}
	return out
}

func (s Session) clone() Session {
	out := s
	if s.End != nil {
		e := *s.End
		out.End = &e
	}
	if s.Reflection != nil {
		r := *s.Reflection
		out.Reflection = &r
	}
	return out
}

// CheckReflection returns InvalidLogState for scores outside 1..5.
func CheckReflection(r int) error {
	if r < MinReflection || r > MaxReflection {
		return errs.Newf(errs.InvalidLogState, "check reflection", "%d is outside %d..%d", r, MinReflection, MaxReflection)
	}
	return nil
}

// Log is the timeline of one calendar date. Date is midnight UTC of that
// date; Location is the zone the date is interpreted in.
type Log struct {
	Date     time.Time
	Location *time.Location
	Sessions []Session
}

// New returns an empty log for the calendar date of d.
func New(d time.Time, loc *time.Location) *Log {
	if loc == nil {
		loc = time.UTC
	}
	return &Log{Date: day(d), Location: loc}
}

// DateOf returns the calendar date t falls on in loc, as midnight UTC.
func DateOf(t time.Time, loc *time.Location) time.Time {
	return day(t.In(loc))
}

// Clone returns a deep copy.
func (l *Log) Clone() *Log {
	out := &Log{Date: l.Date, Location: l.Location, Sessions: make([]Session, len(l.Sessions))}
	for k, s := range l.Sessions {
		out.Sessions[k] = s.clone()
	}
	return out
}

// Empty reports whether the log has no sessions.
func (l *Log) Empty() bool { return len(l.Sessions) == 0 }

// Active returns the index of the running session, or -1.
func (l *Log) Active() int {
	for k, s := range l.Sessions {
		if s.Active() {
			return k
		}
	}
	return -1
}

// ActiveCount returns how many sessions are running.
func (l *Log) ActiveCount() int {
	n := 0
	for _, s := range l.Sessions {
		if s.Active() {
			n++
		}
	}
	return n
}

// Append adds s at the end of the timeline.
func (l *Log) Append(s Session) {
	l.Sessions = append(l.Sessions, s.clone())
}

// Total sums session durations, counting running sessions up to now.
func (l *Log) Total(now time.Time) time.Duration {
	var total time.Duration
	for _, s := range l.Sessions {
		total += s.Duration(now)
	}
	return total
}

// Validate checks the timeline: every session names an intent, starts on the
// log's date, ends no earlier than it starts and carries a valid reflection;
// starts are non-decreasing; at most one session runs and only as the last
// entry.
func (l *Log) Validate() error {
	date := l.Date.Format("2006-01-02")
	if l.Location == nil {
		return errs.Newf(errs.InvalidLogState, "validate log", "%s: missing timezone", date)
	}
	for k, s := range l.Sessions {
		if strings.TrimSpace(s.IntentID) == "" {
			return errs.Newf(errs.InvalidLogState, "validate log", "%s: session %d has no intent", date, k+1)
		}
		if !DateOf(s.Start, l.Location).Equal(l.Date) {
			return errs.Newf(errs.InvalidLogState, "validate log", "%s: session %d starts on another date", date, k+1)
		}
		if s.End != nil && s.End.Before(s.Start) {
			return errs.Newf(errs.InvalidLogState, "validate log", "%s: session %d ends before it starts", date, k+1)
		}
		if s.Reflection != nil {
			if err := CheckReflection(*s.Reflection); err != nil {
				return errs.Wrap(errs.InvalidLogState, "validate log", date, err)
			}
		}
		if k > 0 && s.Start.Before(l.Sessions[k-1].Start) {
			return errs.Newf(errs.InvalidLogState, "validate log", "%s: session %d starts before the previous one", date, k+1)
		}
		if s.Active() && k != len(l.Sessions)-1 {
			return errs.Newf(errs.InvalidLogState, "validate log", "%s: session %d is running but not last", date, k+1)
		}
	}
	return nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
