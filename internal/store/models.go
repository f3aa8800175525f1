package store

import "time"

// SessionRow is the indexed copy of one timeline entry. Seq is its position
// in the log of Date.
type SessionRow struct {
	Date       time.Time
	Seq        int
	IntentID   string
	Start      time.Time
	End        *time.Time
	Duration   int64 // seconds, 0 while running
	Note       string
	Reflection *int
}

// Active reports whether the session is still running.
func (r SessionRow) Active() bool { return r.End == nil }

// Meta is an index bookkeeping entry.
type Meta struct {
	Key   string
	Value string
}

// SessionFilter is used to filter indexed sessions.
type SessionFilter struct {
	IntentID string
	From     *time.Time // inclusive date
	To       *time.Time // inclusive date
	Limit    int
}

// Usage is how much logged time an intent has.
type Usage struct {
	IntentID string
	Count    int
	Seconds  int64
}
