// Package errs defines the error kinds surfaced by the faff core.
package errs

import (
	"errors"
	"fmt"
)

// Kinds. Compare with errors.Is.
var (
	NotFound                  = errors.New("not found")
	InvalidDate               = errors.New("invalid date")
	ConflictingRangeArguments = errors.New("conflicting range arguments")
	MalformedFilter           = errors.New("malformed filter")
	UnknownField              = errors.New("unknown field")
	SessionAlreadyActive      = errors.New("session already active")
	NoActiveSession           = errors.New("no active session")
	InvalidLogState           = errors.New("invalid log state")
	DuplicateAlias            = errors.New("duplicate alias")
	InvalidIntent             = errors.New("invalid intent")
	CorruptDocument           = errors.New("corrupt document")
)

// Error carries a kind plus the operation and subject (date, id, path) it
// relates to. Err is the underlying cause, if any.
type Error struct {
	Kind    error
	Op      string
	Subject string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Subject != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Subject)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an Error of kind about subject.
func New(kind error, op, subject string) error {
	return &Error{Kind: kind, Op: op, Subject: subject}
}

// Newf is New with a formatted subject.
func Newf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Subject: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to cause.
func Wrap(kind error, op, subject string, cause error) error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: cause}
}

// KindOf returns the kind of err, or nil when err carries none.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range []error{
		NotFound, InvalidDate, ConflictingRangeArguments, MalformedFilter,
		UnknownField, SessionAlreadyActive, NoActiveSession, InvalidLogState,
		DuplicateAlias, InvalidIntent, CorruptDocument,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
