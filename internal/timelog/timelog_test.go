package timelog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/faff/internal/errs"
)

func at(loc *time.Location, hh, mm int) time.Time {
	return time.Date(2025, 1, 15, hh, mm, 0, 0, loc)
}

func ptr[T any](v T) *T { return &v }

func sampleLog() *Log {
	l := New(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), time.UTC)
	l.Append(Session{IntentID: "local:admin", Start: at(time.UTC, 9, 0), End: ptr(at(time.UTC, 10, 30)), Note: "inbox", Reflection: ptr(4)})
	l.Append(Session{IntentID: "local:calls", Start: at(time.UTC, 11, 0)})
	return l
}

// ==================== Model ====================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(l *Log)
		ok     bool
	}{
		{"sample", func(*Log) {}, true},
		{"empty", func(l *Log) { l.Sessions = nil }, true},
		{"end before start", func(l *Log) { l.Sessions[0].End = ptr(at(time.UTC, 8, 0)) }, false},
		{"out of order", func(l *Log) { l.Sessions[1].Start = at(time.UTC, 8, 0) }, false},
		{"running not last", func(l *Log) { l.Sessions[0].End = nil }, false},
		{"missing intent", func(l *Log) { l.Sessions[0].IntentID = " " }, false},
		{"reflection too high", func(l *Log) { l.Sessions[0].Reflection = ptr(6) }, false},
		{"reflection zero", func(l *Log) { l.Sessions[0].Reflection = ptr(0) }, false},
		{"other date", func(l *Log) { l.Sessions[1].Start = at(time.UTC, 11, 0).AddDate(0, 0, 1) }, false},
		{"equal starts", func(l *Log) { l.Sessions[1].Start = at(time.UTC, 9, 0) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := sampleLog()
			tt.mutate(l)
			err := l.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.InvalidLogState), "got %v", err)
		})
	}
}

func TestActiveAndTotal(t *testing.T) {
	l := sampleLog()
	assert.Equal(t, 1, l.Active())
	assert.Equal(t, 1, l.ActiveCount())
	assert.Equal(t, 2*time.Hour, l.Total(at(time.UTC, 11, 30)))

	l.Sessions[1] = l.Sessions[1].Stopped(at(time.UTC, 12, 0), ptr(3))
	assert.Equal(t, -1, l.Active())
	assert.Equal(t, 2*time.Hour+30*time.Minute, l.Total(at(time.UTC, 18, 0)))
	assert.Equal(t, 3, *l.Sessions[1].Reflection)
}

func TestCloneIsDeep(t *testing.T) {
	l := sampleLog()
	c := l.Clone()
	*c.Sessions[0].End = at(time.UTC, 23, 0)
	c.Sessions[0].Note = "changed"
	assert.Equal(t, at(time.UTC, 10, 30), *l.Sessions[0].End)
	assert.Equal(t, "inbox", l.Sessions[0].Note)
}

func TestCheckReflection(t *testing.T) {
	for r := MinReflection; r <= MaxReflection; r++ {
		assert.NoError(t, CheckReflection(r))
	}
	assert.True(t, errors.Is(CheckReflection(0), errs.InvalidLogState))
	assert.True(t, errors.Is(CheckReflection(6), errs.InvalidLogState))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m", FormatDuration(30*time.Second))
	assert.Equal(t, "45m", FormatDuration(45*time.Minute))
	assert.Equal(t, "2h", FormatDuration(2*time.Hour))
	assert.Equal(t, "1h05m", FormatDuration(65*time.Minute))
}

// ==================== Codec ====================

func describe(id string) string {
	if id == "local:admin" {
		return "Admin"
	}
	return ""
}

func TestEncodeCanonical(t *testing.T) {
	data, err := Encode(sampleLog(), describe)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "faff log")
	assert.Contains(t, text, `version: "1.1"`)
	assert.Contains(t, text, "date: 2025-01-15")
	assert.Contains(t, text, "start: 2025-01-15T09:00:00")
	assert.Contains(t, text, "# Admin")
	assert.Contains(t, text, "# 1h30m")
	assert.Contains(t, text, "reflection: 4")
	assert.NotContains(t, text, "+00:00")

	decoded, err := Decode(data)
	require.NoError(t, err)
	again, err := Encode(decoded, describe)
	require.NoError(t, err)
	assert.Equal(t, text, string(again))
}

func TestDecodeIgnoresDerivedComments(t *testing.T) {
	doc := `version: "1.1"
date: 2025-01-15
timezone: UTC
timeline:
  - intent_id: local:b # Something stale
    start: 2025-01-15T13:00:00
  - intent_id: local:a
    start: 2025-01-15T09:00:00
    end: 2025-01-15T10:00:00 # 9h
`
	l, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, l.Sessions, 2)
	assert.Equal(t, "local:a", l.Sessions[0].IntentID, "timeline is re-ordered by start")
	assert.Equal(t, time.Hour, l.Sessions[0].Duration(time.Time{}))
	assert.True(t, l.Sessions[1].Active())
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]string{
		"newer version": "version: \"2.0\"\ndate: 2025-01-15\n",
		"missing date":  "version: \"1.1\"\n",
		"bad timezone":  "date: 2025-01-15\ntimezone: Mars/Olympus\n",
		"bad start":     "date: 2025-01-15\ntimeline:\n  - intent_id: a\n    start: noon\n",
		"two running":   "date: 2025-01-15\ntimeline:\n  - intent_id: a\n    start: 2025-01-15T09:00:00\n  - intent_id: b\n    start: 2025-01-15T10:00:00\n",
		"not yaml":      "date: [",
		"unknown key":   "date: 2025-01-15\ntimeline:\n  - intent_id: a\n    start: 2025-01-15T09:00:00\n    notes: typo\n",
		"unknown top":   "date: 2025-01-15\nzone: UTC\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestEncodeZoneTransitionDay(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	// Clocks go forward at 01:00 GMT on 2025-03-30.
	l := New(time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC), london)
	l.Append(Session{IntentID: "a", Start: time.Date(2025, 3, 30, 0, 30, 0, 0, london), End: ptr(time.Date(2025, 3, 30, 3, 0, 0, 0, london))})

	data, err := Encode(l, nil)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "2025-03-30T00:30:00+00:00")
	assert.Contains(t, text, "2025-03-30T03:00:00+01:00")
	assert.Contains(t, text, "# 1h30m")

	back, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, back.Sessions[0].Start.Equal(l.Sessions[0].Start))
	assert.Equal(t, 90*time.Minute, back.Sessions[0].Duration(time.Time{}))

	again, err := Encode(back, nil)
	require.NoError(t, err)
	assert.Equal(t, text, string(again))
}

// ==================== Store ====================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "logs"))
}

func TestStoreSaveLoad(t *testing.T) {
	s := newTestStore(t)
	d := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	missing, err := s.Load(d)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Save(sampleLog(), describe))
	l, err := s.Load(d)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Len(t, l.Sessions, 2)

	second := New(time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), time.UTC)
	second.Append(Session{IntentID: "x", Start: time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC)})
	second.Sessions[0] = second.Sessions[0].Stopped(time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC), nil)
	require.NoError(t, s.Save(second, nil))

	dates, err := s.Dates()
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "2025-01-03", dates[0].Format("2006-01-02"))

	l.Sessions = nil
	require.NoError(t, s.Save(l, nil))
	_, err = os.Stat(s.Path(d))
	assert.True(t, os.IsNotExist(err), "saving an empty log deletes it")
}

func TestStoreRemove(t *testing.T) {
	s := newTestStore(t)
	d := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	err := s.Remove(d)
	assert.True(t, errors.Is(err, errs.NotFound))

	require.NoError(t, s.Save(sampleLog(), nil))
	require.NoError(t, s.Remove(d))
	dates, err := s.Dates()
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestStoreCorruptDocument(t *testing.T) {
	s := newTestStore(t)
	d := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.WriteRaw(d, []byte("date: 2025-01-16\n")))

	_, err := s.Load(d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.CorruptDocument))
	assert.True(t, strings.Contains(err.Error(), "2025-01-15.yaml"))
}

func TestStoreRejectsUnknownKeys(t *testing.T) {
	s := newTestStore(t)
	d := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	doc := "date: 2025-01-15\ntimeline:\n  - intent_id: a\n    start: 2025-01-15T09:00:00\n    end: 2025-01-15T10:00:00\n    notes: typo\n"
	require.NoError(t, s.WriteRaw(d, []byte(doc)))

	_, err := s.Load(d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.CorruptDocument))
	assert.Contains(t, err.Error(), "notes")
}

func TestDecodeEmptyDocument(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing date")
}
