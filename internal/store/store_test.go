package store

import (
	"testing"
	"time"

	"github.com/sadopc/faff/internal/intent"
	"github.com/sadopc/faff/internal/timelog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func date(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func clock(d, hh, mm int) time.Time {
	return time.Date(2025, 1, d, hh, mm, 0, 0, time.UTC)
}

// span is a session on intent id starting at hour and lasting mins minutes.
// A negative length leaves the session running.
type span struct {
	id   string
	hour int
	mins int
}

// makeLog builds a log for January d.
func makeLog(d int, spans ...span) *timelog.Log {
	l := timelog.New(date(d), time.UTC)
	for _, sp := range spans {
		s := timelog.Session{IntentID: sp.id, Start: clock(d, sp.hour, 0)}
		if sp.mins >= 0 {
			end := s.Start.Add(time.Duration(sp.mins) * time.Minute)
			s.End = &end
		}
		l.Append(s)
	}
	return l
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != 1 {
		t.Fatalf("expected user_version 1, got %d", version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/index.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetMeta("k", "v"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen: should succeed, not re-migrate, and keep data.
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	v, err := s2.GetMeta("k")
	if err != nil {
		t.Fatal(err)
	}
	if v != "v" {
		t.Fatalf("expected persisted meta, got %q", v)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

// ============================================================
// Sessions
// ============================================================

func TestReplaceLogAndList(t *testing.T) {
	s := newTestStore(t)
	if err := s.ReplaceLog(makeLog(15, span{"a", 9, 60}, span{"b", 11, 30})); err != nil {
		t.Fatal(err)
	}

	rows, err := s.ListSessions(SessionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(rows))
	}
	if rows[0].IntentID != "a" || rows[0].Duration != 3600 || rows[0].Seq != 0 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if !rows[1].Date.Equal(date(15)) {
		t.Fatalf("unexpected date: %v", rows[1].Date)
	}

	// Replacing drops rows that are gone from the log.
	if err := s.ReplaceLog(makeLog(15, span{"a", 9, 60})); err != nil {
		t.Fatal(err)
	}
	rows, _ = s.ListSessions(SessionFilter{})
	if len(rows) != 1 {
		t.Fatalf("expected 1 session after replace, got %d", len(rows))
	}
}

func TestReplaceLogKeepsNoteAndReflection(t *testing.T) {
	s := newTestStore(t)
	l := makeLog(15, span{"a", 9, 60})
	r := 4
	l.Sessions[0].Note = "standup"
	l.Sessions[0].Reflection = &r
	if err := s.ReplaceLog(l); err != nil {
		t.Fatal(err)
	}
	rows, _ := s.ListSessions(SessionFilter{})
	if rows[0].Note != "standup" || rows[0].Reflection == nil || *rows[0].Reflection != 4 {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}

func TestListSessionsFilters(t *testing.T) {
	s := newTestStore(t)
	logs := []*timelog.Log{
		makeLog(10, span{"a", 9, 60}),
		makeLog(12, span{"b", 9, 60}, span{"a", 10, 60}),
		makeLog(14, span{"a", 9, 60}),
	}
	if err := s.RebuildSessions(logs); err != nil {
		t.Fatal(err)
	}

	from, to := date(11), date(14)
	rows, err := s.ListSessions(SessionFilter{From: &from, To: &to})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 sessions in range, got %d", len(rows))
	}

	rows, _ = s.ListSessions(SessionFilter{IntentID: "a"})
	if len(rows) != 3 {
		t.Fatalf("expected 3 sessions for a, got %d", len(rows))
	}

	rows, _ = s.ListSessions(SessionFilter{Limit: 2})
	if len(rows) != 2 {
		t.Fatalf("expected limit 2, got %d", len(rows))
	}
	if rows[0].Date.Day() != 10 {
		t.Fatalf("expected start order, got %v first", rows[0].Date)
	}
}

func TestActiveSession(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ActiveSession()
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected no active session")
	}

	if err := s.ReplaceLog(makeLog(14, span{"a", 9, -1})); err != nil {
		t.Fatal(err)
	}
	got, err = s.ActiveSession()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.IntentID != "a" || !got.Active() {
		t.Fatalf("unexpected active session: %+v", got)
	}
	if !got.Date.Equal(date(14)) {
		t.Fatalf("active session should report its own date, got %v", got.Date)
	}

	if err := s.DeleteLog(date(14)); err != nil {
		t.Fatal(err)
	}
	got, _ = s.ActiveSession()
	if got != nil {
		t.Fatal("expected no active session after delete")
	}
}

func TestActiveSessionsAcrossLogs(t *testing.T) {
	s := newTestStore(t)
	s.RebuildSessions([]*timelog.Log{
		makeLog(13, span{"a", 9, -1}),
		makeLog(14, span{"b", 9, -1}),
	})
	rows, err := s.ActiveSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 running sessions, got %d", len(rows))
	}
}

func TestDayTotal(t *testing.T) {
	s := newTestStore(t)
	s.ReplaceLog(makeLog(15, span{"a", 9, 90}, span{"b", 11, -1}))

	total, err := s.DayTotal(date(15), clock(15, 11, 30))
	if err != nil {
		t.Fatal(err)
	}
	if total != 2*time.Hour {
		t.Fatalf("expected 2h, got %v", total)
	}

	total, _ = s.DayTotal(date(16), clock(16, 12, 0))
	if total != 0 {
		t.Fatalf("expected empty day total 0, got %v", total)
	}
}

func TestSessionUsage(t *testing.T) {
	s := newTestStore(t)
	s.RebuildSessions([]*timelog.Log{
		makeLog(10, span{"a", 9, 60}, span{"b", 10, 30}),
		makeLog(11, span{"a", 9, 120}),
	})
	usage, err := s.SessionUsage()
	if err != nil {
		t.Fatal(err)
	}
	if u := usage["a"]; u.Count != 2 || u.Seconds != 3*3600 {
		t.Fatalf("unexpected usage for a: %+v", u)
	}
	if u := usage["b"]; u.Count != 1 || u.Seconds != 1800 {
		t.Fatalf("unexpected usage for b: %+v", u)
	}
}

// ============================================================
// Intents
// ============================================================

func TestFindByTuple(t *testing.T) {
	s := newTestStore(t)
	until := date(20)
	a := intent.Intent{ID: "local:a", Role: "eng", Objective: "ship", Action: "code", Subject: "api", ValidFrom: date(1), ValidUntil: &until}
	b := a
	b.ID, b.ValidFrom, b.ValidUntil = "local:b", date(10), nil
	other := intent.Intent{ID: "local:c", Role: "ops", ValidFrom: date(1)}

	if err := s.ReplaceIntents([]intent.Intent{a, b, other}); err != nil {
		t.Fatal(err)
	}

	ids, err := s.FindByTuple(a.Tuple(), date(15))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "local:b" {
		t.Fatalf("expected newest window first, got %v", ids)
	}

	ids, _ = s.FindByTuple(a.Tuple(), date(25))
	if len(ids) != 1 || ids[0] != "local:b" {
		t.Fatalf("expected expired intent excluded, got %v", ids)
	}

	ids, _ = s.FindByTuple(a.Tuple(), date(5))
	if len(ids) != 1 || ids[0] != "local:a" {
		t.Fatalf("expected future intent excluded, got %v", ids)
	}

	n, _ := s.IntentCount()
	if n != 3 {
		t.Fatalf("expected 3 intents, got %d", n)
	}
}

func TestPutIntentAndAlias(t *testing.T) {
	s := newTestStore(t)
	i := intent.Intent{ID: "local:a", Alias: "Admin", ValidFrom: date(1)}
	if err := s.PutIntent(i); err != nil {
		t.Fatal(err)
	}
	ids, err := s.FindByAlias("Admin", date(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected alias hit, got %v", ids)
	}

	i.Alias = "Paperwork"
	if err := s.PutIntent(i); err != nil {
		t.Fatal(err)
	}
	ids, _ = s.FindByAlias("Admin", date(2))
	if len(ids) != 0 {
		t.Fatalf("expected old alias gone, got %v", ids)
	}
	n, _ := s.IntentCount()
	if n != 1 {
		t.Fatalf("upsert should not duplicate, got %d rows", n)
	}
}

// ============================================================
// Meta
// ============================================================

func TestMeta(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMeta("missing")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Fatalf("expected empty value, got %q", v)
	}

	s.SetMeta("pull.jira", "2025-01-01")
	s.SetMeta("pull.myhours", "2025-01-02")
	s.SetMeta("pull.jira", "2025-01-03")
	s.SetMeta("rebuilt_at", "x")

	entries, err := s.ListMeta("pull.")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 pull entries, got %d", len(entries))
	}
	if entries[0].Key != "pull.jira" || entries[0].Value != "2025-01-03" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

// ============================================================
// Close / double-close safety
// ============================================================

func TestCloseStore(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
