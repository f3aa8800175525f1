package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sadopc/faff/internal/timelog"
)

const dateLayout = "2006-01-02"

func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertSessions(tx *sql.Tx, l *timelog.Log) error {
	date := l.Date.Format(dateLayout)
	for seq, sess := range l.Sessions {
		var end any
		var duration int64
		if sess.End != nil {
			end = sess.End.UTC().Format(time.RFC3339)
			duration = int64(sess.End.Sub(sess.Start).Seconds())
		}
		var reflection any
		if sess.Reflection != nil {
			reflection = *sess.Reflection
		}
		_, err := tx.Exec(
			`INSERT INTO sessions (date, seq, intent_id, start_time, end_time, duration, note, reflection)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			date, seq, sess.IntentID, sess.Start.UTC().Format(time.RFC3339), end, duration, sess.Note, reflection,
		)
		if err != nil {
			return fmt.Errorf("index session %s/%d: %w", date, seq, err)
		}
	}
	return nil
}

// ReplaceLog re-indexes every session of l.
func (s *Store) ReplaceLog(l *timelog.Log) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM sessions WHERE date = ?`, l.Date.Format(dateLayout)); err != nil {
			return fmt.Errorf("clear log index: %w", err)
		}
		return insertSessions(tx, l)
	})
}

// DeleteLog drops the sessions indexed for date.
func (s *Store) DeleteLog(date time.Time) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE date = ?`, date.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("delete log index: %w", err)
	}
	return nil
}

// RebuildSessions replaces the whole session index with logs.
func (s *Store) RebuildSessions(logs []*timelog.Log) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM sessions`); err != nil {
			return fmt.Errorf("clear session index: %w", err)
		}
		for _, l := range logs {
			if err := insertSessions(tx, l); err != nil {
				return err
			}
		}
		return nil
	})
}

const sessionColumns = `date, seq, intent_id, start_time, end_time, duration, note, reflection`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (SessionRow, error) {
	var r SessionRow
	var date, start string
	var end sql.NullString
	var reflection sql.NullInt64
	if err := row.Scan(&date, &r.Seq, &r.IntentID, &start, &end, &r.Duration, &r.Note, &reflection); err != nil {
		return r, err
	}
	r.Date, _ = time.Parse(dateLayout, date)
	r.Start, _ = time.Parse(time.RFC3339, start)
	if end.Valid {
		t, _ := time.Parse(time.RFC3339, end.String)
		r.End = &t
	}
	if reflection.Valid {
		v := int(reflection.Int64)
		r.Reflection = &v
	}
	return r, nil
}

// ActiveSessions returns every running session in the index.
func (s *Store) ActiveSessions() ([]SessionRow, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM sessions WHERE end_time IS NULL ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ActiveSession returns the running session, or nil when idle.
func (s *Store) ActiveSession() (*SessionRow, error) {
	row := s.db.QueryRow(`SELECT ` + sessionColumns + ` FROM sessions WHERE end_time IS NULL ORDER BY start_time DESC LIMIT 1`)
	r, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return &r, nil
}

// ListSessions returns indexed sessions in start order.
func (s *Store) ListSessions(f SessionFilter) ([]SessionRow, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`
	var args []any

	if f.IntentID != "" {
		query += ` AND intent_id = ?`
		args = append(args, f.IntentID)
	}
	if f.From != nil {
		query += ` AND date >= ?`
		args = append(args, f.From.Format(dateLayout))
	}
	if f.To != nil {
		query += ` AND date <= ?`
		args = append(args, f.To.Format(dateLayout))
	}
	query += ` ORDER BY start_time, date, seq`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DayTotal sums the time logged on date, counting a running session up to now.
func (s *Store) DayTotal(date, now time.Time) (time.Duration, error) {
	var closed int64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(duration), 0) FROM sessions WHERE date = ? AND end_time IS NOT NULL`,
		date.Format(dateLayout),
	).Scan(&closed)
	if err != nil {
		return 0, fmt.Errorf("day total: %w", err)
	}
	total := time.Duration(closed) * time.Second

	var start sql.NullString
	err = s.db.QueryRow(
		`SELECT start_time FROM sessions WHERE date = ? AND end_time IS NULL LIMIT 1`,
		date.Format(dateLayout),
	).Scan(&start)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("day total: %w", err)
	}
	if start.Valid {
		if t, perr := time.Parse(time.RFC3339, start.String); perr == nil && now.After(t) {
			total += now.Sub(t).Truncate(time.Second)
		}
	}
	return total, nil
}

// SessionUsage returns the count and closed duration of sessions per intent.
func (s *Store) SessionUsage() (map[string]Usage, error) {
	rows, err := s.db.Query(`
		SELECT intent_id, COUNT(*), COALESCE(SUM(duration), 0)
		FROM sessions
		GROUP BY intent_id`)
	if err != nil {
		return nil, fmt.Errorf("session usage: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Usage)
	for rows.Next() {
		var u Usage
		if err := rows.Scan(&u.IntentID, &u.Count, &u.Seconds); err != nil {
			return nil, err
		}
		out[u.IntentID] = u
	}
	return out, rows.Err()
}
