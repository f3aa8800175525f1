package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sadopc/faff/internal/intent"
)

// ReplaceIntents rebuilds the intent index from intents.
func (s *Store) ReplaceIntents(intents []intent.Intent) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM intents`); err != nil {
			return fmt.Errorf("clear intent index: %w", err)
		}
		for _, i := range intents {
			if err := upsertIntent(tx, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutIntent indexes i, replacing any row with the same id.
func (s *Store) PutIntent(i intent.Intent) error {
	return s.withTx(func(tx *sql.Tx) error { return upsertIntent(tx, i) })
}

func upsertIntent(tx *sql.Tx, i intent.Intent) error {
	var from string
	if !i.ValidFrom.IsZero() {
		from = i.ValidFrom.Format(dateLayout)
	}
	var until any
	if i.ValidUntil != nil {
		until = i.ValidUntil.Format(dateLayout)
	}
	_, err := tx.Exec(
		`INSERT INTO intents (id, roast_key, alias, valid_from, valid_until) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			roast_key = excluded.roast_key, alias = excluded.alias,
			valid_from = excluded.valid_from, valid_until = excluded.valid_until`,
		i.ID, i.Tuple().Key(), i.Alias, from, until,
	)
	if err != nil {
		return fmt.Errorf("index intent %s: %w", i.ID, err)
	}
	return nil
}

// FindByTuple returns the ids of intents with the given ROAST tuple that are
// effective on d, newest window first.
func (s *Store) FindByTuple(t intent.ROAST, d time.Time) ([]string, error) {
	return s.effectiveIDs(`roast_key = ?`, t.Key(), d)
}

// FindByAlias returns the ids of intents aliased alias that are effective on d.
func (s *Store) FindByAlias(alias string, d time.Time) ([]string, error) {
	return s.effectiveIDs(`alias = ?`, alias, d)
}

func (s *Store) effectiveIDs(cond string, arg any, d time.Time) ([]string, error) {
	day := d.Format(dateLayout)
	rows, err := s.db.Query(
		`SELECT id FROM intents
		 WHERE `+cond+` AND valid_from <= ? AND (valid_until IS NULL OR valid_until >= ?)
		 ORDER BY valid_from DESC, id`,
		arg, day, day,
	)
	if err != nil {
		return nil, fmt.Errorf("find intents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IntentCount returns the number of indexed intents.
func (s *Store) IntentCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM intents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count intents: %w", err)
	}
	return n, nil
}
