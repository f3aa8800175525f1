package timelog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sadopc/faff/internal/errs"
	"github.com/sadopc/faff/internal/fileutil"
)

const ext = ".yaml"

// Store keeps one document per date, named YYYY-MM-DD.yaml, in a directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the logs directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the document path for the calendar date of d.
func (s *Store) Path(d time.Time) string {
	return filepath.Join(s.dir, d.Format(dateLayout)+ext)
}

// Read returns the raw document for d, or nil when there is none.
func (s *Store) Read(d time.Time) ([]byte, error) {
	data, err := os.ReadFile(s.Path(d))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log: %w", err)
	}
	return data, nil
}

// Load returns the log for d, or nil when no document exists.
func (s *Store) Load(d time.Time) (*Log, error) {
	data, err := s.Read(d)
	if err != nil || data == nil {
		return nil, err
	}
	l, err := Decode(data)
	if err != nil {
		return nil, errs.Wrap(errs.CorruptDocument, "read log", s.Path(d), err)
	}
	if !l.Date.Equal(day(d)) {
		return nil, errs.Newf(errs.CorruptDocument, "read log", "%s: holds date %s", s.Path(d), l.Date.Format(dateLayout))
	}
	return l, nil
}

// Save writes l, or deletes its document when l has no sessions.
func (s *Store) Save(l *Log, describe Describer) error {
	if l.Empty() {
		err := os.Remove(s.Path(l.Date))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete log: %w", err)
		}
		return nil
	}
	data, err := Encode(l, describe)
	if err != nil {
		return err
	}
	return s.WriteRaw(l.Date, data)
}

// WriteRaw replaces the document for d with data.
func (s *Store) WriteRaw(d time.Time, data []byte) error {
	if err := fileutil.WriteAtomic(s.Path(d), data, 0o644); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// Remove deletes the document for d. It returns NotFound when there is none.
func (s *Store) Remove(d time.Time) error {
	err := os.Remove(s.Path(d))
	if os.IsNotExist(err) {
		return errs.New(errs.NotFound, "remove log", d.Format(dateLayout))
	}
	if err != nil {
		return fmt.Errorf("remove log: %w", err)
	}
	return nil
}

// Dates lists the dates that have a document, ascending.
func (s *Store) Dates() ([]time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list logs: %w", err)
	}
	var dates []time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		d, err := time.Parse(dateLayout, strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })
	return dates, nil
}
