package workspace

import (
	"sort"
	"sync"
	"time"

	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/errs"
	"github.com/sadopc/faff/internal/logger"
)

// unreadableLogs are logs the index was built without. Until each one reads
// again, results that depend on every log are refused.
type unreadableLogs struct {
	mu   sync.Mutex
	logs map[string]time.Time
}

func (u *unreadableLogs) add(d time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.logs == nil {
		u.logs = make(map[string]time.Time)
	}
	u.logs[datespec.Format(d)] = d
}

func (u *unreadableLogs) clear(d time.Time) {
	u.mu.Lock()
	delete(u.logs, datespec.Format(d))
	u.mu.Unlock()
}

func (u *unreadableLogs) reset() {
	u.mu.Lock()
	u.logs = nil
	u.mu.Unlock()
}

func (u *unreadableLogs) dates() []time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]time.Time, 0, len(u.logs))
	for _, d := range u.logs {
		out = append(out, d)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Before(out[b]) })
	return out
}

// checkLogsLocked fails with CorruptDocument, naming the date and the parse
// error, while a log left out of the index is still unreadable. Logs that
// read again, or have been removed, are indexed.
func (w *Workspace) checkLogsLocked(op string) error {
	for _, d := range w.unreadable.dates() {
		l, err := w.logs.Load(d)
		if err != nil {
			return errs.Wrap(errs.CorruptDocument, op, "log "+datespec.Format(d), err)
		}
		if l == nil {
			err = w.index.DeleteLog(d)
		} else {
			err = w.index.ReplaceLog(l)
		}
		if err != nil {
			return err
		}
		w.unreadable.clear(d)
		logger.Info("repaired log indexed", "date", datespec.Format(d))
	}
	return nil
}
