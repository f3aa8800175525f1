package workspace

import (
	"bytes"
	"time"

	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/errs"
	"github.com/sadopc/faff/internal/intent"
	"github.com/sadopc/faff/internal/logger"
	"github.com/sadopc/faff/internal/timelog"
)

// Active is the running session and where it lives.
type Active struct {
	Date    time.Time
	Session timelog.Session
	Intent  intent.Intent
}

// Status is a snapshot of the state machine.
type Status struct {
	Now    time.Time
	Active *Active
	// Today is the time logged on the current date, including the running
	// session.
	Today time.Duration
}

// RefreshResult reports what a refresh rewrote.
type RefreshResult struct {
	Date    time.Time
	Changed bool
	// Diff is a line diff from the old document to the canonical one.
	Diff string
}

// Start begins a session on intentID. With a session already running it
// fails with SessionAlreadyActive, unless sessions.switch_on_start is set, in
// which case the running session is stopped first.
func (w *Workspace) Start(intentID, note string) (*timelog.Session, error) {
	unlock, err := w.lock.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := w.checkLogsLocked("start session"); err != nil {
		return nil, err
	}

	i, _, err := w.plans.Find(intentID)
	if err != nil {
		return nil, err
	}
	if _, isTemplate := intent.TemplateOf(i); isTemplate {
		return nil, errs.Newf(errs.InvalidIntent, "start session", "%s is a template; resolve it first", intentID)
	}

	describe, err := w.describer()
	if err != nil {
		return nil, err
	}

	now := w.Now()
	running, err := w.index.ActiveSession()
	if err != nil {
		return nil, err
	}
	// With the switch policy the stop is prepared here and written only once
	// the new session's log has passed validation.
	var stopped *timelog.Log
	if running != nil {
		if !w.cfg.Sessions.SwitchOnStart {
			return nil, errs.Newf(errs.SessionAlreadyActive, "start session", "%s since %s", running.IntentID, running.Start.In(w.loc).Format("15:04"))
		}
		if stopped, _, err = w.prepareStopLocked(now, nil); err != nil {
			return nil, err
		}
	}

	today := timelog.DateOf(now, w.loc)
	var l *timelog.Log
	if stopped != nil && stopped.Date.Equal(today) {
		l = stopped.Clone()
	} else {
		if l, err = w.logs.Load(today); err != nil {
			return nil, err
		}
		if l == nil {
			l = timelog.New(today, w.loc)
		} else {
			l = l.Clone()
		}
	}
	s := timelog.Session{IntentID: intentID, Start: now, Note: note}
	l.Append(s)
	if err := l.Validate(); err != nil {
		return nil, err
	}

	if stopped != nil && !stopped.Date.Equal(today) {
		if err := w.commitLocked(stopped, describe); err != nil {
			return nil, err
		}
	}
	if err := w.commitLocked(l, describe); err != nil {
		return nil, err
	}
	if running != nil {
		logger.Info("session stopped", "intent", running.IntentID, "switching_to", intentID)
	}
	logger.Info("session started", "intent", intentID, "at", now.Format("15:04:05"))
	return &s, nil
}

// Stop ends the running session, recording reflection when given.
func (w *Workspace) Stop(reflection *int) (*timelog.Session, error) {
	unlock, err := w.lock.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := w.checkLogsLocked("stop session"); err != nil {
		return nil, err
	}

	describe, err := w.describer()
	if err != nil {
		return nil, err
	}
	return w.stopLocked(w.Now(), reflection, describe)
}

func (w *Workspace) stopLocked(now time.Time, reflection *int, describe timelog.Describer) (*timelog.Session, error) {
	l, k, err := w.prepareStopLocked(now, reflection)
	if err != nil {
		return nil, err
	}
	if err := w.commitLocked(l, describe); err != nil {
		return nil, err
	}

	stopped := l.Sessions[k]
	logger.Info("session stopped", "intent", stopped.IntentID, "duration", timelog.FormatDuration(stopped.Duration(*stopped.End)))
	return &stopped, nil
}

// prepareStopLocked returns a copy of the running session's log with that
// session, at index k, ended at now. Nothing is written.
func (w *Workspace) prepareStopLocked(now time.Time, reflection *int) (l *timelog.Log, k int, err error) {
	running, err := w.index.ActiveSession()
	if err != nil {
		return nil, 0, err
	}
	if running == nil {
		return nil, 0, errs.New(errs.NoActiveSession, "stop session", "")
	}
	if reflection != nil {
		if err := timelog.CheckReflection(*reflection); err != nil {
			return nil, 0, err
		}
	}

	if l, err = w.logs.Load(running.Date); err != nil {
		return nil, 0, err
	}
	k = -1
	if l != nil {
		k = l.Active()
	}
	if k < 0 {
		// The document changed behind the index.
		if err := w.rebuild(); err != nil {
			return nil, 0, err
		}
		return nil, 0, errs.New(errs.NoActiveSession, "stop session", "")
	}

	l = l.Clone()
	end := now
	if end.Before(l.Sessions[k].Start) {
		end = l.Sessions[k].Start
	}
	l.Sessions[k] = l.Sessions[k].Stopped(end, reflection)
	return l, k, nil
}

// commitLocked validates l against its own invariants and the ledger-wide
// single running session, then writes the document and its index rows.
func (w *Workspace) commitLocked(l *timelog.Log, describe timelog.Describer) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if n := l.ActiveCount(); n > 0 {
		others, err := w.index.ActiveSessions()
		if err != nil {
			return err
		}
		for _, o := range others {
			if !o.Date.Equal(l.Date) {
				return errs.Newf(errs.InvalidLogState, "save log", "%s: %s is already running on %s",
					datespec.Format(l.Date), o.IntentID, datespec.Format(o.Date))
			}
		}
	}

	if err := w.logs.Save(l, describe); err != nil {
		return err
	}
	w.unreadable.clear(l.Date)
	if l.Empty() {
		return w.index.DeleteLog(l.Date)
	}
	return w.index.ReplaceLog(l)
}

// Edit applies mutate to a copy of the log for date. The result must keep
// every invariant or nothing is written and InvalidLogState is returned.
func (w *Workspace) Edit(date time.Time, mutate func(l *timelog.Log) error) (*timelog.Log, error) {
	unlock, err := w.lock.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	date = datespec.Truncate(date)
	l, err := w.logs.Load(date)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, errs.New(errs.NotFound, "edit log", datespec.Format(date))
	}

	edited := l.Clone()
	if err := mutate(edited); err != nil {
		return nil, err
	}
	if !edited.Date.Equal(date) {
		return nil, errs.Newf(errs.InvalidLogState, "edit log", "%s: date cannot change", datespec.Format(date))
	}
	describe, err := w.describer()
	if err != nil {
		return nil, err
	}
	if err := w.commitLocked(edited, describe); err != nil {
		return nil, err
	}
	logger.Debug("log edited", "date", datespec.Format(date), "sessions", len(edited.Sessions))
	return edited, nil
}

// SaveLog writes l as the log for its date, under the same checks as Edit.
// Saving a log without sessions deletes the document.
func (w *Workspace) SaveLog(l *timelog.Log) error {
	unlock, err := w.lock.lock()
	if err != nil {
		return err
	}
	defer unlock()

	describe, err := w.describer()
	if err != nil {
		return err
	}
	return w.commitLocked(l.Clone(), describe)
}

// GetLog returns the log for date, or nil when there is none.
func (w *Workspace) GetLog(date time.Time) (*timelog.Log, error) {
	unlock, err := w.lock.rlock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return w.logs.Load(datespec.Truncate(date))
}

// ReadLog returns the document for date as stored, or nil when there is none.
func (w *Workspace) ReadLog(date time.Time) ([]byte, error) {
	unlock, err := w.lock.rlock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return w.logs.Read(datespec.Truncate(date))
}

// LogPath returns where the log for date is stored.
func (w *Workspace) LogPath(date time.Time) string {
	return w.logs.Path(datespec.Truncate(date))
}

// ListLogDates lists the dates that have a log, within rng when given.
func (w *Workspace) ListLogDates(rng *datespec.Range) ([]time.Time, error) {
	unlock, err := w.lock.rlock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return w.listLogDates(rng)
}

func (w *Workspace) listLogDates(rng *datespec.Range) ([]time.Time, error) {
	dates, err := w.logs.Dates()
	if err != nil || rng == nil {
		return dates, err
	}
	out := dates[:0:0]
	for _, d := range dates {
		if rng.Contains(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Refresh rewrites the log for date in canonical form. Running it twice
// leaves the document byte for byte unchanged the second time.
func (w *Workspace) Refresh(date time.Time) (*RefreshResult, error) {
	unlock, err := w.lock.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	describe, err := w.describer()
	if err != nil {
		return nil, err
	}
	return w.refreshLocked(datespec.Truncate(date), describe)
}

func (w *Workspace) refreshLocked(date time.Time, describe timelog.Describer) (*RefreshResult, error) {
	raw, err := w.logs.Read(date)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errs.New(errs.NotFound, "refresh log", datespec.Format(date))
	}
	l, err := w.logs.Load(date)
	if err != nil {
		return nil, err
	}
	canonical, err := timelog.Encode(l, describe)
	if err != nil {
		return nil, err
	}

	res := &RefreshResult{Date: date, Changed: !bytes.Equal(raw, canonical)}
	if res.Changed {
		res.Diff = lineDiff(string(raw), string(canonical))
		if err := w.logs.WriteRaw(date, canonical); err != nil {
			return nil, err
		}
	}
	if err := w.index.ReplaceLog(l); err != nil {
		return nil, err
	}
	w.unreadable.clear(date)
	logger.Debug("log refreshed", "date", datespec.Format(date), "changed", res.Changed)
	return res, nil
}

// Remove deletes the log for date.
func (w *Workspace) Remove(date time.Time) error {
	unlock, err := w.lock.lock()
	if err != nil {
		return err
	}
	defer unlock()

	date = datespec.Truncate(date)
	if err := w.logs.Remove(date); err != nil {
		return err
	}
	w.unreadable.clear(date)
	logger.Info("log removed", "date", datespec.Format(date))
	return w.index.DeleteLog(date)
}

// Status reports the running session and today's logged time.
func (w *Workspace) Status() (*Status, error) {
	unlock, err := w.lock.rlock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := w.checkLogsLocked("status"); err != nil {
		return nil, err
	}

	now := w.Now()
	st := &Status{Now: now}
	total, err := w.index.DayTotal(timelog.DateOf(now, w.loc), now)
	if err != nil {
		return nil, err
	}
	st.Today = total

	running, err := w.index.ActiveSession()
	if err != nil || running == nil {
		return st, err
	}
	a := &Active{
		Date:    running.Date,
		Session: timelog.Session{IntentID: running.IntentID, Start: running.Start.In(w.loc), Note: running.Note},
		Intent:  intent.Intent{ID: running.IntentID},
	}
	if i, _, err := w.plans.Find(running.IntentID); err == nil {
		a.Intent = i
	}
	st.Active = a
	return st, nil
}
