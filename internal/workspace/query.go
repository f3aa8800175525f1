package workspace

import (
	"time"

	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/intent"
	"github.com/sadopc/faff/internal/logger"
	"github.com/sadopc/faff/internal/query"
	"github.com/sadopc/faff/internal/store"
)

// ResolveRange resolves range arguments against today, an "until" range
// starting at the first logged date.
func (w *Workspace) ResolveRange(a datespec.RangeArgs) (datespec.Range, error) {
	if a.Until != "" && a.Earliest.IsZero() {
		dates, err := w.ListLogDates(nil)
		if err != nil {
			return datespec.Range{}, err
		}
		if len(dates) > 0 {
			a.Earliest = dates[0]
		} else {
			a.Earliest = w.Today()
		}
	}
	return w.dates.ResolveRange(a)
}

// Query runs q over the records of kind.
func (w *Workspace) Query(kind query.Kind, q query.Query) (*query.Result, error) {
	if err := q.Check(kind); err != nil {
		return nil, err
	}

	unlock, err := w.lock.rlock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	if kind != query.Plans {
		if err := w.checkLogsLocked("query " + string(kind)); err != nil {
			return nil, err
		}
	}

	var records []query.Record
	switch kind {
	case query.Sessions:
		records, err = w.sessionRecords(q.Range)
	case query.Intents:
		records, err = w.intentRecords()
	case query.Logs:
		records, err = w.logRecords(q.Range)
	case query.Plans:
		records, err = w.planRecords()
	}
	if err != nil {
		return nil, err
	}

	res, err := query.Run(kind, records, q)
	if err != nil {
		return nil, err
	}
	logger.Debug("query", "kind", kind, "records", len(records), "groups", len(res.Groups))
	return res, nil
}

func (w *Workspace) sessionRecords(rng *datespec.Range) ([]query.Record, error) {
	var f store.SessionFilter
	if rng != nil {
		if !rng.From.IsZero() {
			f.From = &rng.From
		}
		if !rng.To.IsZero() {
			f.To = &rng.To
		}
	}
	rows, err := w.index.ListSessions(f)
	if err != nil {
		return nil, err
	}
	byID, err := w.intentsByID()
	if err != nil {
		return nil, err
	}

	now := w.Now()
	out := make([]query.Record, 0, len(rows))
	for _, r := range rows {
		i, ok := byID[r.IntentID]
		if !ok {
			i = intent.Intent{ID: r.IntentID}
		}
		rec := query.SessionRecord{
			Day:        r.Date,
			Start:      r.Start.In(w.loc),
			Note:       r.Note,
			Reflection: r.Reflection,
			Length:     time.Duration(r.Duration) * time.Second,
			Intent:     i,
		}
		if r.End != nil {
			end := r.End.In(w.loc)
			rec.End = &end
		} else if now.After(r.Start) {
			rec.Length = now.Sub(r.Start)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (w *Workspace) intentRecords() ([]query.Record, error) {
	all, err := w.plans.Intents(nil)
	if err != nil {
		return nil, err
	}
	usage, err := w.index.SessionUsage()
	if err != nil {
		return nil, err
	}
	out := make([]query.Record, 0, len(all))
	for _, i := range all {
		u := usage[i.ID]
		out = append(out, query.IntentRecord{
			Intent:   i,
			Sessions: u.Count,
			Logged:   time.Duration(u.Seconds) * time.Second,
		})
	}
	return out, nil
}

func (w *Workspace) logRecords(rng *datespec.Range) ([]query.Record, error) {
	dates, err := w.listLogDates(rng)
	if err != nil {
		return nil, err
	}
	now := w.Now()
	out := make([]query.Record, 0, len(dates))
	for _, d := range dates {
		l, err := w.logs.Load(d)
		if err != nil {
			return nil, err
		}
		if l == nil {
			continue
		}
		out = append(out, query.LogRecord{
			Day:      l.Date,
			Timezone: l.Location.String(),
			Count:    len(l.Sessions),
			Length:   l.Total(now),
		})
	}
	return out, nil
}

func (w *Workspace) planRecords() ([]query.Record, error) {
	plans, err := w.plans.All()
	if err != nil {
		return nil, err
	}
	out := make([]query.Record, 0, len(plans))
	for _, p := range plans {
		out = append(out, query.PlanRecord{Plan: p})
	}
	return out, nil
}
