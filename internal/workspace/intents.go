package workspace

import (
	"bytes"
	"sort"
	"strings"
	"time"

	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/errs"
	"github.com/sadopc/faff/internal/intent"
	"github.com/sadopc/faff/internal/logger"
	"github.com/sadopc/faff/internal/timelog"
)

// NewIntent holds the descriptor for Create.
type NewIntent struct {
	Role      string
	Objective string
	Action    string
	Subject   string
	Alias     string
	Tracker   string
}

// ReplaceResult counts what ReplaceFieldValue rewrote.
type ReplaceResult struct {
	Intents int
	Logs    int
}

// UpdateResult reports an in-place intent edit.
type UpdateResult struct {
	Intent intent.Intent
	// Sessions counts the logged sessions that reference the intent.
	Sessions int
	// Logs counts the log documents rewritten to the new description.
	Logs int
}

// FieldValue is one distinct value of an intent field and how much it is used.
type FieldValue struct {
	Value    string
	Intents  int
	Sessions int
}

// replaceable lists the fields ReplaceFieldValue accepts.
var replaceable = []intent.Field{
	intent.FieldRole, intent.FieldObjective, intent.FieldAction, intent.FieldSubject, intent.FieldAlias,
}

// Create adds a local intent effective from today.
func (w *Workspace) Create(n NewIntent) (intent.Intent, error) {
	unlock, err := w.lock.lock()
	if err != nil {
		return intent.Intent{}, err
	}
	defer unlock()

	i := intent.Intent{
		ID:        intent.NewID(),
		Alias:     strings.TrimSpace(n.Alias),
		Role:      strings.TrimSpace(n.Role),
		Objective: strings.TrimSpace(n.Objective),
		Action:    strings.TrimSpace(n.Action),
		Subject:   strings.TrimSpace(n.Subject),
		ValidFrom: w.Today(),
	}
	if t := strings.TrimSpace(n.Tracker); t != "" {
		i.Trackers = []string{t}
	}
	if err := w.addLocked(i); err != nil {
		return intent.Intent{}, err
	}
	logger.Info("intent created", "id", i.ID, "name", i.DisplayName())
	return i, nil
}

// Derive copies parentID, applies overrides and stores the result as a new
// local intent derived from the parent. The parent is left untouched and its
// alias is not carried over.
func (w *Workspace) Derive(parentID string, overrides map[intent.Field]string) (intent.Intent, error) {
	unlock, err := w.lock.lock()
	if err != nil {
		return intent.Intent{}, err
	}
	defer unlock()

	parent, _, err := w.plans.Find(parentID)
	if err != nil {
		return intent.Intent{}, err
	}
	child, err := parent.With(intent.FieldAlias, "")
	if err != nil {
		return intent.Intent{}, err
	}
	for f, v := range overrides {
		if child, err = child.With(f, strings.TrimSpace(v)); err != nil {
			return intent.Intent{}, err
		}
	}

	child.ID = intent.NewID()
	child.DerivedFrom = parent.ID
	child.ValidFrom = w.Today()
	child.ValidUntil = nil
	if err := w.addLocked(child); err != nil {
		return intent.Intent{}, err
	}
	logger.Info("intent derived", "id", child.ID, "from", parent.ID)
	return child, nil
}

// UpdateIntent changes fields of a local intent in place, in every local
// plan that carries it, then rewrites the logs that describe it. Intents
// pulled from a remote source are owned by that source and fail with
// InvalidIntent.
func (w *Workspace) UpdateIntent(id string, overrides map[intent.Field]string) (*UpdateResult, error) {
	unlock, err := w.lock.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, _, err := w.plans.Find(id)
	if err != nil {
		return nil, err
	}
	if !cur.IsLocal() {
		return nil, errs.Newf(errs.InvalidIntent, "update intent", "%s belongs to a remote plan; derive a local copy instead", id)
	}
	apply := func(i intent.Intent) (intent.Intent, error) {
		for f, v := range overrides {
			next, err := i.With(f, strings.TrimSpace(v))
			if err != nil {
				return intent.Intent{}, err
			}
			i = next
		}
		return i, i.Validate()
	}
	preview, err := apply(cur)
	if err != nil {
		return nil, err
	}
	if preview.Alias != "" && preview.Alias != cur.Alias {
		if err := w.checkAliasLocked(preview.Alias, id); err != nil {
			return nil, err
		}
	}

	res := &UpdateResult{}
	if res.Intent, err = w.plans.UpdateIntent(id, apply); err != nil {
		return nil, err
	}
	if err := w.reindexIntents(); err != nil {
		return res, err
	}
	usage, err := w.index.SessionUsage()
	if err != nil {
		return res, err
	}
	res.Sessions = usage[id].Count
	if res.Sessions > 0 {
		if res.Logs, err = w.redescribeLogsLocked(); err != nil {
			return res, err
		}
	}
	logger.Info("intent updated", "id", id, "name", res.Intent.DisplayName(), "sessions", res.Sessions, "logs", res.Logs)
	return res, nil
}

// ResolveTemplate fills the blank axis of templateID with value. An intent
// with the resulting descriptor that is effective today is reused; otherwise
// a new one derived from the template is created.
func (w *Workspace) ResolveTemplate(templateID, value string) (i intent.Intent, reused bool, err error) {
	unlock, err := w.lock.lock()
	if err != nil {
		return intent.Intent{}, false, err
	}
	defer unlock()

	base, _, err := w.plans.Find(templateID)
	if err != nil {
		return intent.Intent{}, false, err
	}
	tmpl, ok := intent.TemplateOf(base)
	if !ok {
		return intent.Intent{}, false, errs.Newf(errs.InvalidIntent, "resolve template", "%s has no blank axis", templateID)
	}
	filled, err := tmpl.Fill(strings.TrimSpace(value))
	if err != nil {
		return intent.Intent{}, false, err
	}

	today := w.Today()
	ids, err := w.index.FindByTuple(filled.Tuple(), today)
	if err != nil {
		return intent.Intent{}, false, err
	}
	if len(ids) > 0 {
		existing, _, err := w.plans.Find(ids[0])
		if err != nil {
			return intent.Intent{}, false, err
		}
		return existing, true, nil
	}

	filled.ID = intent.NewID()
	filled.Alias = ""
	filled.DerivedFrom = templateID
	filled.ValidFrom = today
	filled.ValidUntil = nil
	if err := w.addLocked(filled); err != nil {
		return intent.Intent{}, false, err
	}
	logger.Info("template resolved", "id", filled.ID, "template", templateID, "value", value)
	return filled, false, nil
}

// addLocked validates i and appends it to today's local plan.
func (w *Workspace) addLocked(i intent.Intent) error {
	if err := i.Validate(); err != nil {
		return err
	}
	if err := w.checkAliasLocked(i.Alias, ""); err != nil {
		return err
	}
	p, err := w.plans.LocalPlan(i.ValidFrom)
	if err != nil {
		return err
	}
	p.Intents = append(p.Intents, i)
	if err := w.plans.Write(p); err != nil {
		return err
	}
	return w.index.PutIntent(i)
}

// checkAliasLocked fails with DuplicateAlias when an effective intent other
// than self already uses alias.
func (w *Workspace) checkAliasLocked(alias, self string) error {
	if alias == "" || !w.cfg.Intents.UniqueAliases {
		return nil
	}
	ids, err := w.index.FindByAlias(alias, w.Today())
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id != self {
			return errs.Newf(errs.DuplicateAlias, "check alias", "%q is used by %s", alias, id)
		}
	}
	return nil
}

// ReplaceFieldValue renames old to new for field across every plan, then
// rewrites the logs whose derived comments name an affected intent. There is
// no rollback: a failure part way leaves what was already written.
func (w *Workspace) ReplaceFieldValue(field intent.Field, old, new string) (*ReplaceResult, error) {
	ok := false
	for _, f := range replaceable {
		ok = ok || f == field
	}
	if !ok {
		return nil, errs.New(errs.UnknownField, "replace field value", string(field))
	}
	if old == "" || new == "" {
		return nil, errs.New(errs.InvalidIntent, "replace field value", "values must not be empty")
	}

	unlock, err := w.lock.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if field == intent.FieldAlias && old != new {
		if err := w.checkAliasLocked(new, ""); err != nil {
			return nil, err
		}
	}

	res := &ReplaceResult{}
	res.Intents, err = w.plans.ReplaceFieldValue(field, old, new)
	if err != nil {
		return res, err
	}
	if err := w.reindexIntents(); err != nil {
		return res, err
	}
	if res.Intents > 0 {
		if res.Logs, err = w.redescribeLogsLocked(); err != nil {
			return res, err
		}
	}
	logger.Info("field value replaced", "field", field, "old", old, "new", new, "intents", res.Intents, "logs", res.Logs)
	return res, nil
}

// redescribeLogsLocked re-encodes every readable log and writes those whose
// bytes differ, returning how many changed.
func (w *Workspace) redescribeLogsLocked() (int, error) {
	describe, err := w.describer()
	if err != nil {
		return 0, err
	}
	dates, err := w.logs.Dates()
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, d := range dates {
		raw, err := w.logs.Read(d)
		if err != nil {
			return changed, err
		}
		l, err := w.logs.Load(d)
		if err != nil {
			logger.Warn("skipping unreadable log", "date", datespec.Format(d), "err", err)
			continue
		}
		data, err := timelog.Encode(l, describe)
		if err != nil {
			return changed, err
		}
		if bytes.Equal(raw, data) {
			continue
		}
		if err := w.logs.WriteRaw(d, data); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// FieldValues lists the distinct values of field across all intents and plan
// vocabularies, with the number of intents and logged sessions using each.
func (w *Workspace) FieldValues(field intent.Field) ([]FieldValue, error) {
	if _, ok := (intent.Intent{}).Field(field); !ok || field == intent.FieldID || field == intent.FieldDerivedFrom {
		return nil, errs.New(errs.UnknownField, "list field values", string(field))
	}

	unlock, err := w.lock.rlock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := w.checkLogsLocked("list field values"); err != nil {
		return nil, err
	}

	all, err := w.plans.Intents(nil)
	if err != nil {
		return nil, err
	}
	usage, err := w.index.SessionUsage()
	if err != nil {
		return nil, err
	}

	byValue := make(map[string]*FieldValue)
	get := func(v string) *FieldValue {
		fv, ok := byValue[v]
		if !ok {
			fv = &FieldValue{Value: v}
			byValue[v] = fv
		}
		return fv
	}
	for _, i := range all {
		v, _ := i.Field(field)
		if v == "" || v == intent.BlankMarker {
			continue
		}
		fv := get(v)
		fv.Intents++
		fv.Sessions += usage[i.ID].Count
	}
	vocab, err := w.plans.Vocabulary(field, w.Today())
	if err != nil {
		return nil, err
	}
	for _, v := range vocab {
		get(v)
	}

	out := make([]FieldValue, 0, len(byValue))
	for _, fv := range byValue {
		out = append(out, *fv)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Value < out[b].Value })
	return out, nil
}

// GetIntent returns the intent with id.
func (w *Workspace) GetIntent(id string) (intent.Intent, error) {
	unlock, err := w.lock.rlock()
	if err != nil {
		return intent.Intent{}, err
	}
	defer unlock()

	i, _, err := w.plans.Find(id)
	return i, err
}

// ListIntents lists every known intent, or those effective on *on when on is
// set.
func (w *Workspace) ListIntents(on *time.Time) ([]intent.Intent, error) {
	unlock, err := w.lock.rlock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if on != nil {
		d := datespec.Truncate(*on)
		on = &d
	}
	return w.plans.Intents(on)
}
