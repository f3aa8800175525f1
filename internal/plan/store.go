package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/stoewer/go-strcase"

	"github.com/sadopc/faff/internal/errs"
	"github.com/sadopc/faff/internal/fileutil"
	"github.com/sadopc/faff/internal/intent"
)

var filenamePattern = regexp.MustCompile(`^(.+?)\.(\d{8})\.yaml$`)

// Store reads and writes plan documents in a directory, one file per source
// and window start: <slug>.<YYYYMMDD>.yaml.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the plans directory.
func (s *Store) Dir() string { return s.dir }

// Filename returns the document name for a source and window start. Pulled
// sources are prefixed with "remote.".
func Filename(source string, validFrom time.Time) string {
	slug := strcase.KebabCase(source)
	if source != LocalSource {
		slug = "remote." + slug
	}
	return fmt.Sprintf("%s.%s.yaml", slug, validFrom.Format("20060102"))
}

// Path returns where p is stored.
func (s *Store) Path(p *Plan) string {
	return filepath.Join(s.dir, Filename(p.Source, p.ValidFrom))
}

// All loads every plan document, ordered by filename.
func (s *Store) All() ([]*Plan, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list plans: %w", err)
	}

	var plans []*Plan
	for _, e := range entries {
		if e.IsDir() || !filenamePattern.MatchString(e.Name()) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		p, err := s.load(path)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (s *Store) load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Decode(data)
	if err != nil {
		return nil, errs.Wrap(errs.CorruptDocument, "read plan", path, err)
	}
	return p, nil
}

// Effective returns the effective plan per source on d.
func (s *Store) Effective(d time.Time) (map[string]*Plan, error) {
	plans, err := s.All()
	if err != nil {
		return nil, err
	}
	return Effective(plans, d), nil
}

// Write stores p, replacing any document for the same source and window start.
func (s *Store) Write(p *Plan) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(s.Path(p), data, 0o644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

// Intents lists intents. With on == nil it returns every intent known to any
// plan, the latest plan winning for duplicated ids. Otherwise it returns the
// intents of the effective plans whose own window covers *on.
func (s *Store) Intents(on *time.Time) ([]intent.Intent, error) {
	plans, err := s.All()
	if err != nil {
		return nil, err
	}
	if on != nil {
		eff := Effective(plans, *on)
		plans = plans[:0:0]
		for _, src := range Sources(eff) {
			plans = append(plans, eff[src])
		}
	} else {
		sort.SliceStable(plans, func(a, b int) bool { return plans[a].ValidFrom.Before(plans[b].ValidFrom) })
	}

	byID := make(map[string]intent.Intent)
	var order []string
	for _, p := range plans {
		for _, i := range p.Intents {
			if on != nil && !i.EffectiveOn(*on) {
				continue
			}
			if _, seen := byID[i.ID]; !seen {
				order = append(order, i.ID)
			}
			byID[i.ID] = i
		}
	}
	out := make([]intent.Intent, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

// Find returns the intent with id and the latest plan that carries it.
func (s *Store) Find(id string) (intent.Intent, *Plan, error) {
	plans, err := s.All()
	if err != nil {
		return intent.Intent{}, nil, err
	}
	var (
		found intent.Intent
		owner *Plan
	)
	for _, p := range plans {
		if i, ok := p.Find(id); ok && (owner == nil || !p.ValidFrom.Before(owner.ValidFrom)) {
			found, owner = i, p
		}
	}
	if owner == nil {
		return intent.Intent{}, nil, errs.New(errs.NotFound, "find intent", id)
	}
	return found, owner, nil
}

// LocalPlan returns the local plan to amend on d: a copy of the effective
// local plan re-windowed to start on d, or an empty one.
func (s *Store) LocalPlan(d time.Time) (*Plan, error) {
	eff, err := s.Effective(d)
	if err != nil {
		return nil, err
	}
	if cur, ok := eff[LocalSource]; ok {
		return cur.Clone(d), nil
	}
	return &Plan{Source: LocalSource, ValidFrom: day(d)}, nil
}

// ReplaceFieldValue rewrites field from old to new in every plan's intents
// and vocabulary. It returns the number of distinct intents changed.
func (s *Store) ReplaceFieldValue(field intent.Field, old, new string) (int, error) {
	plans, err := s.All()
	if err != nil {
		return 0, err
	}
	changed := make(map[string]bool)
	for _, p := range plans {
		modified := false
		if vocab := p.Vocabulary(field); vocab != nil {
			for k, v := range *vocab {
				if v == old {
					(*vocab)[k] = new
					modified = true
				}
			}
		}
		for k, i := range p.Intents {
			if v, _ := i.Field(field); v != old {
				continue
			}
			updated, err := i.With(field, new)
			if err != nil {
				return len(changed), err
			}
			p.Intents[k] = updated
			changed[i.ID] = true
			modified = true
		}
		if modified {
			if err := s.Write(p); err != nil {
				return len(changed), err
			}
		}
	}
	return len(changed), nil
}

// UpdateIntent applies update to every copy of id held by a local plan and
// writes those plans. It returns the copy from the latest plan, or NotFound
// when no local plan carries id.
func (s *Store) UpdateIntent(id string, update func(intent.Intent) (intent.Intent, error)) (intent.Intent, error) {
	plans, err := s.All()
	if err != nil {
		return intent.Intent{}, err
	}
	var (
		latest intent.Intent
		owner  *Plan
	)
	for _, p := range plans {
		if p.Source != LocalSource {
			continue
		}
		modified := false
		for k, i := range p.Intents {
			if i.ID != id {
				continue
			}
			updated, err := update(i)
			if err != nil {
				return intent.Intent{}, err
			}
			p.Intents[k] = updated
			modified = true
			if owner == nil || !p.ValidFrom.Before(owner.ValidFrom) {
				latest, owner = updated, p
			}
		}
		if modified {
			if err := s.Write(p); err != nil {
				return intent.Intent{}, err
			}
		}
	}
	if owner == nil {
		return intent.Intent{}, errs.New(errs.NotFound, "update intent", id)
	}
	return latest, nil
}

// Vocabulary collects the distinct plan-level values for field across the
// effective plans on d.
func (s *Store) Vocabulary(field intent.Field, d time.Time) ([]string, error) {
	eff, err := s.Effective(d)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, src := range Sources(eff) {
		vocab := eff[src].Vocabulary(field)
		if vocab == nil {
			continue
		}
		for _, v := range *vocab {
			if v = strings.TrimSpace(v); v != "" && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
