package workspace

import (
	"context"
	"strings"
	"time"

	"github.com/sadopc/faff/internal/logger"
	"github.com/sadopc/faff/internal/plan"
)

const pullMetaPrefix = "pull."

// ListPlans returns every plan document in the ledger.
func (w *Workspace) ListPlans() ([]*plan.Plan, error) {
	unlock, err := w.lock.rlock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return w.plans.All()
}

// Sources returns the configured remote plan sources.
func (w *Workspace) Sources() []plan.Source {
	var out []plan.Source
	for _, r := range w.cfg.Plans.Remotes {
		out = append(out, plan.NewDirSource(r.Name, r.RemoteDir(w.dir)))
	}
	return out
}

// Pull fetches today's plan from each configured remote. Sources that
// succeed are written even when others fail; the error lists the failures.
func (w *Workspace) Pull(ctx context.Context) (*plan.PullResult, error) {
	return w.PullFrom(ctx, w.Sources())
}

// PullFrom is Pull over an explicit source list.
func (w *Workspace) PullFrom(ctx context.Context, sources []plan.Source) (*plan.PullResult, error) {
	unlock, err := w.lock.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	res, pullErr := plan.Pull(ctx, w.plans, sources, w.Today(), w.cfg.Plans.PullTimeout)
	now := w.Now().Format(time.RFC3339)
	for _, p := range res.Written {
		if err := w.index.SetMeta(pullMetaPrefix+p.Source, now); err != nil {
			return res, err
		}
		logger.Info("plan pulled", "source", p.Source, "intents", len(p.Intents))
	}
	for _, name := range res.Failed {
		logger.Warn("plan pull failed", "source", name)
	}
	if len(res.Written) > 0 {
		if err := w.reindexIntents(); err != nil {
			return res, err
		}
	}
	return res, pullErr
}

// LastPulled returns when each source was last pulled successfully.
func (w *Workspace) LastPulled() (map[string]time.Time, error) {
	unlock, err := w.lock.rlock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	entries, err := w.index.ListMeta(pullMetaPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(entries))
	for _, m := range entries {
		t, err := time.Parse(time.RFC3339, m.Value)
		if err != nil {
			continue
		}
		out[strings.TrimPrefix(m.Key, pullMetaPrefix)] = t
	}
	return out, nil
}
