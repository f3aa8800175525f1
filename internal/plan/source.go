package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/sadopc/faff/internal/errs"
)

// Source supplies a plan for a date. Implementations may block; Pull bounds
// each call with the caller's timeout.
type Source interface {
	Name() string
	Pull(ctx context.Context, d time.Time) (*Plan, error)
}

// DirSource reads plans from another directory of plan documents, such as a
// folder synced from a shared drive. The effective plan of any source in that
// directory is re-labelled with the DirSource's name.
type DirSource struct {
	name  string
	store *Store
}

// NewDirSource returns a source named name reading from dir.
func NewDirSource(name, dir string) *DirSource {
	return &DirSource{name: name, store: NewStore(dir)}
}

func (d *DirSource) Name() string { return d.name }

func (d *DirSource) Pull(ctx context.Context, on time.Time) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plans, err := d.store.All()
	if err != nil {
		return nil, err
	}

	var best *Plan
	for _, p := range Effective(plans, on) {
		if best == nil || best.ValidFrom.Before(p.ValidFrom) {
			best = p
		}
	}
	if best == nil {
		return nil, errs.Newf(errs.NotFound, "pull plan", "%s has no plan for %s", d.name, on.Format(dateLayout))
	}
	out := best.Clone(best.ValidFrom)
	out.Source = d.name
	return out, nil
}

// PullResult reports which sources produced a plan.
type PullResult struct {
	Written []*Plan
	Failed  []string
}

// Pull fetches a plan from every source and writes the successful ones to s.
// A failing or slow source does not stop the others; the returned error
// aggregates every failure.
func Pull(ctx context.Context, s *Store, sources []Source, on time.Time, timeout time.Duration) (*PullResult, error) {
	res := &PullResult{}
	var result *multierror.Error

	for _, src := range sources {
		p, err := pullOne(ctx, src, on, timeout)
		if err == nil {
			err = s.Write(p)
		}
		if err != nil {
			res.Failed = append(res.Failed, src.Name())
			result = multierror.Append(result, fmt.Errorf("source %s: %w", src.Name(), err))
			continue
		}
		res.Written = append(res.Written, p)
	}
	return res, result.ErrorOrNil()
}

type pulled struct {
	plan *Plan
	err  error
}

func pullOne(ctx context.Context, src Source, on time.Time, timeout time.Duration) (*Plan, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ch := make(chan pulled, 1)
	go func() {
		p, err := src.Pull(ctx, on)
		ch <- pulled{plan: p, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("pull timed out: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.plan == nil {
			return nil, fmt.Errorf("source returned no plan")
		}
		r.plan.Source = src.Name()
		return r.plan, nil
	}
}
