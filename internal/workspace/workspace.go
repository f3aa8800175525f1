// Package workspace is the ledger as a whole: it owns the documents on disk,
// the SQLite index over them and the lock that keeps the single running
// session invariant intact across processes.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sadopc/faff/internal/config"
	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/errs"
	"github.com/sadopc/faff/internal/intent"
	"github.com/sadopc/faff/internal/logger"
	"github.com/sadopc/faff/internal/plan"
	"github.com/sadopc/faff/internal/store"
	"github.com/sadopc/faff/internal/timelog"
)

// Ledger layout.
const (
	DirName   = ".faff"
	LogsDir   = "logs"
	PlansDir  = "plans"
	IndexFile = "index.db"
	LockFile  = ".lock"
)

// EnvDir overrides ledger discovery.
const EnvDir = "FAFF_DIR"

type Workspace struct {
	dir   string
	cfg   *config.Config
	loc   *time.Location
	clock func() time.Time
	dates *datespec.Resolver

	logs  *timelog.Store
	plans *plan.Store
	index *store.Store
	lock  *ledgerLock

	unreadable unreadableLogs
}

// Option configures Open.
type Option func(*Workspace)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) { w.clock = now }
}

// WithConfig uses cfg instead of loading the ledger's config.yaml.
func WithConfig(cfg *config.Config) Option {
	return func(w *Workspace) { w.cfg = cfg }
}

// Init creates an empty ledger under root and returns its directory. An
// existing ledger is left as it is.
func Init(root string) (string, error) {
	dir := filepath.Join(root, DirName)
	for _, sub := range []string{LogsDir, PlansDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", fmt.Errorf("create ledger: %w", err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); os.IsNotExist(err) {
		if err := config.DefaultConfig().Save(dir); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// Find locates the ledger directory: $FAFF_DIR when set, otherwise the first
// .faff directory in start or one of its parents.
func Find(start string) (string, error) {
	if env := os.Getenv(EnvDir); env != "" {
		if isDir(filepath.Join(env, DirName)) {
			return filepath.Join(env, DirName), nil
		}
		if isDir(env) {
			return env, nil
		}
		return "", errs.Newf(errs.NotFound, "find ledger", "%s=%s is not a directory", EnvDir, env)
	}

	for dir := start; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, DirName)
		if isDir(candidate) {
			return candidate, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	return "", errs.Newf(errs.NotFound, "find ledger", "no %s in %s or its parents", DirName, start)
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// Open opens the ledger in dir and rebuilds its index from the documents.
func Open(dir string, opts ...Option) (*Workspace, error) {
	if !isDir(dir) {
		return nil, errs.New(errs.NotFound, "open ledger", dir)
	}
	w := &Workspace{dir: dir, clock: time.Now}
	for _, opt := range opts {
		opt(w)
	}

	if w.cfg == nil {
		cfg, err := config.Load(dir)
		if err != nil {
			return nil, err
		}
		w.cfg = cfg
	}
	if err := w.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, err := w.cfg.Location()
	if err != nil {
		return nil, err
	}
	w.loc = loc
	w.dates = &datespec.Resolver{Now: w.clock, Location: loc}

	w.logs = timelog.NewStore(filepath.Join(dir, LogsDir))
	w.plans = plan.NewStore(filepath.Join(dir, PlansDir))
	w.lock = newLedgerLock(filepath.Join(dir, LockFile))

	w.index, err = store.New(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	unlock, err := w.lock.lock()
	if err != nil {
		w.index.Close()
		return nil, err
	}
	defer unlock()
	if err := w.rebuild(); err != nil {
		w.index.Close()
		return nil, err
	}
	return w, nil
}

// Close releases the index and the lock file.
func (w *Workspace) Close() error {
	err := w.index.Close()
	if cerr := w.lock.close(); err == nil {
		err = cerr
	}
	return err
}

// Dir returns the ledger directory.
func (w *Workspace) Dir() string { return w.dir }

// Config returns the loaded configuration.
func (w *Workspace) Config() *config.Config { return w.cfg }

// Location returns the ledger's time zone.
func (w *Workspace) Location() *time.Location { return w.loc }

// Dates returns the resolver for date expressions relative to the ledger's today.
func (w *Workspace) Dates() *datespec.Resolver { return w.dates }

// Now returns the current time in the ledger's zone, to the second.
func (w *Workspace) Now() time.Time {
	return w.clock().In(w.loc).Truncate(time.Second)
}

// Today returns the ledger's current date.
func (w *Workspace) Today() time.Time {
	return w.dates.Today()
}

// rebuild re-indexes every log and plan. Unreadable logs are left out and
// remembered, so that refresh and remove can still reach them while
// checkLogsLocked refuses answers that would silently miss them.
func (w *Workspace) rebuild() error {
	dates, err := w.logs.Dates()
	if err != nil {
		return err
	}
	w.unreadable.reset()
	var logs []*timelog.Log
	active := 0
	for _, d := range dates {
		l, err := w.logs.Load(d)
		if err != nil {
			logger.Warn("skipping unreadable log", "date", datespec.Format(d), "err", err)
			w.unreadable.add(d)
			continue
		}
		active += l.ActiveCount()
		logs = append(logs, l)
	}
	if active > 1 {
		logger.Warn("more than one running session on disk", "count", active)
	}
	if err := w.index.RebuildSessions(logs); err != nil {
		return err
	}
	if err := w.reindexIntents(); err != nil {
		return err
	}
	logger.Debug("index rebuilt", "logs", len(logs))
	return w.index.SetMeta("rebuilt_at", w.Now().Format(time.RFC3339))
}

func (w *Workspace) reindexIntents() error {
	all, err := w.plans.Intents(nil)
	if err != nil {
		return err
	}
	return w.index.ReplaceIntents(all)
}

// intentsByID loads every known intent keyed by id.
func (w *Workspace) intentsByID() (map[string]intent.Intent, error) {
	all, err := w.plans.Intents(nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]intent.Intent, len(all))
	for _, i := range all {
		out[i.ID] = i
	}
	return out, nil
}

// describer names intents in derived log comments.
func (w *Workspace) describer() (timelog.Describer, error) {
	byID, err := w.intentsByID()
	if err != nil {
		return nil, err
	}
	return func(id string) string {
		if i, ok := byID[id]; ok {
			return i.DisplayName()
		}
		return ""
	}, nil
}
