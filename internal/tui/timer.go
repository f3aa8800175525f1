package tui

import (
	"fmt"
	"time"

	"github.com/sadopc/faff/internal/workspace"
)

// timerModel mirrors the ledger's running session between refreshes.
type timerModel struct {
	active *workspace.Active
	// today is the time logged today as of loadedAt.
	today    time.Duration
	loadedAt time.Time
	now      time.Time

	// reflection is the score to record on the next stop.
	reflection *int
}

func (t *timerModel) load(st *workspace.Status) {
	t.active = st.Active
	t.today = st.Today
	t.loadedAt = st.Now
	t.now = st.Now
}

func (t *timerModel) tick(now time.Time) {
	t.now = now
}

func (t timerModel) running() bool {
	return t.active != nil
}

func (t timerModel) elapsed() time.Duration {
	if t.active == nil {
		return 0
	}
	return max(t.now.Sub(t.active.Session.Start), 0)
}

// todayTotal advances the loaded total by the time the session has run since
// the last load.
func (t timerModel) todayTotal() time.Duration {
	if t.active == nil {
		return t.today
	}
	return t.today + max(t.now.Sub(t.loadedAt), 0)
}

func (t *timerModel) setReflection(score int) {
	t.reflection = &score
}

func (t *timerModel) clearReflection() {
	t.reflection = nil
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%.1fh", d.Hours())
}
