package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/faff/internal/config"
	"github.com/sadopc/faff/internal/workspace"
)

type testLedger struct {
	t   *testing.T
	dir string
	now time.Time
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()
	dir, err := workspace.Init(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("timezone: UTC\n"), 0o644))
	return &testLedger{t: t, dir: dir, now: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
}

// run executes one faff invocation against the ledger, as a script would.
func (l *testLedger) run(args ...string) (string, error) {
	l.t.Helper()
	a := newApp()
	a.clock = func() time.Time { return l.now }
	a.interactive = func() bool { return false }
	defer a.close()

	root := a.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--dir", l.dir, "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func (l *testLedger) mustRun(args ...string) string {
	l.t.Helper()
	out, err := l.run(args...)
	require.NoError(l.t, err, "faff %s\n%s", strings.Join(args, " "), out)
	return out
}

func TestInitCommand(t *testing.T) {
	root := t.TempDir()
	a := newApp()
	cmd := a.rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"init", root})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Initialised faff ledger")
	assert.DirExists(t, filepath.Join(root, workspace.DirName, workspace.LogsDir))
}

func TestSessionFlow(t *testing.T) {
	l := newTestLedger(t)

	out := l.mustRun("intent", "create", "--role", "engineer", "--action", "admin", "--alias", "Admin")
	assert.Contains(t, out, "Created local:")

	out = l.mustRun("start", "Admin", "expense", "reports")
	assert.Contains(t, out, "Started Admin at 09:00")

	_, err := l.run("start", "Admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session already active")

	l.now = l.now.Add(30 * time.Minute)
	out = l.mustRun("status")
	assert.Contains(t, out, "Working on Admin for 30m")
	assert.Contains(t, out, `"expense reports"`)

	out = l.mustRun("stop", "-r", "4")
	assert.Contains(t, out, "Stopped Admin after 30m")

	out = l.mustRun("status")
	assert.Contains(t, out, "Not currently working on anything.")
	assert.Contains(t, out, "Recorded today: 30m")

	_, err = l.run("stop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active session")

	out = l.mustRun("log", "show")
	assert.Contains(t, out, "reflection: 4")
	assert.Contains(t, out, "# Admin")
}

func TestStartNeedsIntentWithoutTerminal(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.run("start")
	assert.Error(t, err)

	_, err = l.run("start", "nothing-like-this")
	assert.Error(t, err)
}

func TestStartTemplateWithFill(t *testing.T) {
	l := newTestLedger(t)
	l.mustRun("intent", "create", "--action", "meet", "--subject", "?", "--alias", "Call")

	_, err := l.run("start", "Call")
	assert.Error(t, err, "a template cannot be started as is")

	out := l.mustRun("start", "Call", "--fill", "acme")
	assert.Contains(t, out, "Created local:")
	assert.Contains(t, out, "Started meet / acme")
}

func TestQueryCommand(t *testing.T) {
	l := newTestLedger(t)
	l.mustRun("intent", "create", "--role", "engineer", "--action", "admin", "--alias", "Admin")
	l.mustRun("intent", "create", "--role", "engineer", "--action", "meet", "--alias", "Meet")

	l.mustRun("start", "Admin")
	l.now = l.now.Add(2 * time.Hour)
	l.mustRun("stop")
	l.mustRun("start", "Meet")
	l.now = l.now.Add(time.Hour)
	l.mustRun("stop")

	out := l.mustRun("query", "sessions", "--group", "alias")
	assert.Contains(t, out, "Admin")
	assert.Contains(t, out, "2h00m")
	assert.Contains(t, out, "3h00m")
	assert.Less(t, strings.Index(out, "Admin"), strings.Index(out, "Meet"), "ordered by usage")

	out = l.mustRun("query", "sessions", "role=engineer", "--sum")
	assert.Equal(t, "3h00m (2)\n", out)

	out = l.mustRun("query", "sessions", "alias~mee", "--since", "2025-01-01", "--json")
	var doc struct {
		Kind  string `json:"kind"`
		Total struct {
			DurationSec int64 `json:"duration_seconds"`
		} `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "sessions", doc.Kind)
	assert.Equal(t, int64(3600), doc.Total.DurationSec)

	out = l.mustRun("query", "logs", "--group", "date", "--csv")
	assert.Contains(t, out, "date,Count,Duration (s),Duration")
	assert.Contains(t, out, "2025-01-10,1,10800,03:00:00")

	path := filepath.Join(t.TempDir(), "by-alias.csv")
	out = l.mustRun("query", "sessions", "-g", "alias", "-o", path)
	assert.Contains(t, out, "Wrote 2 groups to")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alias,Count,Duration (s),Duration")

	_, err = l.run("query", "widgets")
	assert.Error(t, err)
	_, err = l.run("query", "sessions", "colour=red")
	assert.Error(t, err)
	_, err = l.run("query", "sessions", "--from", "today", "--since", "yesterday")
	assert.Error(t, err)
}

func TestLogCommands(t *testing.T) {
	l := newTestLedger(t)
	l.mustRun("intent", "create", "--action", "admin", "--alias", "Admin")
	l.mustRun("start", "Admin")
	l.now = l.now.Add(time.Hour)
	l.mustRun("stop")

	out := l.mustRun("log", "list")
	assert.Contains(t, out, "2025-01-10")
	assert.Contains(t, out, "1h00m")

	out = l.mustRun("log", "refresh")
	assert.Contains(t, out, "2025-01-10 unchanged")

	out = l.mustRun("log", "show", "yesterday")
	assert.Contains(t, out, "No log for 2025-01-09.")

	_, err := l.run("log", "rm", "today")
	assert.Error(t, err, "rm asks for confirmation")

	out = l.mustRun("log", "rm", "today", "--yes")
	assert.Contains(t, out, "Removed log for 2025-01-10")

	_, err = l.run("log", "rm", "today", "--yes")
	assert.Error(t, err)
}

func TestIntentAndFieldCommands(t *testing.T) {
	l := newTestLedger(t)
	l.mustRun("intent", "create", "--role", "engineer", "--action", "admin", "--alias", "Admin")

	out := l.mustRun("intent", "derive", "Admin", "--set", "action=email")
	assert.Contains(t, out, "Derived local:")

	out = l.mustRun("intent", "list")
	assert.Contains(t, out, "email")
	assert.Contains(t, out, "admin")

	out = l.mustRun("intent", "show", "Admin")
	assert.Contains(t, out, "valid_from")
	assert.Contains(t, out, "2025-01-10")

	out = l.mustRun("field", "list", "role")
	assert.Contains(t, out, "engineer")

	_, err := l.run("field", "replace", "role", "engineer", "developer")
	assert.Error(t, err, "replace asks for confirmation")

	out = l.mustRun("field", "replace", "role", "engineer", "developer", "-y")
	assert.Contains(t, out, "Updated 2 intents")

	_, err = l.run("field", "replace", "tracker", "a", "b", "-y")
	assert.Error(t, err)
}

func TestIntentEditCommand(t *testing.T) {
	l := newTestLedger(t)
	l.mustRun("intent", "create", "--action", "meet", "--alias", "Sync")
	l.mustRun("start", "Sync")
	l.now = l.now.Add(time.Hour)
	l.mustRun("stop")

	out := l.mustRun("intent", "edit", "Sync", "--set", "alias=Standup", "--set", "subject=team")
	assert.Contains(t, out, "Updated local:")
	assert.Contains(t, out, "1 sessions in 1 logs")

	out = l.mustRun("intent", "show", "Standup")
	assert.Contains(t, out, "team")
	out = l.mustRun("log", "show")
	assert.Contains(t, out, "# Standup")

	_, err := l.run("intent", "edit", "Standup")
	assert.Error(t, err, "edit needs at least one --set")
	_, err = l.run("intent", "edit", "Standup", "--set", "id=local:x")
	assert.Error(t, err)
}

func TestPlanCommands(t *testing.T) {
	l := newTestLedger(t)
	out := l.mustRun("pull")
	assert.Contains(t, out, "No remotes configured")

	l.mustRun("intent", "create", "--action", "admin")
	out = l.mustRun("plan", "list")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "2025-01-10")
}

func TestWatchNeedsTerminal(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.run("watch")
	assert.ErrorContains(t, err, "terminal")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{45 * time.Minute, "45m"},
		{2 * time.Hour, "2h00m"},
		{time.Hour + 5*time.Minute + 30*time.Second, "1h05m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), "formatDuration(%s)", tt.d)
	}
}
