// Package tui is the live terminal view behind faff watch.
package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/query"
	"github.com/sadopc/faff/internal/timelog"
	"github.com/sadopc/faff/internal/workspace"
)

// Tracker is the part of a workspace the view reads and drives.
type Tracker interface {
	Status() (*workspace.Status, error)
	Stop(reflection *int) (*timelog.Session, error)
	Query(kind query.Kind, q query.Query) (*query.Result, error)
	Today() time.Time
}

// --- Messages ---

type tickMsg time.Time

type statusLoadedMsg struct {
	status *workspace.Status
	err    error
}

type weekLoadedMsg struct {
	from   time.Time
	result *query.Result
	err    error
}

type stoppedMsg struct {
	name    string
	session *timelog.Session
	err     error
}

// App is the root Bubble Tea model.
type App struct {
	tracker Tracker
	width   int
	height  int

	timer timerModel
	week  weekModel

	help      help.Model
	showHelp  bool
	status    string
	statusErr bool
}

func NewApp(t Tracker) App {
	h := help.New()
	h.ShowAll = false
	return App{
		tracker: t,
		week:    newWeekModel(),
		help:    h,
	}
}

// Run shows the view until the user quits.
func Run(t Tracker) error {
	_, err := tea.NewProgram(NewApp(t), tea.WithAltScreen()).Run()
	return err
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.loadStatus(), a.loadWeek(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) loadStatus() tea.Cmd {
	return func() tea.Msg {
		st, err := a.tracker.Status()
		return statusLoadedMsg{status: st, err: err}
	}
}

func (a App) loadWeek() tea.Cmd {
	return func() tea.Msg {
		today := a.tracker.Today()
		res, err := a.tracker.Query(query.Sessions, weekQuery(today))
		return weekLoadedMsg{from: weekRange(today).From, result: res, err: err}
	}
}

func (a App) stop() tea.Cmd {
	name := a.timer.active.Intent.DisplayName()
	reflection := a.timer.reflection
	return func() tea.Msg {
		s, err := a.tracker.Stop(reflection)
		return stoppedMsg{name: name, session: s, err: err}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.week.setWidth(msg.Width)
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Refresh):
			return a, tea.Batch(a.loadStatus(), a.loadWeek())
		case key.Matches(msg, keys.Reflect):
			score, _ := strconv.Atoi(msg.String())
			a.timer.setReflection(score)
			a.setStatus(fmt.Sprintf("Reflection %d on stop", score), false)
			return a, nil
		case key.Matches(msg, keys.Clear):
			a.timer.clearReflection()
			a.setStatus("Reflection cleared", false)
			return a, nil
		case key.Matches(msg, keys.Stop):
			if !a.timer.running() {
				a.setStatus("Not currently working on anything.", false)
				return a, nil
			}
			return a, a.stop()
		}

	case tickMsg:
		a.timer.tick(time.Time(msg))
		return a, tea.Batch(a.loadStatus(), tickCmd())

	case statusLoadedMsg:
		if msg.err != nil {
			a.setStatus("Error: "+msg.err.Error(), true)
			return a, nil
		}
		a.timer.load(msg.status)
		return a, nil

	case weekLoadedMsg:
		if msg.err != nil {
			a.setStatus("Error: "+msg.err.Error(), true)
			return a, nil
		}
		a.week.load(msg.from, msg.result)
		return a, nil

	case stoppedMsg:
		if msg.err != nil {
			a.setStatus("Error: "+msg.err.Error(), true)
			return a, nil
		}
		length := msg.session.Duration(*msg.session.End)
		a.setStatus(fmt.Sprintf("Stopped %s after %s", msg.name, formatDuration(length)), false)
		a.timer.clearReflection()
		return a, tea.Batch(a.loadStatus(), a.loadWeek())
	}
	return a, nil
}

func (a *App) setStatus(text string, isErr bool) {
	a.status = text
	a.statusErr = isErr
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}
	if a.width < 20 {
		return "Terminal too small"
	}

	w := a.width - 4
	header := a.renderHeader()
	footer := a.renderFooter()
	content := lipgloss.JoinVertical(lipgloss.Left,
		a.renderTimerPanel(w),
		a.renderWeekPanel(w),
	)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("faff")
	date := mutedStyle.Render(datespec.Format(a.tracker.Today()))
	return headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Bottom, title, "  ", date))
}

func (a App) renderTimerPanel(w int) string {
	today := fmt.Sprintf("%s  %s", titleStyle.Render("Today"), highlightStyle.Render(formatDuration(a.timer.todayTotal())))

	if !a.timer.running() {
		content := lipgloss.JoinVertical(lipgloss.Center,
			timerStyle.Width(w-6).Render("00:00:00"),
			mutedStyle.Render("■  Not currently working on anything."),
			mutedStyle.Render("Run faff start to begin a session"),
			"",
			today,
		)
		return panelStyle.Width(w).Render(content)
	}

	act := a.timer.active
	lines := []string{
		timerRunningStyle.Width(w - 6).Render(formatDuration(a.timer.elapsed())),
		successStyle.Render("●  " + act.Intent.DisplayName()),
		mutedStyle.Render("since " + act.Session.Start.Format("15:04")),
	}
	if act.Session.Note != "" {
		lines = append(lines, mutedStyle.Render(strconv.Quote(act.Session.Note)))
	}
	if a.timer.reflection != nil {
		lines = append(lines, warningStyle.Render(fmt.Sprintf("reflection %d", *a.timer.reflection)))
	}
	lines = append(lines, "", today)
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
}

func (a App) renderWeekPanel(w int) string {
	title := fmt.Sprintf("%s  %s", titleStyle.Render("Last 7 days"), highlightStyle.Render(formatHours(a.week.total())))
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", a.week.view()))
}

func (a App) renderFooter() string {
	left := footerStyle.Render(a.help.View(keys))

	right := ""
	if a.status != "" {
		style := mutedStyle
		if a.statusErr {
			style = errorStyle
		}
		right = style.Render(" " + a.status)
	}

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")
	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}
