package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sadopc/faff/internal/errs"
	"github.com/sadopc/faff/internal/intent"
	"github.com/sadopc/faff/internal/timelog"
	"github.com/sadopc/faff/internal/tui"
	"github.com/sadopc/faff/internal/workspace"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Create a ledger",
		Long: `Init creates a .faff ledger in path (default: the current directory)
with empty logs and plans and a default config.yaml. An existing ledger
is left untouched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			dir, err := workspace.Init(root)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialised faff ledger at %s\n", dir)
			return nil
		},
	}
}

func (a *app) startCmd() *cobra.Command {
	var fill string
	cmd := &cobra.Command{
		Use:   "start [intent] [note...]",
		Short: "Start a session",
		Long: `Start records a new session on today's log, beginning now. The intent
is an id or the alias of an intent effective today. Without one, and
on a terminal, you are asked to pick.

A template (an intent with a "?" axis) needs --fill, which resolves it
to a concrete intent first.

Examples:
  faff start local:1b2c...
  faff start Admin "expenses"
  faff start "Customer call" --fill acme`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}

			var ref, note string
			if len(args) > 0 {
				ref = args[0]
				note = strings.Join(args[1:], " ")
			}
			i, err := a.pickIntent(ws, ref)
			if err != nil {
				return err
			}
			if fill != "" {
				var reused bool
				if i, reused, err = ws.ResolveTemplate(i.ID, fill); err != nil {
					return err
				}
				if !reused {
					fmt.Fprintf(cmd.OutOrStdout(), "Created %s from template\n", highlightStyle.Render(i.ID))
				}
			}

			s, err := ws.Start(i.ID, note)
			if errors.Is(err, errs.SessionAlreadyActive) {
				return fmt.Errorf("%w\nRun 'faff stop' first, or set sessions.switch_on_start", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started %s at %s\n", runningStyle.Render(i.DisplayName()), s.Start.Format("15:04"))
			return nil
		},
	}
	cmd.Flags().StringVar(&fill, "fill", "", "value for the blank axis of a template")
	return cmd
}

// pickIntent resolves ref as an id or alias, or asks for one when ref is empty.
func (a *app) pickIntent(ws *workspace.Workspace, ref string) (intent.Intent, error) {
	today := ws.Today()
	if ref == "" {
		if !a.interactive() {
			return intent.Intent{}, fmt.Errorf("an intent is required")
		}
		intents, err := ws.ListIntents(&today)
		if err != nil {
			return intent.Intent{}, err
		}
		if len(intents) == 0 {
			return intent.Intent{}, fmt.Errorf("no intents are effective today; create one with 'faff intent create'")
		}
		opts := make([]huh.Option[string], 0, len(intents))
		for _, i := range intents {
			opts = append(opts, huh.NewOption(i.DisplayName(), i.ID))
		}
		var id string
		err = huh.NewSelect[string]().
			Title("Start working on").
			Options(opts...).
			Filtering(true).
			Value(&id).
			Run()
		if err != nil {
			return intent.Intent{}, err
		}
		ref = id
	}

	i, err := ws.GetIntent(ref)
	if err == nil || !errors.Is(err, errs.NotFound) {
		return i, err
	}
	intents, lerr := ws.ListIntents(&today)
	if lerr != nil {
		return intent.Intent{}, lerr
	}
	var matches []intent.Intent
	for _, c := range intents {
		if c.Alias == ref {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return intent.Intent{}, err
	case 1:
		return matches[0], nil
	}
	return intent.Intent{}, fmt.Errorf("alias %q is ambiguous, use one of the ids: %s", ref, idsOf(matches))
}

func idsOf(intents []intent.Intent) string {
	ids := make([]string, len(intents))
	for k, i := range intents {
		ids[k] = i.ID
	}
	return strings.Join(ids, ", ")
}

func (a *app) stopCmd() *cobra.Command {
	var reflection int
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running session",
		Long: `Stop ends the running session now, even when it started on an earlier
day. --reflection records a 1-5 score for how the session went.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			var r *int
			if cmd.Flags().Changed("reflection") {
				r = &reflection
			}
			s, err := ws.Stop(r)
			if err != nil {
				return err
			}
			name := s.IntentID
			if i, err := ws.GetIntent(s.IntentID); err == nil {
				name = i.DisplayName()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s after %s\n", titleStyle.Render(name), formatDuration(s.Duration(ws.Now())))
			return nil
		},
	}
	cmd.Flags().IntVarP(&reflection, "reflection", "r", 0,
		fmt.Sprintf("reflection score, %d-%d", timelog.MinReflection, timelog.MaxReflection))
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running session and today's total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			st, err := ws.Status()
			if err != nil {
				return err
			}

			lines := []string{
				titleStyle.Render("faff") + " " + mutedStyle.Render(ws.Dir()),
				fmt.Sprintf("Recorded today: %s", formatDuration(st.Today)),
			}
			if st.Active == nil {
				lines = append(lines, mutedStyle.Render("Not currently working on anything."))
			} else {
				s := st.Active.Session
				line := fmt.Sprintf("Working on %s for %s", runningStyle.Render(st.Active.Intent.DisplayName()), formatDuration(st.Now.Sub(s.Start)))
				if s.Note != "" {
					line += fmt.Sprintf(" (%q)", s.Note)
				}
				lines = append(lines, line)
				if !st.Active.Date.Equal(ws.Today()) {
					lines = append(lines, warningStyle.Render(fmt.Sprintf("Started on %s", st.Active.Date.Format("Mon 2 Jan"))))
				}
			}
			out := lipgloss.JoinVertical(lipgloss.Left, lines...)
			if f, ok := cmd.OutOrStdout().(*os.File); ok && f == os.Stdout && a.interactive() {
				out = panelStyle.Render(out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Show the running session and the last week live",
		Long: `Watch opens a full-screen view of the running session, today's total
and a chart of the last seven days. Press 1-5 to choose a reflection
score, x to stop the session and q to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.interactive() {
				return errors.New("watch needs a terminal")
			}
			ws, err := a.open()
			if err != nil {
				return err
			}
			return tui.Run(ws)
		},
	}
}
