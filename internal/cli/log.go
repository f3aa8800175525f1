package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/errs"
	"github.com/sadopc/faff/internal/workspace"
)

// rangeFlags are the bound flags shared by listing commands.
type rangeFlags struct {
	from, to, since, until string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "first date (inclusive)")
	cmd.Flags().StringVar(&r.to, "to", "", "last date (inclusive)")
	cmd.Flags().StringVar(&r.since, "since", "", "from this date up to today")
	cmd.Flags().StringVar(&r.until, "until", "", "from the first log up to this date")
}

// resolve returns nil when no bound was given.
func (r *rangeFlags) resolve(ws *workspace.Workspace) (*datespec.Range, error) {
	if r.from == "" && r.to == "" && r.since == "" && r.until == "" {
		return nil, nil
	}
	rng, err := ws.ResolveRange(datespec.RangeArgs{From: r.from, To: r.to, Since: r.since, Until: r.until})
	if err != nil {
		return nil, err
	}
	return &rng, nil
}

// dateArg resolves an optional date argument, defaulting to today.
func dateArg(ws *workspace.Workspace, args []string) (time.Time, error) {
	if len(args) == 0 {
		return ws.Today(), nil
	}
	return ws.Dates().Resolve(args[0])
}

func (a *app) logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show and maintain daily logs",
		Long: `Log works on the daily log documents in .faff/logs.

Dates accept ISO dates (2025-01-10), today, yesterday, weekday names
("friday", "last friday") and offsets ("3 days ago").

Available subcommands:
  show      Print a log (default: today)
  list      List logs with their totals
  edit      Open a log in $EDITOR and check it afterwards
  refresh   Rewrite logs in canonical form
  rm        Delete a log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showLog(cmd, nil)
		},
	}

	show := &cobra.Command{
		Use:   "show [date]",
		Short: "Print a log",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.showLog,
	}

	var rf rangeFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List logs with their totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			rng, err := rf.resolve(ws)
			if err != nil {
				return err
			}
			dates, err := ws.ListLogDates(rng)
			if err != nil {
				return err
			}
			if len(dates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No logs."))
				return nil
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader([]any{"date", "weekday", "sessions", "recorded"})
			now := ws.Now()
			var total time.Duration
			for _, d := range dates {
				l, err := ws.GetLog(d)
				if err != nil {
					t.AppendRow([]any{datespec.Format(d), d.Weekday().String()[:3], "?", errorStyle.Render("unreadable")})
					continue
				}
				total += l.Total(now)
				t.AppendRow([]any{datespec.Format(d), d.Weekday().String()[:3], len(l.Sessions), formatDuration(l.Total(now))})
			}
			t.AppendFooter([]any{"", "", "total", formatDuration(total)})
			t.Render()
			return nil
		},
	}
	rf.register(list)

	edit := &cobra.Command{
		Use:   "edit [date]",
		Short: "Open a log in $EDITOR",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			d, err := dateArg(ws, args)
			if err != nil {
				return err
			}
			l, err := ws.GetLog(d)
			if err != nil {
				return err
			}
			if l == nil {
				return errs.New(errs.NotFound, "edit log", datespec.Format(d))
			}
			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}
			c := exec.CommandContext(cmd.Context(), editor, ws.LogPath(d))
			c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
			if err := c.Run(); err != nil {
				return fmt.Errorf("run editor: %w", err)
			}
			res, err := ws.Refresh(d)
			if err != nil {
				return fmt.Errorf("edited log does not load: %w", err)
			}
			if res.Changed {
				fmt.Fprintln(cmd.OutOrStdout(), "Log reformatted.")
			}
			return nil
		},
	}

	var all, showDiff bool
	refresh := &cobra.Command{
		Use:   "refresh [date]",
		Short: "Rewrite logs in canonical form",
		Long: `Refresh re-reads a log and writes it back in canonical form, updating
the derived comments (intent names and durations). Running it twice
changes nothing the second time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			var dates []time.Time
			if all {
				if dates, err = ws.ListLogDates(nil); err != nil {
					return err
				}
			} else {
				d, err := dateArg(ws, args)
				if err != nil {
					return err
				}
				dates = []time.Time{d}
			}

			out := cmd.OutOrStdout()
			var failed error
			for _, d := range dates {
				res, err := ws.Refresh(d)
				if err != nil {
					fmt.Fprintln(out, errorStyle.Render(err.Error()))
					failed = errors.Join(failed, err)
					continue
				}
				if !res.Changed {
					fmt.Fprintf(out, "%s unchanged\n", datespec.Format(d))
					continue
				}
				fmt.Fprintf(out, "%s refreshed\n", datespec.Format(d))
				if showDiff {
					fmt.Fprint(out, res.Diff)
				}
			}
			return failed
		},
	}
	refresh.Flags().BoolVar(&all, "all", false, "refresh every log")
	refresh.Flags().BoolVar(&showDiff, "diff", false, "print what changed")

	var yes bool
	rm := &cobra.Command{
		Use:   "rm <date>",
		Short: "Delete a log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			d, err := ws.Dates().Resolve(args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := a.confirm(fmt.Sprintf("Delete the log for %s?", datespec.Format(d)))
				if err != nil || !ok {
					return err
				}
			}
			if err := ws.Remove(d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed log for %s\n", datespec.Format(d))
			return nil
		},
	}
	rm.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(show, list, edit, refresh, rm)
	return cmd
}

func (a *app) showLog(cmd *cobra.Command, args []string) error {
	ws, err := a.open()
	if err != nil {
		return err
	}
	d, err := dateArg(ws, args)
	if err != nil {
		return err
	}
	raw, err := ws.ReadLog(d)
	if err != nil {
		return err
	}
	if raw == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", mutedStyle.Render("No log for "+datespec.Format(d)+"."))
		return nil
	}
	_, err = cmd.OutOrStdout().Write(raw)
	return err
}

// confirm asks a yes/no question. Without a terminal it refuses, so that
// scripts must pass --yes.
func (a *app) confirm(question string) (bool, error) {
	if !a.interactive() {
		return false, fmt.Errorf("%s (pass --yes to confirm without a terminal)", question)
	}
	var ok bool
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}
