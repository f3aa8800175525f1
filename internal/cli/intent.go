package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/intent"
	"github.com/sadopc/faff/internal/workspace"
)

func (a *app) intentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intent",
		Short: "Create and inspect intents",
		Long: `An intent describes a category of work: a role, an objective, an
action and a subject, optionally with an alias and a tracker reference.
An axis set to "?" makes the intent a template.

Available subcommands:
  create    Add a local intent
  derive    Copy an intent with some fields changed
  edit      Change a local intent in place
  resolve   Fill a template's blank axis
  list      List intents
  show      Show one intent`,
	}

	var n workspace.NewIntent
	create := &cobra.Command{
		Use:   "create",
		Short: "Add a local intent effective from today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			i, err := ws.Create(n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s\n", highlightStyle.Render(i.ID), i.DisplayName())
			return nil
		},
	}
	create.Flags().StringVar(&n.Role, "role", "", "role axis")
	create.Flags().StringVar(&n.Objective, "objective", "", "objective axis")
	create.Flags().StringVar(&n.Action, "action", "", "action axis")
	create.Flags().StringVar(&n.Subject, "subject", "", "subject axis")
	create.Flags().StringVar(&n.Alias, "alias", "", "short name")
	create.Flags().StringVar(&n.Tracker, "tracker", "", "external work item, e.g. jira:SA-1")

	var set []string
	derive := &cobra.Command{
		Use:   "derive <intent> [--set field=value...]",
		Short: "Copy an intent with some fields changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrides(set)
			if err != nil {
				return err
			}
			ws, err := a.open()
			if err != nil {
				return err
			}
			parent, err := a.pickIntent(ws, args[0])
			if err != nil {
				return err
			}
			i, err := ws.Derive(parent.ID, overrides)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Derived %s from %s\n", highlightStyle.Render(i.ID), parent.ID)
			return nil
		},
	}
	derive.Flags().StringArrayVar(&set, "set", nil, "field=value to change (repeatable)")

	var edits []string
	edit := &cobra.Command{
		Use:   "edit <intent> --set field=value...",
		Short: "Change a local intent in place",
		Long: `Edit rewrites a local intent in every plan that carries it and
re-describes the logs that reference it. Pulled intents belong to their
remote; derive a local copy to change them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(edits) == 0 {
				return fmt.Errorf("nothing to change; pass --set field=value")
			}
			overrides, err := parseOverrides(edits)
			if err != nil {
				return err
			}
			ws, err := a.open()
			if err != nil {
				return err
			}
			cur, err := a.pickIntent(ws, args[0])
			if err != nil {
				return err
			}
			res, err := ws.UpdateIntent(cur.ID, overrides)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %d sessions in %d logs\n", highlightStyle.Render(res.Intent.ID), res.Sessions, res.Logs)
			return nil
		},
	}
	edit.Flags().StringArrayVar(&edits, "set", nil, "field=value to change (repeatable)")

	resolve := &cobra.Command{
		Use:   "resolve <template> <value>",
		Short: "Fill a template's blank axis",
		Long: `Resolve fills the "?" axis of a template. An intent with the same
descriptor that is effective today is reused; otherwise one is created.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			tmpl, err := a.pickIntent(ws, args[0])
			if err != nil {
				return err
			}
			i, reused, err := ws.ResolveTemplate(tmpl.ID, args[1])
			if err != nil {
				return err
			}
			verb := "Created"
			if reused {
				verb = "Using existing"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", verb, highlightStyle.Render(i.ID), i.DisplayName())
			return nil
		},
	}

	var on string
	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List intents effective today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			var d *time.Time
			if !all {
				day := ws.Today()
				if on != "" {
					if day, err = ws.Dates().Resolve(on); err != nil {
						return err
					}
				}
				d = &day
			}
			intents, err := ws.ListIntents(d)
			if err != nil {
				return err
			}
			if len(intents) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No intents."))
				return nil
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader([]any{"id", "alias", "role", "objective", "action", "subject", "tracker"})
			for _, i := range intents {
				t.AppendRow([]any{i.ID, i.Alias, i.Role, i.Objective, i.Action, i.Subject, i.Tracker()})
			}
			t.Render()
			return nil
		},
	}
	list.Flags().StringVar(&on, "on", "", "list intents effective on this date")
	list.Flags().BoolVar(&all, "all", false, "list every known intent")

	show := &cobra.Command{
		Use:   "show <intent>",
		Short: "Show one intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			i, err := a.pickIntent(ws, args[0])
			if err != nil {
				return err
			}
			renderIntent(cmd.OutOrStdout(), i)
			return nil
		},
	}

	cmd.AddCommand(create, derive, edit, resolve, list, show)
	return cmd
}

func renderIntent(out io.Writer, i intent.Intent) {
	t := newTable(out)
	for _, f := range intent.Fields {
		v, _ := i.Field(f)
		t.AppendRow([]any{string(f), v})
	}
	if !i.ValidFrom.IsZero() {
		t.AppendRow([]any{"valid_from", datespec.Format(i.ValidFrom)})
	}
	if i.ValidUntil != nil {
		t.AppendRow([]any{"valid_until", datespec.Format(*i.ValidUntil)})
	}
	if tmpl, ok := intent.TemplateOf(i); ok {
		t.AppendFooter([]any{"template", "fill " + string(tmpl.BlankField())})
	}
	t.Render()
}

func parseOverrides(set []string) (map[intent.Field]string, error) {
	overrides := make(map[intent.Field]string, len(set))
	for _, s := range set {
		k, v, err := splitAssignment(s)
		if err != nil {
			return nil, err
		}
		overrides[intent.Field(k)] = v
	}
	return overrides, nil
}
