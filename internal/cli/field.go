package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sadopc/faff/internal/intent"
)

func (a *app) fieldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "List and rename intent field values",
	}

	list := &cobra.Command{
		Use:   "list <field>",
		Short: "List the values of a field with their usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			values, err := ws.FieldValues(intent.Field(args[0]))
			if err != nil {
				return err
			}
			if len(values) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No values."))
				return nil
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader([]any{args[0], "intents", "sessions"})
			for _, v := range values {
				t.AppendRow([]any{v.Value, v.Intents, v.Sessions})
			}
			t.Render()
			return nil
		},
	}

	var yes bool
	replace := &cobra.Command{
		Use:   "replace <field> <old> <new>",
		Short: "Rename a value in every plan",
		Long: `Replace rewrites every intent and plan vocabulary entry whose field
equals old, then refreshes the logs that name those intents. It works
on role, objective, action, subject and alias. There is no undo.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, old, new := intent.Field(args[0]), args[1], args[2]
			ws, err := a.open()
			if err != nil {
				return err
			}
			if !yes {
				ok, err := a.confirm(fmt.Sprintf("Replace %s %q with %q in every plan?", field, old, new))
				if err != nil || !ok {
					return err
				}
			}
			res, err := ws.ReplaceFieldValue(field, old, new)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d intents and %d logs\n", res.Intents, res.Logs)
			return nil
		},
	}
	replace.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(list, replace)
	return cmd
}
