package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/plan"
)

func (a *app) planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show plans",
	}

	var on string
	list := &cobra.Command{
		Use:   "list",
		Short: "List plan documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			plans, err := ws.ListPlans()
			if err != nil {
				return err
			}
			if on != "" {
				d, err := ws.Dates().Resolve(on)
				if err != nil {
					return err
				}
				eff := plan.Effective(plans, d)
				plans = plans[:0]
				for _, src := range plan.Sources(eff) {
					plans = append(plans, eff[src])
				}
			}
			if len(plans) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No plans."))
				return nil
			}
			pulled, err := ws.LastPulled()
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader([]any{"source", "valid from", "valid until", "intents", "pulled"})
			for _, p := range plans {
				until := ""
				if p.ValidUntil != nil {
					until = datespec.Format(*p.ValidUntil)
				}
				when := ""
				if ts, ok := pulled[p.Source]; ok {
					when = ts.In(ws.Location()).Format(time.DateTime)
				}
				t.AppendRow([]any{p.Source, datespec.Format(p.ValidFrom), until, len(p.Intents), when})
			}
			t.Render()
			return nil
		},
	}
	list.Flags().StringVar(&on, "on", "", "only the plans effective on this date")

	cmd.AddCommand(list)
	return cmd
}

func (a *app) pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch today's plan from each configured remote",
		Long: `Pull reads plans.remotes from config.yaml and copies each remote's
effective plan into the ledger. A slow or failing remote is reported
and does not stop the others; plans.pull_timeout bounds each one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			if len(ws.Sources()) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No remotes configured (plans.remotes)."))
				return nil
			}
			res, err := ws.Pull(cmd.Context())
			if res != nil {
				for _, p := range res.Written {
					fmt.Fprintf(cmd.OutOrStdout(), "Pulled %s: %d intents\n", highlightStyle.Render(p.Source), len(p.Intents))
				}
			}
			return err
		},
	}
}
