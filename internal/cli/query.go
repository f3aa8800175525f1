package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadopc/faff/internal/export"
	"github.com/sadopc/faff/internal/query"
)

func (a *app) queryCmd() *cobra.Command {
	var (
		rf      rangeFlags
		groupBy []string
		limit   int
		asJSON  bool
		asCSV   bool
		sumOnly bool
		output  string
	)
	cmd := &cobra.Command{
		Use:   "query <kind> [filter...]",
		Short: "Filter, group and total records",
		Long: `Query runs over one kind of record: sessions, intents, logs or plans.

Filters take the form field=value (exact), field~value (contains,
ignoring case) or field!=value, and must all hold. Groups are ordered
by date for logs and for sessions grouped by date, by time recorded
for other session and intent groupings, and by name for plans.

Examples:
  faff query sessions --since monday --group alias
  faff query sessions role=engineer objective~revenue --group date
  faff query intents --group objective --limit 5
  faff query logs --from 2025-01-01 --to 2025-01-31 --sum`,
		Args: cobra.MinimumNArgs(1),
		ValidArgs: func() []string {
			kinds := make([]string, len(query.Kinds))
			for k, kind := range query.Kinds {
				kinds[k] = string(kind)
			}
			return kinds
		}(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asCSV {
				return fmt.Errorf("--json and --csv are exclusive")
			}
			kind, err := query.ParseKind(args[0])
			if err != nil {
				return fmt.Errorf("%w (want one of %s)", err, kindNames())
			}
			filters, err := query.ParseAll(args[1:])
			if err != nil {
				return err
			}
			ws, err := a.open()
			if err != nil {
				return err
			}
			rng, err := rf.resolve(ws)
			if err != nil {
				return err
			}

			var fields []string
			for _, g := range groupBy {
				for _, f := range strings.Split(g, ",") {
					if f = strings.TrimSpace(f); f != "" {
						fields = append(fields, f)
					}
				}
			}
			res, err := ws.Query(kind, query.Query{Filters: filters, Range: rng, GroupBy: fields, Limit: limit})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				return writeExport(out, res, output, asJSON)
			}
			switch {
			case asJSON:
				return export.WriteJSON(out, res)
			case asCSV:
				return export.WriteCSV(out, res)
			case sumOnly:
				fmt.Fprintf(out, "%s (%d)\n", formatDuration(res.Total.Duration), res.Total.Count)
				return nil
			}
			renderResult(out, res)
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringSliceVarP(&groupBy, "group", "g", nil, "fields to group by, in order")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many groups")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print the result as CSV")
	cmd.Flags().BoolVar(&sumOnly, "sum", false, "print only the total")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to a file, CSV unless --json")
	return cmd
}

func writeExport(out io.Writer, res *query.Result, path string, asJSON bool) error {
	write := export.ToCSV
	if asJSON {
		write = export.ToJSON
	}
	if err := write(res, path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %d groups to %s\n", len(res.Groups), path)
	return nil
}

func kindNames() string {
	names := make([]string, len(query.Kinds))
	for k, kind := range query.Kinds {
		names[k] = string(kind)
	}
	return strings.Join(names, ", ")
}

func renderResult(out io.Writer, res *query.Result) {
	if len(res.Groups) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("Nothing matched."))
		return
	}

	t := newTable(out)
	header := []any{}
	for _, f := range res.GroupBy {
		header = append(header, f)
	}
	if len(header) == 0 {
		header = append(header, "group")
	}
	header = append(header, "count", "recorded")
	t.AppendHeader(header)

	for _, g := range res.Groups {
		row := []any{}
		for _, v := range g.Values {
			row = append(row, v)
		}
		if len(res.GroupBy) == 0 {
			row = append(row, "all")
		}
		row = append(row, g.Count, formatDuration(g.Duration))
		t.AppendRow(row)
	}

	footer := make([]any, len(header)-2)
	for k := range footer {
		footer[k] = ""
	}
	footer[len(footer)-1] = "total"
	if res.Omitted > 0 {
		footer[0] = fmt.Sprintf("%d more not shown", res.Omitted)
		if len(footer) == 1 {
			footer[0] = fmt.Sprintf("total (%d more not shown)", res.Omitted)
		}
	}
	footer = append(footer, res.Total.Count, formatDuration(res.Total.Duration))
	t.AppendFooter(footer)
	t.Render()
}
