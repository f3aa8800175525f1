package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sadopc/faff/internal/query"
)

// ToCSV writes the groups of res to path, one row per group.
func ToCSV(res *query.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()
	return WriteCSV(f, res)
}

// WriteCSV writes the groups of res to out. The leading columns are the
// group-by fields, or a single "group" column when the query is ungrouped.
func WriteCSV(out io.Writer, res *query.Result) error {
	w := csv.NewWriter(out)

	// Header
	header := append([]string(nil), res.GroupBy...)
	if len(header) == 0 {
		header = []string{"group"}
	}
	header = append(header, "Count", "Duration (s)", "Duration")
	if err := w.Write(header); err != nil {
		return err
	}

	for _, g := range res.Groups {
		row := append([]string(nil), g.Values...)
		if len(res.GroupBy) == 0 {
			row = []string{g.Key}
		}
		secs := int64(g.Duration / time.Second)
		row = append(row,
			fmt.Sprintf("%d", g.Count),
			fmt.Sprintf("%d", secs),
			formatDuration(secs),
		)
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
