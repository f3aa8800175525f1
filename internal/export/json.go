package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sadopc/faff/internal/query"
)

type jsonExport struct {
	ExportedAt string      `json:"exported_at"`
	Kind       string      `json:"kind"`
	Domain     string      `json:"domain"`
	GroupBy    []string    `json:"group_by,omitempty"`
	Count      int         `json:"count"`
	Total      jsonTotal   `json:"total"`
	Omitted    int         `json:"omitted,omitempty"`
	Groups     []jsonGroup `json:"groups"`
}

type jsonTotal struct {
	Count       int    `json:"count"`
	DurationSec int64  `json:"duration_seconds"`
	Duration    string `json:"duration"`
}

type jsonGroup struct {
	Key         string            `json:"key"`
	Fields      map[string]string `json:"fields,omitempty"`
	Count       int               `json:"count"`
	DurationSec int64             `json:"duration_seconds"`
	Duration    string            `json:"duration"`
}

// ToJSON writes res to path as an indented document.
func ToJSON(res *query.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()
	return WriteJSON(f, res)
}

// WriteJSON writes res to out.
func WriteJSON(out io.Writer, res *query.Result) error {
	totalSecs := int64(res.Total.Duration / time.Second)
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Kind:       string(res.Kind),
		Domain:     res.Domain.String(),
		GroupBy:    res.GroupBy,
		Count:      len(res.Groups),
		Total: jsonTotal{
			Count:       res.Total.Count,
			DurationSec: totalSecs,
			Duration:    formatDuration(totalSecs),
		},
		Omitted: res.Omitted,
	}

	for _, g := range res.Groups {
		secs := int64(g.Duration / time.Second)
		jg := jsonGroup{
			Key:         g.Key,
			Count:       g.Count,
			DurationSec: secs,
			Duration:    formatDuration(secs),
		}
		if len(res.GroupBy) > 0 {
			jg.Fields = make(map[string]string, len(res.GroupBy))
			for k, f := range res.GroupBy {
				jg.Fields[f] = g.Values[k]
			}
		}
		export.Groups = append(export.Groups, jg)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
