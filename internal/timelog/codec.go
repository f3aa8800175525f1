package timelog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/faff/internal/docversion"
)

// Version is the log document format written by this package.
const Version = "1.1"

const (
	dateLayout      = "2006-01-02"
	timeLayout      = "2006-01-02T15:04:05"
	zonedTimeLayout = "2006-01-02T15:04:05-07:00"
)

const header = `# faff log. Generated, but safe to edit by hand.
# Trailing comments are derived from the plans and are not read back.`

// Describer names an intent for the derived comments. It returns "" when it
// has nothing to add.
type Describer func(intentID string) string

type logDoc struct {
	Version  string       `yaml:"version"`
	Date     string       `yaml:"date"`
	Timezone string       `yaml:"timezone"`
	Timeline []sessionDoc `yaml:"timeline"`
}

type sessionDoc struct {
	IntentID   string `yaml:"intent_id"`
	Start      string `yaml:"start"`
	End        string `yaml:"end"`
	Note       string `yaml:"note"`
	Reflection *int   `yaml:"reflection"`
}

// Decode parses a log document, orders its timeline by start and validates it.
// Keys the format does not define are rejected rather than dropped.
func Decode(data []byte) (*Log, error) {
	var doc logDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse log: %w", err)
	}
	if err := docversion.Check(doc.Version, Version); err != nil {
		return nil, err
	}
	if doc.Date == "" {
		return nil, fmt.Errorf("parse log: missing date")
	}
	date, err := time.Parse(dateLayout, doc.Date)
	if err != nil {
		return nil, fmt.Errorf("parse log date: %w", err)
	}
	loc := time.UTC
	if doc.Timezone != "" {
		if loc, err = time.LoadLocation(doc.Timezone); err != nil {
			return nil, fmt.Errorf("parse log timezone: %w", err)
		}
	}

	l := New(date, loc)
	for k, d := range doc.Timeline {
		s := Session{IntentID: d.IntentID, Note: d.Note, Reflection: d.Reflection}
		if s.Start, err = parseTime(d.Start, loc); err != nil {
			return nil, fmt.Errorf("parse session %d start: %w", k+1, err)
		}
		if d.End != "" {
			end, err := parseTime(d.End, loc)
			if err != nil {
				return nil, fmt.Errorf("parse session %d end: %w", k+1, err)
			}
			s.End = &end
		}
		l.Sessions = append(l.Sessions, s)
	}
	sort.SliceStable(l.Sessions, func(a, b int) bool { return l.Sessions[a].Start.Before(l.Sessions[b].Start) })
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Encode renders l in canonical form. Encoding the result of Decode(Encode(l))
// yields the same bytes.
func Encode(l *Log, describe Describer) ([]byte, error) {
	layout := timeLayout
	if hasZoneTransition(l.Date, l.Location) {
		layout = zonedTimeLayout
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	root.Content = append(root.Content,
		key("version"), str(Version),
		key("date"), plain(l.Date.Format(dateLayout)),
		key("timezone"), str(l.Location.String()),
	)

	timeline := &yaml.Node{Kind: yaml.SequenceNode}
	for _, s := range l.Sessions {
		entry := &yaml.Node{Kind: yaml.MappingNode}

		id := str(s.IntentID)
		if describe != nil {
			if name := describe(s.IntentID); name != "" {
				id.LineComment = "# " + name
			}
		}
		entry.Content = append(entry.Content,
			key("intent_id"), id,
			key("start"), plain(s.Start.In(l.Location).Format(layout)),
		)
		if s.End != nil {
			end := plain(s.End.In(l.Location).Format(layout))
			end.LineComment = "# " + FormatDuration(s.End.Sub(s.Start))
			entry.Content = append(entry.Content, key("end"), end)
		}
		if s.Note != "" {
			entry.Content = append(entry.Content, key("note"), str(s.Note))
		}
		if s.Reflection != nil {
			entry.Content = append(entry.Content, key("reflection"),
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(*s.Reflection)})
		}
		timeline.Content = append(timeline.Content, entry)
	}
	root.Content = append(root.Content, key("timeline"), timeline)

	doc := &yaml.Node{Kind: yaml.DocumentNode, HeadComment: header, Content: []*yaml.Node{root}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal log: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal log: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatDuration renders d to the minute, e.g. "1h30m" or "45m".
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	if t, err := time.Parse(zonedTimeLayout, s); err == nil {
		return t.In(loc), nil
	}
	return time.ParseInLocation(timeLayout, s, loc)
}

// hasZoneTransition reports whether the UTC offset changes during the date,
// in which case local wall-clock times would be ambiguous without an offset.
func hasZoneTransition(date time.Time, loc *time.Location) bool {
	y, m, d := date.Date()
	_, startOffset := time.Date(y, m, d, 0, 0, 0, 0, loc).Zone()
	_, endOffset := time.Date(y, m, d, 23, 59, 59, 0, loc).Zone()
	return startOffset != endOffset
}

func key(name string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: name}
}

func str(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func plain(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}
