package plan

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/faff/internal/docversion"
	"github.com/sadopc/faff/internal/intent"
)

// Version is the plan document format written by this package.
const Version = "1.0"

const dateLayout = "2006-01-02"

type planDoc struct {
	Version    string      `yaml:"version"`
	Source     string      `yaml:"source"`
	ValidFrom  string      `yaml:"valid_from"`
	ValidUntil string      `yaml:"valid_until,omitempty"`
	Roles      []string    `yaml:"roles,omitempty"`
	Objectives []string    `yaml:"objectives,omitempty"`
	Actions    []string    `yaml:"actions,omitempty"`
	Subjects   []string    `yaml:"subjects,omitempty"`
	Intents    []intentDoc `yaml:"intents,omitempty"`
}

type intentDoc struct {
	ID          string   `yaml:"intent_id"`
	Alias       string   `yaml:"alias,omitempty"`
	Role        string   `yaml:"role,omitempty"`
	Objective   string   `yaml:"objective,omitempty"`
	Action      string   `yaml:"action,omitempty"`
	Subject     string   `yaml:"subject,omitempty"`
	Trackers    []string `yaml:"trackers,omitempty"`
	ValidFrom   string   `yaml:"valid_from,omitempty"`
	ValidUntil  string   `yaml:"valid_until,omitempty"`
	DerivedFrom string   `yaml:"derived_from,omitempty"`
}

// Decode parses a plan document.
func Decode(data []byte) (*Plan, error) {
	var doc planDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := docversion.Check(doc.Version, Version); err != nil {
		return nil, err
	}
	if doc.Source == "" {
		return nil, fmt.Errorf("parse plan: missing source")
	}

	p := &Plan{
		Source:     doc.Source,
		Roles:      doc.Roles,
		Objectives: doc.Objectives,
		Actions:    doc.Actions,
		Subjects:   doc.Subjects,
	}
	var err error
	if p.ValidFrom, err = parseDate(doc.ValidFrom); err != nil {
		return nil, fmt.Errorf("parse plan valid_from: %w", err)
	}
	if doc.ValidUntil != "" {
		u, err := parseDate(doc.ValidUntil)
		if err != nil {
			return nil, fmt.Errorf("parse plan valid_until: %w", err)
		}
		p.ValidUntil = &u
	}

	for _, d := range doc.Intents {
		i := intent.Intent{
			ID:          d.ID,
			Alias:       d.Alias,
			Role:        d.Role,
			Objective:   d.Objective,
			Action:      d.Action,
			Subject:     d.Subject,
			Trackers:    d.Trackers,
			DerivedFrom: d.DerivedFrom,
		}
		if d.ValidFrom != "" {
			if i.ValidFrom, err = parseDate(d.ValidFrom); err != nil {
				return nil, fmt.Errorf("parse intent %s valid_from: %w", d.ID, err)
			}
		}
		if d.ValidUntil != "" {
			u, err := parseDate(d.ValidUntil)
			if err != nil {
				return nil, fmt.Errorf("parse intent %s valid_until: %w", d.ID, err)
			}
			i.ValidUntil = &u
		}
		if err := i.Validate(); err != nil {
			return nil, err
		}
		p.Intents = append(p.Intents, i)
	}
	return p, nil
}

// Encode renders p as a plan document.
func Encode(p *Plan) ([]byte, error) {
	doc := planDoc{
		Version:    Version,
		Source:     p.Source,
		ValidFrom:  p.ValidFrom.Format(dateLayout),
		Roles:      p.Roles,
		Objectives: p.Objectives,
		Actions:    p.Actions,
		Subjects:   p.Subjects,
	}
	if p.ValidUntil != nil {
		doc.ValidUntil = p.ValidUntil.Format(dateLayout)
	}
	for _, i := range p.Intents {
		d := intentDoc{
			ID:          i.ID,
			Alias:       i.Alias,
			Role:        i.Role,
			Objective:   i.Objective,
			Action:      i.Action,
			Subject:     i.Subject,
			Trackers:    i.Trackers,
			DerivedFrom: i.DerivedFrom,
		}
		if !i.ValidFrom.IsZero() {
			d.ValidFrom = i.ValidFrom.Format(dateLayout)
		}
		if i.ValidUntil != nil {
			d.ValidUntil = i.ValidUntil.Format(dateLayout)
		}
		doc.Intents = append(doc.Intents, d)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	return buf.Bytes(), nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
