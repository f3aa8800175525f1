package intent

import (
	"github.com/sadopc/faff/internal/errs"
)

// BlankMarker is how a blank axis is written in plan documents.
const BlankMarker = "?"

// Axis is one ROAST slot of a template: either a fixed value or blank, to be
// filled each time the template is used.
type Axis struct {
	value string
	blank bool
}

// Fixed returns an axis holding v.
func Fixed(v string) Axis { return Axis{value: v} }

// Blank returns an unfilled axis.
func Blank() Axis { return Axis{blank: true} }

// IsBlank reports whether the axis still needs a value.
func (a Axis) IsBlank() bool { return a.blank }

// Value returns the fixed value; ok is false for a blank axis.
func (a Axis) Value() (string, bool) {
	if a.blank {
		return "", false
	}
	return a.value, true
}

func axisOf(v string) Axis {
	if v == BlankMarker {
		return Blank()
	}
	return Fixed(v)
}

// Template is an intent with at most one blank axis.
type Template struct {
	Base Intent
	axes map[Field]Axis
}

// TemplateOf views i as a template. ok is false when no axis is blank.
func TemplateOf(i Intent) (Template, bool) {
	t := Template{Base: i, axes: make(map[Field]Axis, len(Axes))}
	blank := false
	for _, f := range Axes {
		v, _ := i.Field(f)
		a := axisOf(v)
		t.axes[f] = a
		if a.IsBlank() {
			blank = true
		}
	}
	return t, blank
}

// Axis returns the axis for f.
func (t Template) Axis(f Field) Axis {
	return t.axes[f]
}

// BlankField returns the blank axis, or "" when the template is fully resolved.
func (t Template) BlankField() Field {
	for _, f := range Axes {
		if t.axes[f].IsBlank() {
			return f
		}
	}
	return ""
}

// Fill returns the intent obtained by setting the blank axis to value. The
// result keeps the template's id; callers assign a new one when they persist it.
func (t Template) Fill(value string) (Intent, error) {
	f := t.BlankField()
	if f == "" {
		return Intent{}, errs.New(errs.InvalidIntent, "fill template", t.Base.ID+": no blank axis")
	}
	if value == "" || value == BlankMarker {
		return Intent{}, errs.New(errs.InvalidIntent, "fill template", t.Base.ID+": empty value")
	}
	out := t.Base.clone()
	for _, axis := range Axes {
		a := t.axes[axis]
		v, ok := a.Value()
		if !ok {
			v = value
		}
		out, _ = out.With(axis, v)
	}
	return out, nil
}
