package intent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/faff/internal/errs"
)

func TestTemplateOf(t *testing.T) {
	tmpl := sample()
	tmpl.Subject = BlankMarker

	tpl, ok := TemplateOf(tmpl)
	require.True(t, ok)
	assert.Equal(t, FieldSubject, tpl.BlankField())
	assert.True(t, tpl.Axis(FieldSubject).IsBlank())

	v, ok := tpl.Axis(FieldRole).Value()
	assert.True(t, ok)
	assert.Equal(t, "element:solutions-architect", v)

	_, ok = TemplateOf(sample())
	assert.False(t, ok)
}

func TestTemplateFill(t *testing.T) {
	base := sample()
	base.Action = BlankMarker
	tpl, _ := TemplateOf(base)

	got, err := tpl.Fill("review")
	require.NoError(t, err)
	assert.Equal(t, "review", got.Action)
	assert.Equal(t, base.Subject, got.Subject)
	assert.Equal(t, BlankMarker, base.Action, "template must not change")
}

func TestTemplateFillErrors(t *testing.T) {
	tpl, _ := TemplateOf(sample())
	_, err := tpl.Fill("x")
	assert.True(t, errors.Is(err, errs.InvalidIntent))

	base := sample()
	base.Role = BlankMarker
	tpl, _ = TemplateOf(base)
	_, err = tpl.Fill("")
	assert.True(t, errors.Is(err, errs.InvalidIntent))
}

func TestAxisVariants(t *testing.T) {
	_, ok := Blank().Value()
	assert.False(t, ok)
	v, ok := Fixed("meet").Value()
	assert.True(t, ok)
	assert.Equal(t, "meet", v)
	assert.False(t, Fixed("").IsBlank())
}
